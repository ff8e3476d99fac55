package breakpolicy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/kintai/internal/model"
)

// mockPolicyLookup はPolicyLookupのモック。
type mockPolicyLookup struct {
	findFn func(ctx context.Context, key string) (*model.BreakPolicy, error)
	calls  []string
}

func (m *mockPolicyLookup) FindBreakPolicy(ctx context.Context, key string) (*model.BreakPolicy, error) {
	m.calls = append(m.calls, key)
	return m.findFn(ctx, key)
}

func int64Ptr(v int64) *int64 { return &v }

func TestIdentity_Key(t *testing.T) {
	tests := []struct {
		name string
		id   Identity
		want string
	}{
		{name: "レコードIDが最優先", id: Identity{RecordID: "rec1", NumericID: int64Ptr(7), DisplayName: "山田"}, want: "rec1"},
		{name: "数値ID", id: Identity{NumericID: int64Ptr(7), DisplayName: "山田"}, want: "7"},
		{name: "表示名", id: Identity{DisplayName: "山田"}, want: "山田"},
		{name: "識別情報なし", id: Identity{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIdentityFromPunch(t *testing.T) {
	id := IdentityFromPunch(model.PunchRecord{UserID: "42", UserName: "佐藤"})
	if id.NumericID == nil || *id.NumericID != 42 {
		t.Errorf("NumericID = %v, want 42", id.NumericID)
	}
	if id.Key() != "42" {
		t.Errorf("Key() = %q, want 42", id.Key())
	}

	id = IdentityFromPunch(model.PunchRecord{UserID: "emp-1", UserName: "佐藤"})
	if id.NumericID != nil {
		t.Errorf("NumericID = %v, want nil for non-numeric id", *id.NumericID)
	}
	if id.Key() != "emp-1" {
		t.Errorf("Key() = %q, want emp-1", id.Key())
	}

	id = IdentityFromPunch(model.PunchRecord{UserRecordID: "rec9", UserID: "emp-1", UserName: "佐藤"})
	if id.Key() != "rec9" {
		t.Errorf("Key() = %q, want rec9", id.Key())
	}

	id = IdentityFromPunch(model.PunchRecord{UserName: "佐藤"})
	if id.Key() != "佐藤" {
		t.Errorf("Key() = %q, want 佐藤", id.Key())
	}
}

func TestIdentityFromReport(t *testing.T) {
	tests := []struct {
		name string
		rec  model.DailyReportRecord
		want string
	}{
		{name: "保存済みの参照キー", rec: model.DailyReportRecord{UserKey: "U001", PolicyKey: "rec9", UserName: "佐藤"}, want: "rec9"},
		{name: "参照キーなし", rec: model.DailyReportRecord{UserKey: "U001", UserName: "佐藤"}, want: "U001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IdentityFromReport(tt.rec).Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestUserIdentities_OrderIndependent は入力順に関係なく最も早い打刻の識別情報が使われることを検証する。
func TestUserIdentities_OrderIndependent(t *testing.T) {
	early := model.PunchRecord{ID: "1", TimestampMs: 1000, UserKey: "U", UserID: "U", UserRecordID: "rec-early"}
	late := model.PunchRecord{ID: "2", TimestampMs: 2000, UserKey: "U", UserID: "U", UserRecordID: "rec-late"}

	for _, punches := range [][]model.PunchRecord{{early, late}, {late, early}} {
		ids := UserIdentities(punches)
		if got := ids["U"].Key(); got != "rec-early" {
			t.Errorf("Key() = %q, want rec-early", got)
		}
	}
}

// TestResolver_Disabled は無効時に参照せず標準控除になることを検証する。
func TestResolver_Disabled(t *testing.T) {
	lookup := &mockPolicyLookup{findFn: func(ctx context.Context, key string) (*model.BreakPolicy, error) {
		return &model.BreakPolicy{ExcludeBreakDeduction: true}, nil
	}}
	r := NewResolver(lookup, nil, Options{Enabled: false})

	policy, err := r.Resolve(context.Background(), Identity{RecordID: "rec1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if policy.ExcludeBreakDeduction {
		t.Error("disabled resolver should return the standard policy")
	}
	if len(lookup.calls) != 0 {
		t.Errorf("lookup called %d times, want 0", len(lookup.calls))
	}
}

func TestResolver_NotFound(t *testing.T) {
	lookup := &mockPolicyLookup{findFn: func(ctx context.Context, key string) (*model.BreakPolicy, error) {
		return nil, nil
	}}
	r := NewResolver(lookup, nil, Options{Enabled: true})

	policy, err := r.Resolve(context.Background(), Identity{DisplayName: "未登録"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if policy.ExcludeBreakDeduction {
		t.Error("unknown user should get the standard policy")
	}
}

func TestResolver_LookupError(t *testing.T) {
	lookup := &mockPolicyLookup{findFn: func(ctx context.Context, key string) (*model.BreakPolicy, error) {
		return nil, errors.New("connection refused")
	}}
	r := NewResolver(lookup, nil, Options{Enabled: true})

	if _, err := r.Resolve(context.Background(), Identity{RecordID: "rec1"}); err == nil {
		t.Fatal("expected error")
	}
}

// TestResolver_UsesCache は2回目以降の参照がキャッシュから返ることを検証する。
func TestResolver_UsesCache(t *testing.T) {
	cache, err := NewCache()
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer cache.Close()

	lookup := &mockPolicyLookup{findFn: func(ctx context.Context, key string) (*model.BreakPolicy, error) {
		return &model.BreakPolicy{ExcludeBreakDeduction: true}, nil
	}}
	r := NewResolver(lookup, cache, Options{Enabled: true, TTL: time.Minute})

	ctx := context.Background()
	if _, err := r.Resolve(ctx, Identity{RecordID: "rec1"}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	cache.Wait()

	policy, err := r.Resolve(ctx, Identity{RecordID: "rec1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !policy.ExcludeBreakDeduction {
		t.Error("cached policy lost ExcludeBreakDeduction")
	}
	if len(lookup.calls) != 1 {
		t.Errorf("lookup called %d times, want 1", len(lookup.calls))
	}
}

func TestResolver_ResolveAll(t *testing.T) {
	lookup := &mockPolicyLookup{findFn: func(ctx context.Context, key string) (*model.BreakPolicy, error) {
		if key == "rec-a" {
			return &model.BreakPolicy{ExcludeBreakDeduction: true}, nil
		}
		return nil, nil
	}}
	r := NewResolver(lookup, nil, Options{Enabled: true})

	punches := []model.PunchRecord{
		{ID: "1", UserKey: "A", UserRecordID: "rec-a"},
		{ID: "2", UserKey: "A", UserRecordID: "rec-a"},
		{ID: "3", UserKey: "B", UserName: "B"},
	}
	policies, err := r.ResolveAll(context.Background(), punches)
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if !policies.Excluded("A") {
		t.Error("A should be excluded")
	}
	if policies.Excluded("B") {
		t.Error("B should not be excluded")
	}
	if len(lookup.calls) != 2 {
		t.Errorf("lookup called %d times, want 2", len(lookup.calls))
	}
}

// TestResolver_ResolveAll_NonNumericUserID は数値でないユーザーIDでも作業者を参照できることを検証する。
func TestResolver_ResolveAll_NonNumericUserID(t *testing.T) {
	lookup := &mockPolicyLookup{findFn: func(ctx context.Context, key string) (*model.BreakPolicy, error) {
		if key == "U001" {
			return &model.BreakPolicy{ExcludeBreakDeduction: true}, nil
		}
		return nil, nil
	}}
	r := NewResolver(lookup, nil, Options{Enabled: true})

	fromPunches, err := r.ResolveAll(context.Background(), []model.PunchRecord{
		{ID: "1", UserKey: "U001", UserID: "U001", UserName: "山田"},
	})
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	fromReports, err := r.ResolveUsers(context.Background(), map[string]Identity{
		"U001": IdentityFromReport(model.DailyReportRecord{UserKey: "U001", UserName: "山田"}),
	})
	if err != nil {
		t.Fatalf("ResolveUsers: %v", err)
	}

	if got := fromPunches.NetMinutes("U001", 510); got != 510 {
		t.Errorf("ResolveAll NetMinutes = %d, want 510", got)
	}
	if got := fromReports.NetMinutes("U001", 510); got != 510 {
		t.Errorf("ResolveUsers NetMinutes = %d, want 510", got)
	}
}

// TestResolver_Deduct は Options.Deduct が解決結果に引き継がれることを検証する。
func TestResolver_Deduct(t *testing.T) {
	lookup := &mockPolicyLookup{findFn: func(ctx context.Context, key string) (*model.BreakPolicy, error) {
		return nil, nil
	}}
	for _, enabled := range []bool{true, false} {
		r := NewResolver(lookup, nil, Options{Enabled: enabled, Deduct: func(gross int) int { return gross - 10 }})
		policies, err := r.ResolveAll(context.Background(), []model.PunchRecord{{ID: "1", UserKey: "A", UserID: "A"}})
		if err != nil {
			t.Fatalf("ResolveAll: %v", err)
		}
		if got := policies.NetMinutes("A", 510); got != 500 {
			t.Errorf("enabled=%v NetMinutes = %d, want 500", enabled, got)
		}
	}
}
