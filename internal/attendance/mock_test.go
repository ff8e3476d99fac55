package attendance

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hitoshi/kintai/internal/model"
)

// --- モック ---

type mockPunchRepo struct {
	listFn   func(ctx context.Context, from, to string) ([]model.RawPunch, error)
	insertFn func(ctx context.Context, punches []model.RawPunch) error

	listedFrom, listedTo string
}

func (m *mockPunchRepo) ListRawByWorkDate(ctx context.Context, from, to string) ([]model.RawPunch, error) {
	m.listedFrom, m.listedTo = from, to
	return m.listFn(ctx, from, to)
}
func (m *mockPunchRepo) Insert(ctx context.Context, punches []model.RawPunch) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, punches)
	}
	return nil
}
func (m *mockPunchRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type mockUserRepo struct {
	findBreakPolicyFn func(ctx context.Context, key string) (*model.BreakPolicy, error)
	listNamesFn       func(ctx context.Context) (map[string]string, error)
}

func (m *mockUserRepo) FindBreakPolicy(ctx context.Context, key string) (*model.BreakPolicy, error) {
	if m.findBreakPolicyFn != nil {
		return m.findBreakPolicyFn(ctx, key)
	}
	return nil, nil
}
func (m *mockUserRepo) ListNames(ctx context.Context) (map[string]string, error) {
	if m.listNamesFn != nil {
		return m.listNamesFn(ctx)
	}
	return map[string]string{}, nil
}

type mockSiteRepo struct {
	listSitesFn func(ctx context.Context) (map[string]model.Site, error)
}

func (m *mockSiteRepo) ListSites(ctx context.Context) (map[string]model.Site, error) {
	if m.listSitesFn != nil {
		return m.listSitesFn(ctx)
	}
	return map[string]model.Site{}, nil
}
func (m *mockSiteRepo) Upsert(ctx context.Context, sites []model.Site) (int64, error) {
	return int64(len(sites)), nil
}

type mockReportRepo struct {
	listByUserNameFn func(ctx context.Context, name string) ([]model.DailyReportRecord, error)
	upserted         []model.DailyReportRecord
}

func (m *mockReportRepo) ListByUserName(ctx context.Context, name string) ([]model.DailyReportRecord, error) {
	return m.listByUserNameFn(ctx, name)
}
func (m *mockReportRepo) Upsert(ctx context.Context, records []model.DailyReportRecord) error {
	m.upserted = append(m.upserted, records...)
	return nil
}

// rawPunch はテスト用の打刻ペイロードを作る。
func rawPunch(fields map[string]any) model.RawPunch {
	b, _ := json.Marshal(fields)
	return model.RawPunch{Payload: b}
}
