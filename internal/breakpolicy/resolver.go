// Package breakpolicy はユーザーごとの休憩控除ポリシーを解決し、控除を適用する。
package breakpolicy

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/hitoshi/kintai/internal/model"
	"github.com/hitoshi/kintai/internal/session"
)

// PolicyLookup はユーザー識別子からポリシーを取得する外部参照。
// 該当ユーザーがいない場合は (nil, nil) を返す。
type PolicyLookup interface {
	FindBreakPolicy(ctx context.Context, key string) (*model.BreakPolicy, error)
}

// Identity はポリシー参照に使うユーザー識別情報。
// レコードID、数値ID、表示名の順に最初に存在するものをキーにする。
type Identity struct {
	RecordID    string
	NumericID   *int64
	DisplayName string
}

// Key は参照キーを返す。識別情報が1つもない場合は空文字を返す。
func (id Identity) Key() string {
	switch {
	case id.RecordID != "":
		return id.RecordID
	case id.NumericID != nil:
		return strconv.FormatInt(*id.NumericID, 10)
	default:
		return id.DisplayName
	}
}

// IdentityFromPunch は打刻に含まれるユーザー情報から識別情報を組み立てる。
// ユーザーレコードIDがない場合はユーザーIDを数値かどうかに関係なくレコードIDとして扱う。
func IdentityFromPunch(p model.PunchRecord) Identity {
	id := Identity{RecordID: firstNonEmpty(p.UserRecordID, p.UserID), DisplayName: p.UserName}
	if n, err := strconv.ParseInt(p.UserID, 10, 64); err == nil {
		id.NumericID = &n
	}
	return id
}

// IdentityFromReport は日報に保存された参照キーから識別情報を組み立てる。
// 参照キーのない日報はユーザーキーで参照する。
func IdentityFromReport(rec model.DailyReportRecord) Identity {
	return Identity{RecordID: firstNonEmpty(rec.PolicyKey, rec.UserKey), DisplayName: rec.UserName}
}

// UserIdentities はユーザーキーごとの識別情報を返す。
// 識別情報は (timestampMs, id) 順で最初の打刻から取るため、入力の順序に依存しない。
func UserIdentities(punches []model.PunchRecord) map[string]Identity {
	byUser := session.PartitionByUser(punches)
	ids := make(map[string]Identity, len(byUser))
	for userKey, list := range byUser {
		ids[userKey] = IdentityFromPunch(list[0])
	}
	return ids
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Options はResolverの設定。
type Options struct {
	// Enabled がfalseの場合はユーザーごとの参照を行わず、全員に標準控除を適用する。
	Enabled bool
	// TTL はキャッシュの有効期間。
	TTL time.Duration
	// Deduct は控除対象ユーザーに適用する控除関数。nilの場合は標準控除。
	Deduct DeductFunc
}

// Resolver はポリシー参照結果をキャッシュしながらユーザーのポリシーを解決する。
// プロセスごとに1つ生成して注入する。
type Resolver struct {
	lookup  PolicyLookup
	cache   *ristretto.Cache
	enabled bool
	ttl     time.Duration
	deduct  DeductFunc
}

// NewCache はポリシー参照用のキャッシュを生成する。
func NewCache() (*ristretto.Cache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 14,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("ポリシーキャッシュの生成に失敗しました: %w", err)
	}
	return cache, nil
}

// NewResolver はResolverを生成する。cacheがnilの場合は毎回参照する。
func NewResolver(lookup PolicyLookup, cache *ristretto.Cache, opts Options) *Resolver {
	return &Resolver{
		lookup:  lookup,
		cache:   cache,
		enabled: opts.Enabled,
		ttl:     opts.TTL,
		deduct:  opts.Deduct,
	}
}

// Enabled はユーザーごとのポリシー参照が有効かを返す。
func (r *Resolver) Enabled() bool {
	return r.enabled
}

// Resolve はユーザーのポリシーを返す。
// 参照が無効、識別情報がない、またはユーザーが見つからない場合は標準控除のポリシーを返す。
func (r *Resolver) Resolve(ctx context.Context, id Identity) (model.BreakPolicy, error) {
	if !r.enabled {
		return model.BreakPolicy{}, nil
	}
	key := id.Key()
	if key == "" {
		return model.BreakPolicy{}, nil
	}

	cacheKey := "policy:" + key
	if r.cache != nil {
		if v, ok := r.cache.Get(cacheKey); ok {
			if policy, ok := v.(model.BreakPolicy); ok {
				return policy, nil
			}
		}
	}

	found, err := r.lookup.FindBreakPolicy(ctx, key)
	if err != nil {
		return model.BreakPolicy{}, fmt.Errorf("休憩控除ポリシーの取得に失敗しました (key=%s): %w", key, err)
	}
	var policy model.BreakPolicy
	if found != nil {
		policy = *found
	}

	if r.cache != nil {
		r.cache.SetWithTTL(cacheKey, policy, 1, r.ttl)
	}
	return policy, nil
}

// ResolveAll は打刻に現れる全ユーザーのポリシーをユーザーキーごとに解決する。
func (r *Resolver) ResolveAll(ctx context.Context, punches []model.PunchRecord) (Policies, error) {
	return r.ResolveUsers(ctx, UserIdentities(punches))
}

// ResolveUsers はユーザーキーごとの識別情報からポリシーを解決する。
// 参照が無効な場合は参照を行わず、全員を控除対象とする。
func (r *Resolver) ResolveUsers(ctx context.Context, identities map[string]Identity) (Policies, error) {
	byUser := make(map[string]model.BreakPolicy, len(identities))
	if r.enabled {
		for _, userKey := range session.SortedKeys(identities) {
			policy, err := r.Resolve(ctx, identities[userKey])
			if err != nil {
				return Policies{}, err
			}
			byUser[userKey] = policy
		}
	}

	slog.Debug("休憩控除ポリシーを解決しました", "users", len(byUser))
	return NewPolicies(byUser, r.deduct), nil
}
