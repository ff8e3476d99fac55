// Package attendance は打刻の取得から集計・レポート生成までを束ねるサービス層を提供する。
package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hitoshi/kintai/internal/aggregate"
	"github.com/hitoshi/kintai/internal/breakpolicy"
	"github.com/hitoshi/kintai/internal/metrics"
	"github.com/hitoshi/kintai/internal/model"
	"github.com/hitoshi/kintai/internal/punch"
	"github.com/hitoshi/kintai/internal/reportrow"
	"github.com/hitoshi/kintai/internal/repository"
	"github.com/hitoshi/kintai/internal/session"
)

// 年の指定として受け付ける範囲。
const (
	minYear = 2000
	maxYear = 2100
)

// IngestResult は打刻取り込みの結果。
type IngestResult struct {
	Accepted int
	Dropped  int
}

// Service は勤怠集計のサービス層。
// リクエストごとに打刻を取得して正規化し、集計処理に渡す。
type Service struct {
	punchRepo  repository.PunchRepository
	userRepo   repository.UserRepository
	siteRepo   repository.SiteRepository
	reportRepo repository.DailyReportRepository
	resolver   *breakpolicy.Resolver
	normalizer *punch.Normalizer
	metrics    metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewService(
	punchRepo repository.PunchRepository,
	userRepo repository.UserRepository,
	siteRepo repository.SiteRepository,
	reportRepo repository.DailyReportRepository,
	resolver *breakpolicy.Resolver,
	normalizer *punch.Normalizer,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		punchRepo:  punchRepo,
		userRepo:   userRepo,
		siteRepo:   siteRepo,
		reportRepo: reportRepo,
		resolver:   resolver,
		normalizer: normalizer,
		metrics:    collector,
	}
}

// ValidateMonth は年月の範囲を検証する。
func ValidateMonth(year, month int) error {
	if year < minYear || year > maxYear || month < 1 || month > 12 {
		return model.NewInvalidMonthError(strconv.Itoa(year), strconv.Itoa(month))
	}
	return nil
}

// SummariseMonth はJSTの暦月のカレンダー用日次サマリーを返す。
// userKeyが空でない場合はそのユーザーの打刻だけを集計する。
func (s *Service) SummariseMonth(ctx context.Context, year, month int, userKey string) ([]model.DailySummary, error) {
	if err := ValidateMonth(year, month); err != nil {
		return nil, err
	}
	start := time.Now()

	rng := aggregate.MonthRange(year, month)
	punches, err := s.loadPunches(ctx, rng.From, rng.To, userKey)
	if err != nil {
		return nil, err
	}
	policies, err := s.resolver.ResolveAll(ctx, punches)
	if err != nil {
		return nil, err
	}

	days := aggregate.SummariseMonth(punches, policies)
	s.metrics.RecordReportBuilt("calendar", time.Since(start))
	return days, nil
}

// DayDetail は指定日のセッション詳細を返す。
func (s *Service) DayDetail(ctx context.Context, date, userKey string) (*model.DayDetail, error) {
	from, to, err := aggregate.DayRange(date)
	if err != nil {
		return nil, model.NewInvalidDateError(date)
	}
	start := time.Now()

	punches, err := s.loadPunches(ctx, from, to, userKey)
	if err != nil {
		return nil, err
	}
	policies, err := s.resolver.ResolveAll(ctx, punches)
	if err != nil {
		return nil, err
	}

	detail := aggregate.BuildDayDetail(from, punches, policies)
	s.metrics.RecordReportBuilt("day", time.Since(start))
	return &detail, nil
}

// WorkReportByMonth は給与計算向けの月次勤務レポートを返す。
// warningsには対応のない退勤と未退勤の出勤が含まれる。
func (s *Service) WorkReportByMonth(ctx context.Context, criteria model.WorkReportCriteria) (*model.WorkReport, error) {
	if err := ValidateMonth(criteria.Year, criteria.Month); err != nil {
		return nil, err
	}
	start := time.Now()

	rng := aggregate.MonthRange(criteria.Year, criteria.Month)
	punches, err := s.loadPunches(ctx, rng.From, rng.To, criteria.UserKey)
	if err != nil {
		return nil, err
	}
	policies, err := s.resolver.ResolveAll(ctx, punches)
	if err != nil {
		return nil, err
	}

	report := aggregate.BuildWorkReport(punches, policies, rng, criteria.SiteName)
	s.recordWarnings(report.Warnings)
	s.metrics.RecordReportBuilt("work", time.Since(start))

	slog.Info("月次勤務レポートを生成しました",
		"year", criteria.Year,
		"month", criteria.Month,
		"users", len(report.Users),
		"warnings", len(report.Warnings),
	)
	return &report, nil
}

// ReportRowsByUserName は指定ユーザーの日報を表示用の行にして返す。
func (s *Service) ReportRowsByUserName(ctx context.Context, name string, opts reportrow.Options) ([]model.ReportRow, error) {
	if name == "" {
		return nil, model.NewUserNameRequiredError()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	records, err := s.reportRepo.ListByUserName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("日報の取得に失敗しました: %w", err)
	}
	sites, err := s.siteRepo.ListSites(ctx)
	if err != nil {
		return nil, fmt.Errorf("現場マスタの取得に失敗しました: %w", err)
	}

	policies, err := s.resolver.ResolveUsers(ctx, reportIdentities(records))
	if err != nil {
		return nil, err
	}

	rows, err := reportrow.Build(records, sites, policies, opts)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordReportBuilt("rows", time.Since(start))
	return rows, nil
}

// reportIdentities はユーザーキーごとに、出勤時刻が最も早い日報から識別情報を決める。
func reportIdentities(records []model.DailyReportRecord) map[string]breakpolicy.Identity {
	earliest := make(map[string]model.DailyReportRecord)
	for _, rec := range records {
		if cur, ok := earliest[rec.UserKey]; !ok || reportBefore(rec, cur) {
			earliest[rec.UserKey] = rec
		}
	}
	ids := make(map[string]breakpolicy.Identity, len(earliest))
	for userKey, rec := range earliest {
		ids[userKey] = breakpolicy.IdentityFromReport(rec)
	}
	return ids
}

// reportBefore は出勤時刻、IDの順で日報を比較する。出勤時刻のない日報は後ろに置く。
func reportBefore(a, b model.DailyReportRecord) bool {
	switch {
	case a.ClockInMs != nil && b.ClockInMs == nil:
		return true
	case a.ClockInMs == nil && b.ClockInMs != nil:
		return false
	case a.ClockInMs != nil && *a.ClockInMs != *b.ClockInMs:
		return *a.ClockInMs < *b.ClockInMs
	}
	return a.ID < b.ID
}

// Ingest は生の打刻ペイロードを検証して保存する。
// 正規化できないペイロードは破棄して件数だけを返す。有効な打刻が1件もない場合はエラーにする。
func (s *Service) Ingest(ctx context.Context, payloads []json.RawMessage) (*IngestResult, error) {
	result := &IngestResult{}
	raws := make([]model.RawPunch, 0, len(payloads))

	for _, payload := range payloads {
		row, err := punch.Decode(payload)
		if err != nil {
			result.Dropped++
			continue
		}
		rec, ok := s.normalizer.Normalize(row)
		if !ok {
			result.Dropped++
			continue
		}
		raws = append(raws, model.RawPunch{
			Payload:    payload,
			WorkDate:   aggregate.DayKey(rec.TimestampMs),
			RecordedAt: rec.Time(),
		})
	}

	if result.Dropped > 0 {
		s.metrics.RecordDroppedRecords(result.Dropped)
	}
	if len(raws) == 0 {
		return nil, model.NewNoValidPunchesError(result.Dropped)
	}

	if err := s.punchRepo.Insert(ctx, raws); err != nil {
		return nil, fmt.Errorf("打刻の保存に失敗しました: %w", err)
	}
	result.Accepted = len(raws)
	s.metrics.RecordPunchesIngested(result.Accepted)

	slog.Info("打刻を取り込みました", "accepted", result.Accepted, "dropped", result.Dropped)
	return result, nil
}

// loadPunches は日付範囲の打刻を取得して正規化する。
// 破棄した件数はログとメトリクスに記録し、エラーにはしない。
func (s *Service) loadPunches(ctx context.Context, from, to, userKey string) ([]model.PunchRecord, error) {
	raws, err := s.punchRepo.ListRawByWorkDate(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("打刻の取得に失敗しました: %w", err)
	}

	rows, undecodable := punch.DecodeRows(raws)
	records, rejected := s.normalizer.NormalizeAll(rows)
	if dropped := undecodable + rejected; dropped > 0 {
		s.metrics.RecordDroppedRecords(dropped)
		slog.Warn("不正な打刻を破棄しました",
			"from", from,
			"to", to,
			"undecodable", undecodable,
			"rejected", rejected,
		)
	}

	if err := s.fillUserNames(ctx, records); err != nil {
		return nil, err
	}

	if userKey == "" {
		return records, nil
	}
	filtered := records[:0]
	for _, r := range records {
		if r.UserKey == userKey || r.UserName == userKey {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// fillUserNames は表示名のない打刻に作業者マスタの氏名を補う。
func (s *Service) fillUserNames(ctx context.Context, records []model.PunchRecord) error {
	missing := false
	for _, r := range records {
		if r.UserName == "" && r.UserID != "" {
			missing = true
			break
		}
	}
	if !missing || s.userRepo == nil {
		return nil
	}

	names, err := s.userRepo.ListNames(ctx)
	if err != nil {
		return fmt.Errorf("作業者一覧の取得に失敗しました: %w", err)
	}
	for i := range records {
		if records[i].UserName != "" {
			continue
		}
		if name, ok := names[records[i].UserID]; ok {
			records[i].UserName = name
		}
	}
	return nil
}

func (s *Service) recordWarnings(warnings []model.UnmatchedPunch) {
	var unmatched, open int
	for _, w := range warnings {
		if w.Kind == model.PunchOut {
			unmatched++
		} else {
			open++
		}
	}
	s.metrics.RecordUnmatchedPunches(unmatched)
	s.metrics.RecordOpenSessions(open)
}

// pairRange は日付範囲の打刻を取得してセッションに組み立てる。
func (s *Service) pairRange(ctx context.Context, from, to string) ([]model.PunchRecord, session.Result, error) {
	punches, err := s.loadPunches(ctx, from, to, "")
	if err != nil {
		return nil, session.Result{}, err
	}
	return punches, session.Pair(punches), nil
}
