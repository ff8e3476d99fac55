package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/kintai/internal/aggregate"
	"github.com/hitoshi/kintai/internal/breakpolicy"
	"github.com/hitoshi/kintai/internal/model"
)

// dailyReportNamespace は日報IDを (ユーザーキー, 日付) から決定的に生成するための名前空間。
var dailyReportNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("kintai.daily_reports"))

// DailyReportID はユーザーと日付に対応する日報IDを返す。
func DailyReportID(userKey, day string) string {
	return uuid.NewSHA1(dailyReportNamespace, []byte(userKey+"|"+day)).String()
}

// MaterializeDailyReports は from <= 日付 < to の打刻からユーザーごと・日ごとの日報を作り直す。
// 同じ範囲で何度実行しても同じ日報になる。保存した件数を返す。
func (s *Service) MaterializeDailyReports(ctx context.Context, from, to string) (int, error) {
	start := time.Now()

	punches, res, err := s.pairRange(ctx, from, to)
	if err != nil {
		return 0, err
	}
	records := BuildDailyReports(aggregate.UserNames(punches), breakpolicy.UserIdentities(punches), res.Sessions)

	if err := s.reportRepo.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("日報の保存に失敗しました: %w", err)
	}

	s.metrics.RecordJobDuration("materialize", time.Since(start))
	slog.Info("日報を更新しました",
		"from", from,
		"to", to,
		"reports", len(records),
		"unmatched", len(res.Unmatched),
	)
	return len(records), nil
}

// BuildDailyReports はセッションを開始日のJST暦日でまとめ、日報レコードにする。
// 出勤は最も早い開始時刻、退勤は完了セッションの最も遅い終了時刻を使う。
// 結果はユーザーキー、日付の昇順に並ぶ。
// 各日報にはレポート集計と同じ休憩控除ポリシーの参照キーを保存する。
func BuildDailyReports(names map[string]string, identities map[string]breakpolicy.Identity, sessions []model.Session) []model.DailyReportRecord {
	type key struct {
		user string
		day  string
	}
	byKey := make(map[key]*model.DailyReportRecord)
	var keys []key

	sorted := append([]model.Session(nil), sessions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartMs < sorted[j].StartMs
	})

	for _, sess := range sorted {
		k := key{user: sess.UserKey, day: aggregate.DayKey(sess.StartMs)}
		rec, ok := byKey[k]
		if !ok {
			rec = newDailyReport(k.user, names[k.user], k.day)
			rec.PolicyKey = identities[k.user].Key()
			byKey[k] = rec
			keys = append(keys, k)
		}

		if rec.ClockInMs == nil || sess.StartMs < *rec.ClockInMs {
			startMs := sess.StartMs
			rec.ClockInMs = &startMs
			rec.ClockInAt = isoString(startMs)
		}
		if rec.SiteID == "" && sess.Attrs.SiteID != "" {
			rec.SiteID = sess.Attrs.SiteID
		}
		if rec.SiteName == "" && sess.Attrs.SiteName != nil {
			rec.SiteName = *sess.Attrs.SiteName
		}

		if !sess.Completed() {
			continue
		}
		rec.TotalMinutes += *sess.DurationMinutes
		if rec.ClockOutMs == nil || *sess.EndMs > *rec.ClockOutMs {
			endMs := *sess.EndMs
			rec.ClockOutMs = &endMs
			rec.ClockOutAt = isoString(endMs)
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].user != keys[j].user {
			return keys[i].user < keys[j].user
		}
		return keys[i].day < keys[j].day
	})
	out := make([]model.DailyReportRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, *byKey[k])
	}
	return out
}

func newDailyReport(userKey, userName, day string) *model.DailyReportRecord {
	rec := &model.DailyReportRecord{
		ID:       DailyReportID(userKey, day),
		UserKey:  userKey,
		UserName: userName,
	}
	if userName == "" {
		rec.UserName = userKey
	}
	if d, err := time.Parse("2006-01-02", day); err == nil {
		y, m, dd := d.Year(), int(d.Month()), d.Day()
		rec.Year, rec.Month, rec.Day = &y, &m, &dd
	}
	return rec
}

func isoString(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
