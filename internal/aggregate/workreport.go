package aggregate

import (
	"sort"

	"golang.org/x/text/language"

	"github.com/hitoshi/kintai/internal/breakpolicy"
	"github.com/hitoshi/kintai/internal/model"
	"github.com/hitoshi/kintai/internal/session"
)

// BuildWorkReport は給与計算向けにユーザーごと・日ごとの勤務を集計する。
//
// 休憩控除を適用した後に所定内と残業へ分ける。siteNameが空でない場合は
// その現場のセッションだけを集計する。警告には対応のない退勤と未退勤の出勤を
// 現場の指定によらず全て含める。
func BuildWorkReport(punches []model.PunchRecord, policies breakpolicy.Policies, rng model.MonthRange, siteName string) model.WorkReport {
	names := UserNames(punches)
	res := session.Pair(punches)

	var sessions []model.Session
	for _, s := range res.Sessions {
		if !inRange(DayKey(s.StartMs), rng) {
			continue
		}
		if siteName != "" && (s.Attrs.SiteName == nil || *s.Attrs.SiteName != siteName) {
			continue
		}
		sessions = append(sessions, s)
	}

	report := model.WorkReport{
		Range:    rng,
		Users:    []model.UserWorkDays{},
		Warnings: Warnings(res),
	}

	byUser := make(map[string]*model.UserWorkDays)
	for _, agg := range DailyAggregates(sessions) {
		u, ok := byUser[agg.UserKey]
		if !ok {
			u = &model.UserWorkDays{
				UserKey:      agg.UserKey,
				UserName:     names[agg.UserKey],
				ExcludeBreak: policies.Excluded(agg.UserKey),
			}
			byUser[agg.UserKey] = u
		}

		net := policies.NetMinutes(agg.UserKey, agg.TotalMinutes)
		working, overtime := SplitOvertime(net)
		u.Days = append(u.Days, model.WorkDay{
			Date:            agg.DayKey,
			GrossMinutes:    agg.TotalMinutes,
			NetMinutes:      net,
			WorkingMinutes:  working,
			OvertimeMinutes: overtime,
			WorkingHours:    FormatHours(working),
			OvertimeHours:   FormatHours(overtime),
			Sessions:        agg.Sessions,
			OpenSessions:    agg.OpenSessions,
			Breakdown:       agg.Breakdown,
		})
		u.TotalNetMinutes += net
		u.TotalOvertimeMinutes += overtime
	}

	for _, u := range byUser {
		report.Users = append(report.Users, *u)
	}
	cmp := NewNameComparator(language.Japanese)
	sort.SliceStable(report.Users, func(i, j int) bool {
		a, b := report.Users[i], report.Users[j]
		if c := cmp(a.UserName, b.UserName); c != 0 {
			return c < 0
		}
		return a.UserKey < b.UserKey
	})
	return report
}

// Warnings は対応のない退勤と未退勤の出勤を時刻順の警告一覧にする。
func Warnings(res session.Result) []model.UnmatchedPunch {
	warnings := make([]model.UnmatchedPunch, 0, len(res.Unmatched))
	warnings = append(warnings, res.Unmatched...)
	for _, s := range res.Sessions {
		if s.Completed() {
			continue
		}
		warnings = append(warnings, model.UnmatchedPunch{
			Kind:        model.PunchIn,
			RecordID:    s.StartID,
			UserKey:     s.UserKey,
			TimestampMs: s.StartMs,
		})
	}
	sort.SliceStable(warnings, func(i, j int) bool {
		a, b := warnings[i], warnings[j]
		if a.TimestampMs != b.TimestampMs {
			return a.TimestampMs < b.TimestampMs
		}
		if a.UserKey != b.UserKey {
			return a.UserKey < b.UserKey
		}
		return a.RecordID < b.RecordID
	})
	return warnings
}
