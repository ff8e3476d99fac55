package aggregate

import (
	"sort"

	"golang.org/x/text/language"

	"github.com/hitoshi/kintai/internal/breakpolicy"
	"github.com/hitoshi/kintai/internal/model"
	"github.com/hitoshi/kintai/internal/session"
)

// SummariseMonth はカレンダー表示用に打刻を日ごとに集計する。
// 休憩控除はユーザーごと・日ごとの総分数に適用してから合算する。
// 結果は日付の昇順に並ぶ。
func SummariseMonth(punches []model.PunchRecord, policies breakpolicy.Policies) []model.DailySummary {
	type dayState struct {
		summary model.DailySummary
		sites   map[string]struct{}
	}
	days := make(map[string]*dayState)
	dayOf := func(key string) *dayState {
		d, ok := days[key]
		if !ok {
			d = &dayState{
				summary: model.DailySummary{Date: key},
				sites:   make(map[string]struct{}),
			}
			days[key] = d
		}
		return d
	}

	for _, p := range punches {
		d := dayOf(DayKey(p.TimestampMs))
		d.summary.PunchCount++
		if p.SiteName != nil && *p.SiteName != "" {
			d.sites[*p.SiteName] = struct{}{}
		}
	}

	res := session.Pair(punches)
	for _, agg := range DailyAggregates(res.Sessions) {
		d := dayOf(agg.DayKey)
		d.summary.SessionCount += agg.Sessions + agg.OpenSessions
		d.summary.OpenSessions += agg.OpenSessions
		d.summary.NetMinutes += policies.NetMinutes(agg.UserKey, agg.TotalMinutes)
	}

	out := make([]model.DailySummary, 0, len(days))
	for _, d := range days {
		s := d.summary
		s.SiteNames = make([]string, 0, len(d.sites))
		for name := range d.sites {
			s.SiteNames = append(s.SiteNames, name)
		}
		SortNames(s.SiteNames)
		s.TotalHours = RoundHours(s.NetMinutes)
		s.HoursLabel = FormatHours(s.NetMinutes)
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}

// BuildDayDetail は指定日に開始したセッションの詳細を返す。
// 未退勤セッションも含め、開始時刻の昇順に並べる。
func BuildDayDetail(date string, punches []model.PunchRecord, policies breakpolicy.Policies) model.DayDetail {
	names := UserNames(punches)
	res := session.Pair(punches)

	detail := model.DayDetail{
		Date:      date,
		Sessions:  []model.SessionDetail{},
		Totals:    []model.DayUserTotal{},
		Unmatched: []model.UnmatchedPunch{},
	}

	var daySessions []model.Session
	for _, s := range res.Sessions {
		if DayKey(s.StartMs) != date {
			continue
		}
		daySessions = append(daySessions, s)
		detail.Sessions = append(detail.Sessions, sessionDetail(s, names[s.UserKey]))
	}
	sort.SliceStable(detail.Sessions, func(i, j int) bool {
		a, b := detail.Sessions[i], detail.Sessions[j]
		if a.StartMs != b.StartMs {
			return a.StartMs < b.StartMs
		}
		return a.UserKey < b.UserKey
	})

	for _, agg := range DailyAggregates(daySessions) {
		net := policies.NetMinutes(agg.UserKey, agg.TotalMinutes)
		detail.Totals = append(detail.Totals, model.DayUserTotal{
			UserKey:      agg.UserKey,
			UserName:     names[agg.UserKey],
			GrossMinutes: agg.TotalMinutes,
			NetMinutes:   net,
			HoursLabel:   FormatHours(net),
		})
	}
	cmp := NewNameComparator(language.Japanese)
	sort.SliceStable(detail.Totals, func(i, j int) bool {
		a, b := detail.Totals[i], detail.Totals[j]
		if c := cmp(a.UserName, b.UserName); c != 0 {
			return c < 0
		}
		return a.UserKey < b.UserKey
	})

	for _, u := range res.Unmatched {
		if DayKey(u.TimestampMs) == date {
			detail.Unmatched = append(detail.Unmatched, u)
		}
	}
	return detail
}

func sessionDetail(s model.Session, userName string) model.SessionDetail {
	d := model.SessionDetail{
		UserKey:         s.UserKey,
		UserName:        userName,
		Status:          s.Status(),
		StartMs:         s.StartMs,
		EndMs:           s.EndMs,
		ClockIn:         ClockLabel(s.StartMs),
		DurationMinutes: s.DurationMinutes,
		SiteName:        deref(s.Attrs.SiteName),
		MachineID:       deref(s.Attrs.MachineID),
		MachineName:     deref(s.Attrs.MachineName),
		WorkDescription: s.Attrs.WorkDescription,
	}
	if s.EndMs != nil {
		d.ClockOut = ClockLabel(*s.EndMs)
	}
	return d
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
