package aggregate

import (
	"sort"

	"github.com/hitoshi/kintai/internal/model"
	"github.com/hitoshi/kintai/internal/session"
)

const unsetLabel = "未設定"

// BreakdownLabel はセッションの内訳ラベル "現場 / 機械" を返す。
// 機械は名称、IDの順に使う。値がない項目は "未設定" とする。
func BreakdownLabel(attrs model.SessionAttrs) string {
	site := unsetLabel
	if attrs.SiteName != nil && *attrs.SiteName != "" {
		site = *attrs.SiteName
	}
	machine := unsetLabel
	switch {
	case attrs.MachineName != nil && *attrs.MachineName != "":
		machine = *attrs.MachineName
	case attrs.MachineID != nil && *attrs.MachineID != "":
		machine = *attrs.MachineID
	}
	return site + " / " + machine
}

// DailyAggregates はセッションを開始時刻のJST暦日でユーザーごとに集計する。
// 総分数と内訳には完了セッションだけを含め、未退勤セッションは件数のみ数える。
// 結果はユーザーキー、日付の昇順に並ぶ。
func DailyAggregates(sessions []model.Session) []model.DailyAggregate {
	type bucketKey struct {
		user string
		day  string
	}
	buckets := make(map[bucketKey]*model.DailyAggregate)

	for _, s := range sessions {
		k := bucketKey{user: s.UserKey, day: DayKey(s.StartMs)}
		agg, ok := buckets[k]
		if !ok {
			agg = &model.DailyAggregate{
				UserKey:   k.user,
				DayKey:    k.day,
				Breakdown: make(map[string]int),
			}
			buckets[k] = agg
		}

		if !s.Completed() {
			agg.OpenSessions++
			continue
		}
		agg.Sessions++
		agg.TotalMinutes += *s.DurationMinutes
		agg.Breakdown[BreakdownLabel(s.Attrs)] += *s.DurationMinutes
	}

	out := make([]model.DailyAggregate, 0, len(buckets))
	for _, agg := range buckets {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserKey != out[j].UserKey {
			return out[i].UserKey < out[j].UserKey
		}
		return out[i].DayKey < out[j].DayKey
	})
	return out
}

// UserNames はユーザーキーごとに最も古い打刻の表示名を返す。
// 打刻に表示名がない場合はユーザーキーを使う。
func UserNames(punches []model.PunchRecord) map[string]string {
	sorted := append([]model.PunchRecord(nil), punches...)
	session.SortPunches(sorted)

	names := make(map[string]string)
	for _, p := range sorted {
		if names[p.UserKey] != "" {
			continue
		}
		names[p.UserKey] = p.UserName
	}
	for key, name := range names {
		if name == "" {
			names[key] = key
		}
	}
	return names
}
