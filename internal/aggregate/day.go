// Package aggregate は勤務セッションを日次・月次に集計する。
//
// 日付の区切りはUTC+9の固定オフセットで決める。タイムゾーンデータベースは使わない。
package aggregate

import (
	"fmt"
	"time"

	"github.com/hitoshi/kintai/internal/model"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
	jstOffset   = 9 * time.Hour
)

var jst = time.FixedZone("JST", int(jstOffset/time.Second))

// DayKey はエポックミリ秒のJST暦日を "YYYY-MM-DD" で返す。
func DayKey(ms int64) string {
	return time.UnixMilli(ms).UTC().Add(jstOffset).Format(dateLayout)
}

// ClockLabel はエポックミリ秒のJST時刻を "HH:MM" で返す。
func ClockLabel(ms int64) string {
	return time.UnixMilli(ms).In(jst).Format(clockLayout)
}

// MonthRange はJSTの暦月をUTCの半開区間 [月初 00:00 JST, 翌月初 00:00 JST) で返す。
func MonthRange(year, month int) model.MonthRange {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	next := first.AddDate(0, 1, 0)
	return model.MonthRange{
		Start: first.Add(-jstOffset),
		End:   next.Add(-jstOffset),
		From:  first.Format(dateLayout),
		To:    next.Format(dateLayout),
	}
}

// DayRange は1日分の日付範囲 [date, 翌日) を返す。
func DayRange(date string) (from, to string, err error) {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return "", "", fmt.Errorf("日付の解析に失敗しました: %w", err)
	}
	return d.Format(dateLayout), d.AddDate(0, 0, 1).Format(dateLayout), nil
}

// inRange はDayKeyが範囲内かを返す。Fromが空の範囲は全期間とみなす。
func inRange(day string, rng model.MonthRange) bool {
	if rng.From == "" {
		return true
	}
	return day >= rng.From && day < rng.To
}

// TrailingRange は now のJST暦日を含む直近 days 日分の日付範囲 [from, to) を返す。
// days が1未満の場合は当日のみ。
func TrailingRange(now time.Time, days int) (from, to string) {
	if days < 1 {
		days = 1
	}
	today, _ := time.Parse(dateLayout, DayKey(now.UnixMilli()))
	return today.AddDate(0, 0, 1-days).Format(dateLayout), today.AddDate(0, 0, 1).Format(dateLayout)
}
