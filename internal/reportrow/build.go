// Package reportrow はdaily_reportsの行を表示用のレポート行に変換する。
package reportrow

import (
	"fmt"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"golang.org/x/text/language"

	"github.com/hitoshi/kintai/internal/aggregate"
	"github.com/hitoshi/kintai/internal/breakpolicy"
	"github.com/hitoshi/kintai/internal/model"
)

// 並び替えキー
const (
	SortYear     = "year"
	SortMonth    = "month"
	SortDay      = "day"
	SortSiteName = "siteName"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// isoLayouts は時刻文字列として受け付ける形式。ゾーンのない時刻はUTCとみなす。
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var tokyo = loadTokyo()

func loadTokyo() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("Asia/Tokyo", 9*60*60)
	}
	return loc
}

// Options は並び替えの指定。空の場合は年・月・日の昇順になる。
type Options struct {
	Sort  string
	Order string
}

// Validate は並び替え指定を検証する。
func (o Options) Validate() error {
	switch o.Sort {
	case "", SortYear, SortMonth, SortDay, SortSiteName:
	default:
		return model.NewInvalidSortError(o.Sort, o.Order)
	}
	switch o.Order {
	case "", OrderAsc, OrderDesc:
	default:
		return model.NewInvalidSortError(o.Sort, o.Order)
	}
	return nil
}

// Build はレコードを表示用の行に変換する。
//
// 現場名と取引先名は直接値、集約済みの値、現場マスタの順に解決する。
// 年・月・日のいずれかが欠けたレコードは出力しない。
func Build(records []model.DailyReportRecord, sites map[string]model.Site, policies breakpolicy.Policies, opts Options) ([]model.ReportRow, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	rows := make([]model.ReportRow, 0, len(records))
	for _, rec := range records {
		if rec.Year == nil || rec.Month == nil || rec.Day == nil {
			continue
		}

		site := sites[rec.SiteID]
		adjusted := policies.NetMinutes(rec.UserKey, rec.TotalMinutes)
		_, overtime := aggregate.SplitOvertime(adjusted)

		rows = append(rows, model.ReportRow{
			ID:              rec.ID,
			Date:            fmt.Sprintf("%04d-%02d-%02d", *rec.Year, *rec.Month, *rec.Day),
			Year:            *rec.Year,
			Month:           *rec.Month,
			Day:             *rec.Day,
			UserName:        rec.UserName,
			SiteName:        firstNonEmpty(rec.SiteName, rec.SiteNameRollup, site.Name),
			ClientName:      firstNonEmpty(rec.ClientName, rec.ClientNameRollup, site.ClientName),
			ClockIn:         clockLabel(rec.ClockInMs, rec.ClockInAt),
			ClockOut:        clockLabel(rec.ClockOutMs, rec.ClockOutAt),
			RawMinutes:      rec.TotalMinutes,
			AdjustedMinutes: adjusted,
			OvertimeHours:   aggregate.FormatHours(overtime),
		})
	}

	sortRows(rows, opts)
	return rows, nil
}

// clockLabel はエポックミリ秒、なければISO文字列からAsia/Tokyoの "HH:MM" を返す。
// どちらも解釈できない場合は空文字を返す。
func clockLabel(ms *int64, iso string) string {
	if ms != nil {
		return time.UnixMilli(*ms).In(tokyo).Format("15:04")
	}
	iso = strings.TrimSpace(iso)
	if iso == "" {
		return ""
	}
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, iso, time.UTC); err == nil {
			return t.In(tokyo).Format("15:04")
		}
	}
	return ""
}

func sortRows(rows []model.ReportRow, opts Options) {
	desc := opts.Order == OrderDesc
	cmpName := aggregate.NewNameComparator(language.Japanese)

	byDate := func(a, b model.ReportRow) int {
		switch {
		case a.Year != b.Year:
			return a.Year - b.Year
		case a.Month != b.Month:
			return a.Month - b.Month
		default:
			return a.Day - b.Day
		}
	}

	primary := func(a, b model.ReportRow) int {
		switch opts.Sort {
		case SortMonth:
			return a.Month - b.Month
		case SortDay:
			return a.Day - b.Day
		case SortSiteName:
			return cmpName(a.SiteName, b.SiteName)
		default:
			return a.Year - b.Year
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		c := primary(a, b)
		if c == 0 {
			c = byDate(a, b)
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
