// Package export は勤務レポートをファイル形式に書き出す。
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/hitoshi/kintai/internal/model"
)

var workReportHeader = []string{
	"ユーザーキー", "氏名", "日付", "総労働(分)", "控除後(分)", "所定内(分)", "残業(分)",
	"所定内", "残業", "セッション数", "未退勤数", "内訳",
}

// WriteWorkReportCSV は月次勤務レポートを1日1行のCSVとして書き出す。
func WriteWorkReportCSV(w io.Writer, report model.WorkReport) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(workReportHeader); err != nil {
		return fmt.Errorf("CSVヘッダーの書き込みに失敗しました: %w", err)
	}

	for _, u := range report.Users {
		for _, d := range u.Days {
			row := []string{
				u.UserKey,
				u.UserName,
				d.Date,
				strconv.Itoa(d.GrossMinutes),
				strconv.Itoa(d.NetMinutes),
				strconv.Itoa(d.WorkingMinutes),
				strconv.Itoa(d.OvertimeMinutes),
				d.WorkingHours,
				d.OvertimeHours,
				strconv.Itoa(d.Sessions),
				strconv.Itoa(d.OpenSessions),
				formatBreakdown(d.Breakdown),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("CSV行の書き込みに失敗しました (user=%s, date=%s): %w", u.UserKey, d.Date, err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// formatBreakdown は内訳を "ラベル=分" のセミコロン区切りにする。ラベルは昇順に並べる。
func formatBreakdown(breakdown map[string]int) string {
	labels := make([]string, 0, len(breakdown))
	for label := range breakdown {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := ""
	for i, label := range labels {
		if i > 0 {
			out += "; "
		}
		out += label + "=" + strconv.Itoa(breakdown[label])
	}
	return out
}
