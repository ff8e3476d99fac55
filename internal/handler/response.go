package handler

import (
	"sort"

	"github.com/hitoshi/kintai/internal/aggregate"
	"github.com/hitoshi/kintai/internal/model"
)

// --- レスポンス型 ---

// calendarDayResponse はカレンダーの1日分のサマリー。
type calendarDayResponse struct {
	Date         string   `json:"date"`
	SiteNames    []string `json:"site_names"`
	PunchCount   int      `json:"punch_count"`
	SessionCount int      `json:"session_count"`
	OpenSessions int      `json:"open_sessions"`
	NetMinutes   int      `json:"net_minutes"`
	TotalHours   float64  `json:"total_hours"`
	HoursLabel   string   `json:"hours_label"`
}

// calendarResponse は月間カレンダーのレスポンス。
type calendarResponse struct {
	Year  int                   `json:"year"`
	Month int                   `json:"month"`
	Days  []calendarDayResponse `json:"days"`
}

// sessionResponse は勤務セッション1件の詳細。
type sessionResponse struct {
	UserKey         string `json:"user_key"`
	UserName        string `json:"user_name"`
	Status          string `json:"status"`
	ClockIn         string `json:"clock_in"`
	ClockOut        string `json:"clock_out,omitempty"`
	DurationMinutes *int   `json:"duration_minutes"`
	SiteName        string `json:"site_name"`
	MachineID       string `json:"machine_id"`
	MachineName     string `json:"machine_name"`
	WorkDescription string `json:"work_description"`
}

// dayTotalResponse はユーザーごとの1日の合計。
type dayTotalResponse struct {
	UserKey      string `json:"user_key"`
	UserName     string `json:"user_name"`
	GrossMinutes int    `json:"gross_minutes"`
	NetMinutes   int    `json:"net_minutes"`
	HoursLabel   string `json:"hours_label"`
}

// warningResponse は対応のない打刻の警告。
type warningResponse struct {
	Kind     string `json:"kind"`
	RecordID string `json:"record_id"`
	UserKey  string `json:"user_key"`
	Time     string `json:"time"`
}

// dayDetailResponse は日別詳細のレスポンス。
type dayDetailResponse struct {
	Date      string             `json:"date"`
	Sessions  []sessionResponse  `json:"sessions"`
	Totals    []dayTotalResponse `json:"totals"`
	Unmatched []warningResponse  `json:"unmatched"`
}

// breakdownEntry は現場・機械ラベルごとの分数。
type breakdownEntry struct {
	Label   string `json:"label"`
	Minutes int    `json:"minutes"`
}

// workDayResponse は勤務レポートの1日分。
type workDayResponse struct {
	Date            string           `json:"date"`
	GrossMinutes    int              `json:"gross_minutes"`
	NetMinutes      int              `json:"net_minutes"`
	WorkingMinutes  int              `json:"working_minutes"`
	OvertimeMinutes int              `json:"overtime_minutes"`
	WorkingHours    string           `json:"working_hours"`
	OvertimeHours   string           `json:"overtime_hours"`
	Sessions        int              `json:"sessions"`
	OpenSessions    int              `json:"open_sessions"`
	Breakdown       []breakdownEntry `json:"breakdown"`
}

// userWorkResponse はユーザーごとの勤務日一覧。
type userWorkResponse struct {
	UserKey              string            `json:"user_key"`
	UserName             string            `json:"user_name"`
	ExcludeBreak         bool              `json:"exclude_break"`
	Days                 []workDayResponse `json:"days"`
	TotalNetMinutes      int               `json:"total_net_minutes"`
	TotalOvertimeMinutes int               `json:"total_overtime_minutes"`
}

// workReportResponse は月次勤務レポートのレスポンス。
type workReportResponse struct {
	From     string             `json:"from"`
	To       string             `json:"to"`
	Users    []userWorkResponse `json:"users"`
	Warnings []warningResponse  `json:"warnings"`
}

// reportRowResponse は日報の表示行。
type reportRowResponse struct {
	ID              string `json:"id"`
	Date            string `json:"date"`
	Year            int    `json:"year"`
	Month           int    `json:"month"`
	Day             int    `json:"day"`
	UserName        string `json:"user_name"`
	SiteName        string `json:"site_name"`
	ClientName      string `json:"client_name"`
	ClockIn         string `json:"clock_in"`
	ClockOut        string `json:"clock_out"`
	RawMinutes      int    `json:"raw_minutes"`
	AdjustedMinutes int    `json:"adjusted_minutes"`
	OvertimeHours   string `json:"overtime_hours"`
}

// reportRowsResponse は日報一覧のレスポンス。
type reportRowsResponse struct {
	Name string              `json:"name"`
	Rows []reportRowResponse `json:"rows"`
}

// ingestResponse は打刻取り込みのレスポンス。
type ingestResponse struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

// --- 変換 ---

func toCalendarResponse(year, month int, days []model.DailySummary) calendarResponse {
	out := calendarResponse{Year: year, Month: month, Days: make([]calendarDayResponse, 0, len(days))}
	for _, d := range days {
		siteNames := d.SiteNames
		if siteNames == nil {
			siteNames = []string{}
		}
		out.Days = append(out.Days, calendarDayResponse{
			Date:         d.Date,
			SiteNames:    siteNames,
			PunchCount:   d.PunchCount,
			SessionCount: d.SessionCount,
			OpenSessions: d.OpenSessions,
			NetMinutes:   d.NetMinutes,
			TotalHours:   d.TotalHours,
			HoursLabel:   d.HoursLabel,
		})
	}
	return out
}

func toDayDetailResponse(detail *model.DayDetail) dayDetailResponse {
	out := dayDetailResponse{
		Date:      detail.Date,
		Sessions:  make([]sessionResponse, 0, len(detail.Sessions)),
		Totals:    make([]dayTotalResponse, 0, len(detail.Totals)),
		Unmatched: toWarnings(detail.Unmatched),
	}
	for _, s := range detail.Sessions {
		out.Sessions = append(out.Sessions, sessionResponse{
			UserKey:         s.UserKey,
			UserName:        s.UserName,
			Status:          string(s.Status),
			ClockIn:         s.ClockIn,
			ClockOut:        s.ClockOut,
			DurationMinutes: s.DurationMinutes,
			SiteName:        s.SiteName,
			MachineID:       s.MachineID,
			MachineName:     s.MachineName,
			WorkDescription: s.WorkDescription,
		})
	}
	for _, t := range detail.Totals {
		out.Totals = append(out.Totals, dayTotalResponse{
			UserKey:      t.UserKey,
			UserName:     t.UserName,
			GrossMinutes: t.GrossMinutes,
			NetMinutes:   t.NetMinutes,
			HoursLabel:   t.HoursLabel,
		})
	}
	return out
}

func toWorkReportResponse(report *model.WorkReport) workReportResponse {
	out := workReportResponse{
		From:     report.Range.From,
		To:       report.Range.To,
		Users:    make([]userWorkResponse, 0, len(report.Users)),
		Warnings: toWarnings(report.Warnings),
	}
	for _, u := range report.Users {
		days := make([]workDayResponse, 0, len(u.Days))
		for _, d := range u.Days {
			days = append(days, workDayResponse{
				Date:            d.Date,
				GrossMinutes:    d.GrossMinutes,
				NetMinutes:      d.NetMinutes,
				WorkingMinutes:  d.WorkingMinutes,
				OvertimeMinutes: d.OvertimeMinutes,
				WorkingHours:    d.WorkingHours,
				OvertimeHours:   d.OvertimeHours,
				Sessions:        d.Sessions,
				OpenSessions:    d.OpenSessions,
				Breakdown:       toBreakdown(d.Breakdown),
			})
		}
		out.Users = append(out.Users, userWorkResponse{
			UserKey:              u.UserKey,
			UserName:             u.UserName,
			ExcludeBreak:         u.ExcludeBreak,
			Days:                 days,
			TotalNetMinutes:      u.TotalNetMinutes,
			TotalOvertimeMinutes: u.TotalOvertimeMinutes,
		})
	}
	return out
}

// toBreakdown はラベル別の分数をラベル順の配列にする。JSONの出力順を安定させるため。
func toBreakdown(m map[string]int) []breakdownEntry {
	out := make([]breakdownEntry, 0, len(m))
	for label, minutes := range m {
		out = append(out, breakdownEntry{Label: label, Minutes: minutes})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

func toWarnings(punches []model.UnmatchedPunch) []warningResponse {
	out := make([]warningResponse, 0, len(punches))
	for _, p := range punches {
		out = append(out, warningResponse{
			Kind:     string(p.Kind),
			RecordID: p.RecordID,
			UserKey:  p.UserKey,
			Time:     aggregate.DayKey(p.TimestampMs) + " " + aggregate.ClockLabel(p.TimestampMs),
		})
	}
	return out
}

func toReportRowsResponse(name string, rows []model.ReportRow) reportRowsResponse {
	out := reportRowsResponse{Name: name, Rows: make([]reportRowResponse, 0, len(rows))}
	for _, r := range rows {
		out.Rows = append(out.Rows, reportRowResponse{
			ID:              r.ID,
			Date:            r.Date,
			Year:            r.Year,
			Month:           r.Month,
			Day:             r.Day,
			UserName:        r.UserName,
			SiteName:        r.SiteName,
			ClientName:      r.ClientName,
			ClockIn:         r.ClockIn,
			ClockOut:        r.ClockOut,
			RawMinutes:      r.RawMinutes,
			AdjustedMinutes: r.AdjustedMinutes,
			OvertimeHours:   r.OvertimeHours,
		})
	}
	return out
}
