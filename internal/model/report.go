package model

import "time"

// MonthRange はJSTの暦月を表すUTCの走査範囲。
// Start以上End未満の半開区間で、From/ToはYYYY-MM-DDの日付文字列。
type MonthRange struct {
	Start time.Time
	End   time.Time
	From  string
	To    string
}

// DailySummary はカレンダー表示用の日次サマリー。
type DailySummary struct {
	Date         string
	SiteNames    []string
	PunchCount   int
	SessionCount int
	OpenSessions int
	NetMinutes   int
	TotalHours   float64 // 小数点以下2桁に丸めた休憩控除後の時間
	HoursLabel   string  // "7.5h" 形式
}

// SessionDetail は日次詳細画面に表示するセッション。
type SessionDetail struct {
	UserKey         string
	UserName        string
	Status          SessionStatus
	StartMs         int64
	EndMs           *int64
	ClockIn         string // "HH:MM" (JST)
	ClockOut        string
	DurationMinutes *int
	SiteName        string
	MachineID       string
	MachineName     string
	WorkDescription string
}

// DayUserTotal は日次詳細画面に表示するユーザーごとの合計。
type DayUserTotal struct {
	UserKey      string
	UserName     string
	GrossMinutes int
	NetMinutes   int
	HoursLabel   string
}

// DayDetail は1日分のセッション詳細。
type DayDetail struct {
	Date      string
	Sessions  []SessionDetail
	Totals    []DayUserTotal
	Unmatched []UnmatchedPunch
}

// WorkReportCriteria は月次勤務レポートの抽出条件。
type WorkReportCriteria struct {
	Year     int
	Month    int
	UserKey  string // 空の場合は全員
	SiteName string // 空の場合は全現場
}

// WorkDay はユーザー1人・1日分の勤務集計。
type WorkDay struct {
	Date            string
	GrossMinutes    int
	NetMinutes      int
	WorkingMinutes  int
	OvertimeMinutes int
	WorkingHours    string
	OvertimeHours   string
	Sessions        int
	OpenSessions    int
	Breakdown       map[string]int
}

// UserWorkDays はユーザーごとの日別勤務集計。
type UserWorkDays struct {
	UserKey              string
	UserName             string
	ExcludeBreak         bool
	Days                 []WorkDay
	TotalNetMinutes      int
	TotalOvertimeMinutes int
}

// WorkReport は給与計算向けの月次勤務レポート。
type WorkReport struct {
	Range    MonthRange
	Users    []UserWorkDays
	Warnings []UnmatchedPunch
}

// DailyReportRecord はdaily_reportsテーブルの1行。
// 現場名・取引先名は直接値、集約済みの値、マスタ参照の順に解決される。
type DailyReportRecord struct {
	ID               string
	UserKey          string
	UserName         string
	PolicyKey        string // 休憩控除ポリシーの参照キー
	Year             *int
	Month            *int
	Day              *int
	SiteID           string
	SiteName         string
	SiteNameRollup   string
	ClientName       string
	ClientNameRollup string
	ClockInMs        *int64
	ClockInAt        string // ISO-8601。ClockInMsがない場合に使用する
	ClockOutMs       *int64
	ClockOutAt       string
	TotalMinutes     int
	UpdatedAt        time.Time
}

// ReportRow はユーザー別レポート一覧の表示用の行。
type ReportRow struct {
	ID              string
	Date            string
	Year            int
	Month           int
	Day             int
	UserName        string
	SiteName        string
	ClientName      string
	ClockIn         string
	ClockOut        string
	RawMinutes      int
	AdjustedMinutes int
	OvertimeHours   string
}
