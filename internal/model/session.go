package model

// SessionStatus はセッションの状態を表す。
type SessionStatus string

const (
	// SessionCompleted は退勤打刻で閉じられたセッション。
	SessionCompleted SessionStatus = "completed"
	// SessionOpen は退勤打刻のないセッション。
	SessionOpen SessionStatus = "open"
)

// SessionAttrs はセッションに付随する現場・機械・作業内容。
type SessionAttrs struct {
	SiteID          string
	SiteName        *string
	MachineID       *string
	MachineName     *string
	WorkDescription string
}

// Session は出勤打刻と退勤打刻の組から再構成された勤務区間。
// 生成後は変更しない。EndMsがnilの場合は未退勤（open）を表す。
type Session struct {
	UserKey         string
	StartMs         int64
	EndMs           *int64
	StartID         string
	EndID           *string
	DurationMinutes *int
	Attrs           SessionAttrs
}

// Completed はセッションが退勤打刻で閉じられているかを返す。
func (s Session) Completed() bool {
	return s.EndMs != nil
}

// Status はセッションの状態を返す。
func (s Session) Status() SessionStatus {
	if s.Completed() {
		return SessionCompleted
	}
	return SessionOpen
}

// DailyAggregate はユーザーごと・暦日ごとの集計結果。
// 集計のたびに再計算され、永続化はしない。
type DailyAggregate struct {
	UserKey      string
	DayKey       string
	TotalMinutes int            // 完了セッションの総分数（休憩控除前）
	Breakdown    map[string]int // "現場 / 機械" ラベルごとの分数
	Sessions     int
	OpenSessions int
}
