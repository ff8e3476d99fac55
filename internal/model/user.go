package model

import "time"

// Worker は打刻を行う作業者を表す。
type Worker struct {
	ID                    string
	NumericID             *int64
	Name                  string
	ExcludeBreakDeduction bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// BreakPolicy はユーザーごとの休憩控除ポリシー。
type BreakPolicy struct {
	ExcludeBreakDeduction bool
}

// Site は現場マスタのレコード。
type Site struct {
	ID         string
	Name       string
	ClientName string
	UpdatedAt  time.Time
}
