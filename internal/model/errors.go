// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, report, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidDate      = "INVALID_DATE"
	ErrCodeInvalidMonth     = "INVALID_MONTH"
	ErrCodeInvalidSort      = "INVALID_SORT"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeUserNameRequired = "USER_NAME_REQUIRED"
	ErrCodeNoValidPunches   = "NO_VALID_PUNCHES"
)

// NewInvalidDateError は日付形式が不正な場合のエラーを生成する。
func NewInvalidDateError(date string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("無効な日付です: %s", date),
		Category: "validation",
		Action:   "日付は YYYY-MM-DD 形式で指定してください。",
	}
}

// NewInvalidMonthError は年月の指定が不正な場合のエラーを生成する。
func NewInvalidMonthError(year, month string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMonth,
		Message:  fmt.Sprintf("無効な年月です: %s-%s", year, month),
		Category: "validation",
		Action:   "年は4桁、月は1から12の範囲で指定してください。",
	}
}

// NewInvalidSortError は並び替えキーまたは順序が不正な場合のエラーを生成する。
func NewInvalidSortError(sort, order string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSort,
		Message:  fmt.Sprintf("無効な並び替え指定です: sort=%s order=%s", sort, order),
		Category: "validation",
		Action:   "sort には year、month、day、siteName のいずれか、order には asc または desc を指定してください。",
	}
}

// NewInvalidRequestError はリクエストボディが不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストの解析に失敗しました: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewUserNameRequiredError はユーザー名が未指定の場合のエラーを生成する。
func NewUserNameRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNameRequired,
		Message:  "ユーザー名が指定されていません。",
		Category: "validation",
		Action:   "name パラメータにユーザー名を指定してください。",
	}
}

// NewNoValidPunchesError は取り込み対象に有効な打刻が1件もない場合のエラーを生成する。
func NewNoValidPunchesError(rejected int) *APIError {
	return &APIError{
		Code:     ErrCodeNoValidPunches,
		Message:  fmt.Sprintf("有効な打刻がありません（破棄: %d件）。", rejected),
		Category: "validation",
		Action:   "type には IN または OUT、timestamp にはISO-8601形式の日時を指定してください。",
	}
}
