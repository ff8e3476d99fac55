package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/kintai/internal/model"
)

// 共通のエラーコード。
const (
	ErrCodeInternal          = "INTERNAL_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeMethodNotAllowed  = "METHOD_NOT_ALLOWED"
	ErrCodeRateLimitExceeded = "rate_limit_exceeded"
)

// ErrorResponseBody はAPIエラーレスポンスの形式。model.APIErrorをそのままJSONにする。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse はAPIErrorをJSONで書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponseBody(*apiErr))
}

// 定型のエラーレスポンス。
var (
	internalError = &model.APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
	notFoundError = &model.APIError{
		Code:     ErrCodeNotFound,
		Message:  "指定されたリソースは存在しません。",
		Category: "validation",
		Action:   "URLを確認してください。",
	}
	methodNotAllowedError = &model.APIError{
		Code:     ErrCodeMethodNotAllowed,
		Message:  "このメソッドは利用できません。",
		Category: "validation",
		Action:   "参照はGET、打刻の取り込みはPOSTで送信してください。",
	}
)

// WriteInternalServerError は500を書き込む。詳細はログにのみ残す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, internalError)
}

// WriteNotFound は404を書き込む。
func WriteNotFound(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusNotFound, notFoundError)
}

// WriteMethodNotAllowed は405を書き込む。
func WriteMethodNotAllowed(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusMethodNotAllowed, methodNotAllowedError)
}
