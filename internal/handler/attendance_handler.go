package handler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/kintai/internal/export"
	"github.com/hitoshi/kintai/internal/model"
	"github.com/hitoshi/kintai/internal/reportrow"
)

// AttendanceServiceInterface は集計ハンドラーが必要とするサービスインターフェース。
type AttendanceServiceInterface interface {
	// SummariseMonth はJSTの暦月のカレンダー用日次サマリーを返す。
	SummariseMonth(ctx context.Context, year, month int, userKey string) ([]model.DailySummary, error)
	// DayDetail は指定日のセッション詳細を返す。
	DayDetail(ctx context.Context, date, userKey string) (*model.DayDetail, error)
	// WorkReportByMonth は月次勤務レポートを返す。
	WorkReportByMonth(ctx context.Context, criteria model.WorkReportCriteria) (*model.WorkReport, error)
	// ReportRowsByUserName は指定ユーザーの日報を表示用の行にして返す。
	ReportRowsByUserName(ctx context.Context, name string, opts reportrow.Options) ([]model.ReportRow, error)
}

// AttendanceHandler はカレンダー・日別詳細・勤務レポートのHTTPハンドラー。
type AttendanceHandler struct {
	service AttendanceServiceInterface
}

// NewAttendanceHandler はAttendanceHandlerを生成する。
func NewAttendanceHandler(service AttendanceServiceInterface) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// Calendar は月間カレンダーを返す。
// GET /api/calendar/{year}/{month}?user=
func (h *AttendanceHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(chi.URLParam(r, "year"), chi.URLParam(r, "month"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	days, err := h.service.SummariseMonth(r.Context(), year, month, r.URL.Query().Get("user"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCalendarResponse(year, month, days))
}

// DayDetail は日別のセッション詳細を返す。
// GET /api/calendar/days/{date}?user=
func (h *AttendanceHandler) DayDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.DayDetail(r.Context(), chi.URLParam(r, "date"), r.URL.Query().Get("user"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toDayDetailResponse(detail))
}

// WorkReport は月次勤務レポートを返す。
// GET /api/reports/work?year=&month=&user=&site=
func (h *AttendanceHandler) WorkReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.workReport(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, toWorkReportResponse(report))
}

// WorkReportCSV は月次勤務レポートをCSVで返す。
// GET /api/reports/work.csv?year=&month=&user=&site=
func (h *AttendanceHandler) WorkReportCSV(w http.ResponseWriter, r *http.Request) {
	report, ok := h.workReport(w, r)
	if !ok {
		return
	}

	// 書き込み途中の失敗でヘッダーだけ送られないよう、先にバッファへ出力する
	var buf bytes.Buffer
	if err := export.WriteWorkReportCSV(&buf, *report); err != nil {
		handleServiceError(w, r, err)
		return
	}

	q := r.URL.Query()
	filename := fmt.Sprintf("work-report-%s-%s.csv", q.Get("year"), q.Get("month"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("failed to write csv response", slog.String("error", err.Error()))
	}
}

// ReportRows は指定ユーザーの日報一覧を返す。
// GET /api/reports/rows?name=&sort=&order=
func (h *AttendanceHandler) ReportRows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")
	opts := reportrow.Options{Sort: q.Get("sort"), Order: q.Get("order")}

	rows, err := h.service.ReportRowsByUserName(r.Context(), name, opts)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toReportRowsResponse(name, rows))
}

func (h *AttendanceHandler) workReport(w http.ResponseWriter, r *http.Request) (*model.WorkReport, bool) {
	q := r.URL.Query()
	year, month, err := parseYearMonth(q.Get("year"), q.Get("month"))
	if err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}

	report, err := h.service.WorkReportByMonth(r.Context(), model.WorkReportCriteria{
		Year:     year,
		Month:    month,
		UserKey:  q.Get("user"),
		SiteName: q.Get("site"),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}
	return report, true
}

// parseYearMonth は年月の文字列を数値に変換する。範囲の検証はサービス層で行う。
func parseYearMonth(yearStr, monthStr string) (int, int, error) {
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return 0, 0, model.NewInvalidMonthError(yearStr, monthStr)
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil {
		return 0, 0, model.NewInvalidMonthError(yearStr, monthStr)
	}
	return year, month, nil
}
