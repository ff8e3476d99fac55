package handler

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/kintai/internal/aggregate"
	"github.com/hitoshi/kintai/internal/middleware"
	"github.com/hitoshi/kintai/internal/model"
	"github.com/hitoshi/kintai/internal/reportrow"
)

func intPtr(v int) *int { return &v }

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

// --- GET /api/calendar/{year}/{month} テスト ---

func TestAttendanceHandler_Calendar_Success(t *testing.T) {
	svc := &mockAttendanceService{
		summariseMonthFn: func(ctx context.Context, year, month int, userKey string) ([]model.DailySummary, error) {
			if year != 2024 || month != 5 {
				t.Errorf("year/month = %d/%d, want 2024/5", year, month)
			}
			if userKey != "U" {
				t.Errorf("userKey = %q, want %q", userKey, "U")
			}
			return []model.DailySummary{
				{Date: "2024-05-01", SiteNames: []string{"本社"}, PunchCount: 2, SessionCount: 1, NetMinutes: 450, TotalHours: 7.5, HoursLabel: "7.5h"},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/calendar/2024/5?user=U", nil)
	w := httptest.NewRecorder()
	newTestRouter(svc, nil).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp calendarResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Year != 2024 || resp.Month != 5 || len(resp.Days) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Days[0].HoursLabel != "7.5h" || resp.Days[0].NetMinutes != 450 {
		t.Errorf("day = %+v", resp.Days[0])
	}
}

func TestAttendanceHandler_Calendar_SnakeCaseKeys(t *testing.T) {
	svc := &mockAttendanceService{
		summariseMonthFn: func(ctx context.Context, year, month int, userKey string) ([]model.DailySummary, error) {
			return []model.DailySummary{{Date: "2024-05-01"}}, nil
		},
	}

	w := httptest.NewRecorder()
	newTestRouter(svc, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/calendar/2024/5", nil))

	body := w.Body.String()
	for _, key := range []string{`"site_names":[]`, `"punch_count"`, `"session_count"`, `"hours_label"`} {
		if !strings.Contains(body, key) {
			t.Errorf("response should contain %s: %s", key, body)
		}
	}
}

func TestAttendanceHandler_Calendar_InvalidMonth(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "non numeric", path: "/api/calendar/2024/may"},
		{name: "out of range from service", path: "/api/calendar/2024/13"},
	}

	svc := &mockAttendanceService{
		summariseMonthFn: func(ctx context.Context, year, month int, userKey string) ([]model.DailySummary, error) {
			return nil, model.NewInvalidMonthError("2024", "13")
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newTestRouter(svc, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if body := decodeError(t, w); body.Code != model.ErrCodeInvalidMonth {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidMonth)
			}
		})
	}
}

func TestAttendanceHandler_Calendar_InternalError(t *testing.T) {
	svc := &mockAttendanceService{
		summariseMonthFn: func(ctx context.Context, year, month int, userKey string) ([]model.DailySummary, error) {
			return nil, errors.New("打刻の取得に失敗しました: connection refused")
		},
	}

	w := httptest.NewRecorder()
	newTestRouter(svc, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/calendar/2024/5", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	body := decodeError(t, w)
	if body.Code != middleware.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, middleware.ErrCodeInternal)
	}
	if strings.Contains(body.Message, "connection refused") {
		t.Error("internal error details should not leak to the response")
	}
}

// --- GET /api/calendar/days/{date} テスト ---

func TestAttendanceHandler_DayDetail_Success(t *testing.T) {
	svc := &mockAttendanceService{
		dayDetailFn: func(ctx context.Context, date, userKey string) (*model.DayDetail, error) {
			if date != "2024-05-01" {
				t.Errorf("date = %q, want %q", date, "2024-05-01")
			}
			return &model.DayDetail{
				Date: date,
				Sessions: []model.SessionDetail{
					{UserKey: "U", UserName: "山田", Status: model.SessionCompleted, ClockIn: "09:00", ClockOut: "17:30", DurationMinutes: intPtr(510)},
					{UserKey: "V", UserName: "佐藤", Status: model.SessionOpen, ClockIn: "08:00"},
				},
				Totals: []model.DayUserTotal{
					{UserKey: "U", UserName: "山田", GrossMinutes: 510, NetMinutes: 450, HoursLabel: "7.5h"},
				},
			}, nil
		},
	}

	w := httptest.NewRecorder()
	newTestRouter(svc, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/calendar/days/2024-05-01", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp dayDetailResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(resp.Sessions))
	}
	if resp.Sessions[1].Status != "open" || resp.Sessions[1].DurationMinutes != nil {
		t.Errorf("open session = %+v", resp.Sessions[1])
	}
	if resp.Unmatched == nil {
		t.Error("unmatched should be an empty array, not null")
	}
	if len(resp.Totals) != 1 || resp.Totals[0].NetMinutes != 450 {
		t.Errorf("totals = %+v", resp.Totals)
	}
}

func TestAttendanceHandler_DayDetail_InvalidDate(t *testing.T) {
	svc := &mockAttendanceService{
		dayDetailFn: func(ctx context.Context, date, userKey string) (*model.DayDetail, error) {
			return nil, model.NewInvalidDateError(date)
		},
	}

	w := httptest.NewRecorder()
	newTestRouter(svc, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/calendar/days/2024-13-40", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeError(t, w); body.Code != model.ErrCodeInvalidDate {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidDate)
	}
}

// --- GET /api/reports/work テスト ---

func sampleWorkReport() *model.WorkReport {
	return &model.WorkReport{
		Range: aggregate.MonthRange(2024, 5),
		Users: []model.UserWorkDays{
			{
				UserKey:      "U",
				UserName:     "山田",
				ExcludeBreak: true,
				Days: []model.WorkDay{
					{
						Date: "2024-05-01", GrossMinutes: 510, NetMinutes: 510,
						WorkingMinutes: 450, OvertimeMinutes: 60,
						WorkingHours: "7.5h", OvertimeHours: "1h", Sessions: 1,
						Breakdown: map[string]int{"本社 / 未設定": 510},
					},
				},
				TotalNetMinutes:      510,
				TotalOvertimeMinutes: 60,
			},
		},
		Warnings: []model.UnmatchedPunch{{Kind: model.PunchOut, RecordID: "p9", UserKey: "V", TimestampMs: 1714521600000}},
	}
}

func TestAttendanceHandler_WorkReport_Success(t *testing.T) {
	svc := &mockAttendanceService{
		workReportByMonthFn: func(ctx context.Context, criteria model.WorkReportCriteria) (*model.WorkReport, error) {
			want := model.WorkReportCriteria{Year: 2024, Month: 5, UserKey: "U", SiteName: "本社"}
			if criteria != want {
				t.Errorf("criteria = %+v, want %+v", criteria, want)
			}
			return sampleWorkReport(), nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/reports/work?year=2024&month=5&user=U&site=%E6%9C%AC%E7%A4%BE", nil)
	w := httptest.NewRecorder()
	newTestRouter(svc, nil).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp workReportResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.From != "2024-05-01" || resp.To != "2024-06-01" {
		t.Errorf("range = %s..%s", resp.From, resp.To)
	}
	day := resp.Users[0].Days[0]
	if day.WorkingMinutes != 450 || day.OvertimeMinutes != 60 {
		t.Errorf("day = %+v", day)
	}
	if len(day.Breakdown) != 1 || day.Breakdown[0].Label != "本社 / 未設定" {
		t.Errorf("breakdown = %+v", day.Breakdown)
	}
	if len(resp.Warnings) != 1 || resp.Warnings[0].Kind != "OUT" || resp.Warnings[0].Time != "2024-05-01 09:00" {
		t.Errorf("warnings = %+v", resp.Warnings)
	}
}

func TestAttendanceHandler_WorkReport_MissingMonth(t *testing.T) {
	svc := &mockAttendanceService{
		workReportByMonthFn: func(ctx context.Context, criteria model.WorkReportCriteria) (*model.WorkReport, error) {
			t.Error("service should not be called")
			return nil, nil
		},
	}

	w := httptest.NewRecorder()
	newTestRouter(svc, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/reports/work?year=2024", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- GET /api/reports/work.csv テスト ---

func TestAttendanceHandler_WorkReportCSV(t *testing.T) {
	svc := &mockAttendanceService{
		workReportByMonthFn: func(ctx context.Context, criteria model.WorkReportCriteria) (*model.WorkReport, error) {
			return sampleWorkReport(), nil
		},
	}

	w := httptest.NewRecorder()
	newTestRouter(svc, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/reports/work.csv?year=2024&month=5", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="work-report-2024-5.csv"` {
		t.Errorf("Content-Disposition = %q", cd)
	}

	records, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("csv rows = %d, want 2 (header + 1 day)", len(records))
	}
	if records[1][1] != "山田" || records[1][2] != "2024-05-01" {
		t.Errorf("row = %v", records[1])
	}
}

// --- GET /api/reports/rows テスト ---

func TestAttendanceHandler_ReportRows_Success(t *testing.T) {
	svc := &mockAttendanceService{
		reportRowsByUserNameFn: func(ctx context.Context, name string, opts reportrow.Options) ([]model.ReportRow, error) {
			if name != "山田" {
				t.Errorf("name = %q, want %q", name, "山田")
			}
			if opts.Sort != "siteName" || opts.Order != "desc" {
				t.Errorf("opts = %+v", opts)
			}
			return []model.ReportRow{
				{ID: "r1", Date: "2024-05-01", Year: 2024, Month: 5, Day: 1, UserName: "山田", SiteName: "本社", ClockIn: "09:00", ClockOut: "17:30", RawMinutes: 510, AdjustedMinutes: 450, OvertimeHours: "0h"},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/reports/rows?name=%E5%B1%B1%E7%94%B0&sort=siteName&order=desc", nil)
	w := httptest.NewRecorder()
	newTestRouter(svc, nil).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp reportRowsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Name != "山田" || len(resp.Rows) != 1 || resp.Rows[0].AdjustedMinutes != 450 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestAttendanceHandler_ReportRows_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "missing name", err: model.NewUserNameRequiredError(), wantCode: model.ErrCodeUserNameRequired},
		{name: "invalid sort", err: model.NewInvalidSortError("bogus", ""), wantCode: model.ErrCodeInvalidSort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAttendanceService{
				reportRowsByUserNameFn: func(ctx context.Context, name string, opts reportrow.Options) ([]model.ReportRow, error) {
					return nil, tt.err
				},
			}

			w := httptest.NewRecorder()
			newTestRouter(svc, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/reports/rows", nil))

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if body := decodeError(t, w); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}
