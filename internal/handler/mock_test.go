package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/kintai/internal/attendance"
	"github.com/hitoshi/kintai/internal/model"
	"github.com/hitoshi/kintai/internal/reportrow"
)

// --- モック定義 ---

// mockAttendanceService はAttendanceServiceInterfaceのモック実装。
type mockAttendanceService struct {
	summariseMonthFn       func(ctx context.Context, year, month int, userKey string) ([]model.DailySummary, error)
	dayDetailFn            func(ctx context.Context, date, userKey string) (*model.DayDetail, error)
	workReportByMonthFn    func(ctx context.Context, criteria model.WorkReportCriteria) (*model.WorkReport, error)
	reportRowsByUserNameFn func(ctx context.Context, name string, opts reportrow.Options) ([]model.ReportRow, error)
}

func (m *mockAttendanceService) SummariseMonth(ctx context.Context, year, month int, userKey string) ([]model.DailySummary, error) {
	if m.summariseMonthFn != nil {
		return m.summariseMonthFn(ctx, year, month, userKey)
	}
	return nil, nil
}

func (m *mockAttendanceService) DayDetail(ctx context.Context, date, userKey string) (*model.DayDetail, error) {
	if m.dayDetailFn != nil {
		return m.dayDetailFn(ctx, date, userKey)
	}
	return &model.DayDetail{Date: date}, nil
}

func (m *mockAttendanceService) WorkReportByMonth(ctx context.Context, criteria model.WorkReportCriteria) (*model.WorkReport, error) {
	if m.workReportByMonthFn != nil {
		return m.workReportByMonthFn(ctx, criteria)
	}
	return &model.WorkReport{}, nil
}

func (m *mockAttendanceService) ReportRowsByUserName(ctx context.Context, name string, opts reportrow.Options) ([]model.ReportRow, error) {
	if m.reportRowsByUserNameFn != nil {
		return m.reportRowsByUserNameFn(ctx, name, opts)
	}
	return nil, nil
}

// mockPunchIngester はPunchIngesterInterfaceのモック実装。
type mockPunchIngester struct {
	ingestFn func(ctx context.Context, payloads []json.RawMessage) (*attendance.IngestResult, error)
}

func (m *mockPunchIngester) Ingest(ctx context.Context, payloads []json.RawMessage) (*attendance.IngestResult, error) {
	if m.ingestFn != nil {
		return m.ingestFn(ctx, payloads)
	}
	return &attendance.IngestResult{Accepted: len(payloads)}, nil
}

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// newTestRouter はモックを差し込んだルーターを返す。
func newTestRouter(svc *mockAttendanceService, ingester *mockPunchIngester) http.Handler {
	if svc == nil {
		svc = &mockAttendanceService{}
	}
	if ingester == nil {
		ingester = &mockPunchIngester{}
	}
	return NewRouter(&RouterDeps{
		CORSAllowedOrigin: "http://localhost:3000",
		HealthChecker:     &mockHealthChecker{},
		AttendanceService: svc,
		PunchIngester:     ingester,
	})
}
