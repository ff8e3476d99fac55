package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/kintai/internal/metrics"
	"github.com/hitoshi/kintai/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector

	// 監視
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer

	// 集計・取り込み
	AttendanceService AttendanceServiceInterface
	PunchIngester     PunchIngesterInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → SecurityHeaders → CORS → RateLimit
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteNotFound(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteMethodNotAllowed(w)
	})

	// --- 監視用ルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	attendanceHandler := NewAttendanceHandler(deps.AttendanceService)
	punchHandler := NewPunchHandler(deps.PunchIngester)

	// --- API ---
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		// カレンダー
		r.Route("/api/calendar", func(r chi.Router) {
			r.Get("/days/{date}", attendanceHandler.DayDetail)
			r.Get("/{year}/{month}", attendanceHandler.Calendar)
		})

		// レポート
		r.Route("/api/reports", func(r chi.Router) {
			r.Get("/work", attendanceHandler.WorkReport)
			r.Get("/work.csv", attendanceHandler.WorkReportCSV)
			r.Get("/rows", attendanceHandler.ReportRows)
		})

		// 打刻取り込み
		r.Post("/api/punches", punchHandler.Ingest)
	})

	return r
}
