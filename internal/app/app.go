// Package app はコマンドライン引数に応じてAPIサーバー・ワーカー・マイグレーションを起動する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/kintai/internal/attendance"
	"github.com/hitoshi/kintai/internal/breakpolicy"
	"github.com/hitoshi/kintai/internal/config"
	"github.com/hitoshi/kintai/internal/database"
	"github.com/hitoshi/kintai/internal/handler"
	"github.com/hitoshi/kintai/internal/logger"
	"github.com/hitoshi/kintai/internal/metrics"
	"github.com/hitoshi/kintai/internal/middleware"
	"github.com/hitoshi/kintai/internal/punch"
	"github.com/hitoshi/kintai/internal/repository"
	"github.com/hitoshi/kintai/internal/security"
	"github.com/hitoshi/kintai/internal/sitesync"
	"github.com/hitoshi/kintai/internal/worker/cleanup"
	"github.com/hitoshi/kintai/internal/worker/materialize"
)

// cleanupInterval は打刻クリーンアップの実行間隔。
const cleanupInterval = 24 * time.Hour

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		// 設定が読めない場合もエラーを構造化ログで出せるようにする
		logger.SetupDefault(w, "info")
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Bool("break_policy_enabled", cfg.BreakPolicyEnabled),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandMaterialize:
		return runMaterialize(cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(context.Background(), db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newRegistry はプロセス・ランタイムのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// newAttendanceService は集計サービスと依存関係を組み立てる。
func newAttendanceService(cfg *config.Config, db *sql.DB, collector metrics.MetricsCollector) (*attendance.Service, error) {
	workerRepo := repository.NewPostgresWorkerRepo(db)

	policyCache, err := breakpolicy.NewCache()
	if err != nil {
		return nil, fmt.Errorf("failed to create break policy cache: %w", err)
	}
	resolver := breakpolicy.NewResolver(workerRepo, policyCache, breakpolicy.Options{
		Enabled: cfg.BreakPolicyEnabled,
		TTL:     cfg.PolicyCacheTTL,
		Deduct:  breakpolicy.StandardDeduction,
	})
	normalizer := punch.NewNormalizer(security.NewTextSanitizer())

	return attendance.NewService(
		repository.NewPostgresPunchRepo(db),
		workerRepo,
		repository.NewPostgresSiteRepo(db),
		repository.NewPostgresDailyReportRepo(db),
		resolver,
		normalizer,
		collector,
	), nil
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	limitConfig := middleware.PerMinuteConfig(cfg.RateLimitGeneral)
	trusted, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}
	limitConfig.TrustedProxies = trusted

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	registry := newRegistry()
	collector := metrics.NewCollector(registry)

	svc, err := newAttendanceService(cfg, db, collector)
	if err != nil {
		return err
	}

	rateLimiter := middleware.NewRateLimiter(limitConfig)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Metrics:           collector,
		HealthChecker:     db,
		Gatherer:          registry,
		AttendanceService: svc,
		PunchIngester:     svc,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilSignal(server, "API server")
}

// serveUntilSignal はシグナルを受信するまでサーバーを起動し、受信後にシャットダウンする。
func serveUntilSignal(server *http.Server, name string) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("%s listen error: %w", name, err)
	case <-stop:
	}
	slog.Info("shutting down " + name + "...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 日報更新・打刻クリーンアップ・現場マスタ同期の各ジョブを起動し、
// /metricsを公開する。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	registry := newRegistry()
	collector := metrics.NewCollector(registry)

	svc, err := newAttendanceService(cfg, db, collector)
	if err != nil {
		return err
	}

	materializeJob := materialize.NewJob(svc, slog.Default(), cfg.MaterializeLookbackDays)
	cleanupJob := cleanup.NewCleanupJob(repository.NewPostgresPunchRepo(db), slog.Default(), cfg.PunchRetentionDays)

	var siteJob *sitesync.Job
	if cfg.SiteSyncEnabled() {
		guard := security.NewOutboundGuard()
		if err := guard.ValidateURL(cfg.SiteSyncURL); err != nil {
			return fmt.Errorf("invalid SITE_SYNC_URL: %w", err)
		}
		client := sitesync.NewClient(
			guard.NewSafeClient(cfg.SiteSyncTimeout),
			slog.Default(),
			cfg.SiteSyncURL,
			cfg.SiteSyncToken,
		)
		siteJob = sitesync.NewJob(client, repository.NewPostgresSiteRepo(db), slog.Default(), collector, cfg.SiteSyncInterval)
	} else {
		slog.Info("site sync is disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	start := func(run func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}

	start(func(ctx context.Context) { materializeJob.Start(ctx, cfg.MaterializeInterval) })
	start(func(ctx context.Context) {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}
		cleanupJob.Start(ctx, cleanupInterval)
	})
	if siteJob != nil {
		start(siteJob.Start)
	}

	slog.Info("worker starting",
		slog.Duration("materialize_interval", cfg.MaterializeInterval),
		slog.Int("lookback_days", cfg.MaterializeLookbackDays),
		slog.Int("retention_days", cfg.PunchRetentionDays),
	)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           metrics.SetupMetricsRoute(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	err = serveUntilSignal(metricsServer, "worker metrics server")

	cancel()
	wg.Wait()
	slog.Info("worker stopped gracefully")
	return err
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runMaterialize は指定期間の日報を1回だけ作り直す。
func runMaterialize(cfg *config.Config, args []string) error {
	from, to, err := materializeRange(args, time.Now(), cfg.MaterializeLookbackDays)
	if err != nil {
		return fmt.Errorf("invalid materialize range: %w", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := newAttendanceService(cfg, db, nil)
	if err != nil {
		return err
	}

	count, err := svc.MaterializeDailyReports(context.Background(), from, to)
	if err != nil {
		return fmt.Errorf("materialize failed: %w", err)
	}

	slog.Info("daily reports materialized",
		slog.String("from", from),
		slog.String("to", to),
		slog.Int("reports", count),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
