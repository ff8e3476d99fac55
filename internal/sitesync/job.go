package sitesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hitoshi/kintai/internal/metrics"
	"github.com/hitoshi/kintai/internal/model"
)

const metricsSource = "sites"

// SiteFetcher は現場マスタ取得のインターフェース。テスト時にモックに差し替え可能。
type SiteFetcher interface {
	FetchSites(ctx context.Context) ([]model.Site, error)
}

// SiteStore は取得した現場マスタの保存先。
type SiteStore interface {
	Upsert(ctx context.Context, sites []model.Site) (int64, error)
}

// Job は現場マスタの定期同期ジョブ。
// 連続して失敗した場合は一定時間同期を見合わせる。
type Job struct {
	fetcher  SiteFetcher
	store    SiteStore
	logger   *slog.Logger
	metrics  metrics.MetricsCollector
	interval time.Duration

	consecutiveErrors int
	backoffUntil      time.Time
	now               func() time.Time
}

// NewJob はJobの新しいインスタンスを生成する。
func NewJob(fetcher SiteFetcher, store SiteStore, logger *slog.Logger, collector metrics.MetricsCollector, interval time.Duration) *Job {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Job{
		fetcher:  fetcher,
		store:    store,
		logger:   logger,
		metrics:  collector,
		interval: interval,
		now:      time.Now,
	}
}

// Start はジョブをティッカーで定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("現場マスタ同期ジョブを開始しました", slog.Duration("interval", j.interval))

	// 起動直後に1回実行
	j.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("現場マスタ同期ジョブを停止しました")
			return
		case <-ticker.C:
			j.runAndLog(ctx)
		}
	}
}

func (j *Job) runAndLog(ctx context.Context) {
	if err := j.RunOnce(ctx); err != nil {
		j.logger.Error("現場マスタ同期に失敗しました", slog.String("error", err.Error()))
	}
}

// RunOnce は1回の同期を実行する。
// 取得に失敗した場合は既存のマスタを変更しない。
func (j *Job) RunOnce(ctx context.Context) error {
	start := j.now()

	if !j.backoffUntil.IsZero() && start.Before(j.backoffUntil) {
		j.logger.Info("現場マスタ同期はバックオフ中のためスキップします",
			slog.Time("backoff_until", j.backoffUntil),
		)
		return nil
	}

	sites, err := j.fetcher.FetchSites(ctx)
	if err != nil {
		j.recordFailure(failureReason(err))
		return fmt.Errorf("現場マスタの取得に失敗しました: %w", err)
	}

	if len(sites) == 0 {
		// 空の応答でマスタを消さないよう保存しない
		j.logger.Warn("現場マスタが0件でした。保存をスキップします")
		j.resetBackoff()
		j.metrics.RecordSyncSuccess(metricsSource)
		return nil
	}

	saved, err := j.store.Upsert(ctx, sites)
	if err != nil {
		j.recordFailure("store")
		return fmt.Errorf("現場マスタの保存に失敗しました: %w", err)
	}

	j.resetBackoff()
	j.metrics.RecordSyncSuccess(metricsSource)
	j.metrics.RecordJobDuration("site_sync", time.Since(start))

	j.logger.Info("現場マスタ同期が完了しました",
		slog.Int("fetched", len(sites)),
		slog.Int64("saved", saved),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

func (j *Job) recordFailure(reason string) {
	j.metrics.RecordSyncFailure(metricsSource, reason)
	j.consecutiveErrors++
	if backoff := calculateErrorBackoff(j.consecutiveErrors); backoff > 0 {
		j.backoffUntil = j.now().Add(backoff)
		j.logger.Warn("連続エラーによりバックオフを適用します",
			slog.Int("consecutive_errors", j.consecutiveErrors),
			slog.Duration("backoff_duration", backoff),
		)
	}
}

func (j *Job) resetBackoff() {
	j.consecutiveErrors = 0
	j.backoffUntil = time.Time{}
}

// calculateErrorBackoff は連続エラー回数に基づくバックオフ時間を計算する。
// 3回連続: 30分、5回連続: 1時間、10回連続: 6時間。
func calculateErrorBackoff(consecutiveErrors int) time.Duration {
	switch {
	case consecutiveErrors >= 10:
		return 6 * time.Hour
	case consecutiveErrors >= 5:
		return time.Hour
	case consecutiveErrors >= 3:
		return 30 * time.Minute
	default:
		return 0
	}
}

// failureReason はメトリクスのラベルに使う失敗理由を返す。
func failureReason(err error) string {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return "http_" + strconv.Itoa(statusErr.StatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "fetch"
	}
}
