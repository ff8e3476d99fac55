// Package materialize は直近の打刻から日報を定期的に作り直すジョブを提供する。
package materialize

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/kintai/internal/aggregate"
)

// Materializer は日付範囲の日報を作り直すインターフェース。
type Materializer interface {
	MaterializeDailyReports(ctx context.Context, from, to string) (int, error)
}

// Job は直近 LookbackDays 日分の日報を更新する定期ジョブ。
// 遅れて届いた打刻も次の実行で日報に反映される。
type Job struct {
	materializer Materializer
	logger       *slog.Logger
	LookbackDays int
	now          func() time.Time
}

// NewJob はJobを生成する。lookbackDaysが0以下の場合は3日を使う。
func NewJob(materializer Materializer, logger *slog.Logger, lookbackDays int) *Job {
	if lookbackDays <= 0 {
		lookbackDays = 3
	}
	return &Job{
		materializer: materializer,
		logger:       logger,
		LookbackDays: lookbackDays,
		now:          time.Now,
	}
}

// Start は指定間隔のティッカーでジョブを実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("日報更新ジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Int("lookback_days", j.LookbackDays),
	)

	// 起動直後に1回実行
	j.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("日報更新ジョブを停止しました")
			return
		case <-ticker.C:
			j.runAndLog(ctx)
		}
	}
}

func (j *Job) runAndLog(ctx context.Context) {
	if err := j.RunOnce(ctx); err != nil {
		j.logger.Error("日報更新ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce は直近の日付範囲で日報を1回作り直す。
func (j *Job) RunOnce(ctx context.Context) error {
	from, to := aggregate.TrailingRange(j.now(), j.LookbackDays)

	count, err := j.materializer.MaterializeDailyReports(ctx, from, to)
	if err != nil {
		return err
	}

	j.logger.Info("日報更新ジョブが完了しました",
		slog.String("from", from),
		slog.String("to", to),
		slog.Int("reports", count),
	)
	return nil
}
