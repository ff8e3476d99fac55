// Package cleanup は保持期間を過ぎた打刻の自動削除ジョブを提供する。
// 日報は打刻から作り直せるため、削除対象は未正規化の打刻のみとする。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PunchPurger は古い打刻を削除するインターフェース。
// repository.PunchRepository が満たす。
type PunchPurger interface {
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// CleanupJob は保持期間を超過した打刻の削除ジョブ。
// 削除対象がない場合もエラーにならない。
type CleanupJob struct {
	punches       PunchPurger
	logger        *slog.Logger
	RetentionDays int // 打刻の保持日数（デフォルト: 730）
	now           func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
// retentionDaysが0以下の場合は730日を使う。
func NewCleanupJob(punches PunchPurger, logger *slog.Logger, retentionDays int) *CleanupJob {
	if retentionDays <= 0 {
		retentionDays = 730
	}
	return &CleanupJob{
		punches:       punches,
		logger:        logger,
		RetentionDays: retentionDays,
		now:           time.Now,
	}
}

// Start は指定間隔のティッカーでジョブを実行する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("打刻クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("打刻クリーンアップジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Run はrecorded_atがRetentionDays日前より古い打刻を削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()
	before := start.AddDate(0, 0, -j.RetentionDays)

	deletedCount, err := j.punches.DeleteOlderThan(ctx, before)
	if err != nil {
		j.logger.Error("打刻の削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("打刻クリーンアップの実行に失敗: %w", err)
	}

	j.logger.Info("打刻クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Time("before", before),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}
