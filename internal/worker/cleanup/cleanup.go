// Package cleanup は期限切れタイマーの自動削除ジョブを提供する。
// targetDateから保持期間（デフォルト30日）を超過したタイマーを定期的に削除する。
// APIサーバー自身はタイマーを削除しないため、workerサブコマンドで実行する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetentionDays は期限切れタイマーを保持する日数のデフォルト値。
const DefaultRetentionDays = 30

// Purger は期限切れタイマーの削除インターフェース。timer.Serviceが実装する。
type Purger interface {
	// PurgeExpired はtargetDateからretention以上経過したタイマーを削除し、削除件数を返す。
	PurgeExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// CleanupJob は期限切れタイマーの自動削除ジョブ。
// 削除は冪等で、対象がなくてもエラーにならない。
type CleanupJob struct {
	purger        Purger
	logger        *slog.Logger
	RetentionDays int // 期限切れタイマーの保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(purger Purger, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		purger:        purger,
		logger:        logger,
		RetentionDays: DefaultRetentionDays,
	}
}

// Run は保持期間を超過したタイマーを1回削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	retention := time.Duration(j.RetentionDays) * 24 * time.Hour

	deleted, err := j.purger.PurgeExpired(ctx, retention)
	if err != nil {
		j.logger.Error("expired timer cleanup failed",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("期限切れタイマーの削除に失敗: %w", err)
	}

	j.logger.Info("expired timer cleanup completed",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回実行し、以降intervalごとにRunを実行する。
// コンテキストがキャンセルされるまで継続する。Runの失敗はログに残して次回に持ち越す。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("cleanup worker started",
		slog.Duration("interval", interval),
		slog.Int("retention_days", j.RetentionDays),
	)

	j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
