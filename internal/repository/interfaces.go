// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/countdown/internal/model"
)

// TimerRepository はタイマーデータの永続化インターフェース。
// 実装は並行呼び出しに対して安全でなければならない。
type TimerRepository interface {
	// Create はタイマーを作成する。IDとCreatedAtは呼び出し元で設定済みであること。
	Create(ctx context.Context, timer *model.Timer) error

	// ListAll は全タイマーをtarget_dateの昇順で返す。
	// target_dateが同じ場合はcreated_atの昇順とする。
	ListAll(ctx context.Context) ([]*model.Timer, error)

	// FindByID は指定IDのタイマーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Timer, error)

	// Update はタイマーのtitle、target_date、description、updated_atを更新する。
	// 対象が存在しない場合はfalseを返す。
	Update(ctx context.Context, timer *model.Timer) (bool, error)

	// DeleteByID は指定IDのタイマーを削除する。
	// 対象が存在しない場合もエラーにしない（冪等）。
	DeleteByID(ctx context.Context, id string) error

	// DeleteExpiredBefore はtarget_dateがcutoffより前のタイマーを削除し、削除件数を返す。
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// rowScanner は*sql.Rowと*sql.Rowsに共通するScanを抽象化する。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTimer は SELECT id, title, target_date, description, created_at, updated_at の1行を読み取る。
func scanTimer(row rowScanner) (*model.Timer, error) {
	timer := &model.Timer{}
	if err := row.Scan(
		&timer.ID, &timer.Title, &timer.TargetDate,
		&timer.Description, &timer.CreatedAt, &timer.UpdatedAt,
	); err != nil {
		return nil, err
	}

	timer.TargetDate = timer.TargetDate.UTC()
	timer.CreatedAt = timer.CreatedAt.UTC()
	timer.UpdatedAt = timer.UpdatedAt.UTC()
	return timer, nil
}
