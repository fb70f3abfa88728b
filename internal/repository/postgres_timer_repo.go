package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/countdown/internal/model"
)

// PostgresTimerRepo はPostgreSQLを使用したタイマーリポジトリ。
type PostgresTimerRepo struct {
	db *sql.DB
}

// NewPostgresTimerRepo はPostgresTimerRepoを生成する。
func NewPostgresTimerRepo(db *sql.DB) *PostgresTimerRepo {
	return &PostgresTimerRepo{db: db}
}

// Create はタイマーを作成する。
func (r *PostgresTimerRepo) Create(ctx context.Context, timer *model.Timer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO timers (id, title, target_date, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		timer.ID, timer.Title, timer.TargetDate.UTC(), timer.Description,
		timer.CreatedAt.UTC(), timer.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("タイマーの作成に失敗しました: %w", err)
	}
	return nil
}

// ListAll は全タイマーをtarget_dateの昇順で返す。
func (r *PostgresTimerRepo) ListAll(ctx context.Context) ([]*model.Timer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, target_date, description, created_at, updated_at
		 FROM timers
		 ORDER BY target_date ASC, created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("タイマー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	timers := make([]*model.Timer, 0)
	for rows.Next() {
		timer, err := scanTimer(rows)
		if err != nil {
			return nil, fmt.Errorf("タイマーのスキャンに失敗しました: %w", err)
		}
		timers = append(timers, timer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("タイマー一覧の走査に失敗しました: %w", err)
	}

	return timers, nil
}

// FindByID は指定IDのタイマーを取得する。見つからない場合はnilを返す。
func (r *PostgresTimerRepo) FindByID(ctx context.Context, id string) (*model.Timer, error) {
	timer, err := scanTimer(r.db.QueryRowContext(ctx,
		`SELECT id, title, target_date, description, created_at, updated_at
		 FROM timers WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("タイマーの取得に失敗しました: %w", err)
	}
	return timer, nil
}

// Update はタイマーの内容を更新する。対象が存在しない場合はfalseを返す。
func (r *PostgresTimerRepo) Update(ctx context.Context, timer *model.Timer) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE timers SET title = $2, target_date = $3, description = $4, updated_at = $5
		 WHERE id = $1`,
		timer.ID, timer.Title, timer.TargetDate.UTC(), timer.Description, timer.UpdatedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("タイマーの更新に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// DeleteByID は指定IDのタイマーを削除する。存在しない場合もエラーにしない。
func (r *PostgresTimerRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM timers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("タイマーの削除に失敗しました: %w", err)
	}
	return nil
}

// DeleteExpiredBefore はtarget_dateがcutoffより前のタイマーを削除する。
func (r *PostgresTimerRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM timers WHERE target_date < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("期限切れタイマーの削除に失敗しました: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}
