// Package timer はタイマーの作成・一覧・更新・削除のドメインロジックを提供する。
package timer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/countdown/internal/metrics"
	"github.com/hitoshi/countdown/internal/model"
	"github.com/hitoshi/countdown/internal/repository"
)

// ListCache はtarget_date昇順のタイマー一覧キャッシュのインターフェース。
// cache.TimerCacheが実装する。
type ListCache interface {
	// GetList はキャッシュ済みの一覧を返す。キャッシュミスの場合はnil, nilを返す。
	GetList(ctx context.Context) ([]*model.Timer, error)
	SetList(ctx context.Context, timers []*model.Timer) error
	Invalidate(ctx context.Context) error
}

// listFlightKey は一覧取得をまとめるsingleflightのキー。
const listFlightKey = "list"

// Service はタイマー管理のサービス層。
// 入力の正規化・検証、ID採番、キャッシュ制御、メトリクス記録を担当する。
// リクエスト間で共有する可変状態は持たない（singleflightを除く）。
type Service struct {
	repo    repository.TimerRepository
	cache   ListCache
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	now     func() time.Time
	sf      singleflight.Group
}

// NewService はServiceの新しいインスタンスを生成する。
// cacheがnilの場合はキャッシュを使用しない。
func NewService(
	repo repository.TimerRepository,
	cache ListCache,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:    repo,
		cache:   cache,
		metrics: collector,
		logger:  logger,
		now:     time.Now,
	}
}

// Create はタイマーを作成する。
// titleとdescriptionは前後の空白のみ除去し、それ以外は入力のまま保存する。
// titleが空、またはtargetDateが未指定の場合はValidationErrorを返し、ストアは変更しない。
func (s *Service) Create(ctx context.Context, in model.TimerInput) (*model.Timer, error) {
	title, description, err := normalize(in)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	timer := &model.Timer{
		ID:          uuid.New().String(),
		Title:       title,
		TargetDate:  in.TargetDate.UTC(),
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, timer); err != nil {
		return nil, s.storeError(ctx, "create", err)
	}

	s.invalidateCache(ctx)
	s.metrics.RecordTimerCreated()

	s.logger.Info("timer created",
		slog.String("timer_id", timer.ID),
		slog.Time("target_date", timer.TargetDate),
	)
	return timer, nil
}

// List は全タイマーをtarget_dateの昇順で返す。
// キャッシュが有効な場合、同時に発生したキャッシュミスはsingleflightで1回のストア問い合わせにまとめる。
// 返されるスライスは呼び出し元間で共有され得るため、変更してはならない。
func (s *Service) List(ctx context.Context) ([]*model.Timer, error) {
	if s.cache == nil {
		return s.listFromStore(ctx)
	}

	v, err, _ := s.sf.Do(listFlightKey, func() (interface{}, error) {
		cached, err := s.cache.GetList(ctx)
		if err != nil {
			s.logger.Warn("timer list cache read failed", slog.String("error", err.Error()))
		} else if cached != nil {
			s.metrics.RecordCacheHit()
			return cached, nil
		}
		s.metrics.RecordCacheMiss()

		timers, err := s.listFromStore(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetList(ctx, timers); err != nil {
			s.logger.Warn("timer list cache write failed", slog.String("error", err.Error()))
		}
		return timers, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*model.Timer), nil
}

// Get は指定IDのタイマーを返す。存在しない場合はTimerNotFoundエラーを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Timer, error) {
	if !isValidID(id) {
		return nil, model.NewTimerNotFoundError(id)
	}

	timer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeError(ctx, "get", err)
	}
	if timer == nil {
		return nil, model.NewTimerNotFoundError(id)
	}
	return timer, nil
}

// Update はタイマーのtitle、targetDate、descriptionを置き換える。
// IDとCreatedAtは変更しない。存在しない場合はTimerNotFoundエラーを返す。
func (s *Service) Update(ctx context.Context, id string, in model.TimerInput) (*model.Timer, error) {
	title, description, err := normalize(in)
	if err != nil {
		return nil, err
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	existing.Title = title
	existing.TargetDate = in.TargetDate.UTC()
	existing.Description = description
	existing.UpdatedAt = s.now().UTC()

	ok, err := s.repo.Update(ctx, existing)
	if err != nil {
		return nil, s.storeError(ctx, "update", err)
	}
	if !ok {
		// Getと更新の間に削除された
		return nil, model.NewTimerNotFoundError(id)
	}

	s.invalidateCache(ctx)
	s.metrics.RecordTimerUpdated()

	s.logger.Info("timer updated", slog.String("timer_id", id))
	return existing, nil
}

// Delete は指定IDのタイマーを削除する。
// 存在しないID、UUIDとして不正なIDも成功として扱う（冪等）。
func (s *Service) Delete(ctx context.Context, id string) error {
	if !isValidID(id) {
		return nil
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return s.storeError(ctx, "delete", err)
	}

	s.invalidateCache(ctx)
	s.metrics.RecordTimerDeleted()

	s.logger.Info("timer deleted", slog.String("timer_id", id))
	return nil
}

// PurgeExpired はtargetDateからretention以上経過したタイマーを削除し、削除件数を返す。
// クリーンアップワーカーから呼び出される。
func (s *Service) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-retention)

	deleted, err := s.repo.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, s.storeError(ctx, "purge", err)
	}

	if deleted > 0 {
		s.invalidateCache(ctx)
	}
	s.metrics.RecordTimersPurged(deleted)
	return deleted, nil
}

func (s *Service) listFromStore(ctx context.Context) ([]*model.Timer, error) {
	timers, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, s.storeError(ctx, "list", err)
	}
	return timers, nil
}

// normalize は前後の空白を除去し、必須項目を検証する。
func normalize(in model.TimerInput) (title, description string, err error) {
	title = strings.TrimSpace(in.Title)
	description = strings.TrimSpace(in.Description)

	if title == "" {
		return "", "", model.NewValidationError("title is required")
	}
	if in.TargetDate.IsZero() {
		return "", "", model.NewValidationError("targetDate is required")
	}
	return title, description, nil
}

// storeError はストアのエラーを記録し、StoreErrorに変換する。
func (s *Service) storeError(ctx context.Context, op string, err error) error {
	s.metrics.RecordStoreError(op)
	s.logger.ErrorContext(ctx, "timer store operation failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return model.NewStoreError(op, err)
}

// invalidateCache は一覧キャッシュを破棄する。失敗してもリクエストは失敗させない。
// TTLが経過すれば古い一覧は自然に消える。
func (s *Service) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("timer list cache invalidation failed", slog.String("error", err.Error()))
	}
}

func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
