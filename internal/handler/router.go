package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/countdown/internal/metrics"
	"github.com/hitoshi/countdown/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector

	// タイマー
	TimerService TimerServiceInterface

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → Metrics → Recovery → RateLimit(General, /api のみ)
//
// /health と /metrics はレート制限の外に配置する。
// RateLimiter、Metrics、MetricsHandlerがnilの場合、その機能は無効になる。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewRecoveryMiddleware(logger))

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	timerHandler := NewTimerHandler(deps.TimerService)

	r.Route("/api/timers", func(r chi.Router) {
		writeLimit := func(next http.Handler) http.Handler { return next }
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
			writeLimit = deps.RateLimiter.WriteMiddleware()
		}

		r.Get("/", timerHandler.ListTimers)
		// POST /api/timers - 作成（作成・更新専用レート制限を追加）
		r.With(writeLimit).Post("/", timerHandler.CreateTimer)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", timerHandler.GetTimer)
			r.With(writeLimit).Put("/", timerHandler.UpdateTimer)
			r.Delete("/", timerHandler.DeleteTimer)
		})
	})

	return r
}
