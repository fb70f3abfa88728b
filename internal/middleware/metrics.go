package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/countdown/internal/metrics"
)

// NewMetricsMiddleware はリクエスト数と処理時間を記録するミドルウェアを返す。
// ラベルのルートにはchiのルートパターン（例: /api/timers/{id}）を使い、
// IDごとに系列が増えないようにする。未マッチのルートは"unmatched"とする。
func NewMetricsMiddleware(collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			collector.RecordHTTPRequest(r.Method, route, rec.statusCode, time.Since(start))
		})
	}
}
