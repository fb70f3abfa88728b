// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、HTTPミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordTimerCreated()
	RecordTimerUpdated()
	RecordTimerDeleted()
	RecordTimersPurged(count int64)
	RecordStoreError(op string)
	RecordCacheHit()
	RecordCacheMiss()
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	timersCreated prometheus.Counter
	timersUpdated prometheus.Counter
	timersDeleted prometheus.Counter
	timersPurged  prometheus.Counter
	storeErrors   *prometheus.CounterVec
	cacheResults  *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		timersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "countdown_timers_created_total",
			Help: "作成されたタイマーの合計数",
		}),
		timersUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "countdown_timers_updated_total",
			Help: "更新されたタイマーの合計数",
		}),
		timersDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "countdown_timers_deleted_total",
			Help: "削除リクエストが成功した回数",
		}),
		timersPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "countdown_timers_purged_total",
			Help: "クリーンアップジョブで削除された期限切れタイマーの合計数",
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "countdown_store_errors_total",
			Help: "操作別のデータストアエラー数",
		}, []string{"op"}),
		cacheResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "countdown_list_cache_total",
			Help: "一覧キャッシュのヒット・ミス数",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "countdown_http_requests_total",
			Help: "メソッド・ルート・ステータスコード別のHTTPリクエスト数",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "countdown_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.timersCreated,
		c.timersUpdated,
		c.timersDeleted,
		c.timersPurged,
		c.storeErrors,
		c.cacheResults,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

// RecordTimerCreated はタイマー作成を記録する。
func (c *Collector) RecordTimerCreated() {
	c.timersCreated.Inc()
}

// RecordTimerUpdated はタイマー更新を記録する。
func (c *Collector) RecordTimerUpdated() {
	c.timersUpdated.Inc()
}

// RecordTimerDeleted はタイマー削除を記録する。
func (c *Collector) RecordTimerDeleted() {
	c.timersDeleted.Inc()
}

// RecordTimersPurged はクリーンアップで削除された件数を記録する。
func (c *Collector) RecordTimersPurged(count int64) {
	c.timersPurged.Add(float64(count))
}

// RecordStoreError はデータストアエラーを操作名付きで記録する。
func (c *Collector) RecordStoreError(op string) {
	c.storeErrors.WithLabelValues(op).Inc()
}

// RecordCacheHit は一覧キャッシュのヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheResults.WithLabelValues("hit").Inc()
}

// RecordCacheMiss は一覧キャッシュのミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheResults.WithLabelValues("miss").Inc()
}

// RecordHTTPRequest はHTTPリクエストの件数と処理時間を記録する。
// routeにはchiのルートパターン（例: /api/timers/{id}）を渡し、ラベルの爆発を防ぐ。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。
// クライアントコマンドやテストで使用する。
type Nop struct{}

func (Nop) RecordTimerCreated()                                  {}
func (Nop) RecordTimerUpdated()                                  {}
func (Nop) RecordTimerDeleted()                                  {}
func (Nop) RecordTimersPurged(int64)                             {}
func (Nop) RecordStoreError(string)                              {}
func (Nop) RecordCacheHit()                                      {}
func (Nop) RecordCacheMiss()                                     {}
func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
