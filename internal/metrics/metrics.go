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
// ハンドラー層やミドルウェアから利用する。
type MetricsCollector interface {
	RecordConnectionTest(result string)
	RecordFeedCreated()
	RecordContentItems(count int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	connectionTest *prometheus.CounterVec
	feedsCreated   prometheus.Counter
	contentItems   prometheus.Counter
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connectionTest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dripman_connection_test_total",
			Help: "接続テスト実行結果別の合計数",
		}, []string{"result"}),
		feedsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dripman_feeds_created_total",
			Help: "登録されたフィードの合計数",
		}),
		contentItems: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dripman_content_items_total",
			Help: "分割で生成されたコンテンツ項目の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dripman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dripman_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.connectionTest,
		c.feedsCreated,
		c.contentItems,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordConnectionTest は接続テストの実行結果を記録する。
func (c *Collector) RecordConnectionTest(result string) {
	c.connectionTest.WithLabelValues(result).Inc()
}

// RecordFeedCreated はフィード登録を記録する。
func (c *Collector) RecordFeedCreated() {
	c.feedsCreated.Inc()
}

// RecordContentItems は分割で生成されたコンテンツ項目数を記録する。
func (c *Collector) RecordContentItems(count int) {
	c.contentItems.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
