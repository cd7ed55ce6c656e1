// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 署名の結果ラベル
const (
	SignatureAccepted  = "accepted"
	SignatureDuplicate = "duplicate"
	SignatureFailed    = "failed"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ミドルウェア・ワーカーから利用する。
type MetricsCollector interface {
	RecordPetitionCreated()
	RecordSignature(outcome string)
	RecordAuthEvent(event string)
	RecordAuthFailure(code string)
	RecordHTTPStatus(statusCode int)
	RecordRemoteRequest(operation string, statusCode int, duration time.Duration)
	RecordSessionsCleaned(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	petitionsCreated prometheus.Counter
	signatures       *prometheus.CounterVec
	authEvents       *prometheus.CounterVec
	authFailures     *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	remoteLatency    *prometheus.HistogramVec
	sessionsCleaned  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		petitionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "petitions_created_total",
			Help: "作成されたペティションの合計数",
		}),
		signatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "petitions_signatures_total",
			Help: "署名の送信数（結果別）",
		}, []string{"outcome"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "petitions_auth_events_total",
			Help: "サインイン・サインアップ・サインアウトの成功数",
		}, []string{"event"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "petitions_auth_failures_total",
			Help: "認証失敗数（エラーコード別）",
		}, []string{"code"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "petitions_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "petitions_remote_request_seconds",
			Help:    "データバックエンド呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status_code"}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "petitions_sessions_cleaned_total",
			Help: "削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.petitionsCreated,
		c.signatures,
		c.authEvents,
		c.authFailures,
		c.httpStatus,
		c.remoteLatency,
		c.sessionsCleaned,
	)

	return c
}

// RecordPetitionCreated はペティション作成を記録する。
func (c *Collector) RecordPetitionCreated() {
	c.petitionsCreated.Inc()
}

// RecordSignature は署名の送信結果を記録する。
func (c *Collector) RecordSignature(outcome string) {
	c.signatures.WithLabelValues(outcome).Inc()
}

// RecordAuthEvent は認証イベントを記録する。
func (c *Collector) RecordAuthEvent(event string) {
	c.authEvents.WithLabelValues(event).Inc()
}

// RecordAuthFailure は認証失敗を記録する。
func (c *Collector) RecordAuthFailure(code string) {
	c.authFailures.WithLabelValues(code).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRemoteRequest はデータバックエンド呼び出しを記録する。
// remote.Observerとして登録できるシグネチャになっている。
func (c *Collector) RecordRemoteRequest(operation string, statusCode int, duration time.Duration) {
	c.remoteLatency.WithLabelValues(operation, strconv.Itoa(statusCode)).Observe(duration.Seconds())
}

// RecordSessionsCleaned は削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int) {
	c.sessionsCleaned.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordPetitionCreated()                         {}
func (Nop) RecordSignature(string)                         {}
func (Nop) RecordAuthEvent(string)                         {}
func (Nop) RecordAuthFailure(string)                       {}
func (Nop) RecordHTTPStatus(int)                           {}
func (Nop) RecordRemoteRequest(string, int, time.Duration) {}
func (Nop) RecordSessionsCleaned(int)                      {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface checks
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
