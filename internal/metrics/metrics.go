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
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordReportBuilt(kind string, duration time.Duration)
	RecordDroppedRecords(count int)
	RecordUnmatchedPunches(count int)
	RecordOpenSessions(count int)
	RecordPunchesIngested(count int)
	RecordHTTPStatus(statusCode int)
	RecordSyncSuccess(source string)
	RecordSyncFailure(source string, reason string)
	RecordJobDuration(job string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	reportsBuilt     *prometheus.CounterVec
	reportLatency    *prometheus.HistogramVec
	droppedRecords   prometheus.Counter
	unmatchedPunches prometheus.Counter
	openSessions     prometheus.Counter
	punchesIngested  prometheus.Counter
	httpStatus       *prometheus.CounterVec
	syncSuccess      *prometheus.CounterVec
	syncFail         *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reportsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kintai_reports_built_total",
			Help: "種類別の集計・レポート生成数",
		}, []string{"kind"}),
		reportLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kintai_report_latency_seconds",
			Help:    "レポート生成のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		droppedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kintai_dropped_records_total",
			Help: "正規化で破棄された打刻の合計数",
		}),
		unmatchedPunches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kintai_unmatched_punches_total",
			Help: "対応する出勤がなかった退勤打刻の合計数",
		}),
		openSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kintai_open_sessions_total",
			Help: "未退勤セッションの合計数",
		}),
		punchesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kintai_punches_ingested_total",
			Help: "取り込まれた打刻の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kintai_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		syncSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kintai_sync_success_total",
			Help: "マスタ同期成功の合計数",
		}, []string{"source"}),
		syncFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kintai_sync_fail_total",
			Help: "マスタ同期失敗の合計数",
		}, []string{"source", "reason"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kintai_job_duration_seconds",
			Help:    "バックグラウンドジョブの実行時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}

	reg.MustRegister(
		c.reportsBuilt,
		c.reportLatency,
		c.droppedRecords,
		c.unmatchedPunches,
		c.openSessions,
		c.punchesIngested,
		c.httpStatus,
		c.syncSuccess,
		c.syncFail,
		c.jobDuration,
	)

	return c
}

// RecordReportBuilt はレポート生成を種類別に記録する。
func (c *Collector) RecordReportBuilt(kind string, duration time.Duration) {
	c.reportsBuilt.WithLabelValues(kind).Inc()
	c.reportLatency.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordDroppedRecords は正規化で破棄された打刻数を記録する。
func (c *Collector) RecordDroppedRecords(count int) {
	c.droppedRecords.Add(float64(count))
}

// RecordUnmatchedPunches は対応なしの退勤打刻数を記録する。
func (c *Collector) RecordUnmatchedPunches(count int) {
	c.unmatchedPunches.Add(float64(count))
}

// RecordOpenSessions は未退勤セッション数を記録する。
func (c *Collector) RecordOpenSessions(count int) {
	c.openSessions.Add(float64(count))
}

// RecordPunchesIngested は取り込まれた打刻数を記録する。
func (c *Collector) RecordPunchesIngested(count int) {
	c.punchesIngested.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSyncSuccess はマスタ同期の成功を記録する。
func (c *Collector) RecordSyncSuccess(source string) {
	c.syncSuccess.WithLabelValues(source).Inc()
}

// RecordSyncFailure はマスタ同期の失敗を記録する。
func (c *Collector) RecordSyncFailure(source string, reason string) {
	c.syncFail.WithLabelValues(source, reason).Inc()
}

// RecordJobDuration はバックグラウンドジョブの実行時間を記録する。
func (c *Collector) RecordJobDuration(job string, duration time.Duration) {
	c.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// 収集中のエラーは500にせず、取得できたメトリクスだけを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	})
}

// SetupMetricsRoute はワーカー用に /metrics と /health を提供するHTTPハンドラーを返す。
// ワーカーはDBの状態に依存せず、プロセスが応答できれば200を返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler(gatherer))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"up"}`))
	})
	return mux
}

// Nop は何も記録しないMetricsCollector。メトリクスを使わない呼び出し元やテストで使う。
type Nop struct{}

func (Nop) RecordReportBuilt(string, time.Duration)  {}
func (Nop) RecordDroppedRecords(int)                 {}
func (Nop) RecordUnmatchedPunches(int)               {}
func (Nop) RecordOpenSessions(int)                   {}
func (Nop) RecordPunchesIngested(int)                {}
func (Nop) RecordHTTPStatus(int)                     {}
func (Nop) RecordSyncSuccess(string)                 {}
func (Nop) RecordSyncFailure(string, string)         {}
func (Nop) RecordJobDuration(string, time.Duration) {}
