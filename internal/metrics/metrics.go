package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "codeblue"

// Poll outcomes
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
	OutcomeStale = "stale"
)

// Metrics Prometheus 指标（nil 安全，未启用时所有方法为空操作）
type Metrics struct {
	registry *prometheus.Registry

	pollsTotal        *prometheus.CounterVec
	skippedTicks      *prometheus.CounterVec
	fetchDuration     *prometheus.HistogramVec
	nodeLive          *prometheus.GaugeVec
	threatLevel       *prometheus.GaugeVec
	sampleCount       *prometheus.GaugeVec
	alertsTotal       *prometheus.CounterVec
	sinkErrors        *prometheus.CounterVec
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	wsClients         prometheus.Gauge
}

// NewMetrics 创建并注册指标（独立 registry，便于测试）
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Feed polls by view and outcome.",
		}, []string{"view", "outcome"}),
		skippedTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_skipped_ticks_total",
			Help:      "Ticks skipped because the previous fetch was still running.",
		}, []string{"view"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Upstream feed fetch latency by view.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"view"}),
		nodeLive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "node_live",
			Help:      "1 when the latest sample is within the view's stale threshold.",
		}, []string{"view", "node"}),
		threatLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "node_threat_severity",
			Help:      "Threat severity (-1 inactive, 0 healthy, 1 watch, 2 alert, 3 emergency).",
		}, []string{"view", "node"}),
		sampleCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_samples",
			Help:      "Samples in the view's current window.",
		}, []string{"view"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_events_total",
			Help:      "Alert events emitted by view and label.",
		}, []string{"view", "label"}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed writes to downstream sinks.",
		}, []string{"sink"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected WebSocket clients.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.pollsTotal,
		m.skippedTicks,
		m.fetchDuration,
		m.nodeLive,
		m.threatLevel,
		m.sampleCount,
		m.alertsTotal,
		m.sinkErrors,
		m.httpRequestsTotal,
		m.httpDuration,
		m.wsClients,
	)
	return m
}

// Handler /metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 暴露 registry（测试用）
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObservePoll(view, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.pollsTotal.WithLabelValues(view, outcome).Inc()
	if outcome != OutcomeStale {
		m.fetchDuration.WithLabelValues(view).Observe(duration.Seconds())
	}
}

func (m *Metrics) SkippedTick(view string) {
	if m == nil {
		return
	}
	m.skippedTicks.WithLabelValues(view).Inc()
}

// SetNodeState 更新在线与严重程度
func (m *Metrics) SetNodeState(view, node string, live bool, severity int, samples int) {
	if m == nil {
		return
	}
	v := 0.0
	if live {
		v = 1
	}
	m.nodeLive.WithLabelValues(view, node).Set(v)
	m.threatLevel.WithLabelValues(view, node).Set(float64(severity))
	m.sampleCount.WithLabelValues(view).Set(float64(samples))
}

func (m *Metrics) AlertEmitted(view, label string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(view, label).Inc()
}

func (m *Metrics) SinkError(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}

func (m *Metrics) SetWebSocketClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler 记录请求数与耗时
// WebSocket 升级需要 http.Hijacker，对应路由不要包装
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
