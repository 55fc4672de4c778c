package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

var (
	// Registry 应用 Prometheus 指标注册表
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	remoteCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "calls_total",
			Help:      "Outbound calls to collaborators by resource, operation and outcome.",
		},
		[]string{"resource", "operation", "outcome"},
	)

	remoteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "call_duration_seconds",
			Help:      "Duration of outbound collaborator calls.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"resource", "operation"},
	)

	cartTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "transitions_total",
			Help:      "Cart sign-in/sign-out synchronizations by path and outcome.",
		},
		[]string{"path", "outcome"},
	)

	cartReverts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "optimistic_reverts_total",
			Help:      "Optimistic cart mutations reverted after a remote failure.",
		},
		[]string{"operation"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently held in memory.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		remoteCalls,
		remoteDuration,
		cartTransitions,
		cartReverts,
		activeSessions,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler 暴露 Prometheus 指标
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveHTTP 记录 HTTP 请求
func ObserveHTTP(method, route, status string, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, status).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveRemote 记录外部调用
func ObserveRemote(resource, operation string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	remoteCalls.WithLabelValues(resource, operation, outcome).Inc()
	remoteDuration.WithLabelValues(resource, operation).Observe(elapsed.Seconds())
}

// ObserveTransition 记录购物车登录/登出同步路径
func ObserveTransition(path string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	cartTransitions.WithLabelValues(path, outcome).Inc()
}

// ObserveRevert 记录乐观更新回滚
func ObserveRevert(operation string) {
	cartReverts.WithLabelValues(operation).Inc()
}

// SetActiveSessions 更新内存会话数
func SetActiveSessions(count int) {
	activeSessions.Set(float64(count))
}
