// monitor/monitor.go
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wfunc/gomoku/logger"
)

type Metrics struct {
	ActiveMatches  prometheus.Gauge
	MatchesCreated prometheus.Counter
	MovesPlayed    prometheus.Counter
	MatchOutcomes  *prometheus.CounterVec
	OpErrors       *prometheus.CounterVec
	OpLatency      *prometheus.HistogramVec
}

// NewMetrics 在独立 registry 上注册，便于测试中重复创建
func NewMetrics(namespace string, registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		ActiveMatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_matches",
			Help:      "Number of matches with a cached room",
		}),
		MatchesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_created_total",
			Help:      "Total number of matches created",
		}),
		MovesPlayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_total",
			Help:      "Total number of accepted moves",
		}),
		MatchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_outcomes_total",
			Help:      "Concluded matches by outcome kind and reason",
		}, []string{"kind", "reason"}),
		OpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Rejected or failed operations by error code",
		}, []string{"op", "code"}),
		OpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Operation processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}, []string{"op"}),
	}

	registry.MustRegister(
		m.ActiveMatches,
		m.MatchesCreated,
		m.MovesPlayed,
		m.MatchOutcomes,
		m.OpErrors,
		m.OpLatency,
	)

	return m
}

// Monitor 指标入口，nil Monitor 的所有方法都是空操作
type Monitor struct {
	metrics   *Metrics
	registry  *prometheus.Registry
	startTime time.Time
}

func NewMonitor(namespace string) *Monitor {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := &Monitor{
		metrics:   NewMetrics(namespace, registry),
		registry:  registry,
		startTime: time.Now(),
	}
	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Seconds since the process started",
	}, func() float64 {
		return time.Since(m.startTime).Seconds()
	})
	registry.MustRegister(uptime)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer 启动 /metrics，返回的 server 由调用方关闭
func (m *Monitor) StartServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Errorw("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	return srv
}

func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Monitor) SetActiveMatches(count int) {
	if m == nil {
		return
	}
	m.metrics.ActiveMatches.Set(float64(count))
}

func (m *Monitor) IncMatchesCreated() {
	if m == nil {
		return
	}
	m.metrics.MatchesCreated.Inc()
}

func (m *Monitor) IncMoves() {
	if m == nil {
		return
	}
	m.metrics.MovesPlayed.Inc()
}

func (m *Monitor) IncOutcome(kind, reason string) {
	if m == nil {
		return
	}
	m.metrics.MatchOutcomes.WithLabelValues(kind, reason).Inc()
}

func (m *Monitor) IncOpError(op, code string) {
	if m == nil {
		return
	}
	m.metrics.OpErrors.WithLabelValues(op, code).Inc()
}

func (m *Monitor) ObserveOpLatency(op string, duration time.Duration) {
	if m == nil {
		return
	}
	m.metrics.OpLatency.WithLabelValues(op).Observe(duration.Seconds())
}
