package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the indicator service.
type Metrics struct {
	SummariesTotal    *prometheus.CounterVec // labels: series, result=ok|invalid_input|source_error
	ComputeDur        prometheus.Histogram
	SourceFetchDur    *prometheus.HistogramVec // labels: source
	BarsFetched       *prometheus.GaugeVec     // labels: series
	PublishErrors     *prometheus.CounterVec   // labels: sink
	RedisBreakerState prometheus.Gauge         // 0=closed, 1=open, 2=half-open
	RedisBreakerTrips prometheus.Counter
	RedisBuffered     prometheus.Counter
	RedisFlushed      prometheus.Counter
	WSClients         prometheus.Gauge
	WSDropped         prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in binaries and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SummariesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indengine_summaries_total",
			Help: "Indicator summary evaluations by series and result",
		}, []string{"series", "result"}),
		ComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "indengine_summary_compute_duration_seconds",
			Help:    "Time to compute every indicator over one series",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		SourceFetchDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indengine_source_fetch_duration_seconds",
			Help:    "Bar source fetch latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		BarsFetched: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "indengine_bars_fetched",
			Help: "Number of bars in the last evaluated batch",
		}, []string{"series"}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indengine_publish_errors_total",
			Help: "Summary publish failures by sink",
		}, []string{"sink"}),
		RedisBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indengine_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indengine_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisBuffered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indengine_redis_buffered_total",
			Help: "Summaries buffered while the Redis circuit was open",
		}),
		RedisFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indengine_redis_flushed_total",
			Help: "Buffered summaries written after the Redis circuit closed",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indengine_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		WSDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indengine_ws_dropped_total",
			Help: "Envelopes dropped because a client send queue was full",
		}),
	}

	reg.MustRegister(
		m.SummariesTotal,
		m.ComputeDur,
		m.SourceFetchDur,
		m.BarsFetched,
		m.PublishErrors,
		m.RedisBreakerState,
		m.RedisBreakerTrips,
		m.RedisBuffered,
		m.RedisFlushed,
		m.WSClients,
		m.WSDropped,
	)

	return m
}

// Pinger is satisfied by *redis.Client wrappers and *sql.DB adapters.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SeriesHealth is the last evaluation outcome for one series.
type SeriesHealth struct {
	LastOK    time.Time `json:"last_ok"`
	LastError string    `json:"last_error,omitempty"`
	Bars      int       `json:"bars"`
}

// HealthStatus represents the service health.
type HealthStatus struct {
	mu sync.RWMutex

	Series       map[string]SeriesHealth
	Dependencies map[string]bool
	LastCheckAt  time.Time
	StartedAt    time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		Series:       make(map[string]SeriesHealth),
		Dependencies: make(map[string]bool),
		StartedAt:    time.Now(),
	}
}

// RecordSuccess marks a successful evaluation of series.
func (h *HealthStatus) RecordSuccess(series string, bars int) {
	h.mu.Lock()
	h.Series[series] = SeriesHealth{LastOK: time.Now(), Bars: bars}
	h.mu.Unlock()
}

// RecordFailure keeps the last success time and stores the error.
func (h *HealthStatus) RecordFailure(series string, err error) {
	h.mu.Lock()
	sh := h.Series[series]
	sh.LastError = err.Error()
	h.Series[series] = sh
	h.mu.Unlock()
}

// Check pings a named dependency and records the result.
func (h *HealthStatus) Check(ctx context.Context, name string, p Pinger) {
	err := p.Ping(ctx)
	h.mu.Lock()
	h.Dependencies[name] = err == nil
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker pings every dependency on interval until ctx is done.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, deps map[string]Pinger, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				for name, p := range deps {
					h.Check(probeCtx, name, p)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
// Any failing dependency or series in error degrades the status to 503.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	for _, ok := range h.Dependencies {
		if !ok {
			overallStatus = "degraded"
			httpCode = http.StatusServiceUnavailable
		}
	}
	names := make([]string, 0, len(h.Series))
	for name, sh := range h.Series {
		names = append(names, name)
		if sh.LastError != "" {
			overallStatus = "degraded"
			httpCode = http.StatusServiceUnavailable
		}
	}
	sort.Strings(names)

	status := struct {
		Status       string                  `json:"status"`
		Uptime       string                  `json:"uptime"`
		Series       map[string]SeriesHealth `json:"series"`
		SeriesNames  []string                `json:"series_names"`
		Dependencies map[string]bool         `json:"dependencies"`
		LastCheckAt  string                  `json:"last_check_at,omitempty"`
	}{
		Status:       overallStatus,
		Uptime:       time.Since(h.StartedAt).Round(time.Second).String(),
		Series:       h.Series,
		SeriesNames:  names,
		Dependencies: h.Dependencies,
	}
	if !h.LastCheckAt.IsZero() {
		status.LastCheckAt = h.LastCheckAt.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}
