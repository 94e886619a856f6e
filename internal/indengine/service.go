// Package indengine polls bar sources, computes indicator summaries and
// publishes them.
package indengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"ta-snapshot/internal/indicator"
	"ta-snapshot/internal/logger"
	"ta-snapshot/internal/metrics"
	"ta-snapshot/internal/model"
)

// ErrUnordered is returned when a source hands back bars that are not
// strictly ascending by timestamp.
var ErrUnordered = errors.New("bars not in ascending time order")

// Publisher is a named summary sink; the name labels publish-error metrics.
type Publisher struct {
	Name string
	model.SummaryPublisher
}

// Report is one evaluation of one series, as published and served.
type Report struct {
	InstID     string            `json:"inst_id"`
	Bar        string            `json:"bar"`
	TS         int64             `json:"ts"` // start of the last bar, unix ms
	Bars       int               `json:"bars"`
	Summary    indicator.Summary `json:"summary"`
	Text       string            `json:"text"`
	ComputedAt time.Time         `json:"computed_at"`
}

// Key returns the series the report belongs to.
func (r *Report) Key() model.SeriesKey {
	return model.SeriesKey{InstID: r.InstID, Bar: r.Bar}
}

// Service evaluates every target on a fixed interval. Each evaluation is a
// full recompute over the fetched bars; no indicator state is carried over.
type Service struct {
	cfg        Config
	source     model.BarSource
	publishers []Publisher
	prom       *metrics.Metrics      // may be nil
	health     *metrics.HealthStatus // may be nil

	mu     sync.RWMutex
	params indicator.Params
	latest map[model.SeriesKey]Report
	// extra HTTP routes mounted by Handler, e.g. the WebSocket hub
	routes map[string]http.Handler
}

// New creates a Service. prom and health may be nil.
func New(cfg Config, source model.BarSource, prom *metrics.Metrics, health *metrics.HealthStatus, pubs ...Publisher) (*Service, error) {
	if source == nil {
		return nil, errors.New("indengine: nil bar source")
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("indengine: %w", err)
	}
	if cfg.BarLimit <= 0 {
		return nil, fmt.Errorf("indengine: bar limit %d must be positive", cfg.BarLimit)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.SourceName == "" {
		cfg.SourceName = "source"
	}
	return &Service{
		cfg:        cfg,
		source:     source,
		publishers: pubs,
		prom:       prom,
		health:     health,
		params:     cfg.Params,
		latest:     make(map[model.SeriesKey]Report),
		routes:     make(map[string]http.Handler),
	}, nil
}

// Mount adds an HTTP route served by Handler. Routes mounted after Handler
// (or Run) has built its mux are not served by that mux.
func (svc *Service) Mount(pattern string, h http.Handler) {
	svc.mu.Lock()
	svc.routes[pattern] = h
	svc.mu.Unlock()
}

// Params returns the indicator parameters currently in use.
func (svc *Service) Params() indicator.Params {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.params
}

// SetParams replaces the indicator parameters for subsequent evaluations.
func (svc *Service) SetParams(p indicator.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	svc.mu.Lock()
	svc.params = p
	svc.mu.Unlock()
	slog.Info("indicator params reloaded", slog.Any("params", p))
	return nil
}

// Latest returns the cached report of key.
func (svc *Service) Latest(key model.SeriesKey) (Report, bool) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	r, ok := svc.latest[key]
	return r, ok
}

// LatestAll returns every cached report.
func (svc *Service) LatestAll() []Report {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	out := make([]Report, 0, len(svc.latest))
	for _, r := range svc.latest {
		out = append(out, r)
	}
	return out
}

// Evaluate fetches bars for key, computes the summary, caches the report and
// publishes it to every publisher. Publish failures are logged and counted
// but do not fail the evaluation.
func (svc *Service) Evaluate(ctx context.Context, key model.SeriesKey) (Report, error) {
	series := key.String()
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(series, time.Now()))

	fetchStart := time.Now()
	bars, err := svc.source.FetchBars(ctx, key, svc.cfg.BarLimit)
	if svc.prom != nil {
		svc.prom.SourceFetchDur.WithLabelValues(svc.cfg.SourceName).Observe(time.Since(fetchStart).Seconds())
	}
	if err != nil {
		return Report{}, svc.fail(ctx, key, "source_error", fmt.Errorf("fetch %s: %w", series, err))
	}
	if !model.IsAscending(bars) {
		return Report{}, svc.fail(ctx, key, "invalid_input", fmt.Errorf("%s: %w", series, ErrUnordered))
	}

	computeStart := time.Now()
	sum, err := indicator.ComputeBarsWith(svc.Params(), bars)
	if svc.prom != nil {
		svc.prom.ComputeDur.Observe(time.Since(computeStart).Seconds())
	}
	if err != nil {
		return Report{}, svc.fail(ctx, key, "invalid_input", fmt.Errorf("compute %s: %w", series, err))
	}

	report := Report{
		InstID:     key.InstID,
		Bar:        key.Bar,
		TS:         bars[len(bars)-1].TS,
		Bars:       len(bars),
		Summary:    sum,
		Text:       sum.String(),
		ComputedAt: time.Now().UTC(),
	}

	svc.mu.Lock()
	svc.latest[key] = report
	svc.mu.Unlock()

	if svc.prom != nil {
		svc.prom.SummariesTotal.WithLabelValues(series, "ok").Inc()
		svc.prom.BarsFetched.WithLabelValues(series).Set(float64(len(bars)))
	}
	if svc.health != nil {
		svc.health.RecordSuccess(series, len(bars))
	}

	svc.publish(ctx, report)

	attrs := append(logger.LogWithTrace(ctx),
		slog.String("series", series),
		slog.Int("bars", len(bars)),
		slog.Float64("close", sum.Close),
	)
	slog.Debug("summary evaluated", attrs...)
	return report, nil
}

func (svc *Service) publish(ctx context.Context, report Report) {
	if len(svc.publishers) == 0 {
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		slog.Error("marshal report", slog.String("series", report.Key().String()), slog.String("error", err.Error()))
		return
	}
	for _, p := range svc.publishers {
		if err := p.PublishSummary(ctx, report.Key(), payload); err != nil {
			if svc.prom != nil {
				svc.prom.PublishErrors.WithLabelValues(p.Name).Inc()
			}
			attrs := append(logger.LogWithTrace(ctx),
				slog.String("sink", p.Name),
				slog.String("series", report.Key().String()),
				slog.String("error", err.Error()),
			)
			slog.Warn("publish summary failed", attrs...)
		}
	}
}

func (svc *Service) fail(ctx context.Context, key model.SeriesKey, result string, err error) error {
	if svc.prom != nil {
		svc.prom.SummariesTotal.WithLabelValues(key.String(), result).Inc()
	}
	if svc.health != nil {
		svc.health.RecordFailure(key.String(), err)
	}
	attrs := append(logger.LogWithTrace(ctx),
		slog.String("series", key.String()),
		slog.String("result", result),
		slog.String("error", err.Error()),
	)
	slog.Warn("evaluation failed", attrs...)
	return err
}

// EvaluateAll evaluates every target in order and returns how many succeeded.
func (svc *Service) EvaluateAll(ctx context.Context) int {
	ok := 0
	for _, key := range svc.cfg.Targets {
		if ctx.Err() != nil {
			break
		}
		if _, err := svc.Evaluate(ctx, key); err == nil {
			ok++
		}
	}
	return ok
}

// Run serves HTTP (when configured), evaluates every target immediately and
// then every PollInterval. Blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	slog.Info("indengine starting",
		slog.Int("targets", len(svc.cfg.Targets)),
		slog.String("source", svc.cfg.SourceName),
		slog.Duration("poll_interval", svc.cfg.PollInterval),
		slog.Int("bar_limit", svc.cfg.BarLimit),
	)

	var srv *http.Server
	errCh := make(chan error, 1)
	if svc.cfg.HTTPAddr != "" {
		srv = &http.Server{
			Addr:              svc.cfg.HTTPAddr,
			Handler:           svc.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("http server listening", slog.String("addr", svc.cfg.HTTPAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	ticker := time.NewTicker(svc.cfg.PollInterval)
	defer ticker.Stop()

	svc.runPass(ctx)
	for {
		select {
		case <-ctx.Done():
			svc.shutdown(srv)
			return nil
		case err := <-errCh:
			svc.shutdown(srv)
			return err
		case <-ticker.C:
			svc.runPass(ctx)
		}
	}
}

func (svc *Service) runPass(ctx context.Context) {
	start := time.Now()
	ok := svc.EvaluateAll(ctx)
	slog.Info("evaluation pass complete",
		slog.Int("ok", ok),
		slog.Int("targets", len(svc.cfg.Targets)),
		slog.Duration("took", time.Since(start)),
	)
}

func (svc *Service) shutdown(srv *http.Server) {
	slog.Info("indengine shutting down")
	if srv != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}
}

// Close closes every publisher.
func (svc *Service) Close() error {
	var errs []error
	for _, p := range svc.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p.Name, err))
		}
	}
	return errors.Join(errs...)
}
