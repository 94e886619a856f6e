// cmd/indengine polls OKX (or a SQLite bar store) for every configured
// series, computes the indicator summary and publishes it to Redis and to
// WebSocket clients.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ta-snapshot/config"
	"ta-snapshot/internal/gateway"
	"ta-snapshot/internal/indengine"
	"ta-snapshot/internal/logger"
	"ta-snapshot/internal/marketdata/okx"
	"ta-snapshot/internal/metrics"
	"ta-snapshot/internal/model"
	"ta-snapshot/internal/notification"
	redisstore "ta-snapshot/internal/store/redis"
	sqlitestore "ta-snapshot/internal/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Init(cfg.App.Name, logger.ParseLevel(cfg.App.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	prom := metrics.NewMetrics(prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus()
	deps := map[string]metrics.Pinger{}

	// ---- Bar source ----
	var source model.BarSource
	switch cfg.Source.Kind {
	case "sqlite":
		reader, err := sqlitestore.NewReader(cfg.SQLite.Path)
		if err != nil {
			slog.Error("sqlite open failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer reader.Close()
		source = reader
		deps["sqlite"] = reader
	default:
		source = okx.NewClient(okx.Config{BaseURL: cfg.OKX.BaseURL, Timeout: cfg.OKX.Timeout})
	}

	// ---- Publishers ----
	hub := gateway.NewHub(prom)
	pubs := []indengine.Publisher{{Name: "ws", SummaryPublisher: hub}}

	if cfg.Redis.Enabled {
		w, err := redisstore.New(redisstore.WriterConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			LatestTTL: cfg.Redis.LatestTTL,
		})
		if err != nil {
			slog.Warn("redis unavailable, publishing to websocket only", slog.String("error", err.Error()))
		} else {
			cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
			cb.OnStateChange = func(from, to redisstore.State) {
				prom.RedisBreakerState.Set(float64(to))
				if to == redisstore.StateOpen {
					prom.RedisBreakerTrips.Inc()
				}
				slog.Warn("redis circuit breaker", slog.String("from", from.String()), slog.String("to", to.String()))
			}
			bw := redisstore.NewBufferedWriter(ctx, w, cb)
			bw.OnBuffer = prom.RedisBuffered.Inc
			bw.OnFlush = func(n int) { prom.RedisFlushed.Add(float64(n)) }
			pubs = append(pubs, indengine.Publisher{Name: "redis", SummaryPublisher: bw})
			deps["redis"] = w
		}
	}

	if cfg.Webhook.URL != "" {
		pubs = append(pubs, indengine.Publisher{
			Name:             "webhook",
			SummaryPublisher: notification.NewWebhookPublisher(cfg.Webhook.URL, cfg.Webhook.Timeout),
		})
	}

	if len(deps) > 0 {
		health.StartLivenessChecker(ctx, deps, 15*time.Second)
	}

	svc, err := indengine.New(indengine.ConfigFrom(cfg), source, prom, health, pubs...)
	if err != nil {
		slog.Error("service init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer svc.Close()
	svc.Mount("/ws", hub)
	svc.Mount("/ws/replay", http.HandlerFunc(hub.HandleReplay))

	if err := svc.Run(ctx); err != nil {
		slog.Error("indengine fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
