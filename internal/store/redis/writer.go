package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ta-snapshot/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const defaultLatestTTL = 30 * time.Minute

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr      string // Redis address, e.g. "localhost:6379"
	Password  string
	DB        int
	LatestTTL time.Duration // TTL of the latest-summary key; 0 means 30m
}

// Writer stores and broadcasts indicator summaries.
type Writer struct {
	client *goredis.Client
	ttl    time.Duration
}

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := cfg.LatestTTL
	if ttl <= 0 {
		ttl = defaultLatestTTL
	}

	slog.Info("redis connected", slog.String("addr", cfg.Addr))
	return &Writer{client: client, ttl: ttl}, nil
}

// LatestKey is the key holding the most recent summary of a series.
func LatestKey(key model.SeriesKey) string {
	return "ind:summary:latest:" + key.InstID + ":" + key.Bar
}

// Channel is the pub/sub channel summaries of a series are published on.
func Channel(key model.SeriesKey) string {
	return "pub:ind:summary:" + key.InstID + ":" + key.Bar
}

// WriteSummary pipelines SET latest (with TTL) and PUBLISH in one roundtrip.
func (w *Writer) WriteSummary(ctx context.Context, key model.SeriesKey, payload []byte) error {
	data := string(payload)

	pipe := w.client.Pipeline()
	pipe.Set(ctx, LatestKey(key), data, w.ttl)
	pipe.Publish(ctx, Channel(key), data)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis summary pipeline %s: %w", key, err)
	}
	return nil
}

// Ping checks the connection for health probes.
func (w *Writer) Ping(ctx context.Context) error {
	return w.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
