package redis

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"ta-snapshot/internal/model"
)

// summaryWriter is the subset of *Writer the buffered publisher needs.
type summaryWriter interface {
	WriteSummary(ctx context.Context, key model.SeriesKey, payload []byte) error
	Close() error
}

// BufferedWriter wraps a Redis Writer with a circuit breaker and implements
// model.SummaryPublisher. While the circuit is open, only the latest payload
// per series is kept; it is flushed when the circuit closes again. A direct
// write that succeeds supersedes the buffered payload of its series.
type BufferedWriter struct {
	writer summaryWriter
	cb     *CircuitBreaker
	ctx    context.Context

	// writeMu orders direct writes and flushes so an older payload never
	// lands after a newer one.
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[model.SeriesKey][]byte

	// Callbacks
	OnBuffer func()          // called when a payload is buffered
	OnFlush  func(count int) // called after flushing buffered payloads
}

// NewBufferedWriter creates a BufferedWriter wrapping w. ctx bounds
// background flushes.
func NewBufferedWriter(ctx context.Context, w summaryWriter, cb *CircuitBreaker) *BufferedWriter {
	bw := &BufferedWriter{
		writer:  w,
		cb:      cb,
		ctx:     ctx,
		pending: make(map[model.SeriesKey][]byte),
	}

	prevCallback := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prevCallback != nil {
			prevCallback(from, to)
		}
		if to == StateClosed {
			go bw.flush()
		}
	}

	return bw
}

// PublishSummary writes payload through the circuit breaker.
// If the circuit is open the payload is buffered and nil is returned.
func (bw *BufferedWriter) PublishSummary(ctx context.Context, key model.SeriesKey, payload []byte) error {
	bw.writeMu.Lock()
	defer bw.writeMu.Unlock()

	err := bw.cb.Execute(func() error {
		return bw.writer.WriteSummary(ctx, key, payload)
	})
	switch {
	case errors.Is(err, ErrCircuitOpen):
		bw.buffer(key, payload)
		return nil
	case err == nil:
		bw.mu.Lock()
		delete(bw.pending, key)
		bw.mu.Unlock()
	}
	return err
}

func (bw *BufferedWriter) buffer(key model.SeriesKey, payload []byte) {
	cp := make([]byte, len(payload))
	copy(cp, payload)

	bw.mu.Lock()
	bw.pending[key] = cp
	bw.mu.Unlock()

	if bw.OnBuffer != nil {
		bw.OnBuffer()
	}
}

// flush replays buffered payloads. Entries that fail again stay buffered
// unless a newer payload for the same series arrived meanwhile.
func (bw *BufferedWriter) flush() {
	bw.writeMu.Lock()
	defer bw.writeMu.Unlock()

	bw.mu.Lock()
	if len(bw.pending) == 0 {
		bw.mu.Unlock()
		return
	}
	toFlush := bw.pending
	bw.pending = make(map[model.SeriesKey][]byte)
	bw.mu.Unlock()

	flushed := 0
	for key, payload := range toFlush {
		if err := bw.writer.WriteSummary(bw.ctx, key, payload); err != nil {
			slog.Warn("redis flush failed", slog.String("series", key.String()), slog.String("error", err.Error()))
			bw.mu.Lock()
			if _, newer := bw.pending[key]; !newer {
				bw.pending[key] = payload
			}
			bw.mu.Unlock()
			continue
		}
		flushed++
	}

	slog.Info("redis flushed buffered summaries", slog.Int("count", flushed))
	if bw.OnFlush != nil {
		bw.OnFlush(flushed)
	}
}

// PendingCount returns the number of series with a buffered payload.
func (bw *BufferedWriter) PendingCount() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.pending)
}

// Close closes the underlying writer.
func (bw *BufferedWriter) Close() error {
	return bw.writer.Close()
}
