package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ta-snapshot/internal/metrics"
	"ta-snapshot/internal/model"
)

type fakeWriter struct {
	mu     sync.Mutex
	fail   bool
	writes map[model.SeriesKey][]string
	closed bool
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{writes: make(map[model.SeriesKey][]string)}
}

func (f *fakeWriter) WriteSummary(_ context.Context, key model.SeriesKey, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errFail
	}
	f.writes[key] = append(f.writes[key], string(payload))
	return nil
}

func (f *fakeWriter) Close() error { f.closed = true; return nil }

func (f *fakeWriter) setFail(v bool) { f.mu.Lock(); f.fail = v; f.mu.Unlock() }

func (f *fakeWriter) get(key model.SeriesKey) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes[key]...)
}

var (
	btc = model.SeriesKey{InstID: "BTC-USDT", Bar: "1H"}
	eth = model.SeriesKey{InstID: "ETH-USDT", Bar: "1H"}
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "ind:summary:latest:BTC-USDT:1H", LatestKey(btc))
	assert.Equal(t, "pub:ind:summary:BTC-USDT:1H", Channel(btc))
}

func TestBufferedWriter_PassThrough(t *testing.T) {
	fw := newFakeWriter()
	bw := NewBufferedWriter(context.Background(), fw, NewCircuitBreaker(2, time.Second))

	require.NoError(t, bw.PublishSummary(context.Background(), btc, []byte(`{"a":1}`)))
	assert.Equal(t, []string{`{"a":1}`}, fw.get(btc))
	assert.Zero(t, bw.PendingCount())

	require.NoError(t, bw.Close())
	assert.True(t, fw.closed)
}

func TestBufferedWriter_BuffersLatestWhileOpenAndFlushes(t *testing.T) {
	fw := newFakeWriter()
	cb := NewCircuitBreaker(1, 30*time.Millisecond)
	bw := NewBufferedWriter(context.Background(), fw, cb)

	buffered := 0
	flushed := make(chan int, 1)
	bw.OnBuffer = func() { buffered++ }
	bw.OnFlush = func(n int) { flushed <- n }

	fw.setFail(true)
	assert.ErrorIs(t, bw.PublishSummary(context.Background(), btc, []byte("v1")), errFail)
	require.Equal(t, StateOpen, cb.CurrentState())

	// open: buffered, only the newest survives
	require.NoError(t, bw.PublishSummary(context.Background(), btc, []byte("v2")))
	require.NoError(t, bw.PublishSummary(context.Background(), btc, []byte("v3")))
	require.NoError(t, bw.PublishSummary(context.Background(), eth, []byte("e1")))
	assert.Equal(t, 3, buffered)
	assert.Equal(t, 2, bw.PendingCount())

	fw.setFail(false)
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, bw.PublishSummary(context.Background(), btc, []byte("v4")))

	select {
	case n := <-flushed:
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("expected flush after circuit closed")
	}
	// v3 was superseded by the recovery write and must not be replayed after it.
	assert.Equal(t, []string{"v4"}, fw.get(btc))
	assert.Equal(t, []string{"e1"}, fw.get(eth))
	assert.Zero(t, bw.PendingCount())
}

func TestBufferedWriter_RecoveryWriteIsNotOverwrittenByFlush(t *testing.T) {
	fw := newFakeWriter()
	cb := NewCircuitBreaker(1, 30*time.Millisecond)
	bw := NewBufferedWriter(context.Background(), fw, cb)

	fw.setFail(true)
	assert.ErrorIs(t, bw.PublishSummary(context.Background(), btc, []byte("v1")), errFail)
	require.NoError(t, bw.PublishSummary(context.Background(), btc, []byte("v2-stale")))
	require.Equal(t, 1, bw.PendingCount())

	fw.setFail(false)
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, bw.PublishSummary(context.Background(), btc, []byte("v3-fresh")))
	require.Equal(t, StateClosed, cb.CurrentState())

	// give the background flush a chance to run
	time.Sleep(50 * time.Millisecond)
	writes := fw.get(btc)
	require.NotEmpty(t, writes)
	assert.Equal(t, "v3-fresh", writes[len(writes)-1])
	assert.Equal(t, []string{"v3-fresh"}, writes)
	assert.Zero(t, bw.PendingCount())
}

func TestBufferedWriter_HooksFeedMetrics(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	fw := newFakeWriter()
	cb := NewCircuitBreaker(1, 30*time.Millisecond)
	bw := NewBufferedWriter(context.Background(), fw, cb)
	bw.OnBuffer = m.RedisBuffered.Inc
	bw.OnFlush = func(n int) { m.RedisFlushed.Add(float64(n)) }

	fw.setFail(true)
	assert.ErrorIs(t, bw.PublishSummary(context.Background(), btc, []byte("v1")), errFail)
	require.NoError(t, bw.PublishSummary(context.Background(), btc, []byte("v2")))
	require.NoError(t, bw.PublishSummary(context.Background(), eth, []byte("e1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RedisBuffered))

	fw.setFail(false)
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, bw.PublishSummary(context.Background(), btc, []byte("v3")))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.RedisFlushed) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"e1"}, fw.get(eth))
}
