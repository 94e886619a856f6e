// Package gateway fans indicator summaries out to WebSocket clients.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ta-snapshot/internal/metrics"
	"ta-snapshot/internal/model"
)

const (
	sendQueueSize  = 64
	replayCapacity = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Channel is the channel name a series' summaries are broadcast on.
// It matches the Redis pub/sub channel so clients can use either transport.
func Channel(key model.SeriesKey) string {
	return "pub:ind:summary:" + key.InstID + ":" + key.Bar
}

// Hub manages WebSocket clients and keeps the latest payload per channel.
// It implements model.SummaryPublisher.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]bool
	latest      map[string]latestEntry
	channelSeqs map[string]int64
	replayBufs  map[string]*ReplayBuffer
	closed      bool

	broadcaster *Broadcaster
	metrics     *metrics.Metrics // may be nil
}

type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
	Seq  int64
}

// NewHub creates an empty hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	h := &Hub{
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
		metrics:     m,
	}
	h.broadcaster = NewBroadcaster(h)
	return h
}

// PublishSummary broadcasts payload on the series channel.
func (h *Hub) PublishSummary(_ context.Context, key model.SeriesKey, payload []byte) error {
	h.broadcaster.Broadcast(Channel(key), payload)
	return nil
}

// ServeHTTP upgrades the request to a WebSocket and registers the client.
// Optional query parameters: since (RFC3339Nano) skips initial entries not
// newer than it; channel (repeatable) restricts delivery to those channels.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	h.Register(conn, r.URL.Query().Get("since"), r.URL.Query()["channel"])
}

// Register attaches an upgraded connection to the hub.
func (h *Hub) Register(conn *websocket.Conn, since string, channels []string) {
	client := newClient(h, conn, channels)
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.setClientGauge(count)
	slog.Info("ws client connected", slog.Int("clients", count))

	client.sendInitialState(since)
	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub. Safe to call more than once.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()

	h.setClientGauge(count)
	slog.Info("ws client disconnected", slog.Int("clients", count))
}

// LatestAll returns a snapshot of the latest payload per channel.
func (h *Hub) LatestAll() map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string]json.RawMessage, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v.Data
	}
	return cp
}

// ReplayRange returns buffered envelopes for channel with seq in [fromSeq, toSeq].
func (h *Hub) ReplayRange(channel string, fromSeq, toSeq int64) [][]byte {
	h.mu.RLock()
	rb, exists := h.replayBufs[channel]
	h.mu.RUnlock()
	if !exists {
		return nil
	}
	entries := rb.Range(fromSeq, toSeq)
	result := make([][]byte, len(entries))
	for i, e := range entries {
		result[i] = e.Data
	}
	return result
}

// HandleReplay serves GET /ws/replay?channel=&from=&to= as a JSON array of
// envelopes, for clients that detected a channel_seq gap.
func (h *Hub) HandleReplay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	channel := q.Get("channel")
	from, errFrom := strconv.ParseInt(q.Get("from"), 10, 64)
	to, errTo := strconv.ParseInt(q.Get("to"), 10, 64)
	if channel == "" || errFrom != nil || errTo != nil || from > to {
		http.Error(w, "channel, from and to are required (from <= to)", http.StatusBadRequest)
		return
	}

	envs := h.ReplayRange(channel, from, to)
	out := make([]json.RawMessage, len(envs))
	for i, e := range envs {
		out[i] = e
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// ChannelSeq returns the current sequence number for a channel.
func (h *Hub) ChannelSeq(channel string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[channel]
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.RemoveClient(c)
	}
	return nil
}

func (h *Hub) setClientGauge(n int) {
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(n))
	}
}
