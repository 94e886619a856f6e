package gateway

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// channels the client wants; empty means all
	subMu sync.RWMutex
	subs  map[string]bool
}

// clientMsg is the only inbound message shape:
//
//	{"type":"subscribe","channels":["pub:ind:summary:BTC-USDT:1H"]}
//	{"type":"unsubscribe","channels":[...]}
//	{"type":"ping","ping":1700000000000}
type clientMsg struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
	Ping     int64    `json:"ping"`
}

func newClient(h *Hub, conn *websocket.Conn, channels []string) *Client {
	c := &Client{
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		hub:  h,
		subs: make(map[string]bool),
	}
	for _, ch := range channels {
		c.subs[ch] = true
	}
	return c
}

func (c *Client) wants(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subs) == 0 || c.subs[channel]
}

// sendInitialState queues the latest envelope of every wanted channel,
// oldest first.
func (c *Client) sendInitialState(since string) {
	var cutoff time.Time
	if since != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, since); err == nil {
			cutoff = parsed
		}
	}

	type item struct {
		channel string
		entry   latestEntry
	}
	c.hub.mu.RLock()
	items := make([]item, 0, len(c.hub.latest))
	for channel, entry := range c.hub.latest {
		if !cutoff.IsZero() && !entry.TS.After(cutoff) {
			continue
		}
		if !c.wants(channel) {
			continue
		}
		items = append(items, item{channel, entry})
	}
	c.hub.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].entry.TS.Before(items[j].entry.TS) })
	for _, it := range items {
		c.trySend(buildEnvelope(it.channel, it.entry.Data, it.entry.TS, it.entry.Seq, true))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMsg
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}

		switch msg.Type {
		case "subscribe":
			c.subMu.Lock()
			for _, ch := range msg.Channels {
				c.subs[ch] = true
			}
			c.subMu.Unlock()
		case "unsubscribe":
			c.subMu.Lock()
			for _, ch := range msg.Channels {
				delete(c.subs, ch)
			}
			c.subMu.Unlock()
		case "ping":
			pong, _ := json.Marshal(map[string]interface{}{
				"type":      "pong",
				"ping":      msg.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
			c.trySend(pong)
		}
	}
}

// trySend queues msg unless the client was already removed.
func (c *Client) trySend(msg []byte) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
