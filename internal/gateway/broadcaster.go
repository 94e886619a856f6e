package gateway

import (
	"strconv"
	"time"
)

// Broadcaster constructs envelope JSON and sends it to clients.
type Broadcaster struct {
	hub *Hub
}

// NewBroadcaster creates a Broadcaster backed by the given Hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// Broadcast records data as the latest value of channel and sends
// {"channel":..,"data":..,"ts":..,"channel_seq":N} to every matching client.
// data must be valid JSON. Slow clients drop the envelope.
func (b *Broadcaster) Broadcast(channel string, data []byte) {
	now := time.Now().UTC()
	cp := make([]byte, len(data))
	copy(cp, data)

	// Push under the same lock that assigns seq: replay entries must be in seq order.
	b.hub.mu.Lock()
	b.hub.channelSeqs[channel]++
	seq := b.hub.channelSeqs[channel]
	b.hub.latest[channel] = latestEntry{Data: cp, TS: now, Seq: seq}
	rb, exists := b.hub.replayBufs[channel]
	if !exists {
		rb = NewReplayBuffer(replayCapacity)
		b.hub.replayBufs[channel] = rb
	}
	buf := buildEnvelope(channel, cp, now, seq, false)
	rb.Push(seq, buf)
	b.hub.mu.Unlock()

	dropped := 0
	b.hub.mu.RLock()
	for client := range b.hub.clients {
		if !client.wants(channel) {
			continue
		}
		select {
		case client.send <- buf:
		default:
			dropped++
		}
	}
	b.hub.mu.RUnlock()

	if dropped > 0 && b.hub.metrics != nil {
		b.hub.metrics.WSDropped.Add(float64(dropped))
	}
}

// buildEnvelope hand-crafts the envelope JSON around an already-encoded payload.
func buildEnvelope(channel string, data []byte, ts time.Time, seq int64, initial bool) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+128)
	buf = append(buf, `{"channel":`...)
	buf = strconv.AppendQuote(buf, channel)
	buf = append(buf, `,"data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = ts.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","channel_seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	if initial {
		buf = append(buf, `,"initial":true`...)
	}
	buf = append(buf, '}')
	return buf
}
