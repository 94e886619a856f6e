package gateway

import "sync"

// replayEntry holds one broadcast envelope.
type replayEntry struct {
	Seq  int64
	Data []byte
}

// ReplayBuffer keeps the most recent envelopes of one channel so clients
// can backfill a channel_seq gap. Seqs are pushed in increasing order.
type ReplayBuffer struct {
	mu      sync.RWMutex
	entries []replayEntry // ring storage
	start   int           // index of the oldest entry
	size    int
}

// NewReplayBuffer creates a replay buffer with the given capacity.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = replayCapacity
	}
	return &ReplayBuffer{entries: make([]replayEntry, capacity)}
}

// Push appends an envelope, evicting the oldest when full.
// data must not be modified afterwards.
func (rb *ReplayBuffer) Push(seq int64, data []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(rb.entries)
	if rb.size < n {
		rb.entries[(rb.start+rb.size)%n] = replayEntry{Seq: seq, Data: data}
		rb.size++
		return
	}
	rb.entries[rb.start] = replayEntry{Seq: seq, Data: data}
	rb.start = (rb.start + 1) % n
}

// Range returns entries with seq in [fromSeq, toSeq], oldest first.
func (rb *ReplayBuffer) Range(fromSeq, toSeq int64) []replayEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var out []replayEntry
	n := len(rb.entries)
	for i := 0; i < rb.size; i++ {
		e := rb.entries[(rb.start+i)%n]
		if e.Seq > toSeq {
			break
		}
		if e.Seq >= fromSeq {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of buffered envelopes.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size
}
