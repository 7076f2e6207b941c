package events

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"vaultswap/core/types"
)

const hubHistoryLimit = 2048

// StreamEvent is a committed event tagged with a monotonically increasing
// sequence so subscribers can resume from a cursor.
type StreamEvent struct {
	Sequence uint64       `json:"sequence"`
	Cursor   string       `json:"cursor"`
	Event    *types.Event `json:"event"`
}

// Hub retains a bounded history of committed events and fans them out to live
// subscribers. Slow subscribers miss events rather than blocking emitters.
type Hub struct {
	mu      sync.Mutex
	seq     uint64
	nextID  uint64
	subs    map[uint64]chan StreamEvent
	history []StreamEvent
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan StreamEvent)}
}

// Emit implements Emitter.
func (h *Hub) Emit(evt Event) {
	payload := Payload(evt)
	if h == nil || payload == nil {
		return
	}

	h.mu.Lock()
	h.seq++
	entry := StreamEvent{
		Sequence: h.seq,
		Cursor:   strconv.FormatUint(h.seq, 10),
		Event:    payload.Clone(),
	}
	h.history = append(h.history, entry)
	if len(h.history) > hubHistoryLimit {
		excess := len(h.history) - hubHistoryLimit
		trimmed := make([]StreamEvent, hubHistoryLimit)
		copy(trimmed, h.history[excess:])
		h.history = trimmed
	}
	for _, ch := range h.subs {
		select {
		case ch <- StreamEvent{Sequence: entry.Sequence, Cursor: entry.Cursor, Event: entry.Event.Clone()}:
		default:
		}
	}
	h.mu.Unlock()
}

// Subscribe registers a subscriber and returns the live channel, a cancel
// function, and the retained events after cursor.
func (h *Hub) Subscribe(ctx context.Context, cursor string) (<-chan StreamEvent, func(), []StreamEvent) {
	updates := make(chan StreamEvent, 32)

	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		if parsed, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
			since = parsed
		}
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = updates
	backlog := make([]StreamEvent, 0, len(h.history))
	for _, entry := range h.history {
		if entry.Sequence > since {
			backlog = append(backlog, StreamEvent{Sequence: entry.Sequence, Cursor: entry.Cursor, Event: entry.Event.Clone()})
		}
	}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
			h.mu.Unlock()
		})
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return updates, cancel, backlog
}
