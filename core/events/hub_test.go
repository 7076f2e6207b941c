package events

import (
	"context"
	"testing"
	"time"

	"vaultswap/core/types"
)

func TestHubBacklogAndLiveDelivery(t *testing.T) {
	hub := NewHub()
	hub.Emit(&types.Event{Type: "escrow.created", Attributes: map[string]string{"identifier": "a"}})
	hub.Emit(&types.Event{Type: "escrow.cancelled", Attributes: map[string]string{"identifier": "a"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	live, stop, backlog := hub.Subscribe(ctx, "1")
	defer stop()

	if len(backlog) != 1 || backlog[0].Event.Type != "escrow.cancelled" {
		t.Fatalf("unexpected backlog %+v", backlog)
	}

	hub.Emit(&types.Event{Type: "escrow.exchanged"})
	select {
	case got := <-live:
		if got.Sequence != 3 || got.Event.Type != "escrow.exchanged" {
			t.Fatalf("unexpected live event %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for live event")
	}
}

func TestBufferFlushesOnlyOnCommit(t *testing.T) {
	hub := NewHub()
	var buf Buffer
	buf.Emit(&types.Event{Type: "dropped"})
	buf.Reset()
	buf.Emit(&types.Event{Type: "kept"})
	buf.Flush(hub)

	_, stop, backlog := hub.Subscribe(context.Background(), "")
	defer stop()
	if len(backlog) != 1 || backlog[0].Event.Type != "kept" {
		t.Fatalf("unexpected backlog %+v", backlog)
	}
	if len(buf.Events()) != 0 {
		t.Fatalf("buffer not emptied after flush")
	}
}
