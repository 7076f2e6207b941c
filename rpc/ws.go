package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"vaultswap/core/events"
)

const (
	wsWriteTimeout = 10 * time.Second
)

// handleEventsWS streams committed events. ?cursor resumes after a sequence
// and ?types restricts the stream to a comma-separated list of event types.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.allow(s.clientSource(r)) {
		s.metrics.RecordThrottle("rate_limit")
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))
	filter := parseTypeFilter(r.URL.Query().Get("types"))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, cursor, filter); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func parseTypeFilter(raw string) map[string]struct{} {
	var filter map[string]struct{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			if filter == nil {
				filter = make(map[string]struct{})
			}
			filter[part] = struct{}{}
		}
	}
	return filter
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, cursor string, filter map[string]struct{}) error {
	updates, cancel, backlog := s.node.Events().Subscribe(ctx, cursor)
	defer cancel()

	for _, evt := range backlog {
		if err := writeStreamEvent(ctx, conn, evt, filter); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeStreamEvent(ctx, conn, evt, filter); err != nil {
				return err
			}
		}
	}
}

func writeStreamEvent(ctx context.Context, conn *websocket.Conn, evt events.StreamEvent, filter map[string]struct{}) error {
	if filter != nil {
		if _, ok := filter[evt.Event.EventType()]; !ok {
			return nil
		}
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
