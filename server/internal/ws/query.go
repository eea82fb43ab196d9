package ws

import (
	"context"
	"time"

	"github.com/logista/realtime-bridge/pkg/envelope"
)

// Stats is a point-in-time summary of the hub.
type Stats struct {
	Rooms       int
	Connections int
	Started     time.Time
}

// ChannelSummary describes one room without its contents.
type ChannelSummary struct {
	Name       string
	Members    int
	HistoryLen int
	// IdleSince is when the room last became empty; zero while occupied.
	IdleSince time.Time
}

// ChannelDetail is a snapshot of one room.
type ChannelDetail struct {
	Name         string
	Participants []envelope.Participant
	History      []envelope.Message
}

// do runs fn on the hub loop and waits for it to finish.
func (h *Hub) do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	select {
	case h.calls <- func() { fn(); close(ran) }:
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-ran
	return nil
}

// Stats returns room and connection counts.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Started: h.started}
	err := h.do(ctx, func() {
		st.Rooms = h.rooms.Len()
		st.Connections = len(h.sessions)
	})
	return st, err
}

// Channels lists every room, sorted by name.
func (h *Hub) Channels(ctx context.Context) ([]ChannelSummary, error) {
	var out []ChannelSummary
	err := h.do(ctx, func() {
		rooms := h.rooms.Rooms()
		out = make([]ChannelSummary, 0, len(rooms))
		for _, r := range rooms {
			cs := ChannelSummary{Name: r.Name(), Members: r.Len(), HistoryLen: r.HistoryLen()}
			if since, idle := r.IdleSince(); idle {
				cs.IdleSince = since
			}
			out = append(out, cs)
		}
	})
	return out, err
}

// Channel returns a snapshot of the named room. ok is false if no such room
// exists.
func (h *Hub) Channel(ctx context.Context, name string) (d ChannelDetail, ok bool, err error) {
	err = h.do(ctx, func() {
		r, found := h.rooms.Get(name)
		if !found {
			return
		}
		ok = true
		d = ChannelDetail{Name: r.Name(), Participants: r.Participants(), History: r.History()}
	})
	return d, ok, err
}

// SetHistoryLimit changes the per-room history capacity, trimming existing
// histories to the newest entries.
func (h *Hub) SetHistoryLimit(ctx context.Context, limit int) error {
	return h.do(ctx, func() {
		if n := h.rooms.SetHistoryLimit(limit); n > 0 {
			h.opts.Metrics.HistoryEvicted.Add(float64(n))
		}
	})
}

// SetRoomIdleTTL changes how long an empty room is kept. 0 disables eviction.
func (h *Hub) SetRoomIdleTTL(ctx context.Context, ttl time.Duration) error {
	return h.do(ctx, func() {
		h.idleTTL = ttl
		h.evict.Reset(evictPeriod(ttl))
	})
}
