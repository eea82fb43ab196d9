package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/logista/realtime-bridge/pkg/envelope"
	"github.com/logista/realtime-bridge/server/internal/auth"
	"github.com/logista/realtime-bridge/server/internal/heartbeat"
	"github.com/logista/realtime-bridge/server/internal/metrics"
	"github.com/logista/realtime-bridge/server/internal/room"
)

// ErrClosed is returned by hub queries once Run has returned.
var ErrClosed = errors.New("ws: hub closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins; apply CORS at the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Options configures a Hub. Zero fields take the defaults noted.
type Options struct {
	HistoryLimit    int           // messages kept per room (50)
	Heartbeat       time.Duration // liveness sweep period (30s)
	RoomIdleTTL     time.Duration // 0 keeps empty rooms forever
	SendBuffer      int           // per-session outgoing queue depth (64)
	MaxMessageBytes int64         // inbound frame size limit (64 KiB)
	MaxMessageRate  float64       // inbound frames/s per session, 0 = unlimited

	// Resolver derives identity from the upgrade request. Defaults to
	// auth.QueryResolver with channel "admin-logista".
	Resolver auth.Resolver

	Metrics *metrics.Metrics
	Now     func() time.Time
}

func (o *Options) setDefaults() {
	if o.HistoryLimit < 1 {
		o.HistoryLimit = 50
	}
	if o.Heartbeat <= 0 {
		o.Heartbeat = heartbeat.DefaultInterval
	}
	if o.SendBuffer < 1 {
		o.SendBuffer = 64
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 64 << 10
	}
	if o.Resolver == nil {
		o.Resolver = auth.QueryResolver{DefaultChannel: "admin-logista"}
	}
	if o.Metrics == nil {
		o.Metrics = metrics.New()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

type frame struct {
	s  *Session
	in envelope.Inbound
}

// Hub owns every room. All room, membership and history mutation happens on
// the single goroutine running Run; connections talk to it over channels.
type Hub struct {
	opts    Options
	started time.Time

	register   chan *Session
	unregister chan *Session
	inbound    chan frame
	calls      chan func()
	done       chan struct{}

	// Owned by the Run goroutine.
	rooms    *room.Registry
	sessions map[*Session]struct{}
	idleTTL  time.Duration
	evict    *time.Ticker
}

// New creates a Hub. Call Run to start it.
func New(opts Options) *Hub {
	opts.setDefaults()
	return &Hub{
		opts:       opts,
		started:    opts.Now(),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		inbound:    make(chan frame),
		calls:      make(chan func()),
		done:       make(chan struct{}),
		rooms:      room.NewRegistry(opts.HistoryLimit, opts.Now),
		sessions:   make(map[*Session]struct{}),
		idleTTL:    opts.RoomIdleTTL,
	}
}

// Run processes connection events, inbound frames and the heartbeat and
// eviction ticks until ctx is cancelled, then closes every session.
func (h *Hub) Run(ctx context.Context) {
	hb := time.NewTicker(h.opts.Heartbeat)
	defer hb.Stop()
	h.evict = time.NewTicker(evictPeriod(h.idleTTL))
	defer h.evict.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case s := <-h.register:
			h.onConnect(s)
		case s := <-h.unregister:
			h.onDisconnect(s)
		case f := <-h.inbound:
			h.onMessage(f.s, f.in)
		case fn := <-h.calls:
			fn()
		case <-hb.C:
			h.sweep()
		case <-h.evict.C:
			h.evictIdle()
		}
	}
}

// ServeHTTP resolves the caller's identity, upgrades the connection and
// serves the session until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	who, err := h.opts.Resolver.Resolve(r)
	if err != nil {
		status, reason := http.StatusUnauthorized, "unauthenticated"
		if errors.Is(err, auth.ErrForbidden) {
			status, reason = http.StatusForbidden, "forbidden"
		}
		h.opts.Metrics.ConnectionsRejected.WithLabelValues(reason).Inc()
		slog.Info("ws: connection rejected", "remote", r.RemoteAddr, "err", err)
		http.Error(w, http.StatusText(status), status)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		h.opts.Metrics.ConnectionsRejected.WithLabelValues("upgrade").Inc()
		return
	}
	conn.SetReadLimit(h.opts.MaxMessageBytes)

	s := newSession(conn, uuid.NewString(), who, h.opts.Now(), &h.opts)
	select {
	case h.register <- s:
	case <-h.done:
		conn.Close()
		return
	}

	go s.writePump()
	h.readPump(s) // blocks until the connection closes
}

// readPump decodes inbound frames and hands them to the loop. Any read error,
// including an oversized frame, ends the session.
func (h *Hub) readPump(s *Session) {
	defer func() {
		select {
		case h.unregister <- s:
		case <-h.done:
		}
	}()

	s.conn.SetPongHandler(func(string) error {
		s.Ack()
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("ws: read failed", "client_id", s.id, "err", err)
			}
			return
		}
		if !s.allow() {
			h.opts.Metrics.FramesDropped.WithLabelValues(metrics.ReasonRateLimited).Inc()
			continue
		}
		in, err := envelope.Decode(data)
		if err != nil {
			reason := metrics.ReasonMalformed
			if errors.Is(err, envelope.ErrUnknownType) {
				reason = metrics.ReasonUnknownType
			}
			h.opts.Metrics.FramesDropped.WithLabelValues(reason).Inc()
			slog.Debug("ws: frame ignored", "client_id", s.id, "err", err)
			continue
		}

		select {
		case h.inbound <- frame{s: s, in: in}:
		case <-h.done:
			return
		}
	}
}

// --- loop handlers ----------------------------------------------------------

func (h *Hub) onConnect(s *Session) {
	r, created := h.rooms.GetOrCreate(s.channel)
	if created {
		h.opts.Metrics.RoomsActive.Set(float64(h.rooms.Len()))
	}
	r.Add(s)
	s.room = r
	h.sessions[s] = struct{}{}

	// The new session is already a member, so it appears in its own snapshot.
	welcome := envelope.NewSystemInfo(s.id, r.Name(), r.History(), r.Participants())
	if err := room.SendTo(s, welcome); err != nil {
		h.opts.Metrics.DeliveriesFailed.Inc()
		slog.Warn("ws: welcome not delivered", "client_id", s.id, "err", err)
	}
	h.broadcast(r, envelope.NewUserJoined(s.Participant()), s)

	h.opts.Metrics.ConnectionsTotal.Inc()
	h.opts.Metrics.ConnectionsActive.Set(float64(len(h.sessions)))
	slog.Info("ws: session connected",
		"client_id", s.id,
		"sender", s.sender,
		"channel", s.channel,
		"members", r.Len(),
	)
}

func (h *Hub) onMessage(s *Session, in envelope.Inbound) {
	if _, ok := h.sessions[s]; !ok {
		return
	}
	h.opts.Metrics.FramesReceived.WithLabelValues(string(in.Type)).Inc()

	switch in.Type {
	case envelope.TypePing:
		if err := room.SendTo(s, envelope.NewPong(h.opts.Now())); err != nil {
			h.opts.Metrics.DeliveriesFailed.Inc()
		}
	case envelope.TypeMessage:
		msg := envelope.Normalize(in.Draft, envelope.Defaults{
			Sender:      s.sender,
			Channel:     s.channel,
			Now:         h.opts.Now(),
			NewID:       uuid.NewString,
			ForceSender: s.verified,
		})
		if n := s.room.Append(msg); n > 0 {
			h.opts.Metrics.HistoryEvicted.Add(float64(n))
		}
		// No exclusion: the sender gets its own message back as confirmation.
		h.broadcast(s.room, envelope.NewMessage(msg), nil)
	}
}

func (h *Hub) onDisconnect(s *Session) {
	if _, ok := h.sessions[s]; !ok {
		return
	}
	delete(h.sessions, s)
	s.room.Remove(s)
	close(s.send)

	now := h.opts.Now()
	h.broadcast(s.room, envelope.NewUserLeft(envelope.Departure{
		ClientID: s.id,
		Sender:   s.sender,
		Channel:  s.channel,
		LeftAt:   envelope.FormatTime(now),
	}), s)

	h.opts.Metrics.ConnectionsActive.Set(float64(len(h.sessions)))
	h.opts.Metrics.ConnectionDuration.Observe(now.Sub(s.connectedAt).Seconds())
	slog.Info("ws: session disconnected",
		"client_id", s.id,
		"channel", s.channel,
		"members", s.room.Len(),
	)
}

func (h *Hub) broadcast(r *room.Room, e envelope.Envelope, exclude *Session) {
	var ex room.Member
	if exclude != nil {
		ex = exclude
	}
	d, err := room.Broadcast(r, e, ex)
	if err != nil {
		slog.Error("ws: broadcast failed", "channel", r.Name(), "type", e.Type, "err", err)
		return
	}
	h.opts.Metrics.Broadcasts.WithLabelValues(string(e.Type)).Inc()
	if d.Failed > 0 {
		h.opts.Metrics.DeliveriesFailed.Add(float64(d.Failed))
	}
}

func (h *Hub) sweep() {
	targets := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		targets = append(targets, s)
	}
	res := heartbeat.Sweep(targets)
	h.opts.Metrics.HeartbeatProbes.Add(float64(res.Probed))
	if res.Terminated > 0 {
		h.opts.Metrics.HeartbeatTerminations.Add(float64(res.Terminated))
		slog.Info("ws: heartbeat terminated sessions", "count", res.Terminated)
	}
}

func (h *Hub) evictIdle() {
	removed := h.rooms.EvictIdle(h.opts.Now(), h.idleTTL)
	if len(removed) == 0 {
		return
	}
	h.opts.Metrics.RoomsEvicted.Add(float64(len(removed)))
	h.opts.Metrics.RoomsActive.Set(float64(h.rooms.Len()))
	slog.Info("ws: idle rooms evicted", "channels", removed)
}

func (h *Hub) closeAll() {
	for s := range h.sessions {
		s.room.Remove(s)
		close(s.send)
		delete(h.sessions, s)
	}
	h.opts.Metrics.ConnectionsActive.Set(0)
}

// evictPeriod is how often idle rooms are checked for a given TTL.
func evictPeriod(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return time.Minute
	}
	if p := ttl / 2; p > time.Second {
		return p
	}
	return time.Second
}
