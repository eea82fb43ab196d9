package ws

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/logista/realtime-bridge/pkg/envelope"
	"github.com/logista/realtime-bridge/server/internal/auth"
	"github.com/logista/realtime-bridge/server/internal/heartbeat"
	"github.com/logista/realtime-bridge/server/internal/metrics"
	"github.com/logista/realtime-bridge/server/internal/room"
)

// writeTimeout is the deadline for a single write to a client.
const writeTimeout = 10 * time.Second

// ErrSendBufferFull is returned by Session.Send when the client is not
// draining its outgoing queue fast enough. The frame is dropped.
var ErrSendBufferFull = errors.New("ws: send buffer full")

// Session is one admitted connection. Identity fields are fixed at admission.
// Membership and the send queue are driven by the hub loop; the pumps run in
// their own goroutines.
type Session struct {
	heartbeat.Liveness

	id          string
	sender      string
	channel     string
	verified    bool // sender came from a verified token
	connectedAt time.Time

	conn    *websocket.Conn
	send    chan []byte
	ping    chan struct{}
	limiter *rate.Limiter
	metrics *metrics.Metrics

	// room is set by the hub loop on admission and only read there.
	room *room.Room

	writeFailed atomic.Bool
}

var (
	_ room.Member      = (*Session)(nil)
	_ heartbeat.Target = (*Session)(nil)
)

func newSession(conn *websocket.Conn, id string, who auth.Identity, now time.Time, opts *Options) *Session {
	s := &Session{
		id:          id,
		sender:      who.Sender,
		channel:     who.Channel,
		verified:    who.Verified,
		connectedAt: now,
		conn:        conn,
		send:        make(chan []byte, opts.SendBuffer),
		ping:        make(chan struct{}, 1),
		metrics:     opts.Metrics,
	}
	if opts.MaxMessageRate > 0 {
		burst := int(opts.MaxMessageRate)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.MaxMessageRate), burst)
	}
	return s
}

// ClientID implements room.Member.
func (s *Session) ClientID() string { return s.id }

// Sender returns the display identity the session was admitted with.
func (s *Session) Sender() string { return s.sender }

// Channel returns the room the session belongs to.
func (s *Session) Channel() string { return s.channel }

// Participant implements room.Member.
func (s *Session) Participant() envelope.Participant {
	return envelope.Participant{
		ClientID:    s.id,
		Sender:      s.sender,
		Channel:     s.channel,
		ConnectedAt: envelope.FormatTime(s.connectedAt),
	}
}

// Send implements room.Member. It never blocks.
func (s *Session) Send(data []byte) error {
	select {
	case s.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Ping implements heartbeat.Target. A probe already queued is not doubled.
func (s *Session) Ping() {
	select {
	case s.ping <- struct{}{}:
	default:
	}
}

// Terminate implements heartbeat.Target. Closing the socket fails the
// pending read, which runs the normal disconnect path.
func (s *Session) Terminate() {
	s.conn.Close()
}

// allow applies the inbound rate limit, if any.
func (s *Session) allow() bool {
	return s.limiter == nil || s.limiter.Allow()
}

// writePump drains the send queue and the ping slot until the hub closes the
// send channel. A failed write is logged once and counted; the session stays
// registered until its read side reports the disconnect.
func (s *Session) writePump() {
	defer s.conn.Close()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, //nolint:errcheck
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.failed(err)
			}

		case <-s.ping:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				s.failed(err)
			}
		}
	}
}

func (s *Session) failed(err error) {
	s.metrics.DeliveriesFailed.Inc()
	if s.writeFailed.Swap(true) {
		return
	}
	slog.Warn("ws: write failed",
		"client_id", s.id,
		"channel", s.channel,
		"err", err,
	)
}
