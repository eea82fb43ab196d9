package ws

import (
	"errors"
	"testing"
	"time"

	"github.com/logista/realtime-bridge/server/internal/auth"
	"github.com/logista/realtime-bridge/server/internal/heartbeat"
)

func testSession(buf int, rate float64) *Session {
	opts := Options{SendBuffer: buf, MaxMessageRate: rate}
	opts.setDefaults()
	return newSession(nil, "id-1", auth.Identity{Sender: "s", Channel: "c"}, time.Unix(0, 0), &opts)
}

func TestSession_SendFullBufferDrops(t *testing.T) {
	s := testSession(2, 0)
	for i := 0; i < 2; i++ {
		if err := s.Send([]byte("x")); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}
	if err := s.Send([]byte("x")); !errors.Is(err, ErrSendBufferFull) {
		t.Errorf("got %v, want ErrSendBufferFull", err)
	}
}

func TestSession_PingNotDoubled(t *testing.T) {
	s := testSession(1, 0)
	s.Ping()
	s.Ping()
	if got := len(s.ping); got != 1 {
		t.Errorf("queued pings: got %d, want 1", got)
	}
}

func TestSession_PongClearsPending(t *testing.T) {
	s := testSession(1, 0)
	if s.MarkPending() {
		t.Fatal("new session should start alive")
	}
	if s.State() != heartbeat.Pending {
		t.Fatalf("got %v, want PENDING", s.State())
	}
	s.Ack()
	if s.State() != heartbeat.Alive {
		t.Errorf("got %v, want ALIVE", s.State())
	}
}

func TestSession_Participant(t *testing.T) {
	p := testSession(1, 0).Participant()
	if p.ClientID != "id-1" || p.Sender != "s" || p.Channel != "c" {
		t.Errorf("got %+v", p)
	}
	if p.ConnectedAt != "1970-01-01T00:00:00.000Z" {
		t.Errorf("connectedAt: got %q", p.ConnectedAt)
	}
}

func TestSession_RateLimit(t *testing.T) {
	if !testSession(1, 0).allow() {
		t.Error("unlimited session rejected a frame")
	}
	s := testSession(1, 0.001)
	if !s.allow() {
		t.Fatal("first frame should pass")
	}
	if s.allow() {
		t.Error("second frame should be limited")
	}
}

func TestEvictPeriod(t *testing.T) {
	cases := map[time.Duration]time.Duration{
		0:                time.Minute,
		time.Second:      time.Second,
		10 * time.Minute: 5 * time.Minute,
	}
	for ttl, want := range cases {
		if got := evictPeriod(ttl); got != want {
			t.Errorf("evictPeriod(%v): got %v, want %v", ttl, got, want)
		}
	}
}
