package room

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/logista/realtime-bridge/pkg/envelope"
)

// --- helpers ----------------------------------------------------------------

type fakeMember struct {
	id     string
	fail   bool
	frames [][]byte
}

func (f *fakeMember) ClientID() string { return f.id }

func (f *fakeMember) Participant() envelope.Participant {
	return envelope.Participant{ClientID: f.id, Sender: "user-" + f.id, Channel: "orders"}
}

func (f *fakeMember) Send(data []byte) error {
	if f.fail {
		return errors.New("transport closed")
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeMember) types(t *testing.T) []string {
	t.Helper()
	out := make([]string, 0, len(f.frames))
	for _, fr := range f.frames {
		var e struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(fr, &e); err != nil {
			t.Fatalf("unmarshal frame %s: %v", fr, err)
		}
		out = append(out, e.Type)
	}
	return out
}

func msg(body string) envelope.Message {
	return envelope.Message{ID: body, Body: body, Channel: "orders", Meta: map[string]any{}}
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

// --- history ----------------------------------------------------------------

func TestHistory_BoundedFIFO(t *testing.T) {
	for _, limit := range []int{1, 2, 5, 50} {
		for n := 0; n <= 2*limit+1; n++ {
			h := NewHistory(limit)
			for i := 0; i < n; i++ {
				h.Append(msg(fmt.Sprintf("m%d", i)))
			}
			want := min(n, limit)
			if h.Len() != want {
				t.Fatalf("limit=%d n=%d: len got %d, want %d", limit, n, h.Len(), want)
			}
			snap := h.Snapshot()
			for i, m := range snap {
				if exp := fmt.Sprintf("m%d", n-want+i); m.ID != exp {
					t.Fatalf("limit=%d n=%d: entry %d got %s, want %s", limit, n, i, m.ID, exp)
				}
			}
		}
	}
}

func TestHistory_AppendReportsEvictions(t *testing.T) {
	h := NewHistory(2)
	if n := h.Append(msg("a")); n != 0 {
		t.Errorf("evicted: got %d, want 0", n)
	}
	h.Append(msg("b"))
	if n := h.Append(msg("c")); n != 1 {
		t.Errorf("evicted: got %d, want 1", n)
	}
}

func TestHistory_SetLimitShrinks(t *testing.T) {
	h := NewHistory(5)
	for _, b := range []string{"a", "b", "c", "d"} {
		h.Append(msg(b))
	}
	if n := h.SetLimit(2); n != 2 {
		t.Errorf("evicted: got %d, want 2", n)
	}
	snap := h.Snapshot()
	if len(snap) != 2 || snap[0].ID != "c" || snap[1].ID != "d" {
		t.Errorf("snapshot: got %+v, want [c d]", snap)
	}
}

func TestHistory_SnapshotIsCopy(t *testing.T) {
	h := NewHistory(3)
	h.Append(msg("a"))
	snap := h.Snapshot()
	snap[0].Body = "changed"
	if h.Snapshot()[0].Body != "a" {
		t.Error("snapshot aliases history storage")
	}
}

func TestHistory_ZeroLimitClampedToOne(t *testing.T) {
	h := NewHistory(0)
	h.Append(msg("a"))
	h.Append(msg("b"))
	if h.Len() != 1 || h.Limit() != 1 {
		t.Errorf("len=%d limit=%d, want 1/1", h.Len(), h.Limit())
	}
}

// --- room & registry --------------------------------------------------------

func TestRegistry_GetOrCreateIsIdempotent(t *testing.T) {
	g := NewRegistry(50, nil)
	a, created := g.GetOrCreate("orders")
	if !created {
		t.Error("first call: created=false, want true")
	}
	b, created := g.GetOrCreate("orders")
	if created {
		t.Error("second call: created=true, want false")
	}
	if a != b {
		t.Error("GetOrCreate returned different rooms for the same name")
	}
	if a.HistoryLen() != 0 || a.Len() != 0 {
		t.Errorf("new room not empty: history=%d members=%d", a.HistoryLen(), a.Len())
	}
	if g.Len() != 1 {
		t.Errorf("Len: got %d, want 1", g.Len())
	}
}

func TestRegistry_RoomsSortedByName(t *testing.T) {
	g := NewRegistry(10, nil)
	for _, n := range []string{"zeta", "alpha", "mid"} {
		g.GetOrCreate(n)
	}
	rooms := g.Rooms()
	if rooms[0].Name() != "alpha" || rooms[1].Name() != "mid" || rooms[2].Name() != "zeta" {
		t.Errorf("order: got %s,%s,%s", rooms[0].Name(), rooms[1].Name(), rooms[2].Name())
	}
}

func TestRoom_AddRemoveMembership(t *testing.T) {
	g := NewRegistry(10, nil)
	r, _ := g.GetOrCreate("orders")
	a, b := &fakeMember{id: "a"}, &fakeMember{id: "b"}

	if !r.Add(a) || !r.Add(b) {
		t.Fatal("Add returned false for new member")
	}
	if r.Add(a) {
		t.Error("Add of existing member returned true")
	}
	if r.Len() != 2 {
		t.Errorf("Len: got %d, want 2", r.Len())
	}
	p := r.Participants()
	if len(p) != 2 || p[0].ClientID != "a" || p[1].ClientID != "b" {
		t.Errorf("participants: got %+v", p)
	}
	if !r.Remove(a) {
		t.Error("Remove returned false for member")
	}
	if r.Remove(a) {
		t.Error("second Remove returned true")
	}
	if r.Has(a) || !r.Has(b) {
		t.Error("membership wrong after Remove")
	}
}

func TestRegistry_EvictIdle(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	g := NewRegistry(10, c.now)

	busy, _ := g.GetOrCreate("busy")
	busy.Add(&fakeMember{id: "x"})
	left, _ := g.GetOrCreate("left")
	m := &fakeMember{id: "y"}
	left.Add(m)

	c.t = c.t.Add(time.Minute)
	left.Remove(m) // idle from 12:01

	if got := g.EvictIdle(c.t.Add(30*time.Second), time.Minute); len(got) != 0 {
		t.Errorf("evicted too early: %v", got)
	}
	got := g.EvictIdle(c.t.Add(time.Minute), time.Minute)
	if len(got) != 1 || got[0] != "left" {
		t.Errorf("evicted: got %v, want [left]", got)
	}
	if _, ok := g.Get("busy"); !ok {
		t.Error("occupied room was evicted")
	}
	if _, ok := g.Get("left"); ok {
		t.Error("idle room still present")
	}
}

func TestRegistry_EvictIdleDisabled(t *testing.T) {
	g := NewRegistry(10, nil)
	g.GetOrCreate("empty")
	if got := g.EvictIdle(time.Now().Add(24*time.Hour), 0); got != nil {
		t.Errorf("ttl=0 evicted %v", got)
	}
	if g.Len() != 1 {
		t.Errorf("Len: got %d, want 1", g.Len())
	}
}

func TestRegistry_SetHistoryLimitAppliesToAllRooms(t *testing.T) {
	g := NewRegistry(5, nil)
	a, _ := g.GetOrCreate("a")
	b, _ := g.GetOrCreate("b")
	for i := 0; i < 4; i++ {
		a.Append(msg(fmt.Sprint(i)))
		b.Append(msg(fmt.Sprint(i)))
	}
	if n := g.SetHistoryLimit(1); n != 6 {
		t.Errorf("evicted: got %d, want 6", n)
	}
	c, _ := g.GetOrCreate("c")
	for i := 0; i < 3; i++ {
		c.Append(msg(fmt.Sprint(i)))
	}
	if a.HistoryLen() != 1 || b.HistoryLen() != 1 || c.HistoryLen() != 1 {
		t.Errorf("history lengths: %d %d %d, want 1 1 1", a.HistoryLen(), b.HistoryLen(), c.HistoryLen())
	}
}

// --- broadcast --------------------------------------------------------------

func TestBroadcast_ExcludesOnlyGivenMember(t *testing.T) {
	g := NewRegistry(10, nil)
	r, _ := g.GetOrCreate("orders")
	a, b, c := &fakeMember{id: "a"}, &fakeMember{id: "b"}, &fakeMember{id: "c"}
	r.Add(a)
	r.Add(b)
	r.Add(c)

	d, err := Broadcast(r, envelope.NewUserJoined(a.Participant()), a)
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if d.Sent != 2 || d.Failed != 0 {
		t.Errorf("delivery: got %+v, want 2 sent", d)
	}
	if len(a.frames) != 0 {
		t.Error("excluded member received the frame")
	}
	if len(b.frames) != 1 || len(c.frames) != 1 {
		t.Errorf("frames: b=%d c=%d, want 1 each", len(b.frames), len(c.frames))
	}
}

func TestBroadcast_NoExclusionReachesEveryone(t *testing.T) {
	g := NewRegistry(10, nil)
	r, _ := g.GetOrCreate("orders")
	a, b := &fakeMember{id: "a"}, &fakeMember{id: "b"}
	r.Add(a)
	r.Add(b)

	if _, err := Broadcast(r, envelope.NewMessage(msg("hi")), nil); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if got := a.types(t); len(got) != 1 || got[0] != "MESSAGE" {
		t.Errorf("a: got %v", got)
	}
	if got := b.types(t); len(got) != 1 || got[0] != "MESSAGE" {
		t.Errorf("b: got %v", got)
	}
}

func TestBroadcast_FailureDoesNotAbortOrRemove(t *testing.T) {
	g := NewRegistry(10, nil)
	r, _ := g.GetOrCreate("orders")
	a, broken, c := &fakeMember{id: "a"}, &fakeMember{id: "broken", fail: true}, &fakeMember{id: "c"}
	r.Add(a)
	r.Add(broken)
	r.Add(c)

	d, err := Broadcast(r, envelope.NewMessage(msg("hi")), nil)
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if d.Sent != 2 || d.Failed != 1 {
		t.Errorf("delivery: got %+v, want 2 sent 1 failed", d)
	}
	if len(c.frames) != 1 {
		t.Error("member after the failing one did not receive the frame")
	}
	if !r.Has(broken) {
		t.Error("failing member was removed")
	}
}

func TestBroadcast_EncodesOnce(t *testing.T) {
	g := NewRegistry(10, nil)
	r, _ := g.GetOrCreate("orders")
	a, b := &fakeMember{id: "a"}, &fakeMember{id: "b"}
	r.Add(a)
	r.Add(b)

	Broadcast(r, envelope.NewMessage(msg("hi")), nil) //nolint:errcheck
	if &a.frames[0][0] != &b.frames[0][0] {
		t.Error("members received different buffers; expected one shared encoding")
	}
}
