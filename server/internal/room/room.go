package room

import (
	"time"

	"github.com/logista/realtime-bridge/pkg/envelope"
)

// Member is one session registered in a Room.
type Member interface {
	// ClientID is the process-unique identifier assigned at admission.
	ClientID() string

	// Participant describes the member in SYSTEM_INFO and USER_JOINED payloads.
	Participant() envelope.Participant

	// Send queues an encoded frame for delivery. It must not block.
	Send(data []byte) error
}

// Room is the state of one channel: its history and its current members.
type Room struct {
	name    string
	history *History
	members []Member
	now     func() time.Time

	// idleSince is when the member set last became empty; zero while occupied.
	idleSince time.Time
}

func newRoom(name string, historyLimit int, now func() time.Time) *Room {
	return &Room{
		name:      name,
		history:   NewHistory(historyLimit),
		now:       now,
		idleSince: now(),
	}
}

// Name returns the channel name.
func (r *Room) Name() string { return r.name }

// Add registers m. It returns false if m is already a member.
func (r *Room) Add(m Member) bool {
	if r.indexOf(m) >= 0 {
		return false
	}
	r.members = append(r.members, m)
	r.idleSince = time.Time{}
	return true
}

// Remove unregisters m. It returns false if m was not a member.
func (r *Room) Remove(m Member) bool {
	i := r.indexOf(m)
	if i < 0 {
		return false
	}
	r.members = append(r.members[:i], r.members[i+1:]...)
	if len(r.members) == 0 {
		r.idleSince = r.now()
	}
	return true
}

// Has reports whether m is a member.
func (r *Room) Has(m Member) bool { return r.indexOf(m) >= 0 }

// Len returns the number of members.
func (r *Room) Len() int { return len(r.members) }

// Members returns a copy of the member list in join order.
func (r *Room) Members() []Member {
	out := make([]Member, len(r.members))
	copy(out, r.members)
	return out
}

// Participants returns a snapshot of every member's description, in join order.
func (r *Room) Participants() []envelope.Participant {
	out := make([]envelope.Participant, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m.Participant())
	}
	return out
}

// Append stores m in the room history and returns the number of entries evicted.
func (r *Room) Append(m envelope.Message) int { return r.history.Append(m) }

// History returns a copy of the retained messages, oldest first.
func (r *Room) History() []envelope.Message { return r.history.Snapshot() }

// HistoryLen returns the number of retained messages.
func (r *Room) HistoryLen() int { return r.history.Len() }

// IdleSince returns when the room last became empty. ok is false while the
// room has members.
func (r *Room) IdleSince() (t time.Time, ok bool) {
	if len(r.members) > 0 {
		return time.Time{}, false
	}
	return r.idleSince, true
}

func (r *Room) indexOf(m Member) int {
	for i, x := range r.members {
		if x == m {
			return i
		}
	}
	return -1
}
