package room

import "github.com/logista/realtime-bridge/pkg/envelope"

// History is a fixed-capacity FIFO of recent messages. The oldest entry is
// evicted first when the limit is exceeded.
type History struct {
	limit int
	items []envelope.Message
}

// NewHistory creates an empty History holding at most limit messages.
// A limit below 1 is treated as 1.
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = 1
	}
	return &History{limit: limit}
}

// Append adds m as the newest entry and returns how many old entries were
// evicted to stay within the limit.
func (h *History) Append(m envelope.Message) int {
	h.items = append(h.items, m)
	return h.trim()
}

// SetLimit changes the capacity, evicting the oldest entries if the history
// is now over the new limit. It returns the number evicted.
func (h *History) SetLimit(limit int) int {
	if limit < 1 {
		limit = 1
	}
	h.limit = limit
	return h.trim()
}

// Limit returns the current capacity.
func (h *History) Limit() int { return h.limit }

// Len returns the number of retained messages.
func (h *History) Len() int { return len(h.items) }

// Snapshot returns a copy of the retained messages, oldest first.
func (h *History) Snapshot() []envelope.Message {
	out := make([]envelope.Message, len(h.items))
	copy(out, h.items)
	return out
}

func (h *History) trim() int {
	over := len(h.items) - h.limit
	if over <= 0 {
		return 0
	}
	n := copy(h.items, h.items[over:])
	clear(h.items[n:])
	h.items = h.items[:n]
	return over
}
