package room

import (
	"sort"
	"time"
)

// Registry maps channel names to rooms, creating them lazily.
type Registry struct {
	historyLimit int
	rooms        map[string]*Room
	now          func() time.Time
}

// NewRegistry creates an empty Registry whose rooms keep historyLimit
// messages each. now may be nil, in which case time.Now is used.
func NewRegistry(historyLimit int, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	if historyLimit < 1 {
		historyLimit = 1
	}
	return &Registry{
		historyLimit: historyLimit,
		rooms:        make(map[string]*Room),
		now:          now,
	}
}

// GetOrCreate returns the room for name, allocating it on first use.
// created reports whether this call allocated it.
func (g *Registry) GetOrCreate(name string) (r *Room, created bool) {
	if r, ok := g.rooms[name]; ok {
		return r, false
	}
	r = newRoom(name, g.historyLimit, g.now)
	g.rooms[name] = r
	return r, true
}

// Get returns the room for name if it exists.
func (g *Registry) Get(name string) (*Room, bool) {
	r, ok := g.rooms[name]
	return r, ok
}

// Len returns the number of rooms.
func (g *Registry) Len() int { return len(g.rooms) }

// Rooms returns every room sorted by name.
func (g *Registry) Rooms() []*Room {
	out := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// HistoryLimit returns the capacity applied to room histories.
func (g *Registry) HistoryLimit() int { return g.historyLimit }

// SetHistoryLimit changes the capacity of every existing and future room and
// returns the total number of messages evicted by the change.
func (g *Registry) SetHistoryLimit(limit int) int {
	if limit < 1 {
		limit = 1
	}
	g.historyLimit = limit
	evicted := 0
	for _, r := range g.rooms {
		evicted += r.history.SetLimit(limit)
	}
	return evicted
}

// EvictIdle removes rooms that have had no members since at least ttl before
// now. A non-positive ttl disables eviction. It returns the removed names.
func (g *Registry) EvictIdle(now time.Time, ttl time.Duration) []string {
	if ttl <= 0 {
		return nil
	}
	cutoff := now.Add(-ttl)
	var removed []string
	for name, r := range g.rooms {
		since, idle := r.IdleSince()
		if idle && !since.After(cutoff) {
			delete(g.rooms, name)
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)
	return removed
}
