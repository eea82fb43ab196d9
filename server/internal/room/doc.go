// Package room holds per-channel state for the bridge: the bounded message
// history, the member set, the registry that creates rooms lazily by name, and
// the broadcast fan-out.
//
// Nothing in this package locks. A Registry and every Room it returns are
// owned by a single goroutine (the ws hub loop); callers must not touch them
// from anywhere else.
//
// Rooms are never removed by default. EvictIdle drops rooms whose member set
// has been empty for longer than a grace period; the hub only calls it when an
// idle TTL is configured.
package room
