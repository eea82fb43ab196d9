// Package ws implements the bridge's connection lifecycle: admission, the
// per-connection Session, and the Hub event loop that owns every room.
//
// New(opts) creates a Hub. Hub.Run(ctx) is the single writer of room state. It
// serialises admissions, inbound frames, disconnects, heartbeat ticks,
// idle-room eviction and read queries, and closes every session when ctx is
// cancelled.
//
// Hub.ServeHTTP resolves identity through an auth.Resolver (HTTP 401/403 on
// failure), upgrades to WebSocket and then:
//
//   - sends SYSTEM_INFO privately (history + participants, self included);
//   - broadcasts USER_JOINED to the other members;
//   - answers PING with a private PONG;
//   - normalises MESSAGE, appends it to history and echoes it to the whole room;
//   - on close or error, removes the session and broadcasts USER_LEFT.
//
// Malformed, unknown and rate limited frames are dropped without a reply.
// Frames above the read limit close the connection. Outgoing frames go through
// a bounded per-session queue; a full queue drops the frame for that member
// only.
//
// Every heartbeat tick marks each session pending and sends a transport ping;
// a session still pending at the next tick is terminated.
package ws
