// Package envelope defines the JSON wire format spoken by the realtime bridge.
//
// Every frame is a UTF-8 JSON text frame of the form
//
//	{"type": "<KIND>", "payload": { ... }}
//
// Inbound kinds (client → bridge):
//   - PING    : protocol-level probe, answered privately with PONG
//   - MESSAGE : user payload; normalized, stored in history, rebroadcast
//
// Outbound kinds (bridge → client):
//   - SYSTEM_INFO: sent once per connection: clientId, channel, history, participants
//   - USER_JOINED: a new participant joined the channel
//   - USER_LEFT  : a participant left the channel
//   - MESSAGE    : a normalized Message
//   - PONG       : reply to PING, carries the server time in epoch milliseconds
//
// Decode never panics on hostile input. Any frame that is not valid JSON, has
// no recognised type, or whose payload has the wrong shape yields an error
// wrapping ErrMalformed or ErrUnknownType; callers drop such frames silently.
//
// Normalize fills absent Message fields from session defaults. The channel is
// always forced to the session's channel so a stored Message can never claim
// to belong to another room.
package envelope
