// Package api implements the read-only introspection API of the bridge.
//
// New(src) returns an http.Handler that serves:
//
//	GET /api/v1/health           status, room and connection counts, uptime, process RSS and goroutines
//	GET /api/v1/channels         every room: name, members, history length, idle seconds
//	GET /api/v1/channels/{name}  participants and history of one room; 404 if unknown
//
// All endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for non-GET methods
//   - Return 503 once the hub has stopped
//
// Room state is read through the hub's query methods, so every response is a
// consistent snapshot taken on the hub loop. JSON types are defined in types.go.
package api
