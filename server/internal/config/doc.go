// Package config loads the bridge configuration.
//
// Sources, lowest priority first:
//   - built-in defaults (port 4545, history 50, heartbeat 30s,
//     channel "admin-logista", no idle eviction, auth mode none)
//   - an optional YAML file (Load(path) with path != "")
//   - the process environment (WS_PORT, WS_HISTORY_LIMIT, WS_HEARTBEAT,
//     WS_DEFAULT_CHANNEL, WS_ROOM_IDLE_TTL, WS_SEND_BUFFER,
//     WS_MAX_MESSAGE_BYTES, WS_MAX_MESSAGE_RATE, WS_AUTH_MODE,
//     WS_AUTH_SECRET_ENV, WS_AUTH_ISSUER, LOG_LEVEL)
//
// LoadDotenv merges a .env file into the environment before Load runs; a
// missing file is not an error.
//
// Durations accept either a Go duration ("30s", "2m") or a bare integer in
// milliseconds ("30000"), so existing millisecond WS_HEARTBEAT values keep
// working.
//
// Watch(ctx, path, current, apply) uses fsnotify to reload the YAML file when
// it is written. Diff compares the reload with the config in effect: only the
// log level, history limit and room idle TTL are handed to apply, other
// changed keys are logged as needing a restart. If apply returns an error the
// previous config stays current.
package config
