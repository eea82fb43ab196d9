package api

import "github.com/logista/realtime-bridge/pkg/envelope"

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status        string       `json:"status"`
	Rooms         int          `json:"rooms"`
	Connections   int          `json:"connections"`
	StartedAt     string       `json:"started_at"` // RFC3339
	UptimeSeconds float64      `json:"uptime_seconds"`
	Process       ProcessStats `json:"process"`
}

// ProcessStats describes the bridge process itself.
type ProcessStats struct {
	RSSBytes   uint64 `json:"rss_bytes"`
	Goroutines int    `json:"goroutines"`
}

// ChannelResponse is one entry in GET /api/v1/channels.
type ChannelResponse struct {
	Name       string `json:"name"`
	Members    int    `json:"members"`
	HistoryLen int    `json:"history_len"`
	// IdleSeconds is how long the room has been empty; omitted while occupied.
	IdleSeconds *float64 `json:"idle_seconds,omitempty"`
}

// ChannelDetailResponse is the payload for GET /api/v1/channels/{name}.
// Participants and History use the same shapes as the SYSTEM_INFO frame.
type ChannelDetailResponse struct {
	Name         string                 `json:"name"`
	Participants []envelope.Participant `json:"participants"`
	History      []envelope.Message     `json:"history"`
}

type errorResponse struct {
	Error string `json:"error"`
}
