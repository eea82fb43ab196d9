package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/logista/realtime-bridge/pkg/envelope"
	"github.com/logista/realtime-bridge/server/internal/ws"
)

// Source is the view of the hub the API reads from.
type Source interface {
	Stats(ctx context.Context) (ws.Stats, error)
	Channels(ctx context.Context) ([]ws.ChannelSummary, error)
	Channel(ctx context.Context, name string) (ws.ChannelDetail, bool, error)
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	src  Source
	proc *process.Process
	now  func() time.Time
	mux  *http.ServeMux
}

// New creates a Handler reading from src and registers all routes.
func New(src Source) http.Handler {
	h := &Handler{src: src, now: time.Now, mux: http.NewServeMux()}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		h.proc = p
	} else {
		slog.Warn("api: process stats unavailable", "err", err)
	}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/channels", h.listChannels)
	h.mux.HandleFunc("/api/v1/channels/", h.getChannel) // subtree, extracts {name}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	st, err := h.src.Stats(r.Context())
	if err != nil {
		unavailable(w, err)
		return
	}
	resp := HealthResponse{
		Status:        "ok",
		Rooms:         st.Rooms,
		Connections:   st.Connections,
		StartedAt:     st.Started.UTC().Format(time.RFC3339),
		UptimeSeconds: h.now().Sub(st.Started).Seconds(),
		Process:       ProcessStats{Goroutines: runtime.NumGoroutine()},
	}
	if h.proc != nil {
		if mem, err := h.proc.MemoryInfo(); err == nil {
			resp.Process.RSSBytes = mem.RSS
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// listChannels returns GET /api/v1/channels, sorted by name.
func (h *Handler) listChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	chs, err := h.src.Channels(r.Context())
	if err != nil {
		unavailable(w, err)
		return
	}
	now := h.now()
	out := make([]ChannelResponse, 0, len(chs))
	for _, c := range chs {
		cr := ChannelResponse{Name: c.Name, Members: c.Members, HistoryLen: c.HistoryLen}
		if !c.IdleSince.IsZero() {
			idle := now.Sub(c.IdleSince).Seconds()
			cr.IdleSeconds = &idle
		}
		out = append(out, cr)
	}
	jsonResp(w, http.StatusOK, out)
}

// getChannel returns GET /api/v1/channels/{name}.
func (h *Handler) getChannel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/v1/channels/")
	if name == "" {
		h.listChannels(w, r)
		return
	}

	d, ok, err := h.src.Channel(r.Context(), name)
	if err != nil {
		unavailable(w, err)
		return
	}
	if !ok {
		jsonErr(w, http.StatusNotFound, "channel not found")
		return
	}

	resp := ChannelDetailResponse{
		Name:         d.Name,
		Participants: d.Participants,
		History:      d.History,
	}
	if resp.Participants == nil {
		resp.Participants = []envelope.Participant{}
	}
	if resp.History == nil {
		resp.History = []envelope.Message{}
	}
	jsonResp(w, http.StatusOK, resp)
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func unavailable(w http.ResponseWriter, err error) {
	slog.Warn("api: hub unavailable", "err", err)
	jsonErr(w, http.StatusServiceUnavailable, "hub unavailable")
}
