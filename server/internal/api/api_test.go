package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/logista/realtime-bridge/pkg/envelope"
	"github.com/logista/realtime-bridge/server/internal/api"
	"github.com/logista/realtime-bridge/server/internal/ws"
)

// --- test helpers -----------------------------------------------------------

type fakeSource struct {
	stats    ws.Stats
	channels []ws.ChannelSummary
	details  map[string]ws.ChannelDetail
	err      error
}

func (f *fakeSource) Stats(context.Context) (ws.Stats, error) { return f.stats, f.err }

func (f *fakeSource) Channels(context.Context) ([]ws.ChannelSummary, error) {
	return f.channels, f.err
}

func (f *fakeSource) Channel(_ context.Context, name string) (ws.ChannelDetail, bool, error) {
	d, ok := f.details[name]
	return d, ok, f.err
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_Counts(t *testing.T) {
	src := &fakeSource{stats: ws.Stats{Rooms: 2, Connections: 3, Started: time.Now().Add(-time.Minute)}}
	rr := get(t, api.New(src), "/api/v1/health")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
	var resp api.HealthResponse
	decode(t, rr, &resp)

	if resp.Status != "ok" || resp.Rooms != 2 || resp.Connections != 3 {
		t.Errorf("got %+v", resp)
	}
	if resp.UptimeSeconds < 60 {
		t.Errorf("uptime_seconds: got %v, want >= 60", resp.UptimeSeconds)
	}
	if resp.Process.Goroutines < 1 {
		t.Errorf("goroutines: got %d", resp.Process.Goroutines)
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	h := api.New(&fakeSource{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/health", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

func TestHealth_HubStopped(t *testing.T) {
	rr := get(t, api.New(&fakeSource{err: ws.ErrClosed}), "/api/v1/health")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", rr.Code)
	}
}

// --- /api/v1/channels -------------------------------------------------------

func TestChannels_List(t *testing.T) {
	src := &fakeSource{channels: []ws.ChannelSummary{
		{Name: "a", Members: 2, HistoryLen: 5},
		{Name: "b", IdleSince: time.Now().Add(-10 * time.Second)},
	}}
	rr := get(t, api.New(src), "/api/v1/channels")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp []map[string]interface{}
	decode(t, rr, &resp)

	if len(resp) != 2 {
		t.Fatalf("len: got %d, want 2", len(resp))
	}
	if resp[0]["name"] != "a" || resp[0]["members"].(float64) != 2 || resp[0]["history_len"].(float64) != 5 {
		t.Errorf("a: got %v", resp[0])
	}
	if _, ok := resp[0]["idle_seconds"]; ok {
		t.Error("occupied room should omit idle_seconds")
	}
	if idle, _ := resp[1]["idle_seconds"].(float64); idle < 10 {
		t.Errorf("b idle_seconds: got %v, want >= 10", resp[1]["idle_seconds"])
	}
}

func TestChannels_EmptyIsArray(t *testing.T) {
	rr := get(t, api.New(&fakeSource{}), "/api/v1/channels")
	if body := rr.Body.String(); body != "[]\n" {
		t.Errorf("body: got %q, want []", body)
	}
}

func TestChannel_Detail(t *testing.T) {
	src := &fakeSource{details: map[string]ws.ChannelDetail{
		"orders": {
			Name:         "orders",
			Participants: []envelope.Participant{{ClientID: "c1", Sender: "A", Channel: "orders"}},
			History:      []envelope.Message{{ID: "m1", Body: "hello", Channel: "orders"}},
		},
	}}
	rr := get(t, api.New(src), "/api/v1/channels/orders")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.ChannelDetailResponse
	decode(t, rr, &resp)

	if resp.Name != "orders" || len(resp.Participants) != 1 || len(resp.History) != 1 {
		t.Fatalf("got %+v", resp)
	}
	if resp.History[0].Body != "hello" || resp.Participants[0].ClientID != "c1" {
		t.Errorf("got %+v", resp)
	}
}

func TestChannel_EmptyRoomHasArrays(t *testing.T) {
	src := &fakeSource{details: map[string]ws.ChannelDetail{"idle": {Name: "idle"}}}
	rr := get(t, api.New(src), "/api/v1/channels/idle")
	var resp map[string]interface{}
	decode(t, rr, &resp)

	if _, ok := resp["participants"].([]interface{}); !ok {
		t.Errorf("participants: got %v, want []", resp["participants"])
	}
	if _, ok := resp["history"].([]interface{}); !ok {
		t.Errorf("history: got %v, want []", resp["history"])
	}
}

func TestChannel_NotFound(t *testing.T) {
	rr := get(t, api.New(&fakeSource{}), "/api/v1/channels/missing")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}

func TestChannel_BarePathLists(t *testing.T) {
	src := &fakeSource{channels: []ws.ChannelSummary{{Name: "a"}}}
	rr := get(t, api.New(src), "/api/v1/channels/")
	var resp []api.ChannelResponse
	decode(t, rr, &resp)
	if len(resp) != 1 || resp[0].Name != "a" {
		t.Errorf("got %+v", resp)
	}
}
