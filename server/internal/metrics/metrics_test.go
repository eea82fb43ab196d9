package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_CountersStartAtZero(t *testing.T) {
	m := New()
	if v := testutil.ToFloat64(m.ConnectionsTotal); v != 0 {
		t.Errorf("connections_total: got %v, want 0", v)
	}
	if v := testutil.ToFloat64(m.FramesDropped.WithLabelValues(ReasonMalformed)); v != 0 {
		t.Errorf("frames_dropped{malformed}: got %v, want 0", v)
	}
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.ConnectionsTotal.Inc()
	if v := testutil.ToFloat64(b.ConnectionsTotal); v != 0 {
		t.Errorf("second Metrics saw first one's increment: %v", v)
	}
}

func TestHandler_ExposesBridgeMetrics(t *testing.T) {
	m := New()
	m.ConnectionsTotal.Add(3)
	m.ConnectionsActive.Set(2)
	m.Broadcasts.WithLabelValues("MESSAGE").Inc()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{
		"bridge_connections_total 3",
		"bridge_connections_active 2",
		`bridge_broadcasts_total{type="MESSAGE"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
