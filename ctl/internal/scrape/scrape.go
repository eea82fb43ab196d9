package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const defaultTimeout = 10 * time.Second

// Metric family names exported by the bridge.
const (
	familyConnectionsActive = "bridge_connections_active"
	familyConnectionsTotal  = "bridge_connections_total"
	familyRooms             = "bridge_rooms"
	familyRoomsEvicted      = "bridge_rooms_evicted_total"
	familyFramesReceived    = "bridge_frames_received_total"
	familyFramesDropped     = "bridge_frames_dropped_total"
	familyDeliveriesFailed  = "bridge_deliveries_failed_total"
	familyTerminations      = "bridge_heartbeat_terminations_total"
)

// Stats is one reduced sample of bridge metrics.
type Stats struct {
	ScrapedAt time.Time

	ConnectionsActive float64
	ConnectionsTotal  float64
	Rooms             float64
	RoomsEvicted      float64

	// FramesReceived is keyed by envelope type, FramesDropped by reason.
	FramesReceived map[string]float64
	FramesDropped  map[string]float64

	DeliveriesFailed      float64
	HeartbeatTerminations float64
}

// Client scrapes one bridge.
type Client struct {
	url    string
	client *http.Client
}

// New returns a Client for the metrics endpoint at url.
func New(url string) *Client {
	return &Client{url: url, client: &http.Client{Timeout: defaultTimeout}}
}

// Scrape fetches and reduces the current metrics.
func (c *Client) Scrape(ctx context.Context) (*Stats, error) {
	mfs, err := fetchMetrics(ctx, c.client, c.url)
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", c.url, err)
	}
	return reduce(mfs), nil
}

// Parse reduces a Prometheus text exposition read from r.
func Parse(r io.Reader) (*Stats, error) {
	mfs, err := parseMetrics(r)
	if err != nil {
		return nil, err
	}
	return reduce(mfs), nil
}

func reduce(mfs map[string]*dto.MetricFamily) *Stats {
	return &Stats{
		ScrapedAt:             time.Now().UTC(),
		ConnectionsActive:     sumFamily(mfs[familyConnectionsActive]),
		ConnectionsTotal:      sumFamily(mfs[familyConnectionsTotal]),
		Rooms:                 sumFamily(mfs[familyRooms]),
		RoomsEvicted:          sumFamily(mfs[familyRoomsEvicted]),
		FramesReceived:        byLabel(mfs[familyFramesReceived], "type"),
		FramesDropped:         byLabel(mfs[familyFramesDropped], "reason"),
		DeliveriesFailed:      sumFamily(mfs[familyDeliveriesFailed]),
		HeartbeatTerminations: sumFamily(mfs[familyTerminations]),
	}
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a text exposition into metric families. A partial
// parse that produced families is accepted.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up all counter, gauge and untyped values in mf. A nil mf
// (family not present) sums to 0.
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		total += value(m)
	}
	return total
}

// byLabel sums mf's series grouped by the value of label.
func byLabel(mf *dto.MetricFamily, label string) map[string]float64 {
	out := make(map[string]float64)
	if mf == nil {
		return out
	}
	for _, m := range mf.GetMetric() {
		key := ""
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				key = lp.GetValue()
				break
			}
		}
		out[key] += value(m)
	}
	return out
}

func value(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return 0
}
