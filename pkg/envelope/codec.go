package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMalformed is returned when a frame is not a JSON object of the
	// expected shape.
	ErrMalformed = errors.New("envelope: malformed frame")

	// ErrUnknownType is returned when a frame carries a type the bridge does
	// not accept from clients.
	ErrUnknownType = errors.New("envelope: unknown frame type")
)

// Inbound is a decoded client frame. Draft is set only for TypeMessage.
type Inbound struct {
	Type  Type
	Draft *Draft
}

// Draft is a client-supplied MESSAGE payload before normalization. Nil
// pointers mark fields the client omitted (or sent as null).
type Draft struct {
	ID        *string        `json:"id"`
	Body      *string        `json:"body"`
	Sender    *string        `json:"sender"`
	Channel   *string        `json:"channel"`
	Timestamp *string        `json:"timestamp"`
	Meta      map[string]any `json:"meta"`
}

// Defaults supplies the values used for fields a Draft leaves out.
type Defaults struct {
	Sender  string
	Channel string
	Now     time.Time
	NewID   func() string

	// ForceSender makes Sender win over a client-supplied sender, for
	// sessions whose identity was verified at admission.
	ForceSender bool
}

type rawInbound struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode parses one inbound frame.
func Decode(data []byte) (Inbound, error) {
	var raw rawInbound
	if err := json.Unmarshal(data, &raw); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch raw.Type {
	case TypePing:
		return Inbound{Type: TypePing}, nil
	case TypeMessage:
		d := &Draft{}
		if p := bytes.TrimSpace(raw.Payload); len(p) > 0 && !bytes.Equal(p, []byte("null")) {
			if err := json.Unmarshal(p, d); err != nil {
				return Inbound{}, fmt.Errorf("%w: message payload: %v", ErrMalformed, err)
			}
		}
		return Inbound{Type: TypeMessage, Draft: d}, nil
	case "":
		return Inbound{}, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return Inbound{}, fmt.Errorf("%w: %q", ErrUnknownType, raw.Type)
	}
}

// Encode serializes an outbound envelope.
func Encode(e Envelope) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("envelope: encode %s: %w", e.Type, err)
	}
	return data, nil
}

// Normalize turns a Draft into a canonical Message. The channel is always
// def.Channel, whatever the client sent; the sender is def.Sender when the
// draft has none or def.ForceSender is set.
func Normalize(d *Draft, def Defaults) Message {
	if d == nil {
		d = &Draft{}
	}
	m := Message{
		ID:        valueOr(d.ID, ""),
		Body:      valueOr(d.Body, ""),
		Sender:    valueOr(d.Sender, def.Sender),
		Channel:   def.Channel,
		Timestamp: valueOr(d.Timestamp, ""),
		Meta:      d.Meta,
	}
	if def.ForceSender {
		m.Sender = def.Sender
	}
	if d.ID == nil && def.NewID != nil {
		m.ID = def.NewID()
	}
	if d.Timestamp == nil {
		m.Timestamp = FormatTime(def.Now)
	}
	if m.Meta == nil {
		m.Meta = map[string]any{}
	}
	return m
}

func valueOr(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}
