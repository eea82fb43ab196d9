package room

import (
	"log/slog"

	"github.com/logista/realtime-bridge/pkg/envelope"
)

// Delivery summarises one fan-out.
type Delivery struct {
	Sent   int
	Failed int
}

// Broadcast encodes e once and hands it to every member of r except exclude
// (which may be nil). A member whose Send fails is logged and skipped; it
// stays in the room.
func Broadcast(r *Room, e envelope.Envelope, exclude Member) (Delivery, error) {
	data, err := envelope.Encode(e)
	if err != nil {
		return Delivery{}, err
	}
	var d Delivery
	for _, m := range r.members {
		if exclude != nil && m == exclude {
			continue
		}
		if err := m.Send(data); err != nil {
			d.Failed++
			slog.Warn("room: delivery failed",
				"channel", r.name,
				"client_id", m.ClientID(),
				"type", e.Type,
				"err", err,
			)
			continue
		}
		d.Sent++
	}
	return d, nil
}

// SendTo encodes e and hands it to a single member.
func SendTo(m Member, e envelope.Envelope) error {
	data, err := envelope.Encode(e)
	if err != nil {
		return err
	}
	return m.Send(data)
}
