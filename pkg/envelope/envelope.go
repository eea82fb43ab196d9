package envelope

import "time"

// Type is the tag carried in the "type" field of every frame.
type Type string

// Inbound frame kinds.
const (
	TypePing    Type = "PING"
	TypeMessage Type = "MESSAGE"
)

// Outbound frame kinds. TypeMessage is used in both directions.
const (
	TypeSystemInfo Type = "SYSTEM_INFO"
	TypeUserJoined Type = "USER_JOINED"
	TypeUserLeft   Type = "USER_LEFT"
	TypePong       Type = "PONG"
)

// timeLayout matches the ISO-8601 form browsers produce with
// Date.prototype.toISOString: millisecond precision, always UTC.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Envelope is an outbound frame. Payload is one of the payload types below.
type Envelope struct {
	Type    Type `json:"type"`
	Payload any  `json:"payload"`
}

// Message is a canonical chat message as stored in room history and broadcast.
// Messages are treated as immutable once normalized.
type Message struct {
	ID        string         `json:"id"`
	Body      string         `json:"body"`
	Sender    string         `json:"sender"`
	Channel   string         `json:"channel"`
	Timestamp string         `json:"timestamp"`
	Meta      map[string]any `json:"meta"`
}

// Participant describes one connected session.
type Participant struct {
	ClientID    string `json:"clientId"`
	Sender      string `json:"sender"`
	Channel     string `json:"channel"`
	ConnectedAt string `json:"connectedAt"`
}

// Departure is the payload of USER_LEFT.
type Departure struct {
	ClientID string `json:"clientId"`
	Sender   string `json:"sender"`
	Channel  string `json:"channel"`
	LeftAt   string `json:"leftAt"`
}

// SystemInfo is the private welcome payload sent once to a new session.
type SystemInfo struct {
	ClientID     string        `json:"clientId"`
	Channel      string        `json:"channel"`
	History      []Message     `json:"history"`
	Participants []Participant `json:"participants"`
}

// Pong is the payload of PONG.
type Pong struct {
	Timestamp int64 `json:"timestamp"`
}

// FormatTime renders t in the wire timestamp format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// NewSystemInfo builds a SYSTEM_INFO envelope. Nil slices are sent as empty
// JSON arrays.
func NewSystemInfo(clientID, channel string, history []Message, participants []Participant) Envelope {
	if history == nil {
		history = []Message{}
	}
	if participants == nil {
		participants = []Participant{}
	}
	return Envelope{Type: TypeSystemInfo, Payload: SystemInfo{
		ClientID:     clientID,
		Channel:      channel,
		History:      history,
		Participants: participants,
	}}
}

// NewUserJoined builds a USER_JOINED envelope.
func NewUserJoined(p Participant) Envelope {
	return Envelope{Type: TypeUserJoined, Payload: p}
}

// NewUserLeft builds a USER_LEFT envelope.
func NewUserLeft(d Departure) Envelope {
	return Envelope{Type: TypeUserLeft, Payload: d}
}

// NewMessage builds an outbound MESSAGE envelope.
func NewMessage(m Message) Envelope {
	return Envelope{Type: TypeMessage, Payload: m}
}

// NewPong builds a PONG envelope stamped with now in epoch milliseconds.
func NewPong(now time.Time) Envelope {
	return Envelope{Type: TypePong, Payload: Pong{Timestamp: now.UnixMilli()}}
}
