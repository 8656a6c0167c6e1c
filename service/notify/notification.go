package notify

import (
	"encoding/json"

	"PNotify/tools/decode"
	"PNotify/tools/errs"
)

// Kind is the frame discriminator carried in the "type" field.
type Kind string

const (
	KindConnection            Kind = "connection"
	KindNewMessage            Kind = "new_message"
	KindFriendRequest         Kind = "friend_request"
	KindFriendRequestResponse Kind = "friend_request_response"
	KindPing                  Kind = "ping"
	KindPong                  Kind = "pong"
)

const typeField = "type"

var knownKinds = map[Kind]struct{}{
	KindConnection:            {},
	KindNewMessage:            {},
	KindFriendRequest:         {},
	KindFriendRequestResponse: {},
	KindPing:                  {},
	KindPong:                  {},
}

// Valid reports whether k is one of the enumerated kinds.
func (k Kind) Valid() bool {
	_, ok := knownKinds[k]
	return ok
}

// Message directions for new_message frames.
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// Notification is an immutable kind-tagged frame. The payload is deep
// copied on the way in and on the way out, nested maps and slices included.
type Notification struct {
	kind    Kind
	payload map[string]any
}

// New builds a notification of kind with a deep copy of payload.
func New(kind Kind, payload map[string]any) Notification {
	p := cloneMap(payload)
	delete(p, typeField)
	return Notification{kind: kind, payload: p}
}

func (n Notification) Kind() Kind { return n.kind }

// Payload returns a deep copy of the kind-specific fields.
func (n Notification) Payload() map[string]any {
	return cloneMap(n.payload)
}

// Field returns a copy of one payload field.
func (n Notification) Field(key string) (any, bool) {
	v, ok := n.payload[key]
	return cloneValue(v), ok
}

// Decode fills out (a pointer to one of the payload structs) from the payload.
func (n Notification) Decode(out any) error {
	if err := decode.Into(cloneMap(n.payload), out); err != nil {
		return errs.ErrMalformedFrame.WrapMsg(err.Error(), "kind", n.kind)
	}
	return nil
}

func (n Notification) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(n.payload)+1)
	for k, v := range n.payload {
		m[k] = v
	}
	m[typeField] = string(n.kind)
	return json.Marshal(m)
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies the containers JSON decoding produces; other values are
// returned as is.
func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(x))
		for i, e := range x {
			out[i] = cloneMap(e)
		}
		return out
	default:
		return v
	}
}

func (n *Notification) UnmarshalJSON(raw []byte) error {
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// ===== 构造 =====

type ConnectionPayload struct {
	Status   string `json:"status"`
	Username string `json:"username"`
}

type NewMessagePayload struct {
	Direction string         `json:"direction"`
	Message   map[string]any `json:"message"`
}

type FriendRequestPayload struct {
	From string `json:"from"`
}

type FriendRequestResponsePayload struct {
	From   string `json:"from"`
	Status string `json:"status"`
}

// ConnectionAck is sent once a connection is admitted.
func ConnectionAck(identity string) Notification {
	return New(KindConnection, map[string]any{"status": "connected", "username": identity})
}

// NewMessage wraps a stored chat message; direction is DirectionSent or DirectionReceived.
func NewMessage(direction string, message map[string]any) Notification {
	return New(KindNewMessage, map[string]any{"direction": direction, "message": message})
}

func FriendRequest(from string) Notification {
	return New(KindFriendRequest, map[string]any{"from": from})
}

func FriendRequestResponse(from, status string) Notification {
	return New(KindFriendRequestResponse, map[string]any{"from": from, "status": status})
}

func Ping() Notification { return New(KindPing, nil) }

func Pong() Notification { return New(KindPong, nil) }
