package notify

import (
	"encoding/json"

	"PNotify/tools/errs"
)

// Close codes used on the wire.
const (
	CloseNormal      = 1000 // logout or manager-initiated reset
	CloseGoingAway   = 1001 // server shutdown
	CloseAbnormal    = 1006 // no close frame, set locally
	ClosePolicy      = 1008 // authentication required
	CloseReasonAuth  = "Authentication required"
	CloseReasonClean = "User logout"
)

// Marshal encodes n as a wire frame.
func Marshal(n Notification) ([]byte, error) {
	return n.MarshalJSON()
}

// Parse decodes a wire frame. Frames that are not JSON objects, lack a
// string "type" or carry an unknown type are rejected.
func Parse(raw []byte) (Notification, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return Notification{}, errs.ErrMalformedFrame.WrapMsg(err.Error())
	}
	if m == nil {
		return Notification{}, errs.ErrMalformedFrame.WrapMsg("frame is null")
	}
	t, ok := m[typeField].(string)
	if !ok || t == "" {
		return Notification{}, errs.ErrMalformedFrame.WrapMsg("missing type")
	}
	kind := Kind(t)
	if !kind.Valid() {
		return Notification{}, errs.ErrUnknownKind.WrapMsg("", "type", t)
	}
	delete(m, typeField)
	return Notification{kind: kind, payload: m}, nil
}
