package schema

import (
	"encoding/json"
	"moff.io/frame-bridge/pkg/errors"
)

// Event is one message on the frame channel, in either direction.
// ID correlates a request with its reply and is empty on legacy peers.
type Event struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewAppEvent builds an unvalidated app event. A nil payload is omitted.
func NewAppEvent(kind Kind, id string, payload interface{}) (Event, error) {
	return newEvent(kind.AppType(), id, payload)
}

// NewFrameSuccess builds the success reply of kind.
func NewFrameSuccess(kind Kind, id string, payload interface{}) (Event, error) {
	return newEvent(kind.SuccessType(), id, payload)
}

// NewFrameError builds the error reply of kind.
func NewFrameError(kind Kind, id, message string) Event {
	ev, _ := newEvent(kind.ErrorType(), id, ErrorPayload{Message: message})
	return ev
}

func newEvent(t, id string, payload interface{}) (Event, error) {
	ev := Event{Type: t, ID: id}
	if payload == nil {
		return ev, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, errors.Wrapf(err, "marshal %v payload", t)
	}
	ev.Payload = raw
	return ev, nil
}

// Marshal encodes the event for the wire.
func (e Event) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %v event", e.Type)
	}
	return data, nil
}

// IsAppEvent reports whether the event travels app to frame.
func (e Event) IsAppEvent() bool {
	_, ok := ParseAppType(e.Type)
	return ok
}

// Kind returns the request family of the event, for either direction.
func (e Event) Kind() Kind {
	if k, ok := ParseAppType(e.Type); ok {
		return k
	}
	k, _, _ := ParseFrameType(e.Type)
	return k
}

// Outcome returns the reply outcome of a frame event.
func (e Event) Outcome() Outcome {
	_, o, _ := ParseFrameType(e.Type)
	return o
}

// Decode unmarshals the payload into v. An absent payload leaves v untouched.
func (e Event) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return errors.Wrapf(err, "decode %v payload", e.Type)
	}
	return nil
}

// ErrorMessage returns the message of an *_ERROR event.
func (e Event) ErrorMessage() string {
	var p ErrorPayload
	if err := e.Decode(&p); err != nil {
		return ""
	}
	return p.Message
}

// NewSessionUpdate builds the unsolicited token refresh sent by the frame.
func NewSessionUpdate(token string) (Event, error) {
	return newEvent(FrameSessionUpdate, "", SessionToken{Token: token})
}
