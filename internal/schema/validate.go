package schema

import (
	"encoding/json"
	"fmt"
	"github.com/tidwall/gjson"
	"moff.io/frame-bridge/pkg/errors"
	"strings"
)

// ErrSchemaViolation matches every validation failure.
var ErrSchemaViolation = errors.New("schema violation")

// ValidationError names the message type and the payload path that failed.
type ValidationError struct {
	Type    string
	Field   string
	Reason  string
	Payload string
}

func (e *ValidationError) Error() string {
	msg := "schema violation"
	if e.Type != "" {
		msg += fmt.Sprintf(": type=%v", e.Type)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" field=%v", e.Field)
	}
	msg += ": " + e.Reason
	if e.Payload != "" {
		msg += fmt.Sprintf(" (payload %v)", e.Payload)
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return ErrSchemaViolation
}

const maxPayloadEcho = 256

func violation(t, field, reason string, data []byte) *ValidationError {
	p := string(data)
	if len(p) > maxPayloadEcho {
		p = p[:maxPayloadEcho] + "..."
	}
	return &ValidationError{Type: t, Field: field, Reason: reason, Payload: p}
}

// ValidateAppEvent checks raw data against the app event union.
func ValidateAppEvent(data []byte) error {
	_, err := validateAgainst(data, appShapes, AppEventKey)
	return err
}

// ValidateFrameEvent checks raw data against the frame event union.
func ValidateFrameEvent(data []byte) error {
	_, err := validateAgainst(data, frameShapes, FrameEventKey)
	return err
}

// ParseAppEvent validates data and returns the event that was validated.
func ParseAppEvent(data []byte) (Event, error) {
	return validateAgainst(data, appShapes, AppEventKey)
}

// ParseFrameEvent validates data and returns the event that was validated.
func ParseFrameEvent(data []byte) (Event, error) {
	return validateAgainst(data, frameShapes, FrameEventKey)
}

// CheckApp validates an already built event as an app event.
func CheckApp(ev Event) ([]byte, error) {
	return check(ev, ValidateAppEvent)
}

// CheckFrame validates an already built event as a frame event.
func CheckFrame(ev Event) ([]byte, error) {
	return check(ev, ValidateFrameEvent)
}

func check(ev Event, validate func([]byte) error) ([]byte, error) {
	data, err := ev.Marshal()
	if err != nil {
		return nil, err
	}
	if err := validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

// validateAgainst returns the event built from the same values it checked.
func validateAgainst(data []byte, shapes map[string]shape, prefix string) (Event, error) {
	if !gjson.ValidBytes(data) {
		return Event{}, violation("", "", "malformed json", data)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Event{}, violation("", "", "expected object", data)
	}
	if field, reason := ambiguousKeys("", root); reason != "" {
		return Event{}, violation(root.Get("type").Str, field, reason, data)
	}
	typ := root.Get("type")
	if typ.Type != gjson.String {
		return Event{}, violation("", "type", "missing message type", data)
	}
	s, ok := shapes[typ.Str]
	if !ok {
		return Event{}, violation(typ.Str, "type", fmt.Sprintf("no %v* message matches", prefix), data)
	}
	id := root.Get("id")
	if id.Exists() && id.Type != gjson.String {
		return Event{}, violation(typ.Str, "id", "expected string", data)
	}
	payload := root.Get("payload")
	if field, reason := s.checkPayload(payload); reason != "" {
		return Event{}, violation(typ.Str, field, reason, data)
	}
	ev := Event{Type: typ.Str, ID: id.Str}
	if payload.Exists() && s.payload != payloadIgnored {
		ev.Payload = json.RawMessage(payload.Raw)
	}
	return ev, nil
}

// ambiguousKeys rejects objects holding the same key twice, or two keys that
// differ only in case. encoding/json would pick a different one than gjson.
func ambiguousKeys(path string, v gjson.Result) (string, string) {
	switch {
	case v.IsObject():
		seen := map[string]bool{}
		var field, reason string
		v.ForEach(func(key, value gjson.Result) bool {
			p := join(path, key.Str)
			folded := strings.ToLower(key.Str)
			if seen[folded] {
				field, reason = p, "duplicate key"
				return false
			}
			seen[folded] = true
			field, reason = ambiguousKeys(p, value)
			return reason == ""
		})
		return field, reason
	case v.IsArray():
		for i, item := range v.Array() {
			if field, reason := ambiguousKeys(fmt.Sprintf("%v[%d]", path, i), item); reason != "" {
				return field, reason
			}
		}
	}
	return "", ""
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
