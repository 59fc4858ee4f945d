package ir

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope keys. Everything else in the envelope is a domain field.
const (
	KeyType                = "type"
	KeySequenceID          = "sequenceId"
	KeySequenceCounter     = "sequenceCounter"
	KeySequenceRevertPoint = "sequenceRevertPoint"
	KeySequenceEnd         = "sequenceEnd"
)

// ErrMissingType is returned when an envelope has no string "type".
var ErrMissingType = errors.New("event envelope: missing type")

// Envelope returns the flattened wire form of the event: domain fields
// inline, sequence metadata only when set.
func (e Event) Envelope() IRObject {
	obj := make(IRObject, len(e.Fields)+5)
	for k, v := range e.Fields {
		obj[k] = v
	}
	obj[KeyType] = IRString(e.Type)
	if e.SequenceID != "" {
		obj[KeySequenceID] = IRString(e.SequenceID)
		obj[KeySequenceCounter] = IRInt(e.SequenceCounter)
		if e.SequenceRevertPoint {
			obj[KeySequenceRevertPoint] = IRBool(true)
		}
		if e.SequenceEnd {
			obj[KeySequenceEnd] = IRBool(true)
		}
	}
	return obj
}

// EventFromEnvelope splits a flattened envelope into an Event.
// The envelope is not validated beyond the metadata types; domain schema
// validation belongs to the API layer.
func EventFromEnvelope(obj IRObject) (Event, error) {
	typ, ok := obj.String(KeyType)
	if !ok || typ == "" {
		return Event{}, ErrMissingType
	}

	ev := Event{Type: typ, Fields: make(IRObject, len(obj))}
	for k, v := range obj {
		switch k {
		case KeyType:
		case KeySequenceID:
			s, ok := v.(IRString)
			if !ok {
				return Event{}, fmt.Errorf("event envelope: %s must be a string", k)
			}
			ev.SequenceID = string(s)
		case KeySequenceCounter:
			n, ok := v.(IRInt)
			if !ok {
				return Event{}, fmt.Errorf("event envelope: %s must be an integer", k)
			}
			ev.SequenceCounter = int64(n)
		case KeySequenceRevertPoint:
			b, ok := v.(IRBool)
			if !ok {
				return Event{}, fmt.Errorf("event envelope: %s must be a boolean", k)
			}
			ev.SequenceRevertPoint = bool(b)
		case KeySequenceEnd:
			b, ok := v.(IRBool)
			if !ok {
				return Event{}, fmt.Errorf("event envelope: %s must be a boolean", k)
			}
			ev.SequenceEnd = bool(b)
		default:
			ev.Fields[k] = v
		}
	}
	return ev, nil
}

// MarshalJSON encodes the flattened envelope.
func (e Event) MarshalJSON() ([]byte, error) {
	return e.Envelope().MarshalJSON()
}

// UnmarshalJSON decodes a flattened envelope.
func (e *Event) UnmarshalJSON(data []byte) error {
	var obj IRObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("event envelope: %w", err)
	}
	ev, err := EventFromEnvelope(obj)
	if err != nil {
		return err
	}
	*e = ev
	return nil
}
