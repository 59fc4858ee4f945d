package reducer

import (
	"errors"
	"fmt"

	"github.com/roach88/cowork/internal/ir"
)

// ErrMalformed is wrapped by errors for events whose payload lacks a
// required field or carries the wrong type. A malformed event is a client
// fault, not a domain absence, so it fails the event.
var ErrMalformed = errors.New("malformed event")

// String returns a required string field.
func String(ev ir.Event, key string) (string, error) {
	s, ok := ev.Fields.String(key)
	if !ok || s == "" {
		return "", fmt.Errorf("%s: %w: %q must be a non-empty string", ev.Type, ErrMalformed, key)
	}
	return s, nil
}

// Int returns a required integer field.
func Int(ev ir.Event, key string) (int64, error) {
	n, ok := ev.Fields.Int(key)
	if !ok {
		return 0, fmt.Errorf("%s: %w: %q must be an integer", ev.Type, ErrMalformed, key)
	}
	return n, nil
}

// Path returns a required non-empty string array field.
func Path(ev ir.Event, key string) ([]string, error) {
	p, ok := ev.Fields.Strings(key)
	if !ok || len(p) == 0 {
		return nil, fmt.Errorf("%s: %w: %q must be a non-empty string array", ev.Type, ErrMalformed, key)
	}
	return p, nil
}

// OptionalBool returns an optional boolean field. set is false when the
// field is absent; a present non-boolean value is malformed.
func OptionalBool(ev ir.Event, key string) (v, set bool, err error) {
	if _, ok := ev.Fields[key]; !ok {
		return false, false, nil
	}
	b, ok := ev.Fields.Bool(key)
	if !ok {
		return false, false, fmt.Errorf("%s: %w: %q must be a boolean", ev.Type, ErrMalformed, key)
	}
	return b, true, nil
}
