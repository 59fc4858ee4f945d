package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/cowork/internal/ir"
)

// marshalEnvelope converts an event to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON, so the stored text hashes to the event id.
func marshalEnvelope(ev ir.Event) (string, error) {
	data, err := ir.MarshalCanonical(ev.Envelope())
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return string(data), nil
}

// unmarshalEnvelope parses canonical JSON TEXT back into an event.
// Uses ir.IRObject.UnmarshalJSON which keeps integers as int64 via
// json.Number, avoiding float64 precision loss for values > 2^53.
func unmarshalEnvelope(data string) (ir.Event, error) {
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return ir.Event{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	ev, err := ir.EventFromEnvelope(obj)
	if err != nil {
		return ir.Event{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return ev, nil
}

// Receive times are stored as unix nanoseconds and read back in UTC.
func timeToColumn(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func timeFromColumn(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
