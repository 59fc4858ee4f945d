package harness

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/cowork/internal/ir"
)

func evaluateAssertion(r *Result, a Assertion) error {
	if a.Outcomes != nil {
		got := r.Outcomes()
		if !slices.Equal(got, a.Outcomes) {
			return fmt.Errorf("outcomes: expected %v, got %v", a.Outcomes, got)
		}
		return nil
	}

	v, found := lookup(r.State, a.Path)

	if a.Absent {
		if found {
			return fmt.Errorf("%s: expected absent, found %s", a.Path, render(v))
		}
		return nil
	}
	if !found {
		return fmt.Errorf("%s: not found", a.Path)
	}

	switch {
	case a.Count != nil:
		n, ok := size(v)
		if !ok {
			return fmt.Errorf("%s: count needs an array or object, got %s", a.Path, render(v))
		}
		if n != *a.Count {
			return fmt.Errorf("%s: expected %d entries, got %d", a.Path, *a.Count, n)
		}

	case a.Equals != nil:
		want, err := ir.FromGo(a.Equals)
		if err != nil {
			return fmt.Errorf("%s: expected value: %w", a.Path, err)
		}
		if !equal(want, v) {
			return fmt.Errorf("%s: expected %s, got %s", a.Path, render(want), render(v))
		}
	}
	return nil
}

// lookup walks a "/"-separated path from the state root. Object segments
// are keys; array segments are decimal indexes.
func lookup(state ir.IRObject, path string) (ir.IRValue, bool) {
	var cur ir.IRValue = state
	for _, seg := range strings.Split(path, "/") {
		switch v := cur.(type) {
		case ir.IRObject:
			next, ok := v[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case ir.IRArray:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			cur = v[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

func size(v ir.IRValue) (int, bool) {
	switch val := v.(type) {
	case ir.IRObject:
		return len(val), true
	case ir.IRArray:
		return len(val), true
	}
	return 0, false
}

func equal(a, b ir.IRValue) bool {
	ab, err := ir.MarshalCanonical(a)
	if err != nil {
		return false
	}
	bb, err := ir.MarshalCanonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func render(v ir.IRValue) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
