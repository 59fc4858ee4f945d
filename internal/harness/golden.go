package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cowork/internal/ir"
)

// RunWithGolden executes a scenario and compares its trace and selected
// state against testdata/golden/{name}.golden.
//
// Update golden files with: go test ./internal/harness -update
func RunWithGolden(t *testing.T, s *Scenario) *Result {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	return runGolden(t, g, s)
}

func runGolden(t *testing.T, g *goldie.Goldie, s *Scenario) *Result {
	t.Helper()

	result, err := Run(s)
	if err != nil {
		t.Fatalf("scenario %s failed to execute: %v", s.Name, err)
	}
	if !result.Pass {
		for _, e := range result.Errors {
			t.Errorf("scenario %s: %s", s.Name, e)
		}
	}

	data, err := Snapshot(s, result)
	if err != nil {
		t.Fatalf("scenario %s: golden snapshot: %v", s.Name, err)
	}
	g.Assert(t, s.Name, data)
	return result
}

// Snapshot renders the golden form of a run, the trace plus the selected
// containers, as canonical JSON followed by a newline.
func Snapshot(s *Scenario, r *Result) ([]byte, error) {
	trace, err := ir.FromGo(r.Trace)
	if err != nil {
		return nil, err
	}

	state := r.State
	if len(s.Golden) > 0 {
		state = make(ir.IRObject, len(s.Golden))
		for _, name := range s.Golden {
			if v, ok := r.State[name]; ok {
				state[name] = v
			}
		}
	}

	data, err := ir.MarshalCanonical(ir.IRObject{
		"scenario": ir.IRString(s.Name),
		"state":    state,
		"trace":    trace,
	})
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
