package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/cowork/internal/engine"
	"github.com/roach88/cowork/internal/ids"
	"github.com/roach88/cowork/internal/ir"
	"github.com/roach88/cowork/internal/modules/selection"
	"github.com/roach88/cowork/internal/reducer"
	"github.com/roach88/cowork/internal/testutil"
	"github.com/roach88/cowork/internal/workspace"
)

// Run executes a scenario against a fresh workspace.
//
// The returned error covers setup problems only. Step and assertion
// failures land in Result.Errors.
func Run(s *Scenario) (*Result, error) {
	return RunContext(context.Background(), s)
}

// RunContext is Run with an explicit context.
func RunContext(ctx context.Context, s *Scenario) (*Result, error) {
	if err := validateScenario(s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	clock := testutil.NewManualTime(testutil.Epoch)
	journal := testutil.NewMemJournal()

	var gen ids.Generator = ids.NewSequential("id")
	if len(s.IDs) > 0 {
		gen = ids.NewFixed(s.IDs...)
	}

	ws, err := workspace.New(gen,
		engine.WithJournal(journal),
		engine.WithNow(clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	for _, user := range s.Present {
		ws.Doc.Awareness().Set(user, clock.Now())
	}

	result := &Result{Pass: true}
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if step.At != "" {
			d, _ := time.ParseDuration(step.At)
			clock.Set(testutil.Epoch.Add(d))
		}

		stepErr, err := runStep(ctx, ws, clock.Now(), step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		if msg := checkExpectation(step.ExpectError, stepErr); msg != "" {
			result.AddError("steps[%d]: %s", i, msg)
		}
	}

	result.Trace = traceFrom(journal.Entries())

	state, err := ws.Doc.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	result.State = state

	digest, err := ws.Doc.Digest()
	if err != nil {
		return nil, fmt.Errorf("digest: %w", err)
	}
	result.Digest = digest

	for i, a := range s.Assertions {
		if err := evaluateAssertion(result, a); err != nil {
			result.AddError("assertions[%d]: %v", i, err)
		}
	}

	slog.Debug("scenario complete",
		"name", s.Name,
		"pass", result.Pass,
		"events", len(result.Trace),
	)
	return result, nil
}

// runStep performs one step. The first return is the processing error the
// step's expectation is checked against; the second is a setup failure.
func runStep(ctx context.Context, ws *workspace.Workspace, now time.Time, step Step) (error, error) {
	switch {
	case step.Event != nil:
		ev, err := toEvent(step.Event)
		if err != nil {
			return nil, err
		}
		rc := ir.RequestContext{UserID: step.User, Time: now}
		return ws.Processor.ProcessEvent(ctx, ev, rc), nil

	case step.Tick:
		ws.Processor.Tick(ctx)
		return nil, nil

	case step.Join != "":
		ws.Doc.Awareness().Set(step.Join, now)
		return nil, nil

	case step.Leave != "":
		aware := ws.Doc.Awareness()
		aware.Remove(step.Leave)
		ev := ir.Event{
			Type:   selection.EventUserLeave,
			Fields: ir.O("userId", step.Leave, selection.FieldPresent, aware.Has(step.Leave)),
		}
		rc := ir.RequestContext{UserID: step.Leave, Time: now}
		return ws.Processor.ProcessEvent(ctx, ev, rc), nil
	}
	return nil, errors.New("empty step")
}

// checkExpectation returns a failure message, or "" when err matches.
func checkExpectation(expect string, err error) string {
	switch {
	case expect == "" && err == nil:
		return ""
	case expect == "":
		return fmt.Sprintf("unexpected error: %v", err)
	case err == nil:
		return fmt.Sprintf("expected error %q, got success", expect)
	}

	switch expect {
	case ExpectAny:
		return ""
	case ExpectMalformed:
		if errors.Is(err, reducer.ErrMalformed) {
			return ""
		}
		return fmt.Sprintf("expected malformed event, got: %v", err)
	}

	var re *engine.ReducerError
	if errors.As(err, &re) && string(re.Code) == expect {
		return ""
	}
	return fmt.Sprintf("expected error code %s, got: %v", expect, err)
}
