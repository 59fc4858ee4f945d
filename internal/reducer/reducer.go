// Package reducer defines the contract between the event processor and the
// domain modules that mutate shared state.
package reducer

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/cowork/internal/ir"
)

// Reducer applies one domain's mutations for an event.
//
// Reduce is called for every event the processor accepts. A reducer that
// does not handle ev.Type returns nil immediately. Domain absences (missing
// entity, unauthorized edit) are silent no-ops; a returned error means a
// logic fault and fails the event.
type Reducer interface {
	Name() string
	Reduce(ctx context.Context, ev ir.Event, rc ir.RequestContext) error
}

// Router is implemented by reducers that can list the event types they
// handle. The processor uses it to skip reducers that would no-op. A reducer
// that is not a Router, or whose Handles returns nil, sees every event.
type Router interface {
	Handles() []string
}

// HandlerFunc handles one event type.
type HandlerFunc func(ctx context.Context, ev ir.Event, rc ir.RequestContext) error

// Table is a Reducer built from an event type to handler registration.
// Unregistered types are no-ops.
type Table struct {
	name     string
	handlers map[string]HandlerFunc
	order    []string
}

// NewTable creates an empty handler table.
func NewTable(name string) *Table {
	return &Table{name: name, handlers: make(map[string]HandlerFunc)}
}

// On registers h for eventType. Registering a type twice panics: it is a
// wiring bug caught at startup.
func (t *Table) On(eventType string, h HandlerFunc) *Table {
	if _, dup := t.handlers[eventType]; dup {
		panic(fmt.Sprintf("reducer %s: duplicate handler for %q", t.name, eventType))
	}
	t.handlers[eventType] = h
	t.order = append(t.order, eventType)
	return t
}

// Name implements Reducer.
func (t *Table) Name() string {
	return t.name
}

// Handles implements Router.
func (t *Table) Handles() []string {
	return slices.Clone(t.order)
}

// Reduce implements Reducer.
func (t *Table) Reduce(ctx context.Context, ev ir.Event, rc ir.RequestContext) error {
	h, ok := t.handlers[ev.Type]
	if !ok {
		return nil
	}
	return h(ctx, ev, rc)
}

// Func adapts a plain function into a Reducer that sees every event.
type Func struct {
	ReducerName string
	Fn          HandlerFunc
}

// Name implements Reducer.
func (f Func) Name() string { return f.ReducerName }

// Reduce implements Reducer.
func (f Func) Reduce(ctx context.Context, ev ir.Event, rc ir.RequestContext) error {
	return f.Fn(ctx, ev, rc)
}
