// Package module wires domain modules together at startup.
//
// A module bundles reducers with the shared containers it owns. The loader
// orders modules by their declared dependencies, hands each one its own
// Namespace plus the exports of its dependencies, and registers reducers in
// load order. Load order is deterministic: ties are broken by declaration
// order, so reducer invocation order is stable across restarts.
package module

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/cowork/internal/reducer"
	"github.com/roach88/cowork/internal/shared"
)

// Definition declares a module.
type Definition struct {
	Name      string
	DependsOn []string

	// Setup claims containers, builds reducers and returns the module's
	// exports (may be nil). It runs once, after every dependency's Setup.
	Setup func(s *Setup) (exports any, err error)
}

// Registrar receives reducers in load order. Implemented by
// engine.Processor.
type Registrar interface {
	LoadReducers(rs ...reducer.Reducer)
}

// Setup is what a module sees while it is being loaded.
type Setup struct {
	name     string
	ns       *shared.Namespace
	deps     map[string]any
	reducers []reducer.Reducer
}

// Name returns the module name.
func (s *Setup) Name() string {
	return s.name
}

// Namespace returns the module's container claim capability.
func (s *Setup) Namespace() *shared.Namespace {
	return s.ns
}

// Register queues reducers for registration. They are handed to the
// registrar after every module loaded successfully.
func (s *Setup) Register(rs ...reducer.Reducer) {
	s.reducers = append(s.reducers, rs...)
}

// Dep returns the exports of a declared dependency as T.
func Dep[T any](s *Setup, name string) (T, error) {
	var zero T
	v, ok := s.deps[name]
	if !ok {
		return zero, fmt.Errorf("module %s: %q is not a declared dependency", s.name, name)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("module %s: dependency %q exports %T, not %T", s.name, name, v, zero)
	}
	return t, nil
}

// Loaded describes a successful load.
type Loaded struct {
	// Order is the module load order, which is also reducer registration
	// order.
	Order []string

	// Exports maps module name to its exports.
	Exports map[string]any
}

// Load validates definitions, orders them by dependency and runs their
// Setup functions. Reducers reach reg only if every Setup succeeds.
func Load(doc *shared.Doc, reg Registrar, defs ...Definition) (*Loaded, error) {
	order, err := Order(defs)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]Definition, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}

	loaded := &Loaded{Order: order, Exports: make(map[string]any, len(defs))}
	var all []reducer.Reducer

	for _, name := range order {
		def := byName[name]
		s := &Setup{
			name: name,
			ns:   doc.Namespace(name),
			deps: make(map[string]any, len(def.DependsOn)),
		}
		for _, dep := range def.DependsOn {
			s.deps[dep] = loaded.Exports[dep]
		}

		var exports any
		if def.Setup != nil {
			exports, err = def.Setup(s)
			if err != nil {
				return nil, &LoadError{Code: ErrCodeSetupFailed, Module: name, Err: err}
			}
		}
		loaded.Exports[name] = exports
		all = append(all, s.reducers...)

		slog.Debug("module loaded", "module", name, "reducers", len(s.reducers))
	}

	reg.LoadReducers(all...)
	slog.Info("modules loaded", "order", order, "reducers", len(all))
	return loaded, nil
}

// Order returns module names in dependency order (Kahn's algorithm). Among
// modules whose dependencies are satisfied, the earliest declared loads
// first.
func Order(defs []Definition) ([]string, error) {
	index := make(map[string]int, len(defs))
	for i, d := range defs {
		if d.Name == "" {
			return nil, &LoadError{Code: ErrCodeInvalidModule, Module: fmt.Sprintf("#%d", i), Err: errors.New("empty module name")}
		}
		if _, dup := index[d.Name]; dup {
			return nil, &LoadError{Code: ErrCodeDuplicateModule, Module: d.Name}
		}
		index[d.Name] = i
	}

	indegree := make([]int, len(defs))
	dependents := make([][]int, len(defs))
	for i, d := range defs {
		for _, dep := range d.DependsOn {
			j, ok := index[dep]
			if !ok {
				return nil, &LoadError{Code: ErrCodeMissingDependency, Module: d.Name, Dependency: dep}
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var ready []int
	for i := range defs {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]string, 0, len(defs))
	for len(ready) > 0 {
		slices.Sort(ready)
		i := ready[0]
		ready = ready[1:]
		order = append(order, defs[i].Name)

		for _, k := range dependents[i] {
			indegree[k]--
			if indegree[k] == 0 {
				ready = append(ready, k)
			}
		}
	}

	if len(order) != len(defs) {
		var stuck []string
		for i, d := range defs {
			if indegree[i] > 0 {
				stuck = append(stuck, d.Name)
			}
		}
		return nil, &LoadError{Code: ErrCodeDependencyCycle, Module: strings.Join(stuck, ", ")}
	}
	return order, nil
}
