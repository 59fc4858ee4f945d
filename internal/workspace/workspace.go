// Package workspace assembles a running collaborative document: the shared
// store, the event processor and the built-in modules.
package workspace

import (
	"fmt"

	"github.com/roach88/cowork/internal/engine"
	"github.com/roach88/cowork/internal/ids"
	"github.com/roach88/cowork/internal/module"
	"github.com/roach88/cowork/internal/modules"
	"github.com/roach88/cowork/internal/shared"
)

// Workspace is one document with its processor.
type Workspace struct {
	Doc       *shared.Doc
	Processor *engine.Processor
	Modules   *module.Loaded
}

// New creates a workspace with the default modules. The processor always
// wraps reducer chains in doc transactions; opts add journal, clock and
// sequence table settings.
func New(gen ids.Generator, opts ...engine.Option) (*Workspace, error) {
	return NewWithModules(modules.Default(gen), opts...)
}

// NewWithModules creates a workspace with an explicit module set.
func NewWithModules(defs []module.Definition, opts ...engine.Option) (*Workspace, error) {
	doc := shared.NewDoc()
	p := engine.New(append([]engine.Option{engine.WithDoc(doc)}, opts...)...)

	loaded, err := module.Load(doc, p, defs...)
	if err != nil {
		return nil, fmt.Errorf("load modules: %w", err)
	}
	return &Workspace{Doc: doc, Processor: p, Modules: loaded}, nil
}
