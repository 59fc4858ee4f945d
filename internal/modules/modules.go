// Package modules assembles the built-in domain modules.
package modules

import (
	"github.com/roach88/cowork/internal/ids"
	"github.com/roach88/cowork/internal/module"
	"github.com/roach88/cowork/internal/modules/chat"
	"github.com/roach88/cowork/internal/modules/graph"
	"github.com/roach88/cowork/internal/modules/selection"
	"github.com/roach88/cowork/internal/modules/tabs"
)

// Default returns the built-in modules in canonical declaration order. The
// loader turns this into load order graph, chat, tabs, selection, which is
// also reducer invocation order.
func Default(gen ids.Generator) []module.Definition {
	return []module.Definition{
		graph.Module(),
		chat.Module(gen),
		tabs.Module(),
		selection.Module(),
	}
}
