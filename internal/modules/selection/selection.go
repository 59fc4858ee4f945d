// Package selection tracks each user's highlighted nodes and edges per view.
package selection

import (
	"context"
	"slices"

	"github.com/roach88/cowork/internal/ir"
	"github.com/roach88/cowork/internal/module"
	"github.com/roach88/cowork/internal/modules/graph"
	"github.com/roach88/cowork/internal/reducer"
	"github.com/roach88/cowork/internal/shared"
)

// Module and container names.
const (
	Name                = "selection"
	SelectionsContainer = "selection.selections"
)

// Event types handled by the selection reducer.
const (
	EventSet   = "selection:set"
	EventClear = "selection:clear"

	// EventUserLeave is emitted when a user's connection drops.
	EventUserLeave = "user-leave"

	// FieldPresent on a user-leave event records whether the user was
	// still present when the event was emitted.
	FieldPresent = "present"
)

// Selection is one user's selection in one view.
type Selection struct {
	UserID  string   `json:"userId"`
	ViewID  string   `json:"viewId"`
	NodeIDs []string `json:"nodeIds"`
	EdgeIDs []string `json:"edgeIds"`
}

func cloneSelection(s Selection) Selection {
	s.NodeIDs = slices.Clone(s.NodeIDs)
	s.EdgeIDs = slices.Clone(s.EdgeIDs)
	return s
}

// Presence reports whether a user is still connected.
type Presence interface {
	Has(userID string) bool
}

// State holds the selection container and its dependencies.
type State struct {
	Selections *shared.Array[Selection]
	graph      graph.Reader
	presence   Presence
}

// Claim claims the selection container in ns.
func Claim(ns *shared.Namespace, g graph.Reader, presence Presence) (*State, error) {
	sels, err := shared.ClaimArray(ns, SelectionsContainer, cloneSelection)
	if err != nil {
		return nil, err
	}
	return &State{Selections: sels, graph: g, presence: presence}, nil
}

// Module returns the selection module definition. Presence comes from the
// document's awareness set.
func Module() module.Definition {
	return module.Definition{
		Name:      Name,
		DependsOn: []string{graph.Name},
		Setup: func(s *module.Setup) (any, error) {
			g, err := module.Dep[graph.Reader](s, graph.Name)
			if err != nil {
				return nil, err
			}
			ns := s.Namespace()
			st, err := Claim(ns, g, ns.Doc().Awareness())
			if err != nil {
				return nil, err
			}
			s.Register(NewReducer(st))
			return nil, nil
		},
	}
}

// NewReducer builds the selection reducer over st.
func NewReducer(st *State) *reducer.Table {
	return reducer.NewTable(Name).
		On(EventSet, st.set).
		On(EventClear, st.clear).
		On(EventUserLeave, st.userLeave).
		On(graph.EventDeleteNode, st.pruneNode)
}

// For returns the user's selection in a view.
func (s *State) For(userID, viewID string) (Selection, bool) {
	var found Selection
	ok := false
	s.Selections.ForEach(func(_ int, sel Selection) {
		if !ok && sel.UserID == userID && sel.ViewID == viewID {
			found, ok = sel, true
		}
	})
	return found, ok
}

// set replaces the acting user's selection in a view, in place when one
// exists. Ids of nodes and edges that no longer exist are dropped.
func (s *State) set(_ context.Context, ev ir.Event, rc ir.RequestContext) error {
	viewID, err := reducer.String(ev, "viewId")
	if err != nil {
		return err
	}
	nodes, _ := ev.Fields.Strings("nodeIds")
	edges, _ := ev.Fields.Strings("edgeIds")

	sel := Selection{
		UserID:  rc.UserID,
		ViewID:  viewID,
		NodeIDs: slices.DeleteFunc(slices.Clone(nodes), func(id string) bool { return !s.graph.HasNode(id) }),
		EdgeIDs: slices.DeleteFunc(slices.Clone(edges), func(id string) bool { return !s.graph.HasEdge(id) }),
	}
	if sel.NodeIDs == nil {
		sel.NodeIDs = []string{}
	}
	if sel.EdgeIDs == nil {
		sel.EdgeIDs = []string{}
	}

	idx := -1
	s.Selections.ForEach(func(i int, cur Selection) {
		if idx < 0 && cur.UserID == rc.UserID && cur.ViewID == viewID {
			idx = i
		}
	})
	if idx >= 0 && s.Selections.Set(idx, sel) {
		return nil
	}
	s.Selections.Push(sel)
	return nil
}

// clear drops the acting user's selections, in one view when viewId is
// given.
func (s *State) clear(_ context.Context, ev ir.Event, rc ir.RequestContext) error {
	viewID := ev.Fields.StringOr("viewId", "")
	s.Selections.DeleteMatching(func(sel Selection) bool {
		return sel.UserID == rc.UserID && (viewID == "" || sel.ViewID == viewID)
	})
	return nil
}

// userLeave drops every selection of the departed user, unless the user is
// still present (another connection of the same user is alive).
//
// The emitter stamps "present" with the presence it observed; the stamp
// wins over live awareness so a replayed journal makes the same decision.
func (s *State) userLeave(_ context.Context, ev ir.Event, rc ir.RequestContext) error {
	user := ev.Fields.StringOr("userId", rc.UserID)
	present, stamped, err := reducer.OptionalBool(ev, FieldPresent)
	if err != nil {
		return err
	}
	if !stamped {
		present = user != "" && s.presence.Has(user)
	}
	if user == "" || present {
		return nil
	}
	s.Selections.DeleteMatching(func(sel Selection) bool {
		return sel.UserID == user
	})
	return nil
}

// pruneNode removes a deleted node, and edges the cascade removed, from
// every selection. It runs after the graph reducer in load order.
func (s *State) pruneNode(_ context.Context, ev ir.Event, _ ir.RequestContext) error {
	nodeID, err := reducer.String(ev, "id")
	if err != nil {
		return err
	}
	s.Selections.ForEach(func(i int, sel Selection) {
		nodes := slices.DeleteFunc(slices.Clone(sel.NodeIDs), func(id string) bool { return id == nodeID })
		edges := slices.DeleteFunc(slices.Clone(sel.EdgeIDs), func(id string) bool { return !s.graph.HasEdge(id) })
		if len(nodes) == len(sel.NodeIDs) && len(edges) == len(sel.EdgeIDs) {
			return
		}
		sel.NodeIDs, sel.EdgeIDs = nodes, edges
		s.Selections.Set(i, sel)
	})
	return nil
}
