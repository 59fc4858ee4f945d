// Package graph is the core graph module: node and edge records of the
// shared canvas.
package graph

import (
	"context"

	"github.com/roach88/cowork/internal/ir"
	"github.com/roach88/cowork/internal/module"
	"github.com/roach88/cowork/internal/reducer"
	"github.com/roach88/cowork/internal/shared"
)

// Module and container names.
const (
	Name           = "graph"
	NodesContainer = "graph.nodes"
	EdgesContainer = "graph.edges"
)

// Event types handled by the graph reducer.
const (
	EventAddNode    = "graph:add-node"
	EventUpdateNode = "graph:update-node"
	EventMoveNode   = "graph:move-node"
	EventDeleteNode = "graph:delete-node"
	EventAddEdge    = "graph:add-edge"
	EventDeleteEdge = "graph:delete-edge"
)

// Node is a canvas node. Positions are integer canvas units.
type Node struct {
	ID    string      `json:"id"`
	Kind  string      `json:"kind,omitempty"`
	Label string      `json:"label"`
	X     int64       `json:"x"`
	Y     int64       `json:"y"`
	Data  ir.IRObject `json:"data,omitempty"`
}

func cloneNode(n Node) Node {
	n.Data = n.Data.Clone()
	return n
}

// Edge connects two nodes.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// Reader is the read-only view other modules depend on.
type Reader interface {
	HasNode(id string) bool
	HasEdge(id string) bool
}

// State holds the graph containers.
type State struct {
	Nodes *shared.Map[Node]
	Edges *shared.Map[Edge]
}

// HasNode implements Reader.
func (s *State) HasNode(id string) bool {
	return s.Nodes.Has(id)
}

// HasEdge implements Reader.
func (s *State) HasEdge(id string) bool {
	return s.Edges.Has(id)
}

// Claim claims the graph containers in ns.
func Claim(ns *shared.Namespace) (*State, error) {
	nodes, err := shared.ClaimMap(ns, NodesContainer, cloneNode)
	if err != nil {
		return nil, err
	}
	edges, err := shared.ClaimMap[Edge](ns, EdgesContainer, nil)
	if err != nil {
		return nil, err
	}
	return &State{Nodes: nodes, Edges: edges}, nil
}

// Module returns the graph module definition. It exports a Reader.
func Module() module.Definition {
	return module.Definition{
		Name: Name,
		Setup: func(s *module.Setup) (any, error) {
			st, err := Claim(s.Namespace())
			if err != nil {
				return nil, err
			}
			s.Register(NewReducer(st))
			var r Reader = st
			return r, nil
		},
	}
}

// NewReducer builds the graph reducer over st.
func NewReducer(st *State) *reducer.Table {
	return reducer.NewTable(Name).
		On(EventAddNode, st.addNode).
		On(EventUpdateNode, st.updateNode).
		On(EventMoveNode, st.moveNode).
		On(EventDeleteNode, st.deleteNode).
		On(EventAddEdge, st.addEdge).
		On(EventDeleteEdge, st.deleteEdge)
}

func (s *State) addNode(_ context.Context, ev ir.Event, _ ir.RequestContext) error {
	id, err := reducer.String(ev, "id")
	if err != nil {
		return err
	}
	n := Node{
		ID:    id,
		Kind:  ev.Fields.StringOr("kind", ""),
		Label: ev.Fields.StringOr("label", ""),
	}
	n.X, _ = ev.Fields.Int("x")
	n.Y, _ = ev.Fields.Int("y")
	if data, ok := ev.Fields.Object("data"); ok {
		n.Data = data.Clone()
	}

	// An existing id is left alone: add is not an upsert.
	s.Nodes.Update(id, func(_ Node, exists bool) (Node, bool) {
		return n, !exists
	})
	return nil
}

func (s *State) updateNode(_ context.Context, ev ir.Event, _ ir.RequestContext) error {
	id, err := reducer.String(ev, "id")
	if err != nil {
		return err
	}
	s.Nodes.Update(id, func(n Node, ok bool) (Node, bool) {
		if !ok {
			return n, false
		}
		if label, ok := ev.Fields.String("label"); ok {
			n.Label = label
		}
		if kind, ok := ev.Fields.String("kind"); ok {
			n.Kind = kind
		}
		if data, ok := ev.Fields.Object("data"); ok {
			if n.Data == nil {
				n.Data = make(ir.IRObject, len(data))
			}
			for k, v := range data {
				if _, null := v.(ir.IRNull); null {
					delete(n.Data, k)
					continue
				}
				n.Data[k] = ir.CloneValue(v)
			}
		}
		return n, true
	})
	return nil
}

func (s *State) moveNode(_ context.Context, ev ir.Event, _ ir.RequestContext) error {
	id, err := reducer.String(ev, "id")
	if err != nil {
		return err
	}
	x, err := reducer.Int(ev, "x")
	if err != nil {
		return err
	}
	y, err := reducer.Int(ev, "y")
	if err != nil {
		return err
	}
	s.Nodes.Update(id, func(n Node, ok bool) (Node, bool) {
		n.X, n.Y = x, y
		return n, ok
	})
	return nil
}

// deleteNode removes every edge touching the node before the node itself,
// so no observer ever sees a dangling edge.
func (s *State) deleteNode(_ context.Context, ev ir.Event, _ ir.RequestContext) error {
	id, err := reducer.String(ev, "id")
	if err != nil {
		return err
	}
	if !s.Nodes.Has(id) {
		return nil
	}

	var touching []string
	s.Edges.ForEach(func(key string, e Edge) {
		if e.Source == id || e.Target == id {
			touching = append(touching, key)
		}
	})
	for _, key := range touching {
		s.Edges.Delete(key)
	}
	s.Nodes.Delete(id)
	return nil
}

func (s *State) addEdge(_ context.Context, ev ir.Event, _ ir.RequestContext) error {
	id, err := reducer.String(ev, "id")
	if err != nil {
		return err
	}
	src, err := reducer.String(ev, "source")
	if err != nil {
		return err
	}
	dst, err := reducer.String(ev, "target")
	if err != nil {
		return err
	}
	if !s.Nodes.Has(src) || !s.Nodes.Has(dst) {
		return nil
	}

	e := Edge{ID: id, Source: src, Target: dst, Label: ev.Fields.StringOr("label", "")}
	s.Edges.Update(id, func(_ Edge, exists bool) (Edge, bool) {
		return e, !exists
	})
	return nil
}

func (s *State) deleteEdge(_ context.Context, ev ir.Event, _ ir.RequestContext) error {
	id, err := reducer.String(ev, "id")
	if err != nil {
		return err
	}
	s.Edges.Delete(id)
	return nil
}
