package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cowork/internal/ir"
	"github.com/roach88/cowork/internal/reducer"
	"github.com/roach88/cowork/internal/shared"
)

func setup(t *testing.T) (*State, *reducer.Table) {
	t.Helper()
	st, err := Claim(shared.NewDoc().Namespace(Name))
	require.NoError(t, err)
	return st, NewReducer(st)
}

func apply(t *testing.T, r reducer.Reducer, typ string, kv ...any) {
	t.Helper()
	err := r.Reduce(context.Background(), ir.Event{Type: typ, Fields: ir.O(kv...)}, ir.RequestContext{UserID: "u1"})
	require.NoError(t, err)
}

func TestAddAndMoveNode(t *testing.T) {
	st, r := setup(t)

	apply(t, r, EventAddNode, "id", "A", "label", "Alpha", "x", 10, "y", 20)
	apply(t, r, EventAddNode, "id", "A", "label", "ignored")
	apply(t, r, EventMoveNode, "id", "A", "x", 30, "y", 40)
	apply(t, r, EventMoveNode, "id", "ghost", "x", 1, "y", 1)

	n, ok := st.Nodes.Get("A")
	require.True(t, ok)
	assert.Equal(t, Node{ID: "A", Label: "Alpha", X: 30, Y: 40}, n)
	assert.False(t, st.Nodes.Has("ghost"), "move of a missing node is a no-op")
}

func TestMoveNode_MalformedFails(t *testing.T) {
	_, r := setup(t)
	apply(t, r, EventAddNode, "id", "A")

	err := r.Reduce(context.Background(), ir.Event{Type: EventMoveNode, Fields: ir.O("id", "A", "x", "left")}, ir.RequestContext{})
	assert.ErrorIs(t, err, reducer.ErrMalformed)
}

func TestUpdateNode_MergesData(t *testing.T) {
	st, r := setup(t)
	apply(t, r, EventAddNode, "id", "A", "data", ir.O("color", "red", "size", 2))

	ev := ir.Event{Type: EventUpdateNode, Fields: ir.IRObject{
		"id":    ir.IRString("A"),
		"label": ir.IRString("renamed"),
		"data":  ir.IRObject{"color": ir.IRNull{}, "shape": ir.IRString("box")},
	}}
	require.NoError(t, r.Reduce(context.Background(), ev, ir.RequestContext{}))

	n, _ := st.Nodes.Get("A")
	assert.Equal(t, "renamed", n.Label)
	assert.Equal(t, ir.O("size", 2, "shape", "box"), n.Data)
}

func TestDeleteNode_CascadesEdges(t *testing.T) {
	st, r := setup(t)
	apply(t, r, EventAddNode, "id", "A")
	apply(t, r, EventAddNode, "id", "B")
	apply(t, r, EventAddNode, "id", "C")
	apply(t, r, EventAddEdge, "id", "A-B", "source", "A", "target", "B")
	apply(t, r, EventAddEdge, "id", "C-A", "source", "C", "target", "A")
	apply(t, r, EventAddEdge, "id", "B-C", "source", "B", "target", "C")

	// Observers must never see an edge whose endpoint is gone.
	var dangling bool
	st.Nodes.Observe(func([]shared.Change) {
		st.Edges.ForEach(func(_ string, e Edge) {
			if !st.Nodes.Has(e.Source) || !st.Nodes.Has(e.Target) {
				dangling = true
			}
		})
	})

	apply(t, r, EventDeleteNode, "id", "A")

	assert.False(t, st.Nodes.Has("A"))
	assert.True(t, st.Nodes.Has("B"))
	assert.Equal(t, []string{"B-C"}, st.Edges.Keys())
	assert.False(t, dangling)
}

func TestAddEdge_RequiresEndpoints(t *testing.T) {
	st, r := setup(t)
	apply(t, r, EventAddNode, "id", "A")
	apply(t, r, EventAddEdge, "id", "A-X", "source", "A", "target", "X")
	assert.Equal(t, 0, st.Edges.Len())

	apply(t, r, EventAddNode, "id", "B")
	apply(t, r, EventAddEdge, "id", "A-B", "source", "A", "target", "B")
	assert.True(t, st.HasEdge("A-B"))

	apply(t, r, EventDeleteEdge, "id", "A-B")
	assert.False(t, st.HasEdge("A-B"))
	apply(t, r, EventDeleteEdge, "id", "A-B")
}

func TestUnhandledTypeIsNoop(t *testing.T) {
	st, r := setup(t)
	apply(t, r, "chat:new-message", "chatId", "c1", "content", "hi")
	assert.Equal(t, 0, st.Nodes.Len())
}
