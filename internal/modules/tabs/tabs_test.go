package tabs

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

func apply(t *testing.T, r reducer.Reducer, user, typ string, kv ...any) {
	t.Helper()
	ev := ir.Event{Type: typ, Fields: ir.O(kv...)}
	require.NoError(t, r.Reduce(context.Background(), ev, ir.RequestContext{UserID: user}))
}

func names(tabs []Tab) []string {
	out := make([]string, len(tabs))
	for i, t := range tabs {
		out[i] = t.Name
	}
	return out
}

func active(t *testing.T, st *State, user string) []string {
	t.Helper()
	p, ok := st.ActivePath(user)
	require.True(t, ok, "user %s has no active tab", user)
	return p
}

func TestAdd_AutoNames(t *testing.T) {
	st, r := setup(t)

	apply(t, r, "u1", EventAdd)
	apply(t, r, "u1", EventAdd)
	apply(t, r, "u1", EventAdd, "name", "Notes")

	assert.Equal(t, []string{"New 1", "New 2", "Notes"}, names(st.Root().Children))
	assert.Equal(t, []string{"root", "Notes"}, active(t, st, "u1"))

	// Two children remain, so numbering resumes at 3.
	apply(t, r, "u1", EventDelete, "path", []string{"root", "New 1"})
	apply(t, r, "u1", EventAdd)
	assert.Equal(t, []string{"New 2", "Notes", "New 3"}, names(st.Root().Children))

	// A leaf cannot hold children.
	apply(t, r, "u1", EventAdd, "parent", []string{"root", "Notes"})
	assert.Empty(t, st.Root().Children[1].Children)
}

func TestRename_RepointsActives(t *testing.T) {
	st, r := setup(t)
	apply(t, r, "u1", EventAdd, "name", "A")
	apply(t, r, "u2", EventAdd, "name", "Other")
	apply(t, r, "u3", EventAdd, "parent", []string{"root", "A"}) // fails silently: A is a leaf

	apply(t, r, "u1", EventActivate, "path", []string{"root", "A"})
	apply(t, r, "anyone", EventRename, "path", []string{"root", "A"}, "name", "B")

	assert.Equal(t, []string{"root", "B"}, active(t, st, "u1"))
	assert.Equal(t, []string{"root", "Other"}, active(t, st, "u2"))
	assert.Equal(t, []string{"B", "Other"}, names(st.Root().Children))
}

func TestRename_DescendantsFollow(t *testing.T) {
	st, r := setup(t)
	apply(t, r, "u1", EventAdd, "name", "A")
	apply(t, r, "u1", EventConvertToGroup, "path", []string{"root", "A"})
	require.Equal(t, []string{"root", "Group 1", "A"}, active(t, st, "u1"))

	apply(t, r, "u1", EventRename, "path", []string{"root", "Group 1"}, "name", "Design")
	assert.Equal(t, []string{"root", "Design", "A"}, active(t, st, "u1"))
}

func TestRename_SiblingCollisionRefused(t *testing.T) {
	st, r := setup(t)
	apply(t, r, "u1", EventAdd, "name", "A")
	apply(t, r, "u1", EventAdd, "name", "B")

	apply(t, r, "u1", EventRename, "path", []string{"root", "A"}, "name", "B")
	assert.Equal(t, []string{"A", "B"}, names(st.Root().Children))
}

func TestConvertToGroup(t *testing.T) {
	st, r := setup(t)
	apply(t, r, "u1", EventAdd, "name", "Sketch")
	apply(t, r, "u2", EventActivate, "path", []string{"root", "Sketch"})

	apply(t, r, "u1", EventConvertToGroup, "path", []string{"root", "Sketch"})

	root := st.Root()
	require.Len(t, root.Children, 1)
	g := root.Children[0]
	assert.Equal(t, "Group 1", g.Name)
	assert.True(t, g.Group)
	assert.Equal(t, []string{"Sketch"}, names(g.Children))

	assert.Equal(t, []string{"root", "Group 1", "Sketch"}, active(t, st, "u1"))
	assert.Equal(t, []string{"root", "Group 1", "Sketch"}, active(t, st, "u2"))

	// Groups are not converted again.
	apply(t, r, "u1", EventConvertToGroup, "path", []string{"root", "Group 1"})
	assert.Len(t, st.Root().Children, 1)
	assert.Len(t, st.Root().Children[0].Children, 1)
}

func TestDelete_Fallbacks(t *testing.T) {
	st, r := setup(t)
	apply(t, r, "u1", EventAdd, "name", "A")
	apply(t, r, "u1", EventAdd, "name", "B")
	apply(t, r, "u1", EventAdd, "name", "C")

	apply(t, r, "u1", EventActivate, "path", []string{"root", "B"})
	apply(t, r, "u2", EventActivate, "path", []string{"root", "A"})
	apply(t, r, "u3", EventActivate, "path", []string{"root", "C"})

	apply(t, r, "x", EventDelete, "path", []string{"root", "B"})
	assert.Equal(t, []string{"root", "A"}, active(t, st, "u1"), "previous sibling")

	apply(t, r, "x", EventDelete, "path", []string{"root", "A"})
	assert.Equal(t, []string{"root", "C"}, active(t, st, "u1"), "next sibling")
	assert.Equal(t, []string{"root", "C"}, active(t, st, "u2"))

	apply(t, r, "x", EventDelete, "path", []string{"root", "C"})
	assert.Equal(t, []string{"root"}, active(t, st, "u3"), "parent")
	assert.Empty(t, st.Root().Children)

	apply(t, r, "x", EventDelete, "path", []string{"root"})
	assert.Equal(t, RootName, st.Root().Name, "root survives")
}

func TestActivate_UnknownPathIgnored(t *testing.T) {
	st, r := setup(t)
	apply(t, r, "u1", EventActivate, "path", []string{"root", "ghost"})
	_, ok := st.ActivePath("u1")
	assert.False(t, ok)

	apply(t, r, "u1", EventActivate, "path", []string{"root"})
	assert.Equal(t, []string{"root"}, active(t, st, "u1"))
}

func TestMalformedPathFails(t *testing.T) {
	_, r := setup(t)
	err := r.Reduce(context.Background(), ir.Event{Type: EventRename, Fields: ir.O("path", "root/A", "name", "B")}, ir.RequestContext{})
	assert.ErrorIs(t, err, reducer.ErrMalformed)
}
