package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cowork/internal/ids"
	"github.com/roach88/cowork/internal/ir"
	"github.com/roach88/cowork/internal/reducer"
	"github.com/roach88/cowork/internal/shared"
)

type fakeGraph map[string]bool

func (g fakeGraph) HasNode(id string) bool { return g[id] }
func (g fakeGraph) HasEdge(string) bool    { return false }

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func setup(t *testing.T) (*State, *reducer.Table) {
	t.Helper()
	st, err := Claim(shared.NewDoc().Namespace(Name), fakeGraph{"A": true}, ids.NewSequential("chat"))
	require.NoError(t, err)
	return st, NewReducer(st)
}

func apply(t *testing.T, r reducer.Reducer, user string, at time.Time, typ string, kv ...any) {
	t.Helper()
	rc := ir.RequestContext{UserID: user, Time: at}
	require.NoError(t, r.Reduce(context.Background(), ir.Event{Type: typ, Fields: ir.O(kv...)}, rc))
}

func TestNewChat(t *testing.T) {
	st, r := setup(t)

	apply(t, r, "u1", t0, EventNewChat, "nodeId", "A", "content", "first!")
	apply(t, r, "u1", t0, EventNewChat, "id", "given")
	apply(t, r, "u1", t0, EventNewChat, "nodeId", "missing")

	assert.Equal(t, []string{"chat-1", "given"}, st.Threads.Keys())

	th, _ := st.Threads.Get("chat-1")
	assert.Equal(t, "A", th.NodeID)
	assert.Equal(t, "u1", th.CreatedBy)
	assert.Equal(t, t0.UnixMilli(), th.CreatedAt)
	require.Len(t, th.Messages, 1)
	assert.Equal(t, int64(0), th.LastRead["u1"])

	empty, _ := st.Threads.Get("given")
	assert.Empty(t, empty.Messages)
}

func TestNewMessage_AdvancesReadAndClearsTyping(t *testing.T) {
	st, r := setup(t)
	apply(t, r, "u1", t0, EventNewChat, "id", "c")
	apply(t, r, "u2", t0, EventTyping, "chatId", "c")
	apply(t, r, "u2", t0, EventNewMessage, "chatId", "c", "content", "hello")
	apply(t, r, "u1", t0, EventNewMessage, "chatId", "c", "content", "hi back")
	apply(t, r, "u1", t0, EventNewMessage, "chatId", "nope", "content", "lost")

	th, _ := st.Threads.Get("c")
	require.Len(t, th.Messages, 2)
	assert.Equal(t, map[string]int64{"u2": 0, "u1": 1}, th.LastRead)
	assert.Empty(t, th.Typing)
}

func TestRead_NeverMovesBackwards(t *testing.T) {
	st, r := setup(t)
	apply(t, r, "u1", t0, EventNewChat, "id", "c", "content", "a")
	apply(t, r, "u1", t0, EventNewMessage, "chatId", "c", "content", "b")
	apply(t, r, "u1", t0, EventNewMessage, "chatId", "c", "content", "c")

	apply(t, r, "u2", t0, EventRead, "chatId", "c", "index", 99)
	th, _ := st.Threads.Get("c")
	assert.Equal(t, int64(2), th.LastRead["u2"], "clamped to last message")

	apply(t, r, "u2", t0, EventRead, "chatId", "c", "index", 0)
	th, _ = st.Threads.Get("c")
	assert.Equal(t, int64(2), th.LastRead["u2"])
}

func TestDeleteMessage_OnlyAuthor(t *testing.T) {
	st, r := setup(t)
	apply(t, r, "author", t0, EventNewChat, "id", "c", "content", "secret")

	apply(t, r, "intruder", t0, EventDeleteMessage, "chatId", "c", "index", 0)
	th, _ := st.Threads.Get("c")
	assert.Equal(t, "secret", th.Messages[0].Content)
	assert.False(t, th.Messages[0].Deleted)

	apply(t, r, "author", t0, EventDeleteMessage, "chatId", "c", "index", 0)
	th, _ = st.Threads.Get("c")
	assert.Equal(t, DeletedContent, th.Messages[0].Content)
	assert.True(t, th.Messages[0].Deleted)

	apply(t, r, "author", t0, EventDeleteMessage, "chatId", "c", "index", 7)
}

func TestResolveToggle(t *testing.T) {
	st, r := setup(t)
	apply(t, r, "u1", t0, EventNewChat, "id", "c")

	apply(t, r, "u1", t0, EventResolve, "chatId", "c")
	th, _ := st.Threads.Get("c")
	assert.True(t, th.Resolved)

	apply(t, r, "u1", t0, EventResolve, "chatId", "c", "resolved", false)
	th, _ = st.Threads.Get("c")
	assert.False(t, th.Resolved)
}

func TestPeriodic_ExpiresStaleTyping(t *testing.T) {
	st, r := setup(t)
	apply(t, r, "u1", t0, EventNewChat, "id", "c")
	apply(t, r, "old", t0, EventTyping, "chatId", "c")
	apply(t, r, "fresh", t0.Add(8*time.Second), EventTyping, "chatId", "c")

	var changes int
	st.Threads.Observe(func(cs []shared.Change) { changes += len(cs) })

	apply(t, r, ir.GatewayUserID, t0.Add(5*time.Second), ir.EventTypePeriodic)
	assert.Equal(t, 0, changes, "idle tick writes nothing")

	apply(t, r, ir.GatewayUserID, t0.Add(11*time.Second), ir.EventTypePeriodic)
	th, _ := st.Threads.Get("c")
	assert.Equal(t, map[string]int64{"fresh": t0.Add(8 * time.Second).UnixMilli()}, th.Typing)
	assert.Equal(t, 1, changes)
}

func TestTyping_Off(t *testing.T) {
	st, r := setup(t)
	apply(t, r, "u1", t0, EventNewChat, "id", "c")
	apply(t, r, "u1", t0, EventTyping, "chatId", "c", "typing", true)
	apply(t, r, "u1", t0, EventTyping, "chatId", "c", "typing", false)

	th, _ := st.Threads.Get("c")
	assert.Empty(t, th.Typing)
}

func TestDeleteNode_DetachesThreads(t *testing.T) {
	st, r := setup(t)
	apply(t, r, "u1", t0, EventNewChat, "id", "c", "nodeId", "A")
	apply(t, r, "u1", t0, "graph:delete-node", "id", "A")

	th, ok := st.Threads.Get("c")
	require.True(t, ok)
	assert.Empty(t, th.NodeID)
}
