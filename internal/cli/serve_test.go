package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cowork/internal/ir"
	"github.com/roach88/cowork/internal/modules/chat"
	"github.com/roach88/cowork/internal/store"
)

func TestServeCommandFlags(t *testing.T) {
	cmd := NewServeCommand(testOptions(t, "text"))

	restore := cmd.Flags().Lookup("restore")
	require.NotNil(t, restore)
	assert.Equal(t, "true", restore.DefValue)
	assert.NotNil(t, cmd.Flags().Lookup("listen"))
	assert.NotNil(t, cmd.Flags().Lookup("db"))
}

func TestOpenWorkspace_Restores(t *testing.T) {
	path, liveDigest := liveJournal(t, dragEvents()...)
	ctx := context.Background()

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	cfg := *testOptions(t, "text").Config
	ws, err := openWorkspace(ctx, cfg, st, true)
	require.NoError(t, err)

	digest, err := ws.Doc.Digest()
	require.NoError(t, err)
	assert.Equal(t, liveDigest, digest)

	snap, err := ws.Doc.SnapshotOf(chat.ThreadsContainer)
	require.NoError(t, err)
	threads := snap[chat.ThreadsContainer].(ir.IRObject)
	assert.Contains(t, threads, "chat-1", "server ids are regenerated in journal order")

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Entries, "restore must not journal")

	// The clock resumes after the journal.
	require.NoError(t, ws.Processor.ProcessEvent(ctx, ev("graph:add-node", "id", "B"), ir.RequestContext{UserID: "bob", Time: testEpoch}))
	last, err := st.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), last)
}

func TestOpenWorkspace_NoRestore(t *testing.T) {
	path, _ := liveJournal(t, dragEvents()...)

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	cfg := *testOptions(t, "text").Config
	ws, err := openWorkspace(context.Background(), cfg, st, false)
	require.NoError(t, err)

	snap, err := ws.Doc.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap["graph.nodes"])
	assert.Equal(t, int64(5), ws.Processor.Clock().Current())
}
