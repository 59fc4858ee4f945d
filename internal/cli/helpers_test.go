package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cowork/internal/config"
	"github.com/roach88/cowork/internal/engine"
	"github.com/roach88/cowork/internal/ir"
	"github.com/roach88/cowork/internal/store"
	"github.com/roach88/cowork/internal/workspace"
)

var testEpoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func testOptions(t *testing.T, format string) *RootOptions {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	return &RootOptions{Format: format, Config: &cfg}
}

// execute runs cmd with args and returns stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// liveJournal processes events through a journaled workspace, the way
// serve does, and returns the journal path plus the live digest.
func liveJournal(t *testing.T, events ...ir.Event) (string, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cowork.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ws, err := workspace.New(workspaceIDs(), engine.WithJournal(st))
	require.NoError(t, err)

	ctx := context.Background()
	for i, ev := range events {
		rc := ir.RequestContext{UserID: "alice", Time: testEpoch.Add(time.Duration(i) * time.Second)}
		_ = ws.Processor.ProcessEvent(ctx, ev, rc)
	}

	digest, err := ws.Doc.Digest()
	require.NoError(t, err)
	return path, digest
}

func ev(typ string, kv ...any) ir.Event {
	return ir.Event{Type: typ, Fields: ir.O(kv...)}
}

// dragEvents covers applied, failed and skipped outcomes plus a
// server-generated chat id.
func dragEvents() []ir.Event {
	move := func(counter int64, x any, end bool) ir.Event {
		e := ev("graph:move-node", "id", "A", "x", x, "y", 0)
		e.SequenceID = "drag-1"
		e.SequenceCounter = counter
		e.SequenceEnd = end
		return e
	}
	return []ir.Event{
		ev("graph:add-node", "id", "A", "label", "Box"),
		move(1, 10, false),
		move(2, "oops", false),
		move(3, 30, true),
		ev("chat:new-chat", "nodeId", "A", "content", "hi"),
	}
}
