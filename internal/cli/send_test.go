package cli

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cowork/internal/engine"
	"github.com/roach88/cowork/internal/ids"
	"github.com/roach88/cowork/internal/modules/graph"
	"github.com/roach88/cowork/internal/server"
	"github.com/roach88/cowork/internal/testutil"
	"github.com/roach88/cowork/internal/workspace"
)

type sendFixture struct {
	url     string
	ws      *workspace.Workspace
	journal *testutil.MemJournal
}

func newSendFixture(t *testing.T) *sendFixture {
	t.Helper()
	journal := testutil.NewMemJournal()
	ws, err := workspace.New(ids.NewSequential("chat"), engine.WithJournal(journal))
	require.NoError(t, err)

	srv := httptest.NewServer(server.New(server.Config{}, ws).Handler())
	t.Cleanup(srv.Close)
	return &sendFixture{url: srv.URL, ws: ws, journal: journal}
}

func writeEvents(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func sendOptions(t *testing.T) *RootOptions {
	opts := testOptions(t, "json")
	opts.Config.Dispatch.MaxRetries = 0
	return opts
}

func TestSend_HTTP(t *testing.T) {
	f := newSendFixture(t)
	path := writeEvents(t,
		`{"type":"graph:add-node","id":"A","x":1}`,
		``,
		`{"type":"graph:move-node","id":"A"}`,
		`{"type":"graph:add-node","id":"B"}`,
	)

	out, err := execute(t, NewSendCommand(sendOptions(t)), path, "--endpoint", f.url, "--user", "alice")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   SendResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Sent)
	assert.Equal(t, 1, resp.Data.Rejected)
	require.Len(t, resp.Data.Lines, 3)
	assert.Equal(t, 3, resp.Data.Lines[1].Line)
	assert.NotEmpty(t, resp.Data.Lines[1].Error)

	g := f.ws.Modules.Exports[graph.Name].(graph.Reader)
	assert.True(t, g.HasNode("A"))
	assert.True(t, g.HasNode("B"))

	entries := f.journal.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "alice", entries[0].UserID)
}

func TestSend_Sequence(t *testing.T) {
	f := newSendFixture(t)
	path := writeEvents(t,
		`{"type":"graph:add-node","id":"A"}`,
		`{"type":"graph:move-node","id":"A","x":1,"y":1}`,
		`{"type":"graph:move-node","id":"A","x":2,"y":2}`,
	)

	_, err := execute(t, NewSendCommand(sendOptions(t)), path, "--endpoint", f.url, "--user", "alice", "--sequence")
	require.NoError(t, err)

	entries := f.journal.Entries()
	require.Len(t, entries, 3)
	seqID := entries[0].Event.SequenceID
	assert.NotEmpty(t, seqID)
	for i, e := range entries {
		assert.Equal(t, seqID, e.Event.SequenceID)
		assert.Equal(t, int64(i+1), e.Event.SequenceCounter)
	}
	assert.True(t, entries[0].Event.SequenceRevertPoint)
	assert.True(t, entries[2].Event.SequenceEnd)
	assert.False(t, entries[1].Event.SequenceEnd)
}

func TestSend_WebSocket(t *testing.T) {
	f := newSendFixture(t)
	path := writeEvents(t,
		`{"type":"graph:add-node","id":"A"}`,
		`{"type":"graph:add-node"}`,
	)

	opts := sendOptions(t)
	opts.Format = "text"
	out, err := execute(t, NewSendCommand(opts), path, "--endpoint", f.url, "--user", "bob", "--ws")
	require.Error(t, err)
	assert.Contains(t, out, "✗ line 2 (graph:add-node)")
	assert.Contains(t, out, "Sent 1 event(s), 1 rejected")

	entries := f.journal.Entries()
	require.NotEmpty(t, entries)
	assert.Equal(t, "graph:add-node", entries[0].Event.Type)
	assert.Equal(t, "bob", entries[0].UserID)
}

func TestSend_MalformedLine(t *testing.T) {
	f := newSendFixture(t)
	path := writeEvents(t,
		`{"type":"graph:add-node","id":"A"}`,
		`{"type":`,
	)

	_, err := execute(t, NewSendCommand(sendOptions(t)), path, "--endpoint", f.url)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "line 2")
	assert.Empty(t, f.journal.Entries(), "nothing is sent when the file is malformed")
}

func TestSend_Stdin(t *testing.T) {
	f := newSendFixture(t)
	cmd := NewSendCommand(sendOptions(t))
	cmd.SetIn(strings.NewReader(`{"type":"graph:add-node","id":"S"}` + "\n"))

	_, err := execute(t, cmd, "-", "--endpoint", f.url, "--user", "carol")
	require.NoError(t, err)
	require.Len(t, f.journal.Entries(), 1)
}

func TestSend_EmptyFile(t *testing.T) {
	_, err := execute(t, NewSendCommand(sendOptions(t)), writeEvents(t, ""), "--endpoint", "http://127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no events to send")
}
