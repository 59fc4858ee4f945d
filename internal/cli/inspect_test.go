package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect_Stats(t *testing.T) {
	events := dragEvents()
	open := ev("graph:move-node", "id", "A", "x", 1, "y", 1)
	open.SequenceID = "drag-2"
	open.SequenceCounter = 1
	path, _ := liveJournal(t, append(events, open)...)

	out, err := execute(t, NewInspectCommand(testOptions(t, "json")), "--db", path, "--sequence", "drag-1")
	require.NoError(t, err)

	var resp struct {
		Data InspectOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))

	st := resp.Data.Stats
	assert.Equal(t, int64(6), st.Entries)
	assert.Equal(t, int64(4), st.Applied)
	assert.Equal(t, int64(1), st.Skipped)
	assert.Equal(t, int64(1), st.Failed)
	assert.Equal(t, int64(2), st.Sequences)
	assert.Equal(t, int64(6), st.LastSeq)
	assert.Equal(t, []string{"drag-2"}, resp.Data.OpenSequences)

	require.NotNil(t, resp.Data.Sequence)
	seq := resp.Data.Sequence
	assert.Equal(t, "drag-1", seq.SequenceID)
	assert.Equal(t, int64(3), seq.HighestCounter)
	assert.Equal(t, 1, seq.Applied)
	assert.Equal(t, 1, seq.Skipped)
	assert.True(t, seq.Failed)
	assert.True(t, seq.Ended)
	assert.False(t, seq.Recovered)
}

func TestInspect_Text(t *testing.T) {
	path, _ := liveJournal(t, dragEvents()...)

	out, err := execute(t, NewInspectCommand(testOptions(t, "text")), "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Entries: 5 (applied 3, skipped 1, failed 1)")
	assert.Contains(t, out, "Sequences: 1 (0 open)")
	assert.NotContains(t, out, "Sequence drag-1")
}

func TestInspect_MissingJournal(t *testing.T) {
	_, err := execute(t, NewInspectCommand(testOptions(t, "text")), "--db", filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
