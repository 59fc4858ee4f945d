package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario_Valid(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: valid
description: ok
present: [alice]
steps:
  - user: alice
    at: 1500ms
    event: {type: "graph:add-node", id: A, data: {color: red}}
  - tick: true
  - join: bob
  - leave: bob
assertions:
  - path: graph.nodes/A/data/color
    equals: red
  - outcomes: [applied, applied, applied]
`))
	require.NoError(t, err)
	assert.Equal(t, "valid", s.Name)
	assert.Len(t, s.Steps, 4)
	assert.Equal(t, []string{"alice"}, s.Present)
	assert.Equal(t, "1500ms", s.Steps[0].At)
	assert.True(t, s.Steps[1].Tick)
}

func TestParseScenario_Rejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "unknown field",
			src:  "name: x\nstep: []\n",
			want: "field step not found",
		},
		{
			name: "missing name",
			src:  "steps:\n  - tick: true\n",
			want: "name is required",
		},
		{
			name: "no steps",
			src:  "name: x\n",
			want: "at least one step",
		},
		{
			name: "two kinds",
			src:  "name: x\nsteps:\n  - tick: true\n    join: bob\n",
			want: "exactly one of",
		},
		{
			name: "event without user",
			src:  "name: x\nsteps:\n  - event: {type: a}\n",
			want: "user is required",
		},
		{
			name: "event without type",
			src:  "name: x\nsteps:\n  - user: a\n    event: {id: A}\n",
			want: "missing type",
		},
		{
			name: "float field",
			src:  "name: x\nsteps:\n  - user: a\n    event: {type: a, x: 1.5}\n",
			want: "floats are not allowed",
		},
		{
			name: "bad offset",
			src:  "name: x\nsteps:\n  - tick: true\n    at: soon\n",
			want: "non-negative duration",
		},
		{
			name: "negative offset",
			src:  "name: x\nsteps:\n  - tick: true\n    at: -1s\n",
			want: "non-negative duration",
		},
		{
			name: "unknown outcome",
			src:  "name: x\nsteps:\n  - tick: true\nassertions:\n  - outcomes: [done]\n",
			want: "unknown outcome",
		},
		{
			name: "outcomes with path",
			src:  "name: x\nsteps:\n  - tick: true\nassertions:\n  - path: a\n    outcomes: [applied]\n",
			want: "cannot be combined",
		},
		{
			name: "two checks",
			src:  "name: x\nsteps:\n  - tick: true\nassertions:\n  - path: a\n    absent: true\n    count: 1\n",
			want: "at most one",
		},
		{
			name: "empty assertion",
			src:  "name: x\nsteps:\n  - tick: true\nassertions:\n  - {}\n",
			want: "path or outcomes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenarios_SortedAndNamed(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("b.yml", "name: second\nsteps:\n  - tick: true\n")
	write("a.yaml", "name: first\nsteps:\n  - tick: true\n")
	write("notes.txt", "ignored")

	scenarios, err := LoadScenarios(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "first", scenarios[0].Name)
	assert.Equal(t, "second", scenarios[1].Name)

	write("c.yaml", "name: broken\n")
	_, err = LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "c.yaml")
}
