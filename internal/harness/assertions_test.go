package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/cowork/internal/ir"
)

func TestLookup(t *testing.T) {
	state := ir.IRObject{
		"graph.nodes": ir.O("A", ir.O("x", 3)),
		"selection.selections": ir.IRArray{
			ir.O("userId", "alice", "nodeIds", []string{"A", "B"}),
		},
	}

	tests := []struct {
		path  string
		want  ir.IRValue
		found bool
	}{
		{"graph.nodes/A/x", ir.IRInt(3), true},
		{"selection.selections/0/userId", ir.IRString("alice"), true},
		{"selection.selections/0/nodeIds/1", ir.IRString("B"), true},
		{"selection.selections/1", nil, false},
		{"selection.selections/-1", nil, false},
		{"selection.selections/first", nil, false},
		{"graph.nodes/A/x/deeper", nil, false},
		{"graph.edges", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, found := lookup(state, tt.path)
			assert.Equal(t, tt.found, found)
			if tt.found {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestEqual_IgnoresKeyOrder(t *testing.T) {
	assert.True(t, equal(ir.O("a", 1, "b", 2), ir.O("b", 2, "a", 1)))
	assert.False(t, equal(ir.IRInt(1), ir.IRString("1")))
}
