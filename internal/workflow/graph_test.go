package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/appforge/internal/specialist"
)

func TestDefaultGraph(t *testing.T) {
	g, err := DefaultGraph(specialist.DefaultRegistry(), 12)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 12)

	assert.Equal(t, "database", g.Nodes[0].Stage)
	assert.Equal(t, "code_review", g.Nodes[11].Stage)

	fe, ok := g.Node("frontend")
	require.True(t, ok)
	assert.True(t, fe.PerPlatform)
	assert.Equal(t, SelectResult, fe.Inputs[0].Select)

	assert.Equal(t, 14, g.Executions(3))
}

func TestParseGraph_Rejects(t *testing.T) {
	reg := specialist.DefaultRegistry()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", `nodes: []`, "no nodes"},
		{"unknown specialist", `nodes: [{stage: a, specialist: wizard}]`, "unknown specialist"},
		{"duplicate", `nodes: [{stage: a, specialist: database}, {stage: a, specialist: backend}]`, "duplicate stage"},
		{"forward reference", `nodes: [{stage: a, specialist: backend, inputs: [{from: b, as: x}]}, {stage: b, specialist: database}]`, "earlier stage"},
		{"self reference", `nodes: [{stage: a, specialist: backend, inputs: [{from: a, as: x}]}]`, "earlier stage"},
		{"bad select", `nodes: [{stage: a, specialist: database}, {stage: b, specialist: backend, inputs: [{from: a, as: x, select: everything}]}]`, "unknown select"},
		{"missing key", `nodes: [{stage: a, specialist: database}, {stage: b, specialist: backend, inputs: [{from: a}]}]`, "context key"},
		{"not yaml", `nodes: {`, "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGraph([]byte(tt.yaml), reg, 0)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseGraph_MaxNodes(t *testing.T) {
	_, err := DefaultGraph(specialist.DefaultRegistry(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit is 5")
}

func TestLoadGraphFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nodes:\n  - stage: db\n    specialist: database\n"), 0o644))

	g, err := LoadGraphFile(path, specialist.DefaultRegistry(), 12)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 1)

	_, err = LoadGraphFile(filepath.Join(t.TempDir(), "missing.yaml"), specialist.DefaultRegistry(), 12)
	assert.Error(t, err)
}
