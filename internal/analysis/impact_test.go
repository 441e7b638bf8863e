package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"causet/internal/graph"
)

func chainGraph(t *testing.T) *graph.CausalGraph {
	t.Helper()
	g := graph.NewCausalGraph()
	for i, id := range []string{"a", "b", "c", "d"} {
		g.AddNode(&graph.GraphNode{ID: id, Name: id, Kind: graph.NodeVariable, Line: i + 1, Scope: "__module__"})
	}
	g.AddEdge("a", "b", graph.EdgeDataFlow)
	g.AddEdge("b", "c", graph.EdgeDataFlow)
	g.AddEdge("c", "d", graph.EdgeDataFlow)
	return g
}

func TestAnalyzeImpactChain(t *testing.T) {
	a := NewAnalyzer(chainGraph(t))
	report, err := a.AnalyzeImpact("a")
	require.NoError(t, err)

	require.Len(t, report.DirectlyAffected, 1)
	assert.Equal(t, "b", report.DirectlyAffected[0].ID)

	require.Len(t, report.IndirectlyAffected, 2)
	assert.Equal(t, "c", report.IndirectlyAffected[0].ID)
	assert.Equal(t, "d", report.IndirectlyAffected[1].ID)
	assert.Equal(t, 3, report.Size())
}

func TestAnalyzeImpactLeaf(t *testing.T) {
	a := NewAnalyzer(chainGraph(t))
	report, err := a.AnalyzeImpact("d")
	require.NoError(t, err)
	assert.Empty(t, report.DirectlyAffected)
	assert.Empty(t, report.IndirectlyAffected)
}

func TestAnalyzeImpactDiamond(t *testing.T) {
	g := graph.NewCausalGraph()
	for i, id := range []string{"x", "l", "r", "sink"} {
		g.AddNode(&graph.GraphNode{ID: id, Name: id, Kind: graph.NodeVariable, Line: i + 1, Scope: "__module__"})
	}
	g.AddEdge("x", "l", graph.EdgeDataFlow)
	g.AddEdge("x", "r", graph.EdgeDataFlow)
	g.AddEdge("l", "sink", graph.EdgeDataFlow)
	g.AddEdge("r", "sink", graph.EdgeDataFlow)

	report, err := NewAnalyzer(g).AnalyzeImpact("x")
	require.NoError(t, err)
	assert.Len(t, report.DirectlyAffected, 2)
	// sink is reachable twice but reported once.
	require.Len(t, report.IndirectlyAffected, 1)
	assert.Equal(t, "sink", report.IndirectlyAffected[0].ID)
}

func TestAnalyzeImpactUnknownNode(t *testing.T) {
	a := NewAnalyzer(chainGraph(t))
	_, err := a.AnalyzeImpact("ghost")
	assert.Error(t, err)
}
