package trace

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"causet/internal/graph"
)

func chainGraph(t *testing.T) *graph.CausalGraph {
	t.Helper()
	g := graph.NewCausalGraph()
	for i, name := range []string{"x", "y", "z"} {
		g.AddNode(&graph.GraphNode{
			ID:    graph.NodeID(graph.ModuleScope, name, graph.NodeVariable, i+1),
			Name:  name,
			Kind:  graph.NodeVariable,
			Line:  i + 1,
			Scope: graph.ModuleScope,
		})
	}
	ids := g.NodeIDs()
	g.AddEdge(ids[0], ids[1], graph.EdgeDataFlow)
	g.AddEdge(ids[1], ids[2], graph.EdgeDataFlow)
	return g
}

func chainCode(g *graph.CausalGraph) map[string]NodeFunc {
	ids := g.NodeIDs()
	return map[string]NodeFunc{
		ids[1]: {Params: []string{"x"}, Fn: func(a map[string]float64) (float64, error) {
			return 2 * a["x"], nil
		}},
		ids[2]: {Params: []string{"y"}, Fn: func(a map[string]float64) (float64, error) {
			return a["y"] + 1, nil
		}},
	}
}

func TestCollect_ChainIsExact(t *testing.T) {
	g := chainGraph(t)
	table, err := Collect(g, chainCode(g), Options{NumSamples: 100, Seed: 7})
	require.NoError(t, err)

	ids := g.NodeIDs()
	require.Equal(t, 100, table.NumRows())
	xs := table.Column(ids[0])
	zs := table.Column(ids[2])
	for i := range xs {
		assert.Equal(t, 2*xs[i]+1, zs[i], "z must equal 2x+1 exactly at row %d", i)
	}
}

func TestCollect_Reproducible(t *testing.T) {
	g := chainGraph(t)
	first, err := Collect(g, chainCode(g), Options{NumSamples: 50, Seed: 42})
	require.NoError(t, err)
	second, err := Collect(g, chainCode(g), Options{NumSamples: 50, Seed: 42})
	require.NoError(t, err)

	assert.Equal(t, first.Values, second.Values, "same seed, bit-for-bit identical table")

	third, err := Collect(g, chainCode(g), Options{NumSamples: 50, Seed: 43})
	require.NoError(t, err)
	assert.NotEqual(t, first.Values, third.Values)
}

func TestCollect_FreeInputsUseConfiguredRange(t *testing.T) {
	g := chainGraph(t)
	ids := g.NodeIDs()
	table, err := Collect(g, chainCode(g), Options{
		NumSamples:  200,
		Seed:        1,
		InputRanges: map[string]Range{ids[0]: {Low: 5, High: 6}},
	})
	require.NoError(t, err)

	for _, v := range table.Column(ids[0]) {
		assert.GreaterOrEqual(t, v, 5.0)
		assert.LessOrEqual(t, v, 6.0)
	}
}

func TestCollect_InvalidRange(t *testing.T) {
	g := chainGraph(t)
	ids := g.NodeIDs()
	_, err := Collect(g, chainCode(g), Options{
		NumSamples:  10,
		InputRanges: map[string]Range{ids[0]: {Low: 10, High: -10}},
	})
	var inputErr *InputGenerationError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, ids[0], inputErr.Node)
}

func TestCollect_ExcessiveFailures(t *testing.T) {
	g := chainGraph(t)
	ids := g.NodeIDs()
	code := chainCode(g)
	trial := 0
	code[ids[1]] = NodeFunc{Params: []string{"x"}, Fn: func(a map[string]float64) (float64, error) {
		trial++
		if trial%3 != 0 { // two thirds of trials raise
			return 0, errors.New("boom")
		}
		return 2 * a["x"], nil
	}}

	_, err := Collect(g, code, Options{NumSamples: 90, Seed: 3})
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Greater(t, execErr.Failed*2, execErr.Requested)
}

func TestCollect_FailedRowsDroppedNotNullFilled(t *testing.T) {
	g := chainGraph(t)
	ids := g.NodeIDs()
	code := chainCode(g)
	trial := 0
	code[ids[2]] = NodeFunc{Params: []string{"y"}, Fn: func(a map[string]float64) (float64, error) {
		trial++
		if trial%4 == 0 { // a quarter of trials raise
			return 0, errors.New("boom")
		}
		return a["y"] + 1, nil
	}}

	table, err := Collect(g, code, Options{NumSamples: 100, Seed: 5})
	require.NoError(t, err)
	assert.Equal(t, 75, table.NumRows())
	for _, c := range table.Columns {
		assert.Len(t, table.Column(c), 75, "no column may carry missing values")
	}
}

func TestCollect_CyclicGraphFailsFast(t *testing.T) {
	g := graph.NewCausalGraph()
	a := &graph.GraphNode{ID: "a", Name: "a", Kind: graph.NodeVariable, Scope: graph.ModuleScope}
	b := &graph.GraphNode{ID: "b", Name: "b", Kind: graph.NodeVariable, Scope: graph.ModuleScope}
	g.AddNode(a)
	g.AddNode(b)
	g.AddEdge("a", "b", graph.EdgeDataFlow)
	g.AddEdge("b", "a", graph.EdgeDataFlow)

	_, err := Collect(g, nil, Options{NumSamples: 10})
	var collErr *TraceCollectionError
	require.ErrorAs(t, err, &collErr)
	var cyclic *graph.CyclicGraphError
	assert.ErrorAs(t, err, &cyclic)
}

func TestCollect_UnresolvedParamFallsBackToSampling(t *testing.T) {
	g := graph.NewCausalGraph()
	y := &graph.GraphNode{ID: "y", Name: "y", Kind: graph.NodeVariable, Scope: graph.ModuleScope}
	g.AddNode(y)

	code := map[string]NodeFunc{
		"y": {Params: []string{"missing"}, Fn: func(a map[string]float64) (float64, error) {
			return a["missing"] * 2, nil
		}},
	}
	table, err := Collect(g, code, Options{NumSamples: 20, Seed: 9})
	require.NoError(t, err)
	assert.Equal(t, 20, table.NumRows())
}

func TestTrace_Select(t *testing.T) {
	tr := New([]string{"a", "b"})
	require.NoError(t, tr.AppendRow(map[string]float64{"a": 1, "b": 10}))
	require.NoError(t, tr.AppendRow(map[string]float64{"a": 2, "b": 20}))

	picked := tr.Select([]int{1, 1, 0})
	assert.Equal(t, []float64{2, 2, 1}, picked.Column("a"))
	assert.Equal(t, []float64{20, 20, 10}, picked.Column("b"))
}
