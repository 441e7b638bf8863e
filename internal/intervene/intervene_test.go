package intervene

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"causet/internal/graph"
	"causet/internal/scm"
	"causet/internal/trace"
)

func TestParseDSLHard(t *testing.T) {
	spec, err := Parse("do(x=5)")
	require.NoError(t, err)
	require.Len(t, spec.Interventions, 1)
	assert.Equal(t, HardIntervention{Node: "x", Value: 5}, spec.Interventions[0])
}

func TestParseDSLAndMapNormalizeIdentically(t *testing.T) {
	fromDSL, err := Parse("do(x=5)")
	require.NoError(t, err)

	fromMap, err := Parse(map[string]any{"type": "hard", "node": "x", "value": 5.0})
	require.NoError(t, err)

	assert.Equal(t, fromDSL.Interventions, fromMap.Interventions)
}

func TestParseDSLSoftForms(t *testing.T) {
	spec, err := Parse("do(x=x+2); do(y=y*0.5); do(z=z-1)")
	require.NoError(t, err)
	require.Len(t, spec.Interventions, 3)
	assert.Equal(t, SoftIntervention{Node: "x", Transform: TransformShift, Param: 2}, spec.Interventions[0])
	assert.Equal(t, SoftIntervention{Node: "y", Transform: TransformScale, Param: 0.5}, spec.Interventions[1])
	assert.Equal(t, SoftIntervention{Node: "z", Transform: TransformShift, Param: -1}, spec.Interventions[2])
}

func TestParseDSLNegativeParams(t *testing.T) {
	spec, err := Parse("do(x=x*-2); do(y=y+-3)")
	require.NoError(t, err)
	require.Len(t, spec.Interventions, 2)
	assert.Equal(t, SoftIntervention{Node: "x", Transform: TransformScale, Param: -2}, spec.Interventions[0])
	assert.Equal(t, SoftIntervention{Node: "y", Transform: TransformShift, Param: -3}, spec.Interventions[1])
}

func TestParseDSLRejectsForeignVariable(t *testing.T) {
	_, err := Parse("do(x=y+2)")
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestParseDSLRejectsMalformed(t *testing.T) {
	for _, input := range []string{"x=5", "do(x)", "do(=5)", "do(x=)", "do(x=foo)"} {
		_, err := Parse(input)
		var perr *ParseError
		assert.ErrorAs(t, err, &perr, "input %q", input)
	}
}

func TestParseFullRequestMap(t *testing.T) {
	spec, err := Parse(map[string]any{
		"interventions": []any{
			map[string]any{"type": "hard", "node": "x", "value": 1.0},
			map[string]any{"type": "soft", "node": "y", "transform": "shift", "param": 3.0},
		},
		"query_nodes": []any{"z"},
		"num_samples": 50.0,
	})
	require.NoError(t, err)
	assert.Len(t, spec.Interventions, 2)
	assert.Equal(t, []string{"z"}, spec.QueryNodes)
	assert.Equal(t, 50, spec.NumSamples)
}

func TestParseMapRejectsUnknownTransform(t *testing.T) {
	_, err := Parse(map[string]any{"type": "soft", "node": "x", "transform": "exp", "param": 1.0})
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestParseMapCustomTransform(t *testing.T) {
	spec, err := Parse(map[string]any{
		"type": "soft", "node": "x", "transform": "custom", "expression": "(x + 1) * 2",
	})
	require.NoError(t, err)
	require.Len(t, spec.Interventions, 1)
	assert.Equal(t, SoftIntervention{Node: "x", Transform: TransformCustom, Expression: "(x + 1) * 2"}, spec.Interventions[0])
}

func TestParseMapCustomTransformRequiresExpression(t *testing.T) {
	_, err := Parse(map[string]any{"type": "soft", "node": "x", "transform": "custom"})
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestSpecJSONRoundTrip(t *testing.T) {
	orig := Spec{
		Interventions: []Intervention{
			HardIntervention{Node: "x", Value: 5},
			SoftIntervention{Node: "y", Transform: TransformScale, Param: 2},
			SoftIntervention{Node: "w", Transform: TransformCustom, Expression: "w * w + 1"},
		},
		QueryNodes: []string{"z"},
		NumSamples: 200,
	}
	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var back Spec
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, orig, back)
}

func testBundle(t *testing.T) ModelBundle {
	t.Helper()
	g := graph.NewCausalGraph()
	xID := "__module__.x:variable:1"
	yID := "__module__.y:variable:2"
	g.AddNode(&graph.GraphNode{ID: xID, Name: "x", Kind: graph.NodeVariable, Line: 1, Scope: "__module__"})
	g.AddNode(&graph.GraphNode{ID: yID, Name: "y", Kind: graph.NodeVariable, Line: 2, Scope: "__module__"})
	g.AddEdge(xID, yID, graph.EdgeDataFlow)

	tr := trace.New([]string{xID, yID})
	for i := 0; i < 20; i++ {
		require.NoError(t, tr.AppendRow(map[string]float64{
			xID: float64(i),
			yID: float64(2 * i),
		}))
	}
	return ModelBundle{Graph: g, Traces: tr}
}

func TestExecuteHardIntervention(t *testing.T) {
	bundle := testBundle(t)
	engine := NewEngine(&scm.Stub{Seed: 7})

	res, err := engine.Execute(context.Background(), bundle, "do(x=5)")
	require.NoError(t, err)

	samples := res.Samples["__module__.x:variable:1"]
	require.NotEmpty(t, samples)
	for _, v := range samples {
		assert.Equal(t, 5.0, v)
	}
	assert.Equal(t, 5.0, res.Statistics["__module__.x:variable:1"].Mean)
	assert.Equal(t, len(samples), res.Metadata.SampleSize)
	require.Len(t, res.Spec.Interventions, 1)
	assert.Equal(t, HardIntervention{Node: "x", Value: 5}, res.Spec.Interventions[0])
}

func TestExecuteCustomIntervention(t *testing.T) {
	g := graph.NewCausalGraph()
	id := "__module__.x:variable:1"
	g.AddNode(&graph.GraphNode{ID: id, Name: "x", Kind: graph.NodeVariable, Line: 1, Scope: "__module__"})

	tr := trace.New([]string{id})
	for i := 0; i < 10; i++ {
		require.NoError(t, tr.AppendRow(map[string]float64{id: 3}))
	}

	engine := NewEngine(&scm.Stub{Seed: 3})
	res, err := engine.Execute(context.Background(), ModelBundle{Graph: g, Traces: tr},
		map[string]any{"type": "soft", "node": "x", "transform": "custom", "expression": "x * 2 + 1"})
	require.NoError(t, err)

	samples := res.Samples[id]
	require.NotEmpty(t, samples)
	for _, v := range samples {
		assert.Equal(t, 7.0, v)
	}
}

func TestExecuteResolvesFinalDefinition(t *testing.T) {
	bundle := testBundle(t)
	// Two definitions of the same name; the later line wins.
	lateID := "__module__.x:variable:9"
	bundle.Graph.AddNode(&graph.GraphNode{ID: lateID, Name: "x", Kind: graph.NodeVariable, Line: 9, Scope: "__module__"})
	id, err := resolveNode(bundle.Graph, "x")
	require.NoError(t, err)
	assert.Equal(t, lateID, id)
}

func TestExecuteUnknownNode(t *testing.T) {
	bundle := testBundle(t)
	engine := NewEngine(&scm.Stub{})

	_, err := engine.Execute(context.Background(), bundle, "do(missing=1)")
	var nerr *NodeNotFoundError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "missing", nerr.Node)
}

func TestExecuteRequiresTraces(t *testing.T) {
	bundle := testBundle(t)
	bundle.Traces = nil
	engine := NewEngine(&scm.Stub{})

	_, err := engine.Execute(context.Background(), bundle, "do(x=5)")
	var ierr *InterventionError
	assert.ErrorAs(t, err, &ierr)
}

func TestExecuteServiceFailurePassesThrough(t *testing.T) {
	bundle := testBundle(t)
	engine := NewEngine(&scm.Stub{FailWith: scm.ErrUnavailable})

	_, err := engine.Execute(context.Background(), bundle, "do(x=5)")
	assert.ErrorIs(t, err, scm.ErrUnavailable)
}
