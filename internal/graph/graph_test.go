package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func varNode(scope, name string, line int) *GraphNode {
	return &GraphNode{
		ID:    NodeID(scope, name, NodeVariable, line),
		Name:  name,
		Kind:  NodeVariable,
		Line:  line,
		Scope: scope,
	}
}

func effectNode(scope, op string, line int) *GraphNode {
	return &GraphNode{
		ID:       NodeID(scope, op, NodeEffect, line),
		Name:     op,
		Kind:     NodeEffect,
		Line:     line,
		Scope:    scope,
		Metadata: map[string]string{"operation": op},
	}
}

func TestCausalGraph_AddAndDedupe(t *testing.T) {
	g := NewCausalGraph()
	a := varNode(ModuleScope, "x", 2)
	b := varNode(ModuleScope, "y", 3)

	g.AddNode(a)
	g.AddNode(a) // duplicate ID ignored
	g.AddNode(b)
	require.Len(t, g.Nodes, 2)

	g.AddEdge(a.ID, b.ID, EdgeDataFlow)
	g.AddEdge(a.ID, b.ID, EdgeDataFlow) // identical triple ignored
	g.AddEdge(a.ID, b.ID, EdgeControlFlow)
	g.AddEdge(a.ID, a.ID, EdgeDataFlow) // self-edge ignored
	g.AddEdge(a.ID, "missing", EdgeDataFlow)

	assert.Len(t, g.Edges, 2, "parallel kinds allowed, duplicates and self-edges dropped")
	assert.Equal(t, []string{a.ID}, g.Parents(b.ID))
	assert.Equal(t, []string{b.ID}, g.Children(a.ID))
}

func TestCausalGraph_TopologicalOrder(t *testing.T) {
	g := NewCausalGraph()
	a := varNode(ModuleScope, "a", 1)
	b := varNode(ModuleScope, "b", 2)
	c := varNode(ModuleScope, "c", 3)
	g.AddNode(a)
	g.AddNode(b)
	g.AddNode(c)
	g.AddEdge(a.ID, b.ID, EdgeDataFlow)
	g.AddEdge(b.ID, c.ID, EdgeDataFlow)

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, order)

	t.Run("deterministic across calls", func(t *testing.T) {
		again, err := g.TopologicalOrder()
		require.NoError(t, err)
		assert.Equal(t, order, again)
	})
}

func TestCausalGraph_CycleDetection(t *testing.T) {
	g := NewCausalGraph()
	a := varNode(ModuleScope, "a", 1)
	b := varNode(ModuleScope, "b", 2)
	g.AddNode(a)
	g.AddNode(b)
	g.AddEdge(a.ID, b.ID, EdgeDataFlow)
	g.AddEdge(b.ID, a.ID, EdgeDataFlow)

	err := g.Validate()
	require.Error(t, err)

	var cyclic *CyclicGraphError
	require.ErrorAs(t, err, &cyclic)
	assert.NotEmpty(t, cyclic.Cycle, "cycle error should name the cycle")

	report := g.CheckStructure()
	assert.False(t, report.IsDAG)
	assert.False(t, report.OK())
}

func TestCausalGraph_StructureReport(t *testing.T) {
	g := NewCausalGraph()
	a := varNode(ModuleScope, "a", 1)
	b := varNode(ModuleScope, "b", 2)
	g.AddNode(a)
	g.AddNode(b)
	g.AddEdge(a.ID, b.ID, EdgeDataFlow)

	report := g.CheckStructure()
	assert.True(t, report.IsDAG)
	assert.True(t, report.HasRoot)
	assert.True(t, report.HasLeaf)
	assert.True(t, report.EdgeCountInBound)
	assert.True(t, report.OK())
	assert.Equal(t, 2, report.NodeCount)
	assert.Equal(t, 1, report.EdgeCount)
}

func TestCausalGraph_Prune(t *testing.T) {
	g := NewCausalGraph()
	x := varNode(ModuleScope, "x", 2)
	y := varNode(ModuleScope, "y", 3)
	logCall := effectNode(ModuleScope, "print", 4)
	write := effectNode(ModuleScope, "write", 5)
	g.AddNode(x)
	g.AddNode(y)
	g.AddNode(logCall)
	g.AddNode(write)
	g.AddEdge(x.ID, y.ID, EdgeDataFlow)
	g.AddEdge(x.ID, logCall.ID, EdgeDataFlow)
	g.AddEdge(y.ID, write.ID, EdgeDataFlow)

	g.Prune(true)

	assert.Len(t, g.Edges, 2, "only the print edge removed")
	assert.False(t, g.HasNode(logCall.ID), "isolated non-causal node dropped")
	assert.True(t, g.HasNode(write.ID), "state-changing effect preserved")
	assert.Equal(t, []string{x.ID}, g.Parents(y.ID))
}

func TestCausalGraph_RootsAndLeaves(t *testing.T) {
	g := NewCausalGraph()
	a := varNode(ModuleScope, "a", 1)
	b := varNode(ModuleScope, "b", 2)
	g.AddNode(a)
	g.AddNode(b)
	g.AddEdge(a.ID, b.ID, EdgeDataFlow)

	assert.Equal(t, []string{a.ID}, g.Roots())
	assert.Equal(t, []string{b.ID}, g.Leaves())
}

func TestNodeID_Deterministic(t *testing.T) {
	assert.Equal(t,
		NodeID(ModuleScope, "x", NodeVariable, 4),
		NodeID(ModuleScope, "x", NodeVariable, 4))
	assert.NotEqual(t,
		NodeID(ModuleScope, "x", NodeVariable, 2),
		NodeID(ModuleScope, "x", NodeVariable, 4),
		"reassignment on a different line gets its own node")
	assert.Equal(t, "__module__.f:function", NodeID(ModuleScope, "f", NodeFunction, 1))
}

func TestSnapshot_RoundTripShape(t *testing.T) {
	g := NewCausalGraph()
	a := varNode(ModuleScope, "a", 1)
	b := varNode(ModuleScope, "b", 2)
	g.AddNode(a)
	g.AddNode(b)
	g.AddEdge(a.ID, b.ID, EdgeDataFlow)

	snap := g.ToSnapshot()
	require.Len(t, snap.Nodes, 2)
	require.Len(t, snap.Edges, 1)
	assert.Equal(t, SnapshotVersion, snap.Version)
	assert.Equal(t, a.ID, snap.Nodes[0].ID)
	assert.Equal(t, EdgeDataFlow, snap.Edges[0].Kind)
}
