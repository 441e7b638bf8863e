package extract

import (
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"causet/internal/graph"
)

// CallGraph is the optional caller-to-callees map supplied by the
// surrounding pipeline. Keys and values are function names, optionally
// scope-qualified.
type CallGraph map[string][]string

// Build composes node extraction, data-flow and control-flow edge
// extraction, pruning, and DAG validation into a single causal-graph
// construction pass. callGraph may be nil.
func Build(tree *sitter.Tree, src []byte, callGraph CallGraph) (*graph.CausalGraph, error) {
	if tree == nil {
		return nil, &graph.GraphBuildError{Stage: "parse", Err: errors.New("nil source tree")}
	}

	nodes := ExtractNodes(tree, src)
	if len(nodes) == 0 {
		return nil, &graph.GraphBuildError{Stage: "nodes", Err: errors.New("no graph nodes extracted")}
	}

	g := graph.NewCausalGraph()
	for _, n := range nodes {
		g.AddNode(n)
	}
	for _, p := range ExtractDataFlow(tree, src, nodes) {
		g.AddEdge(p.Source, p.Target, graph.EdgeDataFlow)
	}
	for _, p := range ExtractControlFlow(tree, src, nodes) {
		g.AddEdge(p.Source, p.Target, graph.EdgeControlFlow)
	}
	linkCallGraph(g, nodes, callGraph)

	g.Prune(true)

	if err := g.Validate(); err != nil {
		return nil, &graph.GraphBuildError{Stage: "validate", Err: err}
	}
	if report := g.CheckStructure(); !report.OK() {
		return nil, &graph.GraphBuildError{
			Stage: "structure",
			Err: fmt.Errorf("structural invariant violated: root=%v leaf=%v edges=%d",
				report.HasRoot, report.HasLeaf, report.EdgeCount),
		}
	}
	return g, nil
}

// linkCallGraph adds control-flow edges between function nodes for each
// caller/callee pair the pipeline reported.
func linkCallGraph(g *graph.CausalGraph, nodes []*graph.GraphNode, callGraph CallGraph) {
	if len(callGraph) == 0 {
		return
	}
	byName := make(map[string]string)
	for _, n := range nodes {
		if n.Kind != graph.NodeFunction {
			continue
		}
		byName[n.Name] = n.ID
		byName[n.Scope+"."+n.Name] = n.ID
	}
	for caller, callees := range callGraph {
		callerID, ok := byName[caller]
		if !ok {
			continue
		}
		for _, callee := range callees {
			if calleeID, ok := byName[callee]; ok {
				g.AddEdge(callerID, calleeID, graph.EdgeControlFlow)
			}
		}
	}
}
