package analysis

import (
	"fmt"
	"sort"

	"causet/internal/graph"
)

// ImpactReport summarizes the nodes a change to one node can reach.
type ImpactReport struct {
	Node               string
	DirectlyAffected   []*graph.GraphNode
	IndirectlyAffected []*graph.GraphNode
}

// Size returns the total number of affected nodes.
func (r *ImpactReport) Size() int {
	return len(r.DirectlyAffected) + len(r.IndirectlyAffected)
}

// Analyzer performs blast-radius analysis on a causal graph.
type Analyzer struct {
	g *graph.CausalGraph
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(g *graph.CausalGraph) *Analyzer {
	return &Analyzer{g: g}
}

// AnalyzeImpact identifies the nodes affected by intervening on id.
// Direct impacts are the node's children; indirect impacts are every
// other descendant reachable through causal edges.
func (a *Analyzer) AnalyzeImpact(id string) (*ImpactReport, error) {
	if _, ok := a.g.Nodes[id]; !ok {
		return nil, fmt.Errorf("impact analysis: unknown node %s", id)
	}

	report := &ImpactReport{
		Node:               id,
		DirectlyAffected:   []*graph.GraphNode{},
		IndirectlyAffected: []*graph.GraphNode{},
	}

	seenDirect := make(map[string]bool)
	for _, child := range a.g.Children(id) {
		if !seenDirect[child] {
			report.DirectlyAffected = append(report.DirectlyAffected, a.g.Nodes[child])
			seenDirect[child] = true
		}
	}

	// Walk the remaining descendants breadth-first.
	seenIndirect := make(map[string]bool)
	frontier := append([]string(nil), a.g.Children(id)...)
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		for _, child := range a.g.Children(next) {
			if child == id || seenDirect[child] || seenIndirect[child] {
				continue
			}
			seenIndirect[child] = true
			report.IndirectlyAffected = append(report.IndirectlyAffected, a.g.Nodes[child])
			frontier = append(frontier, child)
		}
	}

	sortNodes(report.DirectlyAffected)
	sortNodes(report.IndirectlyAffected)
	return report, nil
}

func sortNodes(nodes []*graph.GraphNode) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Line != nodes[j].Line {
			return nodes[i].Line < nodes[j].Line
		}
		return nodes[i].ID < nodes[j].ID
	})
}
