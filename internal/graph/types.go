package graph

import "fmt"

// NodeKind classifies the program entity a graph node stands for.
type NodeKind string

const (
	NodeFunction NodeKind = "function"
	NodeVariable NodeKind = "variable"
	NodeReturn   NodeKind = "return"
	NodeEffect   NodeKind = "effect"
)

// EdgeKind classifies how influence travels along an edge.
type EdgeKind string

const (
	EdgeDataFlow    EdgeKind = "data_flow"
	EdgeControlFlow EdgeKind = "control_flow"
)

// ModuleScope is the scope name used for entities defined at the top level.
const ModuleScope = "__module__"

// GraphNode is a single program entity: a function definition, one
// assignment of a variable, a return statement, or a side-effecting call.
// Nodes are immutable after creation and owned by the graph that
// extracted them.
type GraphNode struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Kind     NodeKind          `json:"kind"`
	Line     int               `json:"source_line"`
	Scope    string            `json:"scope"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NodeID derives the deterministic identifier for a node. Reassignable
// kinds (variable, return, effect) carry their line so each occurrence
// gets its own node; function definitions are identified by scope and
// name alone.
func NodeID(scope, name string, kind NodeKind, line int) string {
	switch kind {
	case NodeFunction:
		return fmt.Sprintf("%s.%s:%s", scope, name, kind)
	default:
		return fmt.Sprintf("%s.%s:%s:%d", scope, name, kind, line)
	}
}

// CausalEdge is a directed influence relationship between two nodes.
// Parallel edges of different kinds may exist between the same pair, but
// never a duplicate of the identical (source, target, kind) triple.
type CausalEdge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind"`
}

// CausalGraph is a directed graph over GraphNodes and CausalEdges.
// Built once per analysis request; after construction the only permitted
// mutation is the pruning pass.
type CausalGraph struct {
	Nodes map[string]*GraphNode
	Edges []CausalEdge

	ids     []string // insertion order, for deterministic iteration
	edgeSet map[CausalEdge]struct{}
	out     map[string][]string
	in      map[string][]string
}

// NewCausalGraph creates an empty graph.
func NewCausalGraph() *CausalGraph {
	return &CausalGraph{
		Nodes:   make(map[string]*GraphNode),
		Edges:   []CausalEdge{},
		edgeSet: make(map[CausalEdge]struct{}),
		out:     make(map[string][]string),
		in:      make(map[string][]string),
	}
}

// AddNode inserts a node, deduplicating by ID.
func (g *CausalGraph) AddNode(n *GraphNode) {
	if n == nil || n.ID == "" {
		return
	}
	if _, ok := g.Nodes[n.ID]; ok {
		return
	}
	g.Nodes[n.ID] = n
	g.ids = append(g.ids, n.ID)
}

// AddEdge inserts a directed edge. Self-edges, duplicates, and edges
// referencing unknown nodes are dropped.
func (g *CausalGraph) AddEdge(source, target string, kind EdgeKind) {
	if source == target {
		return
	}
	if _, ok := g.Nodes[source]; !ok {
		return
	}
	if _, ok := g.Nodes[target]; !ok {
		return
	}
	e := CausalEdge{Source: source, Target: target, Kind: kind}
	if _, dup := g.edgeSet[e]; dup {
		return
	}
	g.edgeSet[e] = struct{}{}
	g.Edges = append(g.Edges, e)
	g.out[source] = append(g.out[source], target)
	g.in[target] = append(g.in[target], source)
}

// HasNode reports whether a node with the given ID exists.
func (g *CausalGraph) HasNode(id string) bool {
	_, ok := g.Nodes[id]
	return ok
}

// Node returns the node with the given ID, if present.
func (g *CausalGraph) Node(id string) (*GraphNode, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// NodeIDs returns node IDs in insertion order.
func (g *CausalGraph) NodeIDs() []string {
	out := make([]string, len(g.ids))
	copy(out, g.ids)
	return out
}

// Parents returns the IDs of nodes with an edge into id, deduplicated
// across edge kinds.
func (g *CausalGraph) Parents(id string) []string {
	return dedupe(g.in[id])
}

// Children returns the IDs of nodes reachable by one edge from id,
// deduplicated across edge kinds.
func (g *CausalGraph) Children(id string) []string {
	return dedupe(g.out[id])
}

// Roots returns nodes with in-degree zero, in insertion order.
func (g *CausalGraph) Roots() []string {
	var roots []string
	for _, id := range g.ids {
		if len(g.in[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves returns nodes with out-degree zero, in insertion order.
func (g *CausalGraph) Leaves() []string {
	var leaves []string
	for _, id := range g.ids {
		if len(g.out[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// removeEdges drops every edge for which keep returns false and rebuilds
// the adjacency indexes. Used only by the pruning pass.
func (g *CausalGraph) removeEdges(keep func(CausalEdge) bool) {
	kept := g.Edges[:0]
	g.edgeSet = make(map[CausalEdge]struct{})
	g.out = make(map[string][]string)
	g.in = make(map[string][]string)
	for _, e := range g.Edges {
		if !keep(e) {
			continue
		}
		kept = append(kept, e)
		g.edgeSet[e] = struct{}{}
		g.out[e.Source] = append(g.out[e.Source], e.Target)
		g.in[e.Target] = append(g.in[e.Target], e.Source)
	}
	g.Edges = kept
}

// removeNode drops a node that no edge touches. No-op otherwise.
func (g *CausalGraph) removeNode(id string) {
	if len(g.in[id]) > 0 || len(g.out[id]) > 0 {
		return
	}
	if _, ok := g.Nodes[id]; !ok {
		return
	}
	delete(g.Nodes, id)
	kept := g.ids[:0]
	for _, nid := range g.ids {
		if nid != id {
			kept = append(kept, nid)
		}
	}
	g.ids = kept
}

func dedupe(ids []string) []string {
	if len(ids) <= 1 {
		return append([]string(nil), ids...)
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
