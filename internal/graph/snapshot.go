package graph

// Snapshot is the serializable view of a graph handed across the process
// boundary to the external modeling service.
type Snapshot struct {
	Version string         `json:"version"`
	Nodes   []NodeSnapshot `json:"nodes"`
	Edges   []EdgeSnapshot `json:"edges"`
}

// NodeSnapshot is the wire form of a GraphNode.
type NodeSnapshot struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Kind     NodeKind          `json:"kind"`
	Line     int               `json:"source_line"`
	Scope    string            `json:"scope"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// EdgeSnapshot is the wire form of a CausalEdge.
type EdgeSnapshot struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind"`
}

// SnapshotVersion identifies the wire contract revision.
const SnapshotVersion = "1"

// ToSnapshot converts the graph to its wire form, nodes in insertion
// order.
func (g *CausalGraph) ToSnapshot() Snapshot {
	snap := Snapshot{Version: SnapshotVersion}
	for _, id := range g.ids {
		n := g.Nodes[id]
		snap.Nodes = append(snap.Nodes, NodeSnapshot{
			ID:       n.ID,
			Name:     n.Name,
			Kind:     n.Kind,
			Line:     n.Line,
			Scope:    n.Scope,
			Metadata: n.Metadata,
		})
	}
	for _, e := range g.Edges {
		snap.Edges = append(snap.Edges, EdgeSnapshot(e))
	}
	return snap
}

// FromSnapshot rebuilds a graph from its wire form. Edges naming
// unknown nodes are dropped, same as AddEdge.
func FromSnapshot(snap Snapshot) *CausalGraph {
	g := NewCausalGraph()
	for _, n := range snap.Nodes {
		g.AddNode(&GraphNode{
			ID:       n.ID,
			Name:     n.Name,
			Kind:     n.Kind,
			Line:     n.Line,
			Scope:    n.Scope,
			Metadata: n.Metadata,
		})
	}
	for _, e := range snap.Edges {
		g.AddEdge(e.Source, e.Target, e.Kind)
	}
	return g
}
