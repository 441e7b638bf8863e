package graph

// StructureReport carries the diagnostic structural checks for a graph.
// Unlike Validate it never fails; callers inspect the flags.
type StructureReport struct {
	IsDAG            bool `json:"is_dag"`
	HasRoot          bool `json:"has_root"`
	HasLeaf          bool `json:"has_leaf"`
	EdgeCountInBound bool `json:"edge_count_in_bound"`
	NodeCount        int  `json:"node_count"`
	EdgeCount        int  `json:"edge_count"`
}

// OK reports whether every structural invariant holds.
func (r StructureReport) OK() bool {
	return r.IsDAG && r.HasRoot && r.HasLeaf && r.EdgeCountInBound
}

// Validate enforces the acyclicity invariant, returning a
// CyclicGraphError carrying the discovered cycle when it is violated.
func (g *CausalGraph) Validate() error {
	_, err := g.TopologicalOrder()
	return err
}

// CheckStructure computes the diagnostic structural flags: acyclicity,
// presence of at least one root and one leaf, and the practical N² edge
// bound. An empty graph trivially satisfies acyclicity but has neither
// root nor leaf.
func (g *CausalGraph) CheckStructure() StructureReport {
	n := len(g.Nodes)
	report := StructureReport{
		NodeCount:        n,
		EdgeCount:        len(g.Edges),
		IsDAG:            g.Validate() == nil,
		HasRoot:          len(g.Roots()) > 0,
		HasLeaf:          len(g.Leaves()) > 0,
		EdgeCountInBound: len(g.Edges) <= n*n,
	}
	return report
}
