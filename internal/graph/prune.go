package graph

// nonCausalOperations are observational-only primitives: they read
// program state for logging, printing, formatting, introspection, or
// assertion, but never feed a value back into the computation.
var nonCausalOperations = map[string]bool{
	"print":      true,
	"pprint":     true,
	"format":     true,
	"repr":       true,
	"str":        true,
	"log":        true,
	"logging":    true,
	"debug":      true,
	"info":       true,
	"warning":    true,
	"error":      true,
	"critical":   true,
	"type":       true,
	"isinstance": true,
	"issubclass": true,
	"assert":     true,
	"dir":        true,
	"vars":       true,
}

// IsNonCausalOperation reports whether an operation name is
// observational-only.
func IsNonCausalOperation(name string) bool {
	return nonCausalOperations[name]
}

// operationName returns the operation recorded for a node, if any.
func operationName(n *GraphNode) string {
	if n == nil {
		return ""
	}
	if op, ok := n.Metadata["operation"]; ok {
		return op
	}
	if n.Kind == NodeEffect {
		return n.Name
	}
	return ""
}

// Prune removes every edge touching a non-causal node. When dropNodes is
// set, non-causal nodes left isolated by the edge removal are dropped as
// well. Returns the same graph for chaining.
func (g *CausalGraph) Prune(dropNodes bool) *CausalGraph {
	nonCausal := make(map[string]bool)
	for id, n := range g.Nodes {
		if IsNonCausalOperation(operationName(n)) {
			nonCausal[id] = true
		}
	}
	if len(nonCausal) == 0 {
		return g
	}

	g.removeEdges(func(e CausalEdge) bool {
		return !nonCausal[e.Source] && !nonCausal[e.Target]
	})

	if dropNodes {
		for id := range nonCausal {
			g.removeNode(id)
		}
	}
	return g
}
