package graph

// TopologicalOrder returns node IDs in an order where every edge goes
// from an earlier to a later position. The order is deterministic: ties
// are broken by node insertion order. Returns a CyclicGraphError when no
// such order exists.
func (g *CausalGraph) TopologicalOrder() ([]string, error) {
	indeg := make(map[string]int, len(g.Nodes))
	for _, id := range g.ids {
		indeg[id] = len(dedupe(g.in[id]))
	}

	var queue []string
	for _, id := range g.ids {
		if indeg[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(g.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, child := range dedupe(g.out[id]) {
			indeg[child]--
			if indeg[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(order) != len(g.Nodes) {
		return nil, &CyclicGraphError{Cycle: g.findCycle()}
	}
	return order, nil
}

// findCycle locates one cycle by depth-first search. Only called after
// Kahn's algorithm has proven a cycle exists.
func (g *CausalGraph) findCycle() []string {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(g.Nodes))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = inStack
		stack = append(stack, id)
		for _, child := range dedupe(g.out[id]) {
			switch state[child] {
			case inStack:
				// Unwind the stack back to the repeated node.
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == child {
						cycle = append([]string(nil), stack[i:]...)
						cycle = append(cycle, child)
						return true
					}
				}
			case unvisited:
				if visit(child) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, id := range g.ids {
		if state[id] == unvisited && visit(id) {
			break
		}
	}
	return cycle
}
