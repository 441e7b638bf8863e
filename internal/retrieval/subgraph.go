package retrieval

import (
	"sort"

	"causet/internal/graph"
)

// Config controls how neighborhood subgraphs are extracted.
type Config struct {
	MaxHops      int
	AllowedKinds map[graph.EdgeKind]bool
}

func DefaultConfig() Config {
	return Config{
		MaxHops:      2,
		AllowedKinds: nil,
	}
}

// Subgraph is the extraction result: the nodes within MaxHops of the
// seeds, scored by proximity, and the edges connecting them.
type Subgraph struct {
	MaxHops    int
	SeedIDs    []string
	NodeIDs    []string
	NodeScores map[string]float64
	Edges      []graph.CausalEdge
}

// hopDecay halves a node's relevance per hop away from a seed.
const hopDecay = 0.5

// ExtractNeighborhood walks outward from the seed nodes, ignoring edge
// direction, and returns everything reachable within cfg.MaxHops.
func ExtractNeighborhood(g *graph.CausalGraph, seeds []string, cfg Config) *Subgraph {
	if g == nil {
		return &Subgraph{}
	}
	if cfg.MaxHops < 0 {
		cfg.MaxHops = 0
	}

	seedSet := make(map[string]bool, len(seeds))
	for _, id := range seeds {
		if _, ok := g.Nodes[id]; ok {
			seedSet[id] = true
		}
	}
	seedIDs := sortedKeys(seedSet)
	if len(seedIDs) == 0 {
		return &Subgraph{
			MaxHops:    cfg.MaxHops,
			NodeScores: map[string]float64{},
		}
	}

	adj := make(map[string][]edgeHop)
	for _, e := range g.Edges {
		if !edgeAllowed(e, cfg) {
			continue
		}
		adj[e.Source] = append(adj[e.Source], edgeHop{to: e.Target, edge: e})
		adj[e.Target] = append(adj[e.Target], edgeHop{to: e.Source, edge: e})
	}

	visitedDepth := make(map[string]int, len(seedIDs))
	nodeScores := make(map[string]float64, len(seedIDs))
	queue := make([]queueItem, 0, len(seedIDs))
	for _, id := range seedIDs {
		visitedDepth[id] = 0
		nodeScores[id] = 1.0
		queue = append(queue, queueItem{id: id, depth: 0})
	}

	edgeSeen := make(map[graph.CausalEdge]bool)
	edges := make([]graph.CausalEdge, 0)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.depth >= cfg.MaxHops {
			continue
		}

		for _, next := range adj[cur.id] {
			if !edgeSeen[next.edge] {
				edgeSeen[next.edge] = true
				edges = append(edges, next.edge)
			}

			nextDepth := cur.depth + 1
			candidateScore := nodeScores[cur.id] * hopDecay
			if candidateScore > nodeScores[next.to] {
				nodeScores[next.to] = candidateScore
			}
			prevDepth, seen := visitedDepth[next.to]
			if !seen || nextDepth < prevDepth {
				visitedDepth[next.to] = nextDepth
				queue = append(queue, queueItem{id: next.to, depth: nextDepth})
			}
		}
	}

	nodeIDs := sortedKeys(visitedDepth)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source == edges[j].Source {
			if edges[i].Target == edges[j].Target {
				return string(edges[i].Kind) < string(edges[j].Kind)
			}
			return edges[i].Target < edges[j].Target
		}
		return edges[i].Source < edges[j].Source
	})

	return &Subgraph{
		MaxHops:    cfg.MaxHops,
		SeedIDs:    seedIDs,
		NodeIDs:    nodeIDs,
		NodeScores: nodeScores,
		Edges:      edges,
	}
}

type queueItem struct {
	id    string
	depth int
}

type edgeHop struct {
	to   string
	edge graph.CausalEdge
}

func edgeAllowed(e graph.CausalEdge, cfg Config) bool {
	if len(cfg.AllowedKinds) == 0 {
		return true
	}
	return cfg.AllowedKinds[e.Kind]
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
