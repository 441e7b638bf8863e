package report

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"causet/internal/graph"
)

// MermaidGenerator renders causal graphs as Mermaid diagrams.
type MermaidGenerator struct{}

// GenerateFlowChart emits the whole graph as a top-down flowchart.
// Data-flow edges are solid arrows, control-flow edges dashed.
func (m *MermaidGenerator) GenerateFlowChart(g *graph.CausalGraph) string {
	var sb strings.Builder
	sb.WriteString("```mermaid\ngraph TD\n")

	for _, id := range g.NodeIDs() {
		node := g.Nodes[id]
		mid := sanitizeMermaidID(id)
		label := fmt.Sprintf("%s L%d", node.Name, node.Line)
		switch node.Kind {
		case graph.NodeFunction:
			sb.WriteString(fmt.Sprintf("    %s[[%q]]\n", mid, label))
		case graph.NodeReturn:
			sb.WriteString(fmt.Sprintf("    %s(%q)\n", mid, label))
		case graph.NodeEffect:
			sb.WriteString(fmt.Sprintf("    %s{{%q}}\n", mid, label))
		default:
			sb.WriteString(fmt.Sprintf("    %s[%q]\n", mid, label))
		}
	}

	for _, e := range g.Edges {
		from := sanitizeMermaidID(e.Source)
		to := sanitizeMermaidID(e.Target)
		if e.Kind == graph.EdgeControlFlow {
			sb.WriteString(fmt.Sprintf("    %s -.-> %s\n", from, to))
		} else {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", from, to))
		}
	}

	sb.WriteString("```\n")
	return sb.String()
}

// GenerateScopeDiagram emits a compact scope-level view: one node per
// scope, edges weighted by the causal links crossing between scopes.
func (m *MermaidGenerator) GenerateScopeDiagram(g *graph.CausalGraph) string {
	type edge struct {
		from string
		to   string
	}
	scopeWeight := map[string]int{}
	edgeWeight := map[edge]int{}

	for _, id := range g.NodeIDs() {
		scopeWeight[g.Nodes[id].Scope]++
	}
	for _, e := range g.Edges {
		from := g.Nodes[e.Source].Scope
		to := g.Nodes[e.Target].Scope
		if from == to {
			continue
		}
		edgeWeight[edge{from: from, to: to}]++
	}

	scopes := make([]string, 0, len(scopeWeight))
	for s := range scopeWeight {
		scopes = append(scopes, s)
	}
	sort.Strings(scopes)

	var sb strings.Builder
	sb.WriteString("```mermaid\ngraph LR\n")
	for _, s := range scopes {
		sb.WriteString(fmt.Sprintf("    %s[%q]\n", sanitizeMermaidID(s), fmt.Sprintf("%s (%d)", s, scopeWeight[s])))
	}

	type weighted struct {
		e edge
		w int
	}
	edges := make([]weighted, 0, len(edgeWeight))
	for e, w := range edgeWeight {
		edges = append(edges, weighted{e: e, w: w})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].e.from == edges[j].e.from {
			return edges[i].e.to < edges[j].e.to
		}
		return edges[i].e.from < edges[j].e.from
	})
	for _, we := range edges {
		sb.WriteString(fmt.Sprintf("    %s -->|%d| %s\n", sanitizeMermaidID(we.e.from), we.w, sanitizeMermaidID(we.e.to)))
	}

	sb.WriteString("```\n")
	return sb.String()
}

var mermaidIDPattern = regexp.MustCompile(`[^a-z0-9_]`)

func sanitizeMermaidID(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return "node"
	}
	v = mermaidIDPattern.ReplaceAllString(strings.ReplaceAll(v, "-", "_"), "_")
	if v == "" {
		return "node"
	}
	if v[0] >= '0' && v[0] <= '9' {
		v = "n_" + v
	}
	return v
}
