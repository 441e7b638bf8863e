package extract

import (
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"causet/internal/graph"
)

// EdgePair is a directed (source, target) candidate emitted by the
// data-flow and control-flow extractors before edge kinds are attached.
type EdgePair struct {
	Source string
	Target string
}

// definitionIndex maps (scope, variable name) to the nodes that define
// it, ordered by line.
type definitionIndex map[string]map[string][]defEntry

type defEntry struct {
	line int
	id   string
}

func indexDefinitions(nodes []*graph.GraphNode) definitionIndex {
	idx := make(definitionIndex)
	for _, n := range nodes {
		if n.Kind != graph.NodeVariable {
			continue
		}
		byName := idx[n.Scope]
		if byName == nil {
			byName = make(map[string][]defEntry)
			idx[n.Scope] = byName
		}
		byName[n.Name] = append(byName[n.Name], defEntry{line: n.Line, id: n.ID})
	}
	for _, byName := range idx {
		for name := range byName {
			defs := byName[name]
			sort.Slice(defs, func(i, j int) bool { return defs[i].line < defs[j].line })
			byName[name] = defs
		}
	}
	return idx
}

// resolve finds the most recent definition of name at a line strictly
// before beforeLine, searching the current scope first, then each
// enclosing scope, then the module scope. Returns "" when no definition
// reaches. This is the deliberately approximate reaching-definitions
// rule: a single most-recent definition, no merging across branches.
func (idx definitionIndex) resolve(scope scopeContext, name string, beforeLine int) string {
	for _, sc := range scope.chain() {
		byName, ok := idx[sc]
		if !ok {
			continue
		}
		defs := byName[name]
		best := ""
		for _, d := range defs {
			if d.line < beforeLine {
				best = d.id
			} else {
				break
			}
		}
		if best != "" {
			return best
		}
	}
	return ""
}

type dataFlowCollector struct {
	src   []byte
	defs  definitionIndex
	pairs []EdgePair
	seen  map[EdgePair]bool
}

// ExtractDataFlow derives definition-to-use edges. For every
// assignment, augmented assignment, and return it links the reaching
// definition of each name read on the right-hand side to the node the
// statement creates. Augmented assignment additionally chains the
// variable's previous definition to its new one.
func ExtractDataFlow(tree *sitter.Tree, src []byte, nodes []*graph.GraphNode) []EdgePair {
	c := &dataFlowCollector{
		src:  src,
		defs: indexDefinitions(nodes),
		seen: make(map[EdgePair]bool),
	}
	c.walk(tree.RootNode(), moduleScope())
	return c.pairs
}

func (c *dataFlowCollector) emit(source, target string) {
	if source == "" || target == "" || source == target {
		return
	}
	p := EdgePair{Source: source, Target: target}
	if c.seen[p] {
		return
	}
	c.seen[p] = true
	c.pairs = append(c.pairs, p)
}

func (c *dataFlowCollector) walk(n *sitter.Node, scope scopeContext) {
	switch n.Type() {
	case "function_definition":
		name := n.ChildByFieldName("name")
		body := n.ChildByFieldName("body")
		if name != nil && body != nil {
			c.walk(body, scope.push(name.Content(c.src)))
		}
		return

	case "assignment":
		ln := line(n)
		reads := readNames(n.ChildByFieldName("right"), c.src)
		for _, target := range assignTargets(n.ChildByFieldName("left"), c.src) {
			targetID := graph.NodeID(scope.String(), target, graph.NodeVariable, ln)
			for _, read := range reads {
				c.emit(c.defs.resolve(scope, read, ln), targetID)
			}
		}
		return

	case "augmented_assignment":
		ln := line(n)
		reads := readNames(n.ChildByFieldName("right"), c.src)
		for _, target := range assignTargets(n.ChildByFieldName("left"), c.src) {
			targetID := graph.NodeID(scope.String(), target, graph.NodeVariable, ln)
			for _, read := range reads {
				c.emit(c.defs.resolve(scope, read, ln), targetID)
			}
			// x += ... reads the previous x even though the syntax
			// does not mention it on the right.
			c.emit(c.defs.resolve(scope, target, ln), targetID)
		}
		return

	case "return_statement":
		if scope.String() == graph.ModuleScope {
			return
		}
		ln := line(n)
		targetID := graph.NodeID(scope.String(), "return", graph.NodeReturn, ln)
		for i := 0; i < int(n.NamedChildCount()); i++ {
			for _, read := range readNames(n.NamedChild(i), c.src) {
				c.emit(c.defs.resolve(scope, read, ln), targetID)
			}
		}
		return
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c.walk(n.NamedChild(i), scope)
	}
}
