package extract

import (
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"causet/internal/graph"
)

type controlFlowCollector struct {
	src    []byte
	defs   definitionIndex
	byLine []*graph.GraphNode // all nodes sorted by line
	pairs  []EdgePair
	seen   map[EdgePair]bool
}

// ExtractControlFlow derives edges from branching, looping, and
// exception structure. Variables referenced by a controlling expression
// are resolved to their reaching definitions and linked to every node
// inside the controlled body; when no such definitions resolve, the
// nearest preceding same-scope node is linked instead, or the body nodes
// are chained sequentially to preserve an ordering signal.
func ExtractControlFlow(tree *sitter.Tree, src []byte, nodes []*graph.GraphNode) []EdgePair {
	sorted := make([]*graph.GraphNode, len(nodes))
	copy(sorted, nodes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Line < sorted[j].Line })

	c := &controlFlowCollector{
		src:    src,
		defs:   indexDefinitions(nodes),
		byLine: sorted,
		seen:   make(map[EdgePair]bool),
	}
	c.walk(tree.RootNode(), moduleScope())
	return c.pairs
}

func (c *controlFlowCollector) emit(source, target string) {
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

// nodesIn returns the IDs of nodes whose source line falls inside the
// given body, in line order.
func (c *controlFlowCollector) nodesIn(body *sitter.Node) []string {
	if body == nil {
		return nil
	}
	start, end := line(body), endLine(body)
	var ids []string
	for _, n := range c.byLine {
		if n.Line >= start && n.Line <= end {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// nearestPreceding finds the closest node in the same scope strictly
// before the given line.
func (c *controlFlowCollector) nearestPreceding(scope string, beforeLine int) string {
	best := ""
	for _, n := range c.byLine {
		if n.Line >= beforeLine {
			break
		}
		if n.Scope == scope {
			best = n.ID
		}
	}
	return best
}

// conditionSources resolves the reaching definitions of every variable
// the controlling expression reads.
func (c *controlFlowCollector) conditionSources(expr *sitter.Node, scope scopeContext, ctlLine int) []string {
	var sources []string
	for _, name := range readNames(expr, c.src) {
		if id := c.defs.resolve(scope, name, ctlLine); id != "" {
			sources = append(sources, id)
		}
	}
	return sources
}

// linkControlled wires condition sources to each body node, trying the
// fallbacks in order when no sources resolved.
func (c *controlFlowCollector) linkControlled(sources []string, scope scopeContext, ctlLine int, body []string) {
	if len(body) == 0 {
		return
	}
	if len(sources) > 0 {
		for _, src := range sources {
			for _, id := range body {
				c.emit(src, id)
			}
		}
		return
	}
	if prev := c.nearestPreceding(scope.String(), ctlLine); prev != "" {
		for _, id := range body {
			c.emit(prev, id)
		}
		return
	}
	for i := 0; i+1 < len(body); i++ {
		c.emit(body[i], body[i+1])
	}
}

func lastOf(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[len(ids)-1]
}

func (c *controlFlowCollector) walk(n *sitter.Node, scope scopeContext) {
	switch n.Type() {
	case "function_definition":
		name := n.ChildByFieldName("name")
		body := n.ChildByFieldName("body")
		if name != nil && body != nil {
			c.walk(body, scope.push(name.Content(c.src)))
		}
		return

	case "if_statement":
		c.walkIf(n, scope)

	case "for_statement":
		sources := c.conditionSources(n.ChildByFieldName("right"), scope, line(n))
		body := c.nodesIn(n.ChildByFieldName("body"))
		c.linkControlled(sources, scope, line(n), body)
		c.walkLoopElse(n, sources, body, scope)

	case "while_statement":
		sources := c.conditionSources(n.ChildByFieldName("condition"), scope, line(n))
		body := c.nodesIn(n.ChildByFieldName("body"))
		c.linkControlled(sources, scope, line(n), body)
		c.walkLoopElse(n, sources, body, scope)

	case "try_statement":
		c.walkTry(n, scope)
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c.walk(n.NamedChild(i), scope)
	}
}

func (c *controlFlowCollector) walkIf(n *sitter.Node, scope scopeContext) {
	sources := c.conditionSources(n.ChildByFieldName("condition"), scope, line(n))
	ifBody := c.nodesIn(n.ChildByFieldName("consequence"))
	c.linkControlled(sources, scope, line(n), ifBody)

	prevBody := ifBody
	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		switch clause.Type() {
		case "elif_clause":
			elifSources := c.conditionSources(clause.ChildByFieldName("condition"), scope, line(clause))
			elifBody := c.nodesIn(clause.ChildByFieldName("consequence"))
			c.linkControlled(elifSources, scope, line(clause), elifBody)
			// Mutual-exclusion signal: the taken branch orders before
			// the alternatives that follow it.
			if last := lastOf(prevBody); last != "" && len(elifBody) > 0 {
				c.emit(last, elifBody[0])
			}
			prevBody = elifBody
		case "else_clause":
			elseBody := c.nodesIn(clause.ChildByFieldName("body"))
			c.linkControlled(sources, scope, line(n), elseBody)
		}
	}
}

// walkLoopElse links a loop's else clause: executed on normal loop
// completion, so it hangs off the condition sources, or off the last
// body node when none resolved.
func (c *controlFlowCollector) walkLoopElse(n *sitter.Node, sources, body []string, scope scopeContext) {
	alt := n.ChildByFieldName("alternative")
	if alt == nil || alt.Type() != "else_clause" {
		return
	}
	elseBody := c.nodesIn(alt.ChildByFieldName("body"))
	if len(elseBody) == 0 {
		return
	}
	if len(sources) > 0 {
		for _, src := range sources {
			for _, id := range elseBody {
				c.emit(src, id)
			}
		}
		return
	}
	if last := lastOf(body); last != "" {
		for _, id := range elseBody {
			c.emit(last, id)
		}
	}
}

func (c *controlFlowCollector) walkTry(n *sitter.Node, scope scopeContext) {
	tryBody := c.nodesIn(n.ChildByFieldName("body"))
	tryLast := lastOf(tryBody)
	if tryLast == "" {
		return
	}

	var handlerLasts []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		switch clause.Type() {
		case "except_clause":
			handlerBody := c.nodesIn(lastBlockOf(clause))
			// Possible-exception flow from the try body into the handler.
			for _, id := range handlerBody {
				c.emit(tryLast, id)
			}
			if last := lastOf(handlerBody); last != "" {
				handlerLasts = append(handlerLasts, last)
			}
		case "else_clause":
			// Normal flow: runs only when the try body raised nothing.
			for _, id := range c.nodesIn(clause.ChildByFieldName("body")) {
				c.emit(tryLast, id)
			}
		case "finally_clause":
			// Always-executed flow, from the try body and every handler.
			finallyBody := c.nodesIn(lastBlockOf(clause))
			for _, id := range finallyBody {
				c.emit(tryLast, id)
				for _, h := range handlerLasts {
					c.emit(h, id)
				}
			}
		}
	}
}

// lastBlockOf finds the block child of a clause that has no body field
// (except and finally clauses).
func lastBlockOf(clause *sitter.Node) *sitter.Node {
	var block *sitter.Node
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		if child := clause.NamedChild(i); child.Type() == "block" {
			block = child
		}
	}
	return block
}
