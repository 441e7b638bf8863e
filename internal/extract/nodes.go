package extract

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"causet/internal/graph"
)

// sideEffectOperations are call names recorded as Effect nodes: they
// push a value out of the pure data flow (I/O, container mutation,
// logging).
var sideEffectOperations = map[string]bool{
	"print":      true,
	"write":      true,
	"writelines": true,
	"append":     true,
	"extend":     true,
	"insert":     true,
	"add":        true,
	"update":     true,
	"remove":     true,
	"pop":        true,
	"clear":      true,
	"open":       true,
	"close":      true,
	"log":        true,
	"debug":      true,
	"info":       true,
	"warning":    true,
	"error":      true,
	"send":       true,
	"put":        true,
}

type nodeCollector struct {
	src   []byte
	nodes []*graph.GraphNode
	seen  map[string]bool
}

// ExtractNodes walks the parsed tree and returns every graph node it
// recognizes: function definitions, per-line variable assignments,
// return statements, and side-effecting calls. Deterministic and
// idempotent; identical input yields an identical node set.
func ExtractNodes(tree *sitter.Tree, src []byte) []*graph.GraphNode {
	c := &nodeCollector{src: src, seen: make(map[string]bool)}
	c.walk(tree.RootNode(), moduleScope(), nil)
	return c.nodes
}

func (c *nodeCollector) add(n *graph.GraphNode) {
	if c.seen[n.ID] {
		return
	}
	c.seen[n.ID] = true
	c.nodes = append(c.nodes, n)
}

// walk is the single recursive traversal; it switches on the closed set
// of node kinds this analysis cares about and recurses everywhere else.
// decorators carries decorator text down from a decorated_definition to
// the function it wraps.
func (c *nodeCollector) walk(n *sitter.Node, scope scopeContext, decorators []string) {
	switch n.Type() {
	case "decorated_definition":
		var decs []string
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child.Type() == "decorator" {
				decs = append(decs, strings.TrimSpace(child.Content(c.src)))
			}
		}
		if def := n.ChildByFieldName("definition"); def != nil {
			c.walk(def, scope, decs)
		}
		return

	case "function_definition":
		name := c.content(n.ChildByFieldName("name"))
		if name == "" {
			return
		}
		meta := map[string]string{
			"params":   strings.Join(ParameterNames(n, c.src), ","),
			"end_line": strconv.Itoa(endLine(n)),
		}
		if len(decorators) > 0 {
			meta["decorators"] = strings.Join(decorators, ",")
		}
		if isAsync(n) {
			meta["async"] = "true"
		}
		c.add(&graph.GraphNode{
			ID:       graph.NodeID(scope.String(), name, graph.NodeFunction, line(n)),
			Name:     name,
			Kind:     graph.NodeFunction,
			Line:     line(n),
			Scope:    scope.String(),
			Metadata: meta,
		})
		if body := n.ChildByFieldName("body"); body != nil {
			c.walk(body, scope.push(name), nil)
		}
		return

	case "assignment", "augmented_assignment":
		for _, name := range assignTargets(n.ChildByFieldName("left"), c.src) {
			c.add(&graph.GraphNode{
				ID:    graph.NodeID(scope.String(), name, graph.NodeVariable, line(n)),
				Name:  name,
				Kind:  graph.NodeVariable,
				Line:  line(n),
				Scope: scope.String(),
			})
		}
		// The right-hand side may contain side-effecting calls.
		if right := n.ChildByFieldName("right"); right != nil {
			c.walk(right, scope, nil)
		}
		return

	case "return_statement":
		if scope.String() == graph.ModuleScope {
			return // a module-level return is not executable
		}
		c.add(&graph.GraphNode{
			ID:    graph.NodeID(scope.String(), "return", graph.NodeReturn, line(n)),
			Name:  "return",
			Kind:  graph.NodeReturn,
			Line:  line(n),
			Scope: scope.String(),
		})
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c.walk(n.NamedChild(i), scope, nil)
		}
		return

	case "call":
		if op := callName(n, c.src); sideEffectOperations[op] {
			c.add(&graph.GraphNode{
				ID:       graph.NodeID(scope.String(), op, graph.NodeEffect, line(n)),
				Name:     op,
				Kind:     graph.NodeEffect,
				Line:     line(n),
				Scope:    scope.String(),
				Metadata: map[string]string{"operation": op},
			})
		}
		if args := n.ChildByFieldName("arguments"); args != nil {
			c.walk(args, scope, nil)
		}
		return
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c.walk(n.NamedChild(i), scope, nil)
	}
}

func (c *nodeCollector) content(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(c.src)
}

// ParameterNames lists a function definition's parameter identifiers.
func ParameterNames(fn *sitter.Node, src []byte) []string {
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "identifier":
			names = append(names, p.Content(src))
		case "typed_parameter":
			if id := firstChildOfType(p, "identifier"); id != nil {
				names = append(names, id.Content(src))
			}
		case "default_parameter", "typed_default_parameter":
			if name := p.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
				names = append(names, name.Content(src))
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			if id := firstChildOfType(p, "identifier"); id != nil {
				names = append(names, id.Content(src))
			}
		}
	}
	return names
}

func isAsync(fn *sitter.Node) bool {
	for i := 0; i < int(fn.ChildCount()); i++ {
		if fn.Child(i).Type() == "async" {
			return true
		}
	}
	return false
}

func firstChildOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == typ {
			return child
		}
	}
	return nil
}
