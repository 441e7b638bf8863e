// Package extract derives typed causal-graph nodes and edges from a
// tree-sitter-parsed Python source tree. The surrounding pipeline owns
// parsing; ParseSource is provided for callers that start from raw
// bytes.
package extract

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ParseSource parses Python source into a tree. The returned tree is
// what the extraction entry points consume.
func ParseSource(ctx context.Context, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}
	return tree, nil
}

// scopeContext is the immutable chain of enclosing function names.
// push copies; values are safe to hold across recursive calls.
type scopeContext struct {
	names []string
}

func moduleScope() scopeContext { return scopeContext{} }

func (s scopeContext) push(name string) scopeContext {
	names := make([]string, 0, len(s.names)+1)
	names = append(names, s.names...)
	names = append(names, name)
	return scopeContext{names: names}
}

// String renders the dot-joined scope, "__module__" at top level.
func (s scopeContext) String() string {
	if len(s.names) == 0 {
		return "__module__"
	}
	return strings.Join(s.names, ".")
}

// chain lists scope strings from the current scope outward, ending with
// the module scope. Used for reaching-definition resolution.
func (s scopeContext) chain() []string {
	out := make([]string, 0, len(s.names)+1)
	for i := len(s.names); i > 0; i-- {
		out = append(out, strings.Join(s.names[:i], "."))
	}
	out = append(out, "__module__")
	return out
}

// line returns the 1-based source line of a node.
func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func endLine(n *sitter.Node) int {
	return int(n.EndPoint().Row) + 1
}

// callName resolves the operation name of a call expression: either the
// bare identifier ("print") or the attribute of a method call
// ("f.write" -> "write").
func callName(call *sitter.Node, src []byte) string {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	switch fn.Type() {
	case "identifier":
		return fn.Content(src)
	case "attribute":
		attr := fn.ChildByFieldName("attribute")
		if attr != nil {
			return attr.Content(src)
		}
	}
	return ""
}

// readNames collects identifiers that an expression reads, in document
// order, deduplicated. Attribute names and keyword-argument names are
// not reads; the object of an attribute access is.
func readNames(expr *sitter.Node, src []byte) []string {
	if expr == nil {
		return nil
	}
	var names []string
	seen := make(map[string]bool)

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "identifier":
			name := n.Content(src)
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
			return
		case "attribute":
			if obj := n.ChildByFieldName("object"); obj != nil {
				walk(obj)
			}
			return
		case "keyword_argument":
			if val := n.ChildByFieldName("value"); val != nil {
				walk(val)
			}
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(expr)
	return names
}

// FirstFunction locates the first function definition in document
// order, looking through decorators. Returns nil when the tree holds no
// function.
func FirstFunction(root *sitter.Node) *sitter.Node {
	if root == nil {
		return nil
	}
	if root.Type() == "function_definition" {
		return root
	}
	if root.Type() == "decorated_definition" {
		if def := root.ChildByFieldName("definition"); def != nil && def.Type() == "function_definition" {
			return def
		}
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		if fn := FirstFunction(root.NamedChild(i)); fn != nil {
			return fn
		}
	}
	return nil
}

// assignTargets lists the identifiers bound by an assignment left-hand
// side: a bare name, or each name of a tuple/list pattern.
func assignTargets(left *sitter.Node, src []byte) []string {
	if left == nil {
		return nil
	}
	switch left.Type() {
	case "identifier":
		return []string{left.Content(src)}
	case "pattern_list", "tuple_pattern", "list_pattern":
		var names []string
		for i := 0; i < int(left.NamedChildCount()); i++ {
			child := left.NamedChild(i)
			if child.Type() == "identifier" {
				names = append(names, child.Content(src))
			}
		}
		return names
	}
	// Subscript and attribute targets mutate existing state rather than
	// binding a fresh name; they produce no node.
	return nil
}
