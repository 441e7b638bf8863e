package mechanism

import (
	"errors"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"causet/internal/extract"
)

// ErrNoFunction is returned when the supplied tree holds no function
// definition to infer from.
var ErrNoFunction = errors.New("no function definition found")

// Infer classifies the first function definition's return expression
// into a mechanism shape without executing anything. A function with no
// return expression yields Constant(None) at full confidence.
func Infer(tree *sitter.Tree, src []byte) (Mechanism, error) {
	if tree == nil {
		return Mechanism{}, ErrNoFunction
	}
	fn := extract.FirstFunction(tree.RootNode())
	if fn == nil {
		return Mechanism{}, ErrNoFunction
	}
	return InferFunction(fn, src), nil
}

// InferFunction classifies a single function_definition node.
func InferFunction(fn *sitter.Node, src []byte) Mechanism {
	params := make(map[string]bool)
	for _, p := range extract.ParameterNames(fn, src) {
		params[p] = true
	}

	ret := firstReturn(fn.ChildByFieldName("body"))
	if ret == nil || ret.NamedChildCount() == 0 {
		return Mechanism{Kind: Constant, Confidence: 1.0}
	}
	return classify(ret.NamedChild(0), src, params)
}

// InferAll infers a mechanism for every function definition in the
// tree, keyed by function name. Later definitions of the same name
// win, matching runtime rebinding.
func InferAll(tree *sitter.Tree, src []byte) map[string]Mechanism {
	out := make(map[string]Mechanism)
	if tree == nil {
		return out
	}
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "function_definition" {
			if name := n.ChildByFieldName("name"); name != nil {
				out[name.Content(src)] = InferFunction(n, src)
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(tree.RootNode())
	return out
}

// firstReturn finds the first return statement in a body without
// descending into nested function definitions.
func firstReturn(body *sitter.Node) *sitter.Node {
	if body == nil {
		return nil
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		switch child.Type() {
		case "return_statement":
			return child
		case "function_definition", "decorated_definition":
			continue
		}
		if found := firstReturn(child); found != nil {
			return found
		}
	}
	return nil
}

func classify(expr *sitter.Node, src []byte, params map[string]bool) Mechanism {
	expr = stripParens(expr)
	text := expr.Content(src)

	switch expr.Type() {
	case "integer", "float", "true", "false", "none", "string":
		return Mechanism{
			Kind:       Constant,
			Value:      literalValue(expr, src),
			Confidence: 1.0,
			Expression: text,
		}
	case "identifier":
		name := expr.Content(src)
		if params[name] {
			return Mechanism{
				Kind:         Linear,
				Coefficient:  1,
				Offset:       0,
				Coefficients: map[string]float64{name: 1},
				Confidence:   1.0,
				Variables:    []string{name},
				Expression:   text,
			}
		}
		return Mechanism{Kind: Unknown, Confidence: 0.3, Expression: text}
	case "conditional_expression":
		return Mechanism{Kind: Conditional, Confidence: 0.6, Expression: text}
	}

	if coeffs, offset, ok := decomposeLinear(expr, src, params); ok {
		if len(coeffs) == 0 {
			v := offset
			return Mechanism{Kind: Constant, Value: &v, Confidence: 0.9, Expression: text}
		}
		m := Mechanism{
			Kind:         Linear,
			Offset:       offset,
			Coefficients: coeffs,
			Variables:    sortedVariables(coeffs),
			Expression:   text,
		}
		if len(coeffs) == 1 {
			m.Coefficient = coeffs[m.Variables[0]]
			m.Confidence = 0.9
		} else {
			m.Confidence = 0.8
		}
		return m
	}

	if containsPower(expr, src) {
		return Mechanism{Kind: Nonlinear, Confidence: 0.7, Expression: text}
	}
	return Mechanism{Kind: Unknown, Confidence: 0.3, Expression: text}
}

// decomposeLinear flattens a sum/difference tree whose leaves are each
// a parameter, coefficient*parameter, or a constant. Reports ok=false
// as soon as any leaf does not fit that shape.
func decomposeLinear(expr *sitter.Node, src []byte, params map[string]bool) (map[string]float64, float64, bool) {
	coeffs := make(map[string]float64)
	offset := 0.0

	var add func(n *sitter.Node, sign float64) bool
	add = func(n *sitter.Node, sign float64) bool {
		n = stripParens(n)
		switch n.Type() {
		case "integer", "float":
			v, err := strconv.ParseFloat(strings.ReplaceAll(n.Content(src), "_", ""), 64)
			if err != nil {
				return false
			}
			offset += sign * v
			return true
		case "identifier":
			name := n.Content(src)
			if !params[name] {
				return false
			}
			coeffs[name] += sign
			return true
		case "unary_operator":
			op := n.Child(0)
			arg := n.ChildByFieldName("argument")
			if op == nil || arg == nil {
				return false
			}
			switch op.Type() {
			case "-":
				return add(arg, -sign)
			case "+":
				return add(arg, sign)
			}
			return false
		case "binary_operator":
			opNode := n.ChildByFieldName("operator")
			left := n.ChildByFieldName("left")
			right := n.ChildByFieldName("right")
			if opNode == nil || left == nil || right == nil {
				return false
			}
			switch opNode.Content(src) {
			case "+":
				return add(left, sign) && add(right, sign)
			case "-":
				return add(left, sign) && add(right, -sign)
			case "*":
				name, coef, ok := scaledParam(left, right, src, params)
				if !ok {
					return false
				}
				coeffs[name] += sign * coef
				return true
			}
			return false
		}
		return false
	}

	if !add(expr, 1) {
		return nil, 0, false
	}
	return coeffs, offset, true
}

// scaledParam matches var*const or const*var.
func scaledParam(left, right *sitter.Node, src []byte, params map[string]bool) (string, float64, bool) {
	left, right = stripParens(left), stripParens(right)
	try := func(id, num *sitter.Node) (string, float64, bool) {
		if id.Type() != "identifier" || !params[id.Content(src)] {
			return "", 0, false
		}
		if num.Type() != "integer" && num.Type() != "float" {
			return "", 0, false
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(num.Content(src), "_", ""), 64)
		if err != nil {
			return "", 0, false
		}
		return id.Content(src), v, true
	}
	if name, v, ok := try(left, right); ok {
		return name, v, true
	}
	return try(right, left)
}

func stripParens(n *sitter.Node) *sitter.Node {
	for n != nil && n.Type() == "parenthesized_expression" && n.NamedChildCount() == 1 {
		n = n.NamedChild(0)
	}
	return n
}

func containsPower(n *sitter.Node, src []byte) bool {
	if n == nil {
		return false
	}
	if n.Type() == "binary_operator" {
		if op := n.ChildByFieldName("operator"); op != nil && op.Content(src) == "**" {
			return true
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if containsPower(n.NamedChild(i), src) {
			return true
		}
	}
	return false
}

func literalValue(n *sitter.Node, src []byte) *float64 {
	switch n.Type() {
	case "integer", "float":
		v, err := strconv.ParseFloat(strings.ReplaceAll(n.Content(src), "_", ""), 64)
		if err != nil {
			return nil
		}
		return &v
	case "true":
		v := 1.0
		return &v
	case "false":
		v := 0.0
		return &v
	}
	return nil
}
