package intervene

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Parse normalizes any accepted intervention request form into a Spec.
//
// Accepted forms:
//   - a do() expression string: "do(x=5)", "do(x=x+2)", "do(x=x*0.5)",
//     with multiple clauses separated by ";"
//   - a map with "type"/"node" keys, or a map with an "interventions"
//     list plus optional "query_nodes" and "num_samples"
//   - a typed Intervention, []Intervention, Spec, or *Spec
func Parse(req any) (*Spec, error) {
	switch v := req.(type) {
	case nil:
		return nil, &ParseError{Input: "<nil>", Msg: "empty request"}
	case *Spec:
		return v, nil
	case Spec:
		return &v, nil
	case Intervention:
		return &Spec{Interventions: []Intervention{v}}, nil
	case []Intervention:
		return &Spec{Interventions: v}, nil
	case string:
		return parseDSL(v)
	case map[string]any:
		return parseMap(v)
	case []any:
		spec := &Spec{}
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, &ParseError{Input: fmt.Sprint(item), Msg: "list items must be intervention maps"}
			}
			iv, err := mapIntervention(m)
			if err != nil {
				return nil, err
			}
			spec.Interventions = append(spec.Interventions, iv)
		}
		return spec, nil
	default:
		return nil, &ParseError{Input: fmt.Sprintf("%T", req), Msg: "unsupported request type"}
	}
}

// parseDSL handles the do() expression language. Each clause is
// do(node=expr) where expr is a numeric literal (hard), node+c or
// node-c (shift), or node*c (scale).
func parseDSL(input string) (*Spec, error) {
	spec := &Spec{}
	for _, clause := range strings.Split(input, ";") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		iv, err := parseClause(clause)
		if err != nil {
			return nil, err
		}
		spec.Interventions = append(spec.Interventions, iv)
	}
	if len(spec.Interventions) == 0 {
		return nil, &ParseError{Input: input, Msg: "no do() clauses found"}
	}
	return spec, nil
}

func parseClause(clause string) (Intervention, error) {
	if !strings.HasPrefix(clause, "do(") || !strings.HasSuffix(clause, ")") {
		return nil, &ParseError{Input: clause, Msg: "expected do(node=expr)"}
	}
	body := clause[len("do(") : len(clause)-1]
	node, expr, ok := strings.Cut(body, "=")
	if !ok {
		return nil, &ParseError{Input: clause, Msg: "expected node=expr inside do()"}
	}
	node = strings.TrimSpace(node)
	expr = strings.TrimSpace(expr)
	if node == "" || !isIdentifier(node) {
		return nil, &ParseError{Input: clause, Msg: "target must be a node name"}
	}

	// Literal RHS pins the node: a hard intervention.
	if val, err := strconv.ParseFloat(expr, 64); err == nil {
		return HardIntervention{Node: node, Value: val}, nil
	}

	// Otherwise the RHS must transform the node's own value. The
	// operator is whatever follows the node name, so a negative
	// parameter like x*-2 is not mistaken for a subtraction.
	if rest, ok := strings.CutPrefix(expr, node); ok && rest != "" {
		rest = strings.TrimSpace(rest)
		op := rest[0]
		if op != '+' && op != '-' && op != '*' {
			return nil, &ParseError{Input: clause, Msg: "soft interventions may only reference the target node"}
		}
		param, err := strconv.ParseFloat(strings.TrimSpace(rest[1:]), 64)
		if err != nil {
			return nil, &ParseError{Input: clause, Msg: "transform parameter must be numeric"}
		}
		switch op {
		case '+':
			return SoftIntervention{Node: node, Transform: TransformShift, Param: param}, nil
		case '-':
			return SoftIntervention{Node: node, Transform: TransformShift, Param: -param}, nil
		default:
			return SoftIntervention{Node: node, Transform: TransformScale, Param: param}, nil
		}
	}
	if i := strings.IndexAny(expr, "+-*"); i > 0 && isIdentifier(strings.TrimSpace(expr[:i])) {
		return nil, &ParseError{Input: clause, Msg: "soft interventions may only reference the target node"}
	}
	return nil, &ParseError{Input: clause, Msg: "unrecognized expression; use a literal, node+c, node-c, or node*c"}
}

func isIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && (r >= '0' && r <= '9'):
		case i > 0 && (r == '.' || r == ':'):
			// Qualified node IDs like __module__.x:variable:2 are allowed.
		default:
			return false
		}
	}
	return len(s) > 0
}

func parseMap(m map[string]any) (*Spec, error) {
	if _, ok := m["interventions"]; !ok {
		iv, err := mapIntervention(m)
		if err != nil {
			return nil, err
		}
		return &Spec{Interventions: []Intervention{iv}}, nil
	}

	spec := &Spec{}
	list, ok := m["interventions"].([]any)
	if !ok {
		return nil, &ParseError{Input: "interventions", Msg: "interventions must be a list"}
	}
	for _, item := range list {
		im, ok := item.(map[string]any)
		if !ok {
			return nil, &ParseError{Input: fmt.Sprint(item), Msg: "interventions entries must be maps"}
		}
		iv, err := mapIntervention(im)
		if err != nil {
			return nil, err
		}
		spec.Interventions = append(spec.Interventions, iv)
	}
	if nodes, ok := m["query_nodes"].([]any); ok {
		for _, n := range nodes {
			s, ok := n.(string)
			if !ok {
				return nil, &ParseError{Input: fmt.Sprint(n), Msg: "query_nodes entries must be strings"}
			}
			spec.QueryNodes = append(spec.QueryNodes, s)
		}
	}
	if n, ok := numericValue(m["num_samples"]); ok {
		spec.NumSamples = int(n)
	}
	return spec, nil
}

func mapIntervention(m map[string]any) (Intervention, error) {
	typ, _ := m["type"].(string)
	node, _ := m["node"].(string)
	var value, param *float64
	if v, ok := numericValue(m["value"]); ok {
		value = &v
	}
	if p, ok := numericValue(m["param"]); ok {
		param = &p
	}
	transform, _ := m["transform"].(string)
	expression, _ := m["expression"].(string)
	return interventionFromParts(typ, node, value, transform, param, expression)
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
