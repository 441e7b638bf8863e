// Package mechanism classifies and evaluates per-node causal
// mechanisms. Static inference is a pure function of source shape; the
// general non-linear fitting case is delegated to the external modeling
// service.
package mechanism

import (
	"fmt"
	"sort"
	"strings"
)

// Kind classifies the shape of a causal mechanism.
type Kind string

const (
	Constant    Kind = "constant"
	Linear      Kind = "linear"
	Nonlinear   Kind = "nonlinear"
	Conditional Kind = "conditional"
	Unknown     Kind = "unknown"
)

// Mechanism describes how a node's value depends on its parents.
// For Linear mechanisms Coefficients carries one entry per variable;
// the single-variable convenience fields Coefficient and Offset mirror
// the map for the common case.
type Mechanism struct {
	Kind         Kind               `json:"kind"`
	Value        *float64           `json:"value,omitempty"` // Constant only; nil means None
	Coefficient  float64            `json:"coefficient,omitempty"`
	Offset       float64            `json:"offset,omitempty"`
	Coefficients map[string]float64 `json:"coefficients,omitempty"`
	Confidence   float64            `json:"confidence"`
	Variables    []string           `json:"variables,omitempty"`
	Expression   string             `json:"expression,omitempty"`
}

// String renders a short human-readable form, e.g. "linear(2.0*x + 1.0)".
func (m Mechanism) String() string {
	switch m.Kind {
	case Constant:
		if m.Value == nil {
			return "constant(None)"
		}
		return fmt.Sprintf("constant(%g)", *m.Value)
	case Linear:
		var terms []string
		for _, v := range m.Variables {
			terms = append(terms, fmt.Sprintf("%g*%s", m.Coefficients[v], v))
		}
		if m.Offset != 0 || len(terms) == 0 {
			terms = append(terms, fmt.Sprintf("%g", m.Offset))
		}
		return fmt.Sprintf("linear(%s)", strings.Join(terms, " + "))
	default:
		return fmt.Sprintf("%s(%s)", m.Kind, m.Expression)
	}
}

// sortedVariables returns coefficient map keys in stable order.
func sortedVariables(coeffs map[string]float64) []string {
	vars := make([]string, 0, len(coeffs))
	for v := range coeffs {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}
