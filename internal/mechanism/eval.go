package mechanism

import (
	"fmt"
)

// ErrNotEvaluable marks mechanism kinds that static evaluation cannot
// compute (nonlinear, conditional, unknown shapes are fit externally).
type ErrNotEvaluable struct {
	Kind Kind
}

func (e *ErrNotEvaluable) Error() string {
	return fmt.Sprintf("mechanism kind %q is not statically evaluable", e.Kind)
}

// Evaluate computes the mechanism's output for the given variable
// values. Missing variables default to zero.
func (m Mechanism) Evaluate(args map[string]float64) (float64, error) {
	switch m.Kind {
	case Constant:
		if m.Value == nil {
			return 0, nil
		}
		return *m.Value, nil
	case Linear:
		out := m.Offset
		for name, coef := range m.Coefficients {
			out += coef * args[name]
		}
		return out, nil
	default:
		return 0, &ErrNotEvaluable{Kind: m.Kind}
	}
}

// Evaluable reports whether Evaluate can compute this mechanism.
func (m Mechanism) Evaluable() bool {
	return m.Kind == Constant || m.Kind == Linear
}

// Set holds the mechanisms fitted for a graph, keyed by node ID, and
// the node-ID-to-variable-name mapping needed to feed parent columns
// into mechanism variables.
type Set struct {
	Mechanisms map[string]Mechanism
	NameOf     map[string]string // node ID -> variable name
}

// NewSet creates an empty mechanism set.
func NewSet() *Set {
	return &Set{
		Mechanisms: make(map[string]Mechanism),
		NameOf:     make(map[string]string),
	}
}

// PredictNode predicts a node's values from its parents' sample
// columns, one output per row. Implements the validation engine's Model
// contract for statically inferred mechanisms.
func (s *Set) PredictNode(node string, parents map[string][]float64) ([]float64, error) {
	m, ok := s.Mechanisms[node]
	if !ok {
		return nil, fmt.Errorf("no mechanism for node %s", node)
	}
	if !m.Evaluable() {
		return nil, &ErrNotEvaluable{Kind: m.Kind}
	}

	rows := -1
	for _, col := range parents {
		if rows == -1 || len(col) < rows {
			rows = len(col)
		}
	}
	if rows == -1 {
		rows = 0
	}

	out := make([]float64, rows)
	args := make(map[string]float64, len(parents))
	for i := 0; i < rows; i++ {
		for id, col := range parents {
			name := s.NameOf[id]
			if name == "" {
				name = id
			}
			args[name] = col[i]
		}
		v, err := m.Evaluate(args)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
