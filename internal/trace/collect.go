package trace

import (
	"errors"
	"fmt"
	"math/rand"

	"causet/internal/graph"
)

// NodeFunc is the callable attached to a graph node: Fn computes the
// node's value from the named arguments Params declares.
type NodeFunc struct {
	Params []string
	Fn     func(args map[string]float64) (float64, error)
}

// Range bounds uniform sampling for a free input node.
type Range struct {
	Low  float64
	High float64
}

// DefaultRange is used for free inputs with no configured range.
var DefaultRange = Range{Low: -10, High: 10}

// Options configures a collection run.
type Options struct {
	NumSamples  int
	Seed        int64
	InputRanges map[string]Range // keyed by node ID
}

const defaultNumSamples = 100

// Collect topologically simulates the graph for NumSamples trials and
// returns the table of surviving rows. A trial that raises anywhere is
// dropped whole; collection fails with ExecutionError when more than
// half the trials fail or fewer than half the requested rows survive.
func Collect(g *graph.CausalGraph, code map[string]NodeFunc, opts Options) (*Trace, error) {
	if g == nil {
		return nil, &TraceCollectionError{Err: errors.New("nil graph")}
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, &TraceCollectionError{Err: err}
	}
	numSamples := opts.NumSamples
	if numSamples <= 0 {
		numSamples = defaultNumSamples
	}
	for id, r := range opts.InputRanges {
		if r.High < r.Low {
			return nil, &InputGenerationError{Node: id, Err: fmt.Errorf("invalid range [%g, %g]", r.Low, r.High)}
		}
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	table := New(order)
	failed := 0

	for trial := 0; trial < numSamples; trial++ {
		row, ok := runTrial(g, order, code, opts.InputRanges, rng)
		if !ok {
			failed++
			continue
		}
		if err := table.AppendRow(row); err != nil {
			return nil, &TraceCollectionError{Err: err}
		}
	}

	if failed*2 > numSamples {
		return nil, &ExecutionError{Failed: failed, Requested: numSamples, Reason: "more than half the trials raised"}
	}
	if table.NumRows()*2 < numSamples {
		return nil, &ExecutionError{
			Failed:    numSamples - table.NumRows(),
			Requested: numSamples,
			Reason:    "fewer than half the requested samples survived",
		}
	}
	return table, nil
}

// runTrial walks the topological order once. Returns ok=false when any
// node's callable raises, which fails the whole row.
func runTrial(g *graph.CausalGraph, order []string, code map[string]NodeFunc, ranges map[string]Range, rng *rand.Rand) (map[string]float64, bool) {
	values := make(map[string]float64, len(order))

	for _, id := range order {
		fn, hasFn := code[id]
		if !hasFn {
			values[id] = sample(rangeFor(id, ranges), rng)
			continue
		}

		args := make(map[string]float64, len(fn.Params))
		for _, param := range fn.Params {
			v, found := lookupParam(g, id, param, order, values)
			if !found {
				// Unresolved parameter: fall back to a fresh draw.
				v = sample(rangeFor(param, ranges), rng)
			}
			args[param] = v
		}

		out, err := fn.Fn(args)
		if err != nil {
			return nil, false
		}
		values[id] = out
	}
	return values, true
}

// lookupParam finds an already-computed value for a parameter name,
// preferring resolved predecessors over any earlier node of the same
// name.
func lookupParam(g *graph.CausalGraph, id, param string, order []string, values map[string]float64) (float64, bool) {
	for _, parent := range g.Parents(id) {
		if n, ok := g.Node(parent); ok && n.Name == param {
			if v, computed := values[parent]; computed {
				return v, true
			}
		}
	}
	for _, other := range order {
		if other == id {
			break
		}
		n, ok := g.Node(other)
		if !ok || n.Name != param {
			continue
		}
		if v, computed := values[other]; computed {
			return v, true
		}
	}
	return 0, false
}

func rangeFor(key string, ranges map[string]Range) Range {
	if r, ok := ranges[key]; ok {
		return r
	}
	return DefaultRange
}

func sample(r Range, rng *rand.Rand) float64 {
	return r.Low + rng.Float64()*(r.High-r.Low)
}
