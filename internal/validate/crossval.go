package validate

import (
	"causet/internal/graph"
	"causet/internal/trace"
)

// Model predicts a node's values from its parents' sample columns. The
// fitting itself happens elsewhere (statically inferred mechanisms or
// the external modeling service); validation only consumes predictions.
type Model interface {
	PredictNode(node string, parents map[string][]float64) ([]float64, error)
}

// NodeScore is the per-node outcome of cross-validation.
type NodeScore struct {
	R2      float64 `json:"r2"`
	Samples int     `json:"samples"`
}

// Result aggregates per-node R² scores. Aggregate is the
// sample-count-weighted mean.
type Result struct {
	NodeScores  map[string]NodeScore `json:"node_scores"`
	Aggregate   float64              `json:"aggregate"`
	Threshold   float64              `json:"threshold"`
	Passed      bool                 `json:"passed"`
	FailedNodes []string             `json:"failed_nodes,omitempty"`
}

// CrossValidate scores every non-root node: the model predicts the
// node's test-set values from its parents and the predictions are
// scored against the truth. Root nodes have no parents and are skipped.
// Returns the result together with a ThresholdError when the aggregate
// or any individual node falls below threshold.
func CrossValidate(model Model, traces *trace.Trace, g *graph.CausalGraph, testSize float64, threshold float64, seed int64) (*Result, error) {
	if model == nil {
		return nil, &DataError{Msg: "nil model"}
	}
	if g == nil {
		return nil, &DataError{Msg: "nil graph"}
	}

	_, test, err := TrainTestSplit(traces, testSize, seed)
	if err != nil {
		return nil, err
	}

	result := &Result{
		NodeScores: make(map[string]NodeScore),
		Threshold:  threshold,
	}
	weighted := 0.0
	totalSamples := 0

	for _, id := range g.NodeIDs() {
		parents := g.Parents(id)
		if len(parents) == 0 {
			continue // roots have nothing to validate against
		}
		truth := test.Column(id)
		if truth == nil {
			continue // node absent from the trace table
		}

		parentCols := make(map[string][]float64, len(parents))
		for _, p := range parents {
			if col := test.Column(p); col != nil {
				parentCols[p] = col
			}
		}

		preds, err := model.PredictNode(id, parentCols)
		if err != nil {
			return nil, &FittingError{Node: id, Err: err}
		}
		r2, _, _, err := RSquared(truth, preds)
		if err != nil {
			return nil, &FittingError{Node: id, Err: err}
		}

		score := NodeScore{R2: r2, Samples: len(truth)}
		result.NodeScores[id] = score
		weighted += r2 * float64(score.Samples)
		totalSamples += score.Samples
		if r2 < threshold {
			result.FailedNodes = append(result.FailedNodes, id)
		}
	}

	if totalSamples == 0 {
		return nil, &DataError{Msg: "no non-root nodes with trace columns to validate"}
	}
	result.Aggregate = weighted / float64(totalSamples)
	result.Passed = result.Aggregate >= threshold && len(result.FailedNodes) == 0

	if !result.Passed {
		return result, &ThresholdError{
			Threshold:   threshold,
			Aggregate:   result.Aggregate,
			FailedNodes: result.FailedNodes,
		}
	}
	return result, nil
}
