// Package validate scores fitted causal mechanisms against execution
// traces: coefficient of determination, train/test splitting,
// cross-validation, and bootstrap confidence intervals.
package validate

import (
	"math"
)

// RSquared computes the coefficient of determination of predictions
// against true values, returning (r2, ssRes, ssTot). Non-finite element
// pairs are dropped before scoring. A constant target is special-cased:
// predictions matching the constant exactly score (1, 0, 0); any
// disagreement is an error, since zero variance cannot be explained.
func RSquared(yTrue, yPred []float64) (float64, float64, float64, error) {
	if len(yTrue) != len(yPred) {
		return 0, 0, 0, &DataError{Msg: "length mismatch between true and predicted values"}
	}
	if len(yTrue) < 2 {
		return 0, 0, 0, &DataError{Msg: "need at least 2 samples"}
	}

	ts := make([]float64, 0, len(yTrue))
	ps := make([]float64, 0, len(yPred))
	for i := range yTrue {
		if !isFinite(yTrue[i]) || !isFinite(yPred[i]) {
			continue
		}
		ts = append(ts, yTrue[i])
		ps = append(ps, yPred[i])
	}
	if len(ts) == 0 {
		return 0, 0, 0, &DataError{Msg: "no finite value pairs remain"}
	}

	mean := 0.0
	for _, v := range ts {
		mean += v
	}
	mean /= float64(len(ts))

	ssRes, ssTot := 0.0, 0.0
	for i := range ts {
		dRes := ts[i] - ps[i]
		dTot := ts[i] - mean
		ssRes += dRes * dRes
		ssTot += dTot * dTot
	}

	if ssTot == 0 {
		if ssRes == 0 {
			return 1.0, 0, 0, nil
		}
		return 0, 0, 0, &DataError{Msg: "constant target cannot be explained by a disagreeing model"}
	}
	return 1 - ssRes/ssTot, ssRes, ssTot, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
