package validate

import (
	"math"
	"math/rand"
	"sort"

	"causet/internal/graph"
	"causet/internal/trace"
)

// BootstrapCI is the uncertainty estimate of a node's R² obtained by
// resampling the trace table with replacement.
type BootstrapCI struct {
	Mean       float64 `json:"mean"`
	Std        float64 `json:"std"`
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
	Resamples  int     `json:"resamples"`
	Confidence float64 `json:"confidence"`
}

// minBootstrap is the smallest resample count that gives usable
// percentile bounds.
const minBootstrap = 100

const bootstrapTestSize = 0.2

// BootstrapConfidenceIntervals resamples the full trace table with
// replacement nBootstrap times, repeats the train/test/R² computation
// each time, and reports per node the mean, standard deviation, and
// the [alpha/2, 1-alpha/2] percentile interval of the R² distribution.
func BootstrapConfidenceIntervals(model Model, traces *trace.Trace, g *graph.CausalGraph, nBootstrap int, confidenceLevel float64, seed int64) (map[string]BootstrapCI, error) {
	if nBootstrap < minBootstrap {
		return nil, &DataError{Msg: "n_bootstrap must be at least 100"}
	}
	if confidenceLevel <= 0 || confidenceLevel >= 1 {
		return nil, &DataError{Msg: "confidence_level must be in (0, 1)"}
	}
	if traces == nil || traces.NumRows() == 0 {
		return nil, &DataError{Msg: "empty trace table"}
	}

	n := traces.NumRows()
	rng := rand.New(rand.NewSource(seed))
	scores := make(map[string][]float64)

	for b := 0; b < nBootstrap; b++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		resampled := traces.Select(idx)

		result, err := CrossValidate(model, resampled, g, bootstrapTestSize, math.Inf(-1), rng.Int63())
		if err != nil {
			// A degenerate resample (constant columns, too few distinct
			// rows) contributes nothing to the distribution.
			continue
		}
		for id, score := range result.NodeScores {
			scores[id] = append(scores[id], score.R2)
		}
	}

	if len(scores) == 0 {
		return nil, &DataError{Msg: "every bootstrap resample failed to score"}
	}

	alpha := 1 - confidenceLevel
	out := make(map[string]BootstrapCI, len(scores))
	for id, r2s := range scores {
		sort.Float64s(r2s)
		out[id] = BootstrapCI{
			Mean:       mean(r2s),
			Std:        stddev(r2s),
			Lower:      percentile(r2s, alpha/2),
			Upper:      percentile(r2s, 1-alpha/2),
			Resamples:  len(r2s),
			Confidence: confidenceLevel,
		}
	}
	return out, nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	ss := 0.0
	for _, v := range xs {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// percentile computes the q-th percentile of sorted values with linear
// interpolation between order statistics.
func percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		return sorted[0]
	}
	if hi >= n {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
