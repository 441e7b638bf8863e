package scm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Stub is an in-memory Service for tests and offline use. It does no
// real mechanism fitting: queries are answered by resampling the
// supplied traces with replacement and applying the interventions
// directly to the targeted columns.
type Stub struct {
	Seed int64
	// FailWith, when set, makes every call fail. Lets callers exercise
	// degradation paths.
	FailWith error
}

func (s *Stub) Fit(ctx context.Context, req FitRequest) (*FitResponse, error) {
	if s.FailWith != nil {
		return nil, &ExternalServiceError{Op: "fit", Err: s.FailWith}
	}
	if len(req.Traces) == 0 {
		return nil, &ExternalServiceError{Op: "fit", Message: "no traces supplied"}
	}

	scm, _ := json.Marshal(map[string]string{"provider": "stub"})
	return &FitResponse{
		Status:     StatusSuccess,
		SCM:        scm,
		Validation: &ValidationSummary{MeanR2: 1.0, Passed: true},
		Metadata:   map[string]string{"provider": "stub"},
	}, nil
}

func (s *Stub) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	if s.FailWith != nil {
		return nil, &ExternalServiceError{Op: "query", Err: s.FailWith}
	}
	if len(req.Traces) == 0 {
		return nil, &ExternalServiceError{Op: "query", Message: "no traces supplied"}
	}

	numSamples := req.Intervention.NumSamples
	if numSamples <= 0 {
		numSamples = 100
	}

	nodes := req.Intervention.QueryNodes
	if len(nodes) == 0 {
		nodes = make([]string, 0, len(req.Traces))
		for node := range req.Traces {
			nodes = append(nodes, node)
		}
		sort.Strings(nodes)
	}

	byNode := make(map[string]InterventionItem, len(req.Intervention.Interventions))
	for _, item := range req.Intervention.Interventions {
		byNode[item.Node] = item
	}

	rng := rand.New(rand.NewSource(s.Seed))
	samples := make(map[string][]float64, len(nodes))
	stats := make(map[string]SummaryStats, len(nodes))

	for _, node := range nodes {
		source, ok := req.Traces[node]
		if !ok || len(source) == 0 {
			return nil, &ExternalServiceError{Op: "query", Message: "node " + node + " has no trace column"}
		}
		drawn := make([]float64, numSamples)
		for i := range drawn {
			drawn[i] = source[rng.Intn(len(source))]
		}
		if item, intervened := byNode[node]; intervened {
			if err := applyIntervention(drawn, item); err != nil {
				return nil, &ExternalServiceError{Op: "query", Err: err}
			}
		}
		samples[node] = drawn
		stats[node] = summarize(drawn)
	}

	return &QueryResponse{
		Status:     StatusSuccess,
		Samples:    samples,
		Statistics: stats,
		Metadata:   map[string]string{"provider": "stub"},
	}, nil
}

func applyIntervention(values []float64, item InterventionItem) error {
	switch item.Type {
	case "hard":
		for i := range values {
			values[i] = item.Value
		}
	case "soft":
		switch item.Transform {
		case "shift":
			for i := range values {
				values[i] += item.Param
			}
		case "scale":
			for i := range values {
				values[i] *= item.Param
			}
		case "custom":
			for i := range values {
				v, err := evalExpr(item.Expression, values[i])
				if err != nil {
					return fmt.Errorf("custom transform for %s: %w", item.Node, err)
				}
				values[i] = v
			}
		}
	}
	return nil
}

func summarize(values []float64) SummaryStats {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := len(sorted)
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	ss := 0.0
	for _, v := range sorted {
		d := v - mean
		ss += d * d
	}
	std := 0.0
	if n > 1 {
		std = math.Sqrt(ss / float64(n-1))
	}

	return SummaryStats{
		Mean: mean,
		Std:  std,
		Q05:  quantile(sorted, 0.05),
		Q50:  quantile(sorted, 0.50),
		Q95:  quantile(sorted, 0.95),
		Min:  sorted[0],
		Max:  sorted[n-1],
	}
}

// quantile interpolates between order statistics of sorted values.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if hi >= n {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

var _ Service = (*Stub)(nil)
var _ Service = (*Client)(nil)

// ErrUnavailable can be set as Stub.FailWith to simulate an unreachable
// service.
var ErrUnavailable = errors.New("service unavailable")
