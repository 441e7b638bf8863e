// Package scm is the seam to the external structural-causal-model
// service: a versioned request/response contract behind the Service
// interface. The core stays usable with any conforming implementation,
// including the in-memory Stub.
package scm

import (
	"context"
	"encoding/json"

	"causet/internal/graph"
)

// Status values the service may report.
const (
	StatusSuccess          = "success"
	StatusValidationFailed = "validation_failed"
	StatusWarning          = "warning"
	StatusError            = "error"
)

// FitConfig tunes a fit request.
type FitConfig struct {
	Quality     string  `json:"quality,omitempty"`
	ValidateR2  bool    `json:"validate_r2"`
	R2Threshold float64 `json:"r2_threshold,omitempty"`
	TestSize    float64 `json:"test_size,omitempty"`
}

// FitRequest asks the service to fit mechanisms for every graph node
// from the supplied traces.
type FitRequest struct {
	Graph  graph.Snapshot       `json:"graph"`
	Traces map[string][]float64 `json:"traces"`
	Config FitConfig            `json:"config"`
}

// ValidationSummary is the service-side fit quality report.
type ValidationSummary struct {
	MeanR2     float64            `json:"mean_r2"`
	NodeR2     map[string]float64 `json:"node_r2,omitempty"`
	Passed     bool               `json:"passed"`
	FailedNode string             `json:"failed_node,omitempty"`
}

// FitResponse carries the fitted model. SCM is opaque to the core; it
// is stored and passed back verbatim on query requests.
type FitResponse struct {
	Status     string             `json:"status"`
	SCM        json.RawMessage    `json:"scm,omitempty"`
	Validation *ValidationSummary `json:"validation,omitempty"`
	Metadata   map[string]string  `json:"metadata,omitempty"`
	Error      string             `json:"error,omitempty"`
	Traceback  string             `json:"traceback,omitempty"`
}

// InterventionItem is the wire form of one intervention.
type InterventionItem struct {
	Type       string  `json:"type"` // "hard" or "soft"
	Node       string  `json:"node"`
	Value      float64 `json:"value,omitempty"`
	Transform  string  `json:"transform,omitempty"` // "shift", "scale", "custom"
	Param      float64 `json:"param,omitempty"`
	Expression string  `json:"expression,omitempty"`
}

// InterventionPayload describes the interventional query.
type InterventionPayload struct {
	Type          string             `json:"type"` // always "interventional"
	Interventions []InterventionItem `json:"interventions"`
	QueryNodes    []string           `json:"query_nodes,omitempty"`
	NumSamples    int                `json:"num_samples"`
}

// QueryRequest asks for samples from the interventional distribution.
type QueryRequest struct {
	Graph        graph.Snapshot       `json:"graph"`
	Traces       map[string][]float64 `json:"traces"`
	SCM          json.RawMessage      `json:"scm,omitempty"`
	Intervention InterventionPayload  `json:"intervention"`
	Config       FitConfig            `json:"config"`
}

// SummaryStats is the service-computed per-node distribution summary.
type SummaryStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Q05  float64 `json:"q05"`
	Q50  float64 `json:"q50"`
	Q95  float64 `json:"q95"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// QueryResponse carries per-node sample arrays and their summaries.
type QueryResponse struct {
	Status     string                  `json:"status"`
	Samples    map[string][]float64    `json:"samples,omitempty"`
	Statistics map[string]SummaryStats `json:"statistics,omitempty"`
	Metadata   map[string]string       `json:"metadata,omitempty"`
	Error      string                  `json:"error,omitempty"`
	Traceback  string                  `json:"traceback,omitempty"`
}

// Service is the process-boundary contract. Both calls are single
// synchronous round trips bounded by the caller's context.
type Service interface {
	Fit(ctx context.Context, req FitRequest) (*FitResponse, error)
	Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)
}
