package storage

import (
	"context"
	"encoding/json"

	"causet/internal/graph"
	"causet/internal/trace"
)

// Analysis is one persisted enhancement run, keyed by the SHA-256 of
// the analyzed source.
type Analysis struct {
	Hash     string
	Graph    *graph.CausalGraph
	Traces   *trace.Trace
	SCM      json.RawMessage
	Warnings []string
}

// Store persists analyses so a fitted model can be reused across
// invocations without re-simulating.
type Store interface {
	// SaveAnalysis upserts an analysis under its source hash.
	SaveAnalysis(ctx context.Context, a *Analysis) error

	// LoadAnalysis retrieves an analysis by source hash. Returns
	// ErrNotFound when the hash has never been saved.
	LoadAnalysis(ctx context.Context, hash string) (*Analysis, error)

	// ListAnalyses returns the saved source hashes, newest first.
	ListAnalyses(ctx context.Context) ([]string, error)

	Close() error
}
