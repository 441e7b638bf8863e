package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	lru "github.com/hashicorp/golang-lru/v2"
	sitter "github.com/smacker/go-tree-sitter"

	"causet/internal/config"
	"causet/internal/extract"
	"causet/internal/graph"
	"causet/internal/intervene"
	"causet/internal/mechanism"
	"causet/internal/scm"
	"causet/internal/trace"
	"causet/internal/validate"
)

// Modes for Enhance. Auto picks dynamic when traces are available and
// static otherwise.
const (
	ModeStatic  = "static"
	ModeDynamic = "dynamic"
	ModeAuto    = "auto"
)

// Bundle is the full result of one enhancement run. Graph is nil when
// graph construction failed; Warnings then says why.
type Bundle struct {
	Graph      *graph.CausalGraph
	Mechanisms *mechanism.Set
	Traces     *trace.Trace
	SCM        json.RawMessage
	Validation *scm.ValidationSummary
	Mode       string
	Warnings   []string
}

// Model adapts the bundle for the intervention engine.
func (b *Bundle) Model() intervene.ModelBundle {
	return intervene.ModelBundle{Graph: b.Graph, Traces: b.Traces, SCM: b.SCM}
}

// Orchestrator runs the analysis stages end to end: graph construction,
// mechanism inference or service fitting, and validation. Service
// trouble degrades to static inference rather than failing the run.
type Orchestrator struct {
	cfg     *config.Config
	svc     scm.Service
	breaker *breaker
	cache   *lru.Cache[string, *graph.CausalGraph]
}

func NewOrchestrator(cfg *config.Config, svc scm.Service) (*Orchestrator, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	size := cfg.Pipeline.GraphCacheSize
	if size <= 0 {
		size = 128
	}
	cache, err := lru.New[string, *graph.CausalGraph](size)
	if err != nil {
		return nil, fmt.Errorf("graph cache: %w", err)
	}
	return &Orchestrator{
		cfg:     cfg,
		svc:     svc,
		breaker: newBreaker(cfg.Pipeline.FailureLimit),
		cache:   cache,
	}, nil
}

// ResetBreaker closes the service circuit breaker after an operator has
// confirmed the service is healthy again.
func (o *Orchestrator) ResetBreaker() { o.breaker.Reset() }

// Enhance analyzes source and returns a Bundle. Graph construction
// failure is reported inside the bundle, never as a returned error;
// only an unusable mode argument fails the call itself.
func (o *Orchestrator) Enhance(ctx context.Context, source []byte, traces *trace.Trace, mode string) (*Bundle, error) {
	resolved, err := o.resolveMode(mode, traces)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{Mode: resolved, Traces: traces}

	g, tree, warn := o.buildGraphStage(ctx, source)
	if warn != "" {
		bundle.Warnings = append(bundle.Warnings, warn)
	}
	if g == nil {
		enhanceTotal.WithLabelValues(resolved, "graph_failed").Inc()
		return bundle, nil
	}
	bundle.Graph = g

	bundle.Mechanisms = staticMechanisms(g, tree, source)

	switch resolved {
	case ModeDynamic:
		o.fitStage(ctx, bundle)
	case ModeStatic:
		o.staticValidationStage(bundle)
	}

	enhanceTotal.WithLabelValues(resolved, "ok").Inc()
	return bundle, nil
}

func (o *Orchestrator) resolveMode(mode string, traces *trace.Trace) (string, error) {
	switch mode {
	case "", ModeAuto:
		if traces != nil && traces.NumRows() > 0 {
			return ModeDynamic, nil
		}
		return ModeStatic, nil
	case ModeStatic, ModeDynamic:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want static, dynamic, or auto)", mode)
	}
}

// buildGraphStage parses the source and builds the causal graph,
// serving repeat builds of identical source from an LRU cache. Build
// failures are returned as a warning string, never an error.
func (o *Orchestrator) buildGraphStage(ctx context.Context, source []byte) (*graph.CausalGraph, *sitter.Tree, string) {
	tree, err := extract.ParseSource(ctx, source)
	if err != nil {
		return nil, nil, fmt.Sprintf("graph construction failed: parse: %v", err)
	}

	sum := sha256.Sum256(source)
	key := hex.EncodeToString(sum[:])
	if g, ok := o.cache.Get(key); ok {
		graphCacheHits.Inc()
		return g, tree, ""
	}

	g, err := extract.Build(tree, source, nil)
	if err != nil {
		log.Printf("Warning: graph construction failed: %v", err)
		var cyc *graph.CyclicGraphError
		if errors.As(err, &cyc) {
			return nil, tree, fmt.Sprintf("graph construction failed: cycle through %v", cyc.Cycle)
		}
		return nil, tree, fmt.Sprintf("graph construction failed: %v", err)
	}
	o.cache.Add(key, g)
	return g, tree, ""
}

// staticMechanisms infers a mechanism for every function node from the
// source structure alone.
func staticMechanisms(g *graph.CausalGraph, tree *sitter.Tree, source []byte) *mechanism.Set {
	set := mechanism.NewSet()
	inferred := mechanism.InferAll(tree, source)
	for _, id := range g.NodeIDs() {
		node := g.Nodes[id]
		set.NameOf[id] = node.Name
		if node.Kind != graph.NodeFunction {
			continue
		}
		if m, ok := inferred[node.Name]; ok {
			set.Mechanisms[id] = m
		}
	}
	return set
}

// staticValidationStage cross-validates the inferred mechanisms against
// traces when both are present. A failed threshold is downgraded to a
// warning so callers still get the graph and mechanisms.
func (o *Orchestrator) staticValidationStage(bundle *Bundle) {
	if bundle.Traces == nil || bundle.Traces.NumRows() == 0 {
		return
	}
	result, err := validate.CrossValidate(
		bundle.Mechanisms, bundle.Traces, bundle.Graph,
		o.cfg.Validation.TestSize, o.cfg.Validation.R2Threshold,
		o.cfg.Simulation.Seed,
	)
	if err != nil {
		var terr *validate.ThresholdError
		if !errors.As(err, &terr) {
			bundle.Warnings = append(bundle.Warnings, fmt.Sprintf("validation failed: %v", err))
			return
		}
		bundle.Warnings = append(bundle.Warnings, fmt.Sprintf("validation below threshold: %v", terr))
	}
	if result != nil {
		bundle.Validation = validationSummary(result)
	}
}

// fitStage asks the modeling service to fit mechanisms from traces.
// Service failure or an open breaker degrades to the static result.
func (o *Orchestrator) fitStage(ctx context.Context, bundle *Bundle) {
	if bundle.Traces == nil || bundle.Traces.NumRows() == 0 {
		bundle.Warnings = append(bundle.Warnings, "dynamic mode requested without traces; falling back to static inference")
		bundle.Mode = ModeStatic
		return
	}
	if o.svc == nil {
		bundle.Warnings = append(bundle.Warnings, "no modeling service configured; falling back to static inference")
		bundle.Mode = ModeStatic
		o.staticValidationStage(bundle)
		return
	}
	if !o.breaker.Allow() {
		bundle.Warnings = append(bundle.Warnings, "modeling service breaker open; falling back to static inference")
		bundle.Mode = ModeStatic
		o.staticValidationStage(bundle)
		return
	}

	resp, err := o.svc.Fit(ctx, scm.FitRequest{
		Graph:  bundle.Graph.ToSnapshot(),
		Traces: bundle.Traces.Values,
		Config: scm.FitConfig{
			ValidateR2:  true,
			R2Threshold: o.cfg.Validation.R2Threshold,
			TestSize:    o.cfg.Validation.TestSize,
		},
	})
	if err != nil {
		fitFailures.Inc()
		o.breaker.RecordFailure()
		log.Printf("Warning: mechanism fitting failed: %v", err)
		bundle.Warnings = append(bundle.Warnings, fmt.Sprintf("mechanism fitting failed: %v", err))
		bundle.Mode = ModeStatic
		o.staticValidationStage(bundle)
		return
	}
	if resp.Status == scm.StatusError {
		fitFailures.Inc()
		o.breaker.RecordFailure()
		bundle.Warnings = append(bundle.Warnings, fmt.Sprintf("mechanism fitting rejected: %s", resp.Error))
		bundle.Mode = ModeStatic
		o.staticValidationStage(bundle)
		return
	}

	o.breaker.RecordSuccess()
	bundle.SCM = resp.SCM
	bundle.Validation = resp.Validation
	if resp.Status == scm.StatusValidationFailed {
		bundle.Warnings = append(bundle.Warnings, "fitted model failed service-side validation")
	}
}

func validationSummary(r *validate.Result) *scm.ValidationSummary {
	summary := &scm.ValidationSummary{
		MeanR2: r.Aggregate,
		NodeR2: make(map[string]float64, len(r.NodeScores)),
		Passed: r.Passed,
	}
	for id, score := range r.NodeScores {
		summary.NodeR2[id] = score.R2
	}
	if len(r.FailedNodes) > 0 {
		summary.FailedNode = r.FailedNodes[0]
	}
	return summary
}
