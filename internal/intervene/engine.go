package intervene

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"causet/internal/graph"
	"causet/internal/scm"
	"causet/internal/trace"
)

const defaultNumSamples = 100

// ModelBundle is the fitted model state an intervention query runs
// against: the causal graph, the traces it was fitted on, and the
// opaque structural model returned by the fitting service.
type ModelBundle struct {
	Graph  *graph.CausalGraph
	Traces *trace.Trace
	SCM    json.RawMessage
}

// Engine executes intervention queries against a modeling service.
type Engine struct {
	svc scm.Service
}

func NewEngine(svc scm.Service) *Engine {
	return &Engine{svc: svc}
}

// Execute parses req into a Spec, validates its targets against the
// bundle's graph, runs the interventional query, and reshapes the
// response. Node names may be short variable names; they are resolved
// to the node's final definition in the graph.
func (e *Engine) Execute(ctx context.Context, bundle ModelBundle, req any) (*Result, error) {
	spec, err := Parse(req)
	if err != nil {
		return nil, err
	}
	if len(spec.Interventions) == 0 {
		return nil, &ValidationError{Msg: "no interventions given"}
	}
	if bundle.Graph == nil {
		return nil, &InterventionError{Msg: "model bundle carries no causal graph"}
	}
	if bundle.Traces == nil || bundle.Traces.NumRows() == 0 {
		return nil, &InterventionError{Msg: "model bundle carries no execution traces; collect traces before intervening"}
	}

	payload := scm.InterventionPayload{
		Type:       "interventional",
		NumSamples: spec.NumSamples,
	}
	if payload.NumSamples <= 0 {
		payload.NumSamples = defaultNumSamples
	}
	for _, iv := range spec.Interventions {
		id, err := resolveNode(bundle.Graph, iv.TargetNode())
		if err != nil {
			return nil, err
		}
		item := iv.wireItem()
		item.Node = id
		payload.Interventions = append(payload.Interventions, item)
	}
	for _, q := range spec.QueryNodes {
		id, err := resolveNode(bundle.Graph, q)
		if err != nil {
			return nil, err
		}
		payload.QueryNodes = append(payload.QueryNodes, id)
	}

	qreq := scm.QueryRequest{
		Graph:        bundle.Graph.ToSnapshot(),
		Traces:       bundle.Traces.Values,
		SCM:          bundle.SCM,
		Intervention: payload,
	}

	start := time.Now()
	resp, err := e.svc.Query(ctx, qreq)
	if err != nil {
		return nil, err
	}
	if resp.Status != scm.StatusSuccess && resp.Status != scm.StatusWarning {
		return nil, &InterventionError{Msg: "query rejected", Err: fmt.Errorf("status %q: %s", resp.Status, resp.Error)}
	}

	sampleSize := 0
	for _, samples := range resp.Samples {
		if len(samples) > sampleSize {
			sampleSize = len(samples)
		}
	}
	return &Result{
		Samples:    resp.Samples,
		Statistics: resp.Statistics,
		Spec:       *spec,
		Metadata: ResultMetadata{
			SampleSize: sampleSize,
			DurationMS: time.Since(start).Milliseconds(),
		},
	}, nil
}

// resolveNode maps a name to a graph node ID. An exact ID match wins;
// otherwise the node whose Name matches and whose Line is largest is
// taken, so a bare variable name refers to its final definition.
func resolveNode(g *graph.CausalGraph, name string) (string, error) {
	if _, ok := g.Nodes[name]; ok {
		return name, nil
	}
	best := ""
	bestLine := -1
	for _, id := range g.NodeIDs() {
		node := g.Nodes[id]
		if node.Name == name && node.Line > bestLine {
			best = id
			bestLine = node.Line
		}
	}
	if best == "" {
		return "", &NodeNotFoundError{Node: name}
	}
	return best, nil
}
