package intervene

import (
	"encoding/json"
	"fmt"

	"causet/internal/scm"
)

// Transform names the functional form of a soft intervention.
type Transform string

const (
	TransformShift  Transform = "shift"
	TransformScale  Transform = "scale"
	TransformCustom Transform = "custom"
)

// Intervention is a single do-operator application on one node.
// Hard interventions pin the node to a constant; soft interventions
// transform its natural value.
type Intervention interface {
	TargetNode() string
	wireItem() scm.InterventionItem
}

// HardIntervention forces a node to a fixed value, severing its
// incoming causal influences.
type HardIntervention struct {
	Node  string  `json:"node"`
	Value float64 `json:"value"`
}

func (h HardIntervention) TargetNode() string { return h.Node }

func (h HardIntervention) wireItem() scm.InterventionItem {
	return scm.InterventionItem{Type: "hard", Node: h.Node, Value: h.Value}
}

// SoftIntervention transforms a node's natural value while leaving its
// causal parents connected. Shift and scale take a numeric Param; a
// custom transform carries an Expression over the node's own value,
// evaluated by the modeling service.
type SoftIntervention struct {
	Node       string    `json:"node"`
	Transform  Transform `json:"transform"`
	Param      float64   `json:"param,omitempty"`
	Expression string    `json:"expression,omitempty"`
}

func (s SoftIntervention) TargetNode() string { return s.Node }

func (s SoftIntervention) wireItem() scm.InterventionItem {
	return scm.InterventionItem{
		Type:       "soft",
		Node:       s.Node,
		Transform:  string(s.Transform),
		Param:      s.Param,
		Expression: s.Expression,
	}
}

// Spec is a normalized intervention request. Every accepted input
// form, the do() expression language, plain maps, or typed values,
// parses into one of these.
type Spec struct {
	Interventions []Intervention
	QueryNodes    []string
	NumSamples    int
}

type specItemJSON struct {
	Type       string   `json:"type"`
	Node       string   `json:"node"`
	Value      *float64 `json:"value,omitempty"`
	Transform  string   `json:"transform,omitempty"`
	Param      *float64 `json:"param,omitempty"`
	Expression string   `json:"expression,omitempty"`
}

type specJSON struct {
	Interventions []specItemJSON `json:"interventions"`
	QueryNodes    []string       `json:"query_nodes,omitempty"`
	NumSamples    int            `json:"num_samples,omitempty"`
}

// MarshalJSON writes the spec in the same tagged shape the service
// wire format uses, so a stored spec can be replayed verbatim.
func (s Spec) MarshalJSON() ([]byte, error) {
	out := specJSON{QueryNodes: s.QueryNodes, NumSamples: s.NumSamples}
	for _, iv := range s.Interventions {
		switch t := iv.(type) {
		case HardIntervention:
			v := t.Value
			out.Interventions = append(out.Interventions, specItemJSON{Type: "hard", Node: t.Node, Value: &v})
		case SoftIntervention:
			item := specItemJSON{Type: "soft", Node: t.Node, Transform: string(t.Transform), Expression: t.Expression}
			if t.Transform != TransformCustom {
				p := t.Param
				item.Param = &p
			}
			out.Interventions = append(out.Interventions, item)
		default:
			return nil, fmt.Errorf("unknown intervention type %T", iv)
		}
	}
	return json.Marshal(out)
}

func (s *Spec) UnmarshalJSON(data []byte) error {
	var raw specJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.QueryNodes = raw.QueryNodes
	s.NumSamples = raw.NumSamples
	s.Interventions = nil
	for _, item := range raw.Interventions {
		iv, err := interventionFromParts(item.Type, item.Node, item.Value, item.Transform, item.Param, item.Expression)
		if err != nil {
			return err
		}
		s.Interventions = append(s.Interventions, iv)
	}
	return nil
}

func interventionFromParts(typ, node string, value *float64, transform string, param *float64, expression string) (Intervention, error) {
	if node == "" {
		return nil, &ParseError{Input: typ, Msg: "intervention is missing a target node"}
	}
	switch typ {
	case "hard":
		if value == nil {
			return nil, &ParseError{Input: node, Msg: "hard intervention is missing a value"}
		}
		return HardIntervention{Node: node, Value: *value}, nil
	case "soft":
		switch Transform(transform) {
		case TransformShift, TransformScale:
			if param == nil {
				return nil, &ParseError{Input: node, Msg: "soft intervention is missing a param"}
			}
			return SoftIntervention{Node: node, Transform: Transform(transform), Param: *param}, nil
		case TransformCustom:
			if expression == "" {
				return nil, &ParseError{Input: node, Msg: "custom transform is missing an expression"}
			}
			return SoftIntervention{Node: node, Transform: TransformCustom, Expression: expression}, nil
		default:
			return nil, &ParseError{Input: node, Msg: fmt.Sprintf("unsupported transform %q", transform)}
		}
	default:
		return nil, &ParseError{Input: node, Msg: fmt.Sprintf("unsupported intervention type %q", typ)}
	}
}

// Result is the outcome of one intervention query: post-intervention
// samples and summary statistics per queried node, plus the spec that
// produced them.
type Result struct {
	Samples    map[string][]float64        `json:"samples"`
	Statistics map[string]scm.SummaryStats `json:"statistics"`
	Spec       Spec                        `json:"spec"`
	Metadata   ResultMetadata              `json:"metadata"`
}

// ResultMetadata carries execution bookkeeping for a query.
type ResultMetadata struct {
	SampleSize int   `json:"sample_size"`
	DurationMS int64 `json:"duration_ms"`
}
