package intervene

import "fmt"

// ParseError reports an intervention request that could not be
// understood in any supported form.
type ParseError struct {
	Input string
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse intervention %q: %s", e.Input, e.Msg)
}

// ValidationError reports a structurally valid request whose contents
// are unusable, such as an empty intervention list.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "invalid intervention request: " + e.Msg
}

// NodeNotFoundError reports an intervention or query target that does
// not name any node in the causal graph.
type NodeNotFoundError struct {
	Node string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node %q not found in causal graph", e.Node)
}

// InterventionError reports a failure while executing an otherwise
// well-formed intervention query.
type InterventionError struct {
	Msg string
	Err error
}

func (e *InterventionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("intervention failed: %s: %v", e.Msg, e.Err)
	}
	return "intervention failed: " + e.Msg
}

func (e *InterventionError) Unwrap() error { return e.Err }
