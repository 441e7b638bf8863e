package trace

import "fmt"

// TraceCollectionError reports a failure to set up the simulation at
// all, for example a cyclic graph.
type TraceCollectionError struct {
	Err error
}

func (e *TraceCollectionError) Error() string {
	return fmt.Sprintf("trace collection failed: %v", e.Err)
}

func (e *TraceCollectionError) Unwrap() error { return e.Err }

// ExecutionError reports excessive simulation failures: too many trials
// raised, or too few complete rows survived.
type ExecutionError struct {
	Failed    int
	Requested int
	Reason    string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("simulation failed: %s (%d of %d trials failed)", e.Reason, e.Failed, e.Requested)
}

// InputGenerationError reports an unusable sampling configuration for a
// free input node.
type InputGenerationError struct {
	Node string
	Err  error
}

func (e *InputGenerationError) Error() string {
	return fmt.Sprintf("cannot generate input for %s: %v", e.Node, e.Err)
}

func (e *InputGenerationError) Unwrap() error { return e.Err }
