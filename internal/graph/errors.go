package graph

import (
	"fmt"
	"strings"
)

// GraphBuildError reports a failed stage of graph construction.
type GraphBuildError struct {
	Stage string
	Err   error
}

func (e *GraphBuildError) Error() string {
	return fmt.Sprintf("graph build failed at %s: %v", e.Stage, e.Err)
}

func (e *GraphBuildError) Unwrap() error { return e.Err }

// CyclicGraphError reports a cycle discovered during DAG validation.
type CyclicGraphError struct {
	Cycle []string
}

func (e *CyclicGraphError) Error() string {
	if len(e.Cycle) == 0 {
		return "graph contains a cycle"
	}
	return fmt.Sprintf("graph contains a cycle: %s", strings.Join(e.Cycle, " -> "))
}
