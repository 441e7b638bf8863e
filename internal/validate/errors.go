package validate

import (
	"fmt"
	"strings"
)

// DataError reports inputs that cannot be scored at all: mismatched
// lengths, too few samples, or degenerate values.
type DataError struct {
	Msg string
}

func (e *DataError) Error() string { return "invalid data: " + e.Msg }

// InsufficientDataError reports a split that would leave a side with
// too few rows to score.
type InsufficientDataError struct {
	Needed int
	Got    int
	Side   string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %s split has %d rows, need at least %d", e.Side, e.Got, e.Needed)
}

// FittingError wraps a model prediction failure during validation.
type FittingError struct {
	Node string
	Err  error
}

func (e *FittingError) Error() string {
	return fmt.Sprintf("model prediction failed for %s: %v", e.Node, e.Err)
}

func (e *FittingError) Unwrap() error { return e.Err }

// ThresholdError reports fit quality below the acceptance threshold,
// either in aggregate or for individual nodes.
type ThresholdError struct {
	Threshold   float64
	Aggregate   float64
	FailedNodes []string
}

func (e *ThresholdError) Error() string {
	if len(e.FailedNodes) > 0 {
		return fmt.Sprintf("fit quality below threshold %.3f: aggregate R²=%.3f, failing nodes: %s",
			e.Threshold, e.Aggregate, strings.Join(e.FailedNodes, ", "))
	}
	return fmt.Sprintf("fit quality below threshold %.3f: aggregate R²=%.3f", e.Threshold, e.Aggregate)
}
