package scm

import "fmt"

// ExternalServiceError is the single error surfaced for any
// process-boundary failure: timeout, non-JSON response, transport
// error, or a response with an error status. The caller never receives
// a partially-applied result.
type ExternalServiceError struct {
	Op        string // "fit" or "query"
	Message   string
	Traceback string
	Err       error
}

func (e *ExternalServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("external modeling service %s failed: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("external modeling service %s failed: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }
