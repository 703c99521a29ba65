package worldmodel

import (
	"errors"
	"fmt"
)

// ErrGoalNotFound is returned by goal resolution when neither entity matching
// nor label matching finds a node for the goal text. Non-fatal: the planner
// degrades to a minimal plan with a placeholder indicator.
var ErrGoalNotFound = errors.New("goal not found in framework")

// GraphLoadError wraps a storage failure during node/edge/span loading.
// Callers abort the whole operation on it; a partially loaded graph is never
// returned. The fail-empty policy is applied once, at the Service facade.
type GraphLoadError struct {
	Op  string
	Err error
}

func (e *GraphLoadError) Error() string {
	return fmt.Sprintf("graph load failed during %s: %v", e.Op, e.Err)
}

func (e *GraphLoadError) Unwrap() error {
	return e.Err
}

// IsGraphLoad reports whether err is (or wraps) a GraphLoadError.
func IsGraphLoad(err error) bool {
	var le *GraphLoadError
	return errors.As(err, &le)
}

func loadErr(op string, err error) error {
	return &GraphLoadError{Op: op, Err: err}
}
