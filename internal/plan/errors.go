package plan

import (
	"errors"
	"fmt"
)

// ErrCycle reports a cyclic dependency graph. The before/after edge rule
// cannot produce one, so hitting this means corrupted input; the planner
// fails the whole batch rather than silently dropping commands.
var ErrCycle = errors.New("dependency cycle detected")

// ValidationError marks a command that must never reach the actuator:
// unknown action, very-low confidence, or missing required parameters.
type ValidationError struct {
	Index  int
	Action string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("command %d (%s): %s", e.Index, e.Action, e.Reason)
}
