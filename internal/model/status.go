package model

import "fmt"

// ExecStatus is the lifecycle status of one command execution.
type ExecStatus string

const (
	ExecPending   ExecStatus = "pending"
	ExecRunning   ExecStatus = "running"
	ExecRetrying  ExecStatus = "retrying"
	ExecCompleted ExecStatus = "completed"
	ExecFailed    ExecStatus = "failed"
	ExecSkipped   ExecStatus = "skipped"
	ExecTimedOut  ExecStatus = "timed_out"
)

var terminalExecStatuses = map[ExecStatus]bool{
	ExecCompleted: true,
	ExecFailed:    true,
	ExecSkipped:   true,
}

// Execution status transitions: pending → running → terminal, with
// running ↔ retrying for retry attempts. timed_out is a transient failure
// state that either retries or finalizes as failed.
// pending → skipped and pending → failed are orchestrator decisions
// (cancellation / error recovery / validation), never executor ones.
var validExecTransitions = map[ExecStatus]map[ExecStatus]bool{
	ExecPending: {
		ExecRunning: true,
		ExecSkipped: true,
		ExecFailed:  true,
	},
	ExecRunning: {
		ExecCompleted: true,
		ExecRetrying:  true,
		ExecFailed:    true,
		ExecTimedOut:  true,
		ExecSkipped:   true, // emergency cancellation can pre-empt a running command
	},
	ExecRetrying: {
		ExecRunning: true,
		ExecSkipped: true,
	},
	ExecTimedOut: {
		ExecRetrying: true,
		ExecFailed:   true,
	},
}

// IsExecTerminal reports whether the status is terminal. timed_out is not
// terminal by itself: the executor always resolves it to retrying or failed.
func IsExecTerminal(s ExecStatus) bool {
	return terminalExecStatuses[s]
}

// ValidateExecTransition rejects transitions outside the state machine.
func ValidateExecTransition(from, to ExecStatus) error {
	if IsExecTerminal(from) {
		return fmt.Errorf("cannot transition from terminal status %q", from)
	}
	allowed, ok := validExecTransitions[from]
	if !ok {
		return fmt.Errorf("unknown status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid execution transition: %q → %q", from, to)
	}
	return nil
}
