// Package batch runs planned command batches: per-command execution with
// retry and timeout handling, batch-wide state tracking, and error-recovery
// policy enforcement between execution groups.
package batch

import (
	"time"

	"github.com/skyops/dronectl/internal/action"
	"github.com/skyops/dronectl/internal/model"
)

// CommandExecution is the mutable per-batch-position record. It is created
// at batch start, owned exclusively by the Tracker, and discarded when the
// batch result is returned. Only one mutation is ever in flight per record.
type CommandExecution struct {
	Index   int
	Command model.ParsedCommand
	Action  action.Action
	Target  string

	// Emergency commands are never retried and pre-empt the rest of the
	// batch on success. LowConfidence feeds the smart-recovery retry rule.
	Emergency     bool
	LowConfidence bool

	Status       model.ExecStatus
	Attempts     int
	Dependencies map[int]bool

	GroupIndex int
	GroupSize  int

	StartTime time.Time
	EndTime   time.Time
	Outcome   *model.OperationOutcome
}

// DurationSec is the wall time between first start and terminal resolution,
// zero if the command never ran.
func (e *CommandExecution) DurationSec() float64 {
	if e.StartTime.IsZero() || e.EndTime.IsZero() {
		return 0
	}
	return e.EndTime.Sub(e.StartTime).Seconds()
}

// report converts the record into its response entry.
func (e *CommandExecution) report() model.CommandReport {
	outcome := model.OperationOutcome{}
	if e.Outcome != nil {
		outcome = *e.Outcome
	}
	return model.CommandReport{
		Index:       e.Index,
		Action:      string(e.Action),
		Target:      e.Target,
		Status:      e.Status,
		Attempts:    e.Attempts,
		DurationSec: e.DurationSec(),
		Outcome:     outcome,
	}
}
