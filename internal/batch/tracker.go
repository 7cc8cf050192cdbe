package batch

import (
	"fmt"
	"strconv"
	"time"

	"github.com/skyops/dronectl/internal/lock"
	"github.com/skyops/dronectl/internal/model"
)

// Tracker is the single owner of all mutable per-batch state. Every write
// goes through it and is serialized per record by a keyed mutex; records own
// disjoint state, so there is no cross-record locking. Analytics are derived
// on demand once the relevant records are terminal.
type Tracker struct {
	execs []*CommandExecution
	locks *lock.Map
}

func NewTracker(execs []*CommandExecution) *Tracker {
	return &Tracker{execs: execs, locks: lock.NewMap()}
}

// Len returns the number of tracked records.
func (t *Tracker) Len() int {
	return len(t.execs)
}

func (t *Tracker) withRecord(i int, fn func(*CommandExecution) error) error {
	if i < 0 || i >= len(t.execs) {
		return fmt.Errorf("execution index %d out of range", i)
	}
	key := strconv.Itoa(i)
	t.locks.Lock(key)
	defer t.locks.Unlock(key)
	return fn(t.execs[i])
}

func (t *Tracker) transition(e *CommandExecution, to model.ExecStatus) error {
	if err := model.ValidateExecTransition(e.Status, to); err != nil {
		return fmt.Errorf("command %d: %w", e.Index, err)
	}
	e.Status = to
	return nil
}

// BeginAttempt moves the record to running and returns the attempt number
// (1-based). It fails if the record was already resolved, e.g. skipped by a
// cancellation that won the race.
func (t *Tracker) BeginAttempt(i int) (int, error) {
	var attempt int
	err := t.withRecord(i, func(e *CommandExecution) error {
		if err := t.transition(e, model.ExecRunning); err != nil {
			return err
		}
		e.Attempts++
		attempt = e.Attempts
		if e.StartTime.IsZero() {
			e.StartTime = time.Now().UTC()
		}
		return nil
	})
	return attempt, err
}

// Complete finalizes a running record as completed.
func (t *Tracker) Complete(i int, outcome model.OperationOutcome) error {
	return t.withRecord(i, func(e *CommandExecution) error {
		if err := t.transition(e, model.ExecCompleted); err != nil {
			return err
		}
		e.EndTime = time.Now().UTC()
		e.Outcome = &outcome
		return nil
	})
}

// MarkTimedOut records an attempt that exceeded the per-command timeout.
// The executor resolves it to retrying or failed.
func (t *Tracker) MarkTimedOut(i int) error {
	return t.withRecord(i, func(e *CommandExecution) error {
		return t.transition(e, model.ExecTimedOut)
	})
}

// MarkRetrying parks the record between a failed attempt and its retry.
func (t *Tracker) MarkRetrying(i int) error {
	return t.withRecord(i, func(e *CommandExecution) error {
		return t.transition(e, model.ExecRetrying)
	})
}

// Fail finalizes the record as failed with the given outcome. Valid from
// pending (validation failures), running, and timed_out.
func (t *Tracker) Fail(i int, outcome model.OperationOutcome) error {
	return t.withRecord(i, func(e *CommandExecution) error {
		if err := t.transition(e, model.ExecFailed); err != nil {
			return err
		}
		e.EndTime = time.Now().UTC()
		e.Outcome = &outcome
		return nil
	})
}

// Skip finalizes a not-yet-terminal record as skipped and reports whether it
// did anything. Already-terminal records are left untouched.
func (t *Tracker) Skip(i int, outcome model.OperationOutcome) bool {
	skipped := false
	_ = t.withRecord(i, func(e *CommandExecution) error {
		if model.IsExecTerminal(e.Status) {
			return nil
		}
		if err := t.transition(e, model.ExecSkipped); err != nil {
			return err
		}
		e.EndTime = time.Now().UTC()
		e.Outcome = &outcome
		skipped = true
		return nil
	})
	return skipped
}

// Status returns the record's current status.
func (t *Tracker) Status(i int) model.ExecStatus {
	var s model.ExecStatus
	_ = t.withRecord(i, func(e *CommandExecution) error {
		s = e.Status
		return nil
	})
	return s
}

// Snapshot returns a copy of the record.
func (t *Tracker) Snapshot(i int) CommandExecution {
	var copied CommandExecution
	_ = t.withRecord(i, func(e *CommandExecution) error {
		copied = *e
		return nil
	})
	return copied
}

// Reports builds the per-command response entries in input order.
func (t *Tracker) Reports() []model.CommandReport {
	out := make([]model.CommandReport, len(t.execs))
	for i := range t.execs {
		snap := t.Snapshot(i)
		out[i] = snap.report()
	}
	return out
}

// Summary aggregates terminal statuses. skipped counts both recovery skips
// and cancellations; everything non-completed and non-skipped counts failed.
func (t *Tracker) Summary(totalSec float64) model.BatchSummary {
	s := model.BatchSummary{
		TotalCommands:         len(t.execs),
		TotalExecutionTimeSec: totalSec,
	}
	for i := range t.execs {
		switch t.Status(i) {
		case model.ExecCompleted:
			s.SuccessfulCommands++
		case model.ExecSkipped:
			s.SkippedCommands++
		default:
			s.FailedCommands++
		}
	}
	return s
}

// Analytics derives the batch analytics block. Call only after every record
// is terminal; nothing here takes a lock beyond the per-record one.
func (t *Tracker) Analytics(planInfo model.PlanInfo, sumIndividualSec float64) model.Analytics {
	dist := make(map[model.ExecStatus]int)
	util := make(map[string]int)
	var retried, parallel, completed int
	var minSec, maxSec, sumSec float64

	for i := range t.execs {
		snap := t.Snapshot(i)
		dist[snap.Status]++

		target := snap.Target
		if target == "" {
			target = "global"
		}
		util[target]++

		if snap.Attempts > 1 {
			retried++
		}
		if snap.GroupSize > 1 {
			parallel++
		}
		if snap.Status == model.ExecCompleted {
			d := snap.DurationSec()
			if completed == 0 || d < minSec {
				minSec = d
			}
			if d > maxSec {
				maxSec = d
			}
			sumSec += d
			completed++
		}
	}

	stats := model.TimeStats{}
	if completed > 0 {
		stats = model.TimeStats{MinSec: minSec, MeanSec: sumSec / float64(completed), MaxSec: maxSec}
	}

	factor := 0.0
	if len(t.execs) > 0 {
		factor = float64(parallel) / float64(len(t.execs))
	}

	efficiency := 1.0
	if sumIndividualSec > 0 {
		efficiency = planInfo.EstimatedTimeSec / sumIndividualSec
	}

	return model.Analytics{
		StatusDistribution:    dist,
		ExecutionTime:         stats,
		RetriedCommands:       retried,
		TargetUtilization:     util,
		ParallelizationFactor: factor,
		ExecutionPlan:         planInfo,
		OptimizationDetails: model.OptimizationDetails{
			EfficiencyRatio:       efficiency,
			ParallelizationFactor: factor,
		},
	}
}
