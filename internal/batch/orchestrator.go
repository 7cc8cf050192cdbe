package batch

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skyops/dronectl/internal/action"
	"github.com/skyops/dronectl/internal/actuator"
	"github.com/skyops/dronectl/internal/events"
	"github.com/skyops/dronectl/internal/model"
	"github.com/skyops/dronectl/internal/plan"
)

// Orchestrator wires the dependency analyzer, planner, executors, and
// tracker together and drives a batch group by group. Groups run strictly in
// plan order with barrier semantics: no command of group N+1 starts before
// every command of group N is terminal, retries included.
type Orchestrator struct {
	catalog  action.Provider
	invoker  actuator.Invoker
	bus      *events.Bus
	logger   *log.Logger
	logLevel LogLevel
}

// NewOrchestrator creates an orchestrator over the given action table and
// actuator backend. The catalog provider is resolved once per batch, so a
// hot-reloading provider affects the next batch, never one in flight.
func NewOrchestrator(cat action.Provider, invoker actuator.Invoker, logger *log.Logger, logLevel LogLevel) *Orchestrator {
	return &Orchestrator{
		catalog:  cat,
		invoker:  invoker,
		logger:   logger,
		logLevel: logLevel,
	}
}

// SetEventBus wires the lifecycle event bus. Optional.
func (o *Orchestrator) SetEventBus(bus *events.Bus) {
	o.bus = bus
}

func (o *Orchestrator) log(level LogLevel, format string, args ...any) {
	logf(o.logger, o.logLevel, level, "orchestrator", format, args...)
}

func (o *Orchestrator) publish(t events.EventType, batchID string, index int, data map[string]any) {
	if o.bus != nil {
		o.bus.Publish(t, batchID, index, data)
	}
}

// ProcessBatch executes a batch of parsed commands under the given context.
// Planning failures abort with an error and zero executed commands; every
// other failure is captured per command, so a nil error always comes with
// one result entry per input command.
func (o *Orchestrator) ProcessBatch(ctx context.Context, cmds []model.ParsedCommand, bctx model.BatchContext) (*model.BatchResult, error) {
	bctx.ApplyDefaults()
	if err := bctx.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", model.CodePlanning, err)
	}

	batchID, err := model.GenerateID(model.IDTypeBatch)
	if err != nil {
		return nil, fmt.Errorf("generate batch id: %w", err)
	}
	start := time.Now()

	graph := plan.Analyze(cmds, o.catalog.Catalog())
	p, err := plan.Build(graph, bctx.Mode, bctx.MaxParallelCommands)
	if err != nil {
		o.log(LogLevelError, "planning_failed id=%s error=%v", batchID, err)
		return nil, fmt.Errorf("%s: %w", model.CodePlanning, err)
	}

	tracker := o.buildTracker(cmds, graph, p)
	o.finalizeInvalid(tracker, graph, batchID)

	o.log(LogLevelInfo, "batch_started id=%s commands=%d mode=%s recovery=%s groups=%d",
		batchID, len(cmds), bctx.Mode, bctx.Recovery, len(p.Groups))
	o.publish(events.EventBatchStarted, batchID, -1, map[string]any{
		"commands": len(cmds),
		"mode":     string(bctx.Mode),
		"groups":   len(p.Groups),
	})

	x := &executor{
		invoker:  o.invoker,
		tracker:  tracker,
		bctx:     bctx,
		bus:      o.bus,
		batchID:  batchID,
		logger:   o.logger,
		logLevel: o.logLevel,
	}

	o.runGroups(ctx, tracker, x, graph, p, bctx, batchID)

	// Whatever is still pending after an early stop resolves as skipped.
	skipRemaining(tracker, "batch stopped before this command started")

	totalSec := time.Since(start).Seconds()
	planInfo := model.PlanInfo{Mode: p.Mode, Groups: p.Groups, EstimatedTimeSec: p.EstimatedSec}
	result := &model.BatchResult{
		BatchID:   batchID,
		Results:   tracker.Reports(),
		Summary:   tracker.Summary(totalSec),
		Analytics: tracker.Analytics(planInfo, plan.SumIndividualSec(graph)),
	}

	o.log(LogLevelInfo, "batch_finished id=%s ok=%d failed=%d skipped=%d elapsed=%.3fs",
		batchID, result.Summary.SuccessfulCommands, result.Summary.FailedCommands,
		result.Summary.SkippedCommands, totalSec)
	o.publish(events.EventBatchFinished, batchID, -1, map[string]any{
		"successful": result.Summary.SuccessfulCommands,
		"failed":     result.Summary.FailedCommands,
		"skipped":    result.Summary.SkippedCommands,
	})
	return result, nil
}

// buildTracker creates one execution record per batch position.
func (o *Orchestrator) buildTracker(cmds []model.ParsedCommand, graph *plan.Graph, p *plan.Plan) *Tracker {
	groupOf := p.GroupOf()
	groupSize := make(map[int]int, len(cmds))
	for _, group := range p.Groups {
		for _, i := range group {
			groupSize[i] = len(group)
		}
	}

	execs := make([]*CommandExecution, len(cmds))
	for i, cmd := range cmds {
		execs[i] = &CommandExecution{
			Index:         i,
			Command:       cmd,
			Action:        graph.Actions[i],
			Target:        graph.Targets[i],
			Emergency:     graph.Meta[i].Priority == action.PriorityEmergency,
			LowConfidence: cmd.ConfidenceLevel == model.ConfidenceLow,
			Status:        model.ExecPending,
			Dependencies:  graph.Deps[i],
			GroupIndex:    groupOf[i],
			GroupSize:     groupSize[i],
		}
	}
	return NewTracker(execs)
}

// finalizeInvalid fails validation-rejected commands before anything runs.
// They never reach the actuator and carry the parser's suggestions.
func (o *Orchestrator) finalizeInvalid(tracker *Tracker, graph *plan.Graph, batchID string) {
	for i, verr := range graph.Invalid {
		snap := tracker.Snapshot(i)
		suggestions := snap.Command.Suggestions
		if len(suggestions) == 0 {
			suggestions = []string{"rephrase the command or supply the missing parameters"}
		}
		_ = tracker.Fail(i, model.OperationOutcome{
			Success:     false,
			Message:     verr.Reason,
			ErrorCode:   model.CodeValidation,
			Suggestions: suggestions,
		})
		o.log(LogLevelWarn, "command_rejected id=%s index=%d action=%s reason=%q", batchID, i, verr.Action, verr.Reason)
		o.publish(events.EventCommandFinished, batchID, i, map[string]any{
			"status": string(model.ExecFailed),
			"code":   model.CodeValidation,
		})
	}
}

// runGroups drives the plan group by group, applying the error-recovery
// policy between groups and emergency pre-emption within them.
func (o *Orchestrator) runGroups(ctx context.Context, tracker *Tracker, x *executor, graph *plan.Graph, p *plan.Plan, bctx model.BatchContext, batchID string) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var preempted atomic.Bool

	for gi, group := range p.Groups {
		if runCtx.Err() != nil {
			break
		}

		if bctx.Recovery == model.RecoverySmartRecovery {
			o.skipBrokenDependents(tracker, group)
		}

		eg := &errgroup.Group{}
		eg.SetLimit(bctx.MaxParallelCommands)
		for _, idx := range group {
			i := idx
			if model.IsExecTerminal(tracker.Status(i)) {
				continue
			}
			eg.Go(func() error {
				x.execute(runCtx, i)
				snap := tracker.Snapshot(i)
				if snap.Emergency && snap.Status == model.ExecCompleted {
					// Pre-emptive cancellation, independent of the
					// error-recovery policy.
					preempted.Store(true)
					cancel()
				}
				return nil
			})
		}
		_ = eg.Wait()

		if preempted.Load() {
			o.log(LogLevelWarn, "batch_preempted id=%s group=%d reason=emergency_completed", batchID, gi)
			skipRemaining(tracker, "cancelled by emergency command")
			return
		}

		if bctx.Recovery == model.RecoveryStopOnError && groupHasFailure(tracker, group) {
			o.log(LogLevelWarn, "batch_stopped id=%s group=%d reason=stop_on_error", batchID, gi)
			skipRemaining(tracker, "skipped after earlier failure")
			return
		}
	}
}

// skipBrokenDependents resolves group members whose dependency did not
// complete. Only smart_recovery does this; the other policies let group
// timing alone decide.
func (o *Orchestrator) skipBrokenDependents(tracker *Tracker, group []int) {
	for _, i := range group {
		if model.IsExecTerminal(tracker.Status(i)) {
			continue
		}
		snap := tracker.Snapshot(i)
		for dep := range snap.Dependencies {
			if tracker.Status(dep) != model.ExecCompleted {
				tracker.Skip(i, model.OperationOutcome{
					Success:   false,
					Message:   fmt.Sprintf("dependency (command %d) did not complete", dep),
					ErrorCode: model.CodeSkipped,
				})
				break
			}
		}
	}
}

func groupHasFailure(tracker *Tracker, group []int) bool {
	for _, i := range group {
		if tracker.Status(i) == model.ExecFailed {
			return true
		}
	}
	return false
}

func skipRemaining(tracker *Tracker, reason string) {
	for i := 0; i < tracker.Len(); i++ {
		tracker.Skip(i, model.OperationOutcome{
			Success:   false,
			Message:   reason,
			ErrorCode: model.CodeSkipped,
		})
	}
}
