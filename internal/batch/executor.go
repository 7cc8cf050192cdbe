package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/skyops/dronectl/internal/actuator"
	"github.com/skyops/dronectl/internal/events"
	"github.com/skyops/dronectl/internal/model"
)

// executor runs single commands against the actuator backend, enforcing the
// per-command timeout and the retry policy. It mutates only its own record,
// through the tracker; sibling executions are never inspected or touched.
type executor struct {
	invoker  actuator.Invoker
	tracker  *Tracker
	bctx     model.BatchContext
	bus      *events.Bus
	batchID  string
	logger   *log.Logger
	logLevel LogLevel
}

func (x *executor) log(level LogLevel, format string, args ...any) {
	logf(x.logger, x.logLevel, level, "executor", format, args...)
}

func (x *executor) publish(t events.EventType, index int, data map[string]any) {
	if x.bus != nil {
		x.bus.Publish(t, x.batchID, index, data)
	}
}

// execute drives one record to a terminal state. ctx is the group context:
// its cancellation means the batch was pre-empted, and the record resolves
// as skipped rather than failed.
func (x *executor) execute(ctx context.Context, i int) {
	rec := x.tracker.Snapshot(i)
	timeout := time.Duration(x.bctx.TimeoutPerCommandSec * float64(time.Second))
	delay := time.Duration(x.bctx.RetryDelaySec * float64(time.Second))

	for {
		attempt, err := x.tracker.BeginAttempt(i)
		if err != nil {
			// Resolved by a cancellation that won the race.
			x.log(LogLevelDebug, "attempt_refused index=%d error=%v", i, err)
			return
		}
		if attempt == 1 {
			x.publish(events.EventCommandStarted, i, map[string]any{"action": string(rec.Action), "target": rec.Target})
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		outcome, err := x.invoker.Invoke(attemptCtx, string(rec.Action), rec.Command.PrimaryIntent.Parameters)
		cancel()

		if err == nil && outcome.Success {
			_ = x.tracker.Complete(i, outcome)
			x.publish(events.EventCommandFinished, i, map[string]any{"status": string(model.ExecCompleted), "attempts": attempt})
			x.log(LogLevelInfo, "command_completed index=%d action=%s attempts=%d", i, rec.Action, attempt)
			return
		}

		if ctx.Err() != nil {
			// Group context cancelled: batch pre-emption, not a failure.
			x.tracker.Skip(i, model.OperationOutcome{
				Success:   false,
				Message:   "cancelled before completion",
				ErrorCode: model.CodeCancelled,
			})
			x.publish(events.EventCommandFinished, i, map[string]any{"status": string(model.ExecSkipped), "attempts": attempt})
			return
		}

		failure := outcome
		timedOut := err != nil && errors.Is(err, context.DeadlineExceeded)
		switch {
		case timedOut:
			_ = x.tracker.MarkTimedOut(i)
			failure = model.OperationOutcome{
				Success:   false,
				Message:   fmt.Sprintf("timed out after %gs", x.bctx.TimeoutPerCommandSec),
				ErrorCode: model.CodeTimeout,
			}
		case err != nil:
			failure = model.OperationOutcome{
				Success:   false,
				Message:   err.Error(),
				ErrorCode: model.CodeExecution,
			}
		default:
			if failure.ErrorCode == "" {
				failure.ErrorCode = model.CodeExecution
			}
		}

		if !x.shouldRetry(rec, attempt) {
			_ = x.tracker.Fail(i, failure)
			x.publish(events.EventCommandFinished, i, map[string]any{"status": string(model.ExecFailed), "attempts": attempt})
			x.log(LogLevelWarn, "command_failed index=%d action=%s attempts=%d code=%s", i, rec.Action, attempt, failure.ErrorCode)
			return
		}

		_ = x.tracker.MarkRetrying(i)
		x.publish(events.EventCommandRetrying, i, map[string]any{"attempt": attempt, "code": failure.ErrorCode})
		x.log(LogLevelInfo, "command_retrying index=%d action=%s attempt=%d delay=%gs", i, rec.Action, attempt, x.bctx.RetryDelaySec)

		select {
		case <-ctx.Done():
			x.tracker.Skip(i, model.OperationOutcome{
				Success:   false,
				Message:   "cancelled during retry backoff",
				ErrorCode: model.CodeCancelled,
			})
			return
		case <-time.After(delay):
		}
	}
}

// shouldRetry applies the retry policy to a just-failed attempt. Emergency
// commands fail fast. Under smart_recovery a low-confidence command gets one
// retry even when maxRetries is zero.
func (x *executor) shouldRetry(rec CommandExecution, attempt int) bool {
	if rec.Emergency {
		return false
	}
	if !x.bctx.Recovery.Retries() {
		return false
	}
	if attempt <= x.bctx.MaxRetries {
		return true
	}
	if x.bctx.Recovery == model.RecoverySmartRecovery && rec.LowConfidence && attempt == 1 && x.bctx.MaxRetries == 0 {
		return true
	}
	return false
}
