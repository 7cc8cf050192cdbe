package batch

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/skyops/dronectl/internal/action"
	"github.com/skyops/dronectl/internal/model"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func command(act, drone string) model.ParsedCommand {
	params := map[string]any{}
	if drone != "" {
		params["drone"] = drone
	}
	return model.ParsedCommand{
		PrimaryIntent:   model.Intent{Action: act, Parameters: params, Confidence: 0.9},
		ConfidenceLevel: model.ConfidenceHigh,
	}
}

type call struct {
	action string
	target string
	start  time.Time
	end    time.Time
}

// fakeInvoker is a scriptable actuator backend: per-action failure counts,
// per-action hangs (to trigger timeouts), and a fixed latency. It records
// every call with start/end times for overlap assertions.
type fakeInvoker struct {
	mu       sync.Mutex
	delay    time.Duration
	failures map[string]int
	hang     map[string]bool
	calls    []call
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{
		failures: make(map[string]int),
		hang:     make(map[string]bool),
	}
}

func (f *fakeInvoker) failNext(action string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[action] = n
}

func (f *fakeInvoker) hangOn(action string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hang[action] = true
}

func (f *fakeInvoker) Invoke(ctx context.Context, actionName string, params map[string]any) (model.OperationOutcome, error) {
	start := time.Now()

	f.mu.Lock()
	hang := f.hang[actionName]
	delay := f.delay
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		f.record(actionName, params, start)
		return model.OperationOutcome{}, ctx.Err()
	}

	select {
	case <-ctx.Done():
		f.record(actionName, params, start)
		return model.OperationOutcome{}, ctx.Err()
	case <-time.After(delay):
	}

	f.mu.Lock()
	fail := false
	if f.failures[actionName] > 0 {
		f.failures[actionName]--
		fail = true
	}
	f.mu.Unlock()

	f.record(actionName, params, start)
	if fail {
		return model.OperationOutcome{Success: false, Message: "backend rejected " + actionName, ErrorCode: model.CodeExecution}, nil
	}
	return model.OperationOutcome{Success: true, Message: actionName + " ok"}, nil
}

func (f *fakeInvoker) record(actionName string, params map[string]any, start time.Time) {
	target := ""
	if v, ok := params["drone"].(string); ok {
		target = v
	}
	f.mu.Lock()
	f.calls = append(f.calls, call{action: actionName, target: target, start: start, end: time.Now()})
	f.mu.Unlock()
}

func (f *fakeInvoker) callsFor(actionName string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.action == actionName {
			out = append(out, c)
		}
	}
	return out
}

// overlap reports whether any call of action a overlapped any call of b.
func (f *fakeInvoker) overlap(a, b string) bool {
	for _, ca := range f.callsFor(a) {
		for _, cb := range f.callsFor(b) {
			if ca.start.Before(cb.end) && cb.start.Before(ca.end) {
				return true
			}
		}
	}
	return false
}

// fastContext returns a batch context tuned for tests: tiny delays, generous
// timeout.
func fastContext(mode model.ExecutionMode, recovery model.ErrorRecovery) model.BatchContext {
	return model.BatchContext{
		Mode:                 mode,
		Recovery:             recovery,
		MaxRetries:           2,
		RetryDelaySec:        0.001,
		TimeoutPerCommandSec: 5,
		MaxParallelCommands:  4,
	}
}

// newTestRecord builds a pending record for executor-level tests, bypassing
// the planner.
func newTestRecord(i int, act action.Action, target string) *CommandExecution {
	cmd := command(string(act), target)
	return &CommandExecution{
		Index:        i,
		Command:      cmd,
		Action:       act,
		Target:       target,
		Status:       model.ExecPending,
		Dependencies: map[int]bool{},
		GroupSize:    1,
	}
}
