package actuator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/skyops/dronectl/internal/action"
	"github.com/skyops/dronectl/internal/model"
)

// Simulator is an in-process backend for offline runs and tests. It sleeps
// the catalog's estimated duration scaled by timeScale and succeeds unless a
// failure has been scripted for the action.
type Simulator struct {
	catalog   *action.Catalog
	timeScale float64

	mu       sync.Mutex
	failures map[action.Action]int // remaining scripted failures per action
}

// NewSimulator builds a simulator over the given catalog. timeScale of 0.01
// turns a 5s takeoff into 50ms.
func NewSimulator(cat *action.Catalog, timeScale float64) *Simulator {
	if timeScale <= 0 {
		timeScale = 0.01
	}
	return &Simulator{
		catalog:   cat,
		timeScale: timeScale,
		failures:  make(map[action.Action]int),
	}
}

// FailNext scripts the next n invocations of a to fail.
func (s *Simulator) FailNext(a action.Action, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[a] = n
}

func (s *Simulator) takeFailure(a action.Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures[a] > 0 {
		s.failures[a]--
		return true
	}
	return false
}

// Invoke simulates one actuator call, honoring ctx cancellation.
func (s *Simulator) Invoke(ctx context.Context, actionName string, params map[string]any) (model.OperationOutcome, error) {
	a := action.Action(actionName)
	meta, ok := s.catalog.Lookup(a)
	if !ok {
		return model.OperationOutcome{
			Success:   false,
			Message:   fmt.Sprintf("unsupported action %q", actionName),
			ErrorCode: model.CodeValidation,
		}, nil
	}

	delay := time.Duration(meta.EstimatedSec * s.timeScale * float64(time.Second))
	select {
	case <-ctx.Done():
		return model.OperationOutcome{}, ctx.Err()
	case <-time.After(delay):
	}

	if s.takeFailure(a) {
		return model.OperationOutcome{
			Success:   false,
			Message:   fmt.Sprintf("simulated %s failure", actionName),
			ErrorCode: model.CodeExecution,
		}, nil
	}

	return model.OperationOutcome{
		Success: true,
		Message: fmt.Sprintf("%s ok", actionName),
	}, nil
}
