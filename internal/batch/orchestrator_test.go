package batch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyops/dronectl/internal/action"
	"github.com/skyops/dronectl/internal/model"
)

func newTestOrchestrator(inv *fakeInvoker) *Orchestrator {
	return NewOrchestrator(action.Default(), inv, testLogger(), LogLevelError)
}

func TestProcessBatchSequentialFlight(t *testing.T) {
	inv := newFakeInvoker()
	o := newTestOrchestrator(inv)

	cmds := []model.ParsedCommand{
		command("connect", "AA"),
		command("takeoff", "AA"),
		command("photo", "AA"),
	}
	res, err := o.ProcessBatch(context.Background(), cmds, fastContext(model.ModeSequential, model.RecoveryStopOnError))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Summary.TotalCommands)
	assert.Equal(t, 3, res.Summary.SuccessfulCommands)
	assert.Equal(t, 0, res.Summary.FailedCommands)
	assert.Equal(t, [][]int{{0}, {1}, {2}}, res.Analytics.ExecutionPlan.Groups)

	require.Len(t, res.Results, 3)
	for i, r := range res.Results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, model.ExecCompleted, r.Status)
	}
	assert.True(t, model.ValidateID(res.BatchID))
}

func TestProcessBatchEmergencySeparatedFromConflictingMove(t *testing.T) {
	inv := newFakeInvoker()
	o := newTestOrchestrator(inv)

	cmds := []model.ParsedCommand{
		command("move", "AA"),
		command("emergency", "AA"),
	}
	res, err := o.ProcessBatch(context.Background(), cmds, fastContext(model.ModeParallel, model.RecoveryRetryAndContinue))
	require.NoError(t, err)

	assert.Equal(t, [][]int{{0}, {1}}, res.Analytics.ExecutionPlan.Groups)
	assert.Equal(t, model.ExecCompleted, res.Results[0].Status)
	assert.Equal(t, model.ExecCompleted, res.Results[1].Status)
	assert.False(t, inv.overlap("move", "emergency"))
}

func TestProcessBatchEmergencySuccessPreemptsRemainder(t *testing.T) {
	inv := newFakeInvoker()
	o := newTestOrchestrator(inv)

	cmds := []model.ParsedCommand{
		command("emergency", "AA"),
		command("photo", "AA"),
		command("photo", "BB"),
	}
	res, err := o.ProcessBatch(context.Background(), cmds, fastContext(model.ModeSequential, model.RecoveryContinueOnError))
	require.NoError(t, err)

	assert.Equal(t, model.ExecCompleted, res.Results[0].Status)
	for _, r := range res.Results[1:] {
		assert.Equal(t, model.ExecSkipped, r.Status)
		assert.Equal(t, model.CodeSkipped, r.Outcome.ErrorCode)
	}
	assert.Equal(t, 1, res.Summary.SuccessfulCommands)
	assert.Equal(t, 2, res.Summary.SkippedCommands)
	assert.Empty(t, inv.callsFor("photo"))
}

func TestProcessBatchVeryLowConfidenceFailsValidation(t *testing.T) {
	inv := newFakeInvoker()
	o := newTestOrchestrator(inv)

	vague := model.ParsedCommand{
		PrimaryIntent:   model.Intent{Action: "battery", Parameters: map[string]any{"drone": "AA"}, Confidence: 0.2},
		ConfidenceLevel: model.ConfidenceVeryLow,
		Suggestions:     []string{"name the drone and the reading you want"},
	}
	cmds := []model.ParsedCommand{command("connect", "AA"), vague}

	res, err := o.ProcessBatch(context.Background(), cmds, fastContext(model.ModeSequential, model.RecoveryContinueOnError))
	require.NoError(t, err)

	require.Len(t, res.Results, 2)
	assert.Equal(t, model.ExecCompleted, res.Results[0].Status)

	r := res.Results[1]
	assert.Equal(t, model.ExecFailed, r.Status)
	assert.Equal(t, model.CodeValidation, r.Outcome.ErrorCode)
	assert.NotEmpty(t, r.Outcome.Suggestions)
	assert.Equal(t, 0, r.Attempts)
	assert.Empty(t, inv.callsFor("battery"))
}

func TestProcessBatchStopOnErrorSkipsRemainder(t *testing.T) {
	inv := newFakeInvoker()
	inv.failNext("connect", 10)
	o := newTestOrchestrator(inv)

	cmds := []model.ParsedCommand{
		command("connect", "AA"),
		command("takeoff", "AA"),
		command("photo", "AA"),
	}
	res, err := o.ProcessBatch(context.Background(), cmds, fastContext(model.ModeSequential, model.RecoveryStopOnError))
	require.NoError(t, err)

	assert.Equal(t, model.ExecFailed, res.Results[0].Status)
	assert.Equal(t, 1, res.Results[0].Attempts)
	for _, r := range res.Results[1:] {
		assert.Equal(t, model.ExecSkipped, r.Status)
	}
	assert.Equal(t, 1, res.Summary.FailedCommands)
	assert.Equal(t, 2, res.Summary.SkippedCommands)
}

func TestProcessBatchRetryAndContinueRecoversFlakyCommand(t *testing.T) {
	inv := newFakeInvoker()
	inv.failNext("connect", 2)
	o := newTestOrchestrator(inv)

	cmds := []model.ParsedCommand{
		command("connect", "AA"),
		command("photo", "BB"),
	}
	res, err := o.ProcessBatch(context.Background(), cmds, fastContext(model.ModeSequential, model.RecoveryRetryAndContinue))
	require.NoError(t, err)

	assert.Equal(t, model.ExecCompleted, res.Results[0].Status)
	assert.Equal(t, 3, res.Results[0].Attempts)
	assert.Equal(t, model.ExecCompleted, res.Results[1].Status)
	assert.Equal(t, 1, res.Analytics.RetriedCommands)
}

func TestProcessBatchSmartRecoverySkipsBrokenDependents(t *testing.T) {
	inv := newFakeInvoker()
	inv.failNext("connect", 10)
	o := newTestOrchestrator(inv)

	bctx := fastContext(model.ModeSequential, model.RecoverySmartRecovery)
	bctx.MaxRetries = 0
	cmds := []model.ParsedCommand{
		command("connect", "AA"),
		command("takeoff", "AA"),
	}
	res, err := o.ProcessBatch(context.Background(), cmds, bctx)
	require.NoError(t, err)

	assert.Equal(t, model.ExecFailed, res.Results[0].Status)
	assert.Equal(t, model.ExecSkipped, res.Results[1].Status)
	assert.Equal(t, model.CodeSkipped, res.Results[1].Outcome.ErrorCode)
	assert.Empty(t, inv.callsFor("takeoff"))
}

func TestProcessBatchContinueOnErrorRunsDependentsAnyway(t *testing.T) {
	inv := newFakeInvoker()
	inv.failNext("connect", 10)
	o := newTestOrchestrator(inv)

	bctx := fastContext(model.ModeSequential, model.RecoveryContinueOnError)
	cmds := []model.ParsedCommand{
		command("connect", "AA"),
		command("takeoff", "AA"),
	}
	res, err := o.ProcessBatch(context.Background(), cmds, bctx)
	require.NoError(t, err)

	assert.Equal(t, model.ExecFailed, res.Results[0].Status)
	assert.Equal(t, model.ExecCompleted, res.Results[1].Status)
	assert.Len(t, inv.callsFor("takeoff"), 1)
}

func TestProcessBatchConflictingCommandsNeverOverlap(t *testing.T) {
	inv := newFakeInvoker()
	inv.delay = 20 * time.Millisecond
	o := newTestOrchestrator(inv)

	cmds := []model.ParsedCommand{
		command("move", "AA"),
		command("return_home", "AA"),
	}
	res, err := o.ProcessBatch(context.Background(), cmds, fastContext(model.ModeParallel, model.RecoveryRetryAndContinue))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Summary.SuccessfulCommands)
	assert.False(t, inv.overlap("move", "return_home"))
}

func TestProcessBatchEveryModeReportsEveryCommand(t *testing.T) {
	cmds := []model.ParsedCommand{
		command("connect", "AA"),
		command("takeoff", "AA"),
		command("photo", "BB"),
		command("wait", ""),
	}
	for _, mode := range []model.ExecutionMode{model.ModeSequential, model.ModeParallel, model.ModeOptimized, model.ModePriorityBased} {
		inv := newFakeInvoker()
		o := newTestOrchestrator(inv)

		res, err := o.ProcessBatch(context.Background(), cmds, fastContext(mode, model.RecoveryRetryAndContinue))
		require.NoError(t, err, "mode %s", mode)
		require.Len(t, res.Results, len(cmds), "mode %s", mode)
		assert.Equal(t, len(cmds), res.Summary.SuccessfulCommands, "mode %s", mode)
		assert.Equal(t, mode, res.Analytics.ExecutionPlan.Mode, "mode %s", mode)
	}
}

func TestProcessBatchRejectsInvalidContext(t *testing.T) {
	o := newTestOrchestrator(newFakeInvoker())

	bctx := fastContext(model.ModeSequential, model.RecoveryRetryAndContinue)
	bctx.MaxParallelCommands = -1
	_, err := o.ProcessBatch(context.Background(), []model.ParsedCommand{command("connect", "AA")}, bctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), model.CodePlanning)
}

func TestProcessBatchUnknownActionFailsValidation(t *testing.T) {
	inv := newFakeInvoker()
	o := newTestOrchestrator(inv)

	cmds := []model.ParsedCommand{command("teleport", "AA"), command("connect", "AA")}
	res, err := o.ProcessBatch(context.Background(), cmds, fastContext(model.ModeOptimized, model.RecoveryRetryAndContinue))
	require.NoError(t, err)

	assert.Equal(t, model.ExecFailed, res.Results[0].Status)
	assert.Equal(t, model.CodeValidation, res.Results[0].Outcome.ErrorCode)
	assert.Equal(t, model.ExecCompleted, res.Results[1].Status)
	assert.Empty(t, inv.callsFor("teleport"))
}

func TestProcessBatchCancellationSkipsInFlight(t *testing.T) {
	inv := newFakeInvoker()
	inv.delay = 100 * time.Millisecond
	o := newTestOrchestrator(inv)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	cmds := []model.ParsedCommand{command("connect", "AA"), command("photo", "BB")}
	res, err := o.ProcessBatch(ctx, cmds, fastContext(model.ModeSequential, model.RecoveryRetryAndContinue))
	require.NoError(t, err)

	assert.Equal(t, 0, res.Summary.SuccessfulCommands)
	for _, r := range res.Results {
		assert.Equal(t, model.ExecSkipped, r.Status)
	}
}

func TestProcessBatchAnalyticsDistribution(t *testing.T) {
	inv := newFakeInvoker()
	inv.failNext("photo", 10)
	o := newTestOrchestrator(inv)

	bctx := fastContext(model.ModeParallel, model.RecoveryContinueOnError)
	cmds := []model.ParsedCommand{
		command("connect", "AA"),
		command("photo", "BB"),
		command("wait", ""),
	}
	res, err := o.ProcessBatch(context.Background(), cmds, bctx)
	require.NoError(t, err)

	a := res.Analytics
	assert.Equal(t, 2, a.StatusDistribution[model.ExecCompleted])
	assert.Equal(t, 1, a.StatusDistribution[model.ExecFailed])
	assert.Equal(t, 1, a.TargetUtilization["AA"])
	assert.Equal(t, 1, a.TargetUtilization["BB"])
	assert.Equal(t, 1, a.TargetUtilization["global"])
	assert.Equal(t, 1.0, a.ParallelizationFactor)
	assert.Greater(t, a.ExecutionPlan.EstimatedTimeSec, 0.0)
}
