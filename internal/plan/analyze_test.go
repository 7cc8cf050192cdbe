package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyops/dronectl/internal/action"
	"github.com/skyops/dronectl/internal/model"
)

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

func TestAnalyzeRequiresEdges(t *testing.T) {
	cmds := []model.ParsedCommand{
		command("connect", "AA"),
		command("takeoff", "AA"),
		command("move", "AA"),
	}
	g := Analyze(cmds, action.Default())

	assert.Empty(t, g.Deps[0])
	assert.Equal(t, map[int]bool{0: true}, g.Deps[1])
	assert.Equal(t, map[int]bool{1: true}, g.Deps[2])
	assert.Empty(t, g.Invalid)
}

func TestAnalyzeNoEdgeAcrossTargets(t *testing.T) {
	cmds := []model.ParsedCommand{
		command("connect", "AA"),
		command("takeoff", "BB"),
	}
	g := Analyze(cmds, action.Default())
	assert.Empty(t, g.Deps[1])
}

func TestAnalyzeGlobalCommandMatchesEveryTarget(t *testing.T) {
	cmds := []model.ParsedCommand{
		command("connect", ""), // no drone parameter: global
		command("takeoff", "AA"),
	}
	g := Analyze(cmds, action.Default())
	assert.Equal(t, map[int]bool{0: true}, g.Deps[1])
}

func TestAnalyzeUnsatisfiedRequirementIsOmitted(t *testing.T) {
	// takeoff requires connect, but no earlier connect exists; the state is
	// assumed to already hold outside the batch.
	cmds := []model.ParsedCommand{
		command("takeoff", "AA"),
		command("connect", "AA"), // later occurrence never creates a backward edge
	}
	g := Analyze(cmds, action.Default())
	assert.Empty(t, g.Deps[0])
	assert.Empty(t, g.Deps[1])
}

func TestAnalyzeConflictPairs(t *testing.T) {
	cmds := []model.ParsedCommand{
		command("move", "AA"),
		command("return_home", "AA"),
		command("move", "BB"), // different target: no conflict
	}
	g := Analyze(cmds, action.Default())

	assert.True(t, g.Conflicts(0, 1))
	assert.True(t, g.Conflicts(1, 0), "conflict checks are symmetric")
	assert.False(t, g.Conflicts(0, 2))
	assert.Equal(t, [][2]int{{0, 1}}, g.ConflictPairs())
}

func TestAnalyzeEmergencyConflictsWithEverythingOnTarget(t *testing.T) {
	cmds := []model.ParsedCommand{
		command("photo", "AA"),
		command("emergency", "AA"),
		command("photo", "BB"),
		command("wait", ""), // global conflicts with the emergency too
	}
	g := Analyze(cmds, action.Default())

	assert.True(t, g.Conflicts(0, 1))
	assert.False(t, g.Conflicts(1, 2))
	assert.True(t, g.Conflicts(1, 3))
	assert.False(t, g.Conflicts(0, 2))
}

func TestAnalyzeMarksInvalidCommands(t *testing.T) {
	lowConfidence := command("move", "AA")
	lowConfidence.ConfidenceLevel = model.ConfidenceVeryLow

	missing := command("move", "AA")
	missing.MissingParameters = []string{"distance"}

	cmds := []model.ParsedCommand{
		command("connect", "AA"),
		{PrimaryIntent: model.Intent{Action: "teleport"}, ConfidenceLevel: model.ConfidenceHigh},
		lowConfidence,
		missing,
	}
	g := Analyze(cmds, action.Default())

	require.Len(t, g.Invalid, 3)
	assert.Contains(t, g.Invalid[1].Reason, "unknown action")
	assert.Contains(t, g.Invalid[2].Reason, "confidence")
	assert.Contains(t, g.Invalid[3].Reason, "missing required parameters")

	// Invalid commands carry no edges in either direction.
	for i := range cmds {
		assert.Empty(t, g.Deps[i], "index %d", i)
	}
	assert.Empty(t, g.ConflictPairs())
}

func TestAnalyzeIsPure(t *testing.T) {
	cmds := []model.ParsedCommand{
		command("connect", "AA"),
		command("takeoff", "AA"),
	}
	cat := action.Default()
	g1 := Analyze(cmds, cat)
	g2 := Analyze(cmds, cat)
	assert.Equal(t, g1.Deps, g2.Deps)
	assert.Equal(t, g1.ConflictPairs(), g2.ConflictPairs())
}
