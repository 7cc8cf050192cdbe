// Package plan builds dependency graphs over parsed command batches and
// turns them into ordered execution groups under a selectable strategy.
package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/skyops/dronectl/internal/action"
	"github.com/skyops/dronectl/internal/model"
)

type pair struct{ lo, hi int }

func pairOf(i, j int) pair {
	if i < j {
		return pair{i, j}
	}
	return pair{j, i}
}

// Graph is the result of dependency analysis: per-index dependency sets
// ("must complete before") and an unordered conflict relation ("must never
// run concurrently"). Indices marked Invalid never reach the actuator and
// carry no edges, but still occupy a plan slot.
type Graph struct {
	N       int
	Actions []action.Action
	Targets []string
	Meta    []action.Metadata
	Deps    []map[int]bool
	Invalid map[int]*ValidationError

	conflicts map[pair]bool
}

// Conflicts reports whether i and j may never run in the same group.
func (g *Graph) Conflicts(i, j int) bool {
	return g.conflicts[pairOf(i, j)]
}

// ConflictPairs returns all conflict pairs sorted by (lo, hi).
func (g *Graph) ConflictPairs() [][2]int {
	out := make([][2]int, 0, len(g.conflicts))
	for p := range g.conflicts {
		out = append(out, [2]int{p.lo, p.hi})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a][0] != out[b][0] {
			return out[a][0] < out[b][0]
		}
		return out[a][1] < out[b][1]
	})
	return out
}

// sameTarget treats commands without a resource identifier as global:
// they depend on and conflict with everything.
func sameTarget(a, b string) bool {
	return a == "" || b == "" || a == b
}

// Analyze is a pure function of the batch and the action table. For each
// pair i < j on the same target it adds a dependency edge when j's action
// requires i's, and a conflict pair when either side declares the other
// conflicting or either side is EMERGENCY class. A required action with no
// earlier occurrence in the batch is assumed already satisfied outside the
// batch, so the edge is simply omitted.
func Analyze(cmds []model.ParsedCommand, cat *action.Catalog) *Graph {
	n := len(cmds)
	g := &Graph{
		N:         n,
		Actions:   make([]action.Action, n),
		Targets:   make([]string, n),
		Meta:      make([]action.Metadata, n),
		Deps:      make([]map[int]bool, n),
		Invalid:   make(map[int]*ValidationError),
		conflicts: make(map[pair]bool),
	}

	for i, cmd := range cmds {
		a := action.Action(cmd.Action())
		g.Actions[i] = a
		g.Targets[i] = cmd.Target()
		g.Deps[i] = make(map[int]bool)

		meta, known := cat.Lookup(a)
		switch {
		case !known:
			g.Invalid[i] = &ValidationError{Index: i, Action: string(a), Reason: fmt.Sprintf("unknown action %q", a)}
		case cmd.ConfidenceLevel == model.ConfidenceVeryLow:
			g.Invalid[i] = &ValidationError{Index: i, Action: string(a), Reason: "confidence too low to execute"}
		case len(cmd.MissingParameters) > 0:
			g.Invalid[i] = &ValidationError{
				Index:  i,
				Action: string(a),
				Reason: fmt.Sprintf("missing required parameters: %s", strings.Join(cmd.MissingParameters, ", ")),
			}
		default:
			g.Meta[i] = meta
		}
		// Invalid indices keep a zero Metadata: normal priority, zero
		// duration, no rules.
	}

	for j := 0; j < n; j++ {
		if _, bad := g.Invalid[j]; bad {
			continue
		}
		for i := 0; i < j; i++ {
			if _, bad := g.Invalid[i]; bad {
				continue
			}
			if !sameTarget(g.Targets[i], g.Targets[j]) {
				continue
			}
			if g.Meta[j].Requires[g.Actions[i]] {
				g.Deps[j][i] = true
			}
			if g.Meta[i].Conflicts[g.Actions[j]] || g.Meta[j].Conflicts[g.Actions[i]] ||
				g.Meta[i].Priority == action.PriorityEmergency || g.Meta[j].Priority == action.PriorityEmergency {
				g.conflicts[pairOf(i, j)] = true
			}
		}
	}

	return g
}
