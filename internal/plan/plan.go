package plan

import (
	"fmt"
	"sort"

	"github.com/skyops/dronectl/internal/action"
	"github.com/skyops/dronectl/internal/model"
)

// Plan is an ordered sequence of execution groups. Each group is a set of
// command indices authorized to run concurrently; groups run strictly in
// order. Every index of the batch appears in exactly one group.
type Plan struct {
	Mode         model.ExecutionMode
	Groups       [][]int
	EstimatedSec float64
}

// GroupOf returns, for each index, the position of its group in the plan.
func (p *Plan) GroupOf() map[int]int {
	out := make(map[int]int, len(p.Groups))
	for gi, group := range p.Groups {
		for _, i := range group {
			out[i] = gi
		}
	}
	return out
}

// Build constructs the execution plan for the given mode. All strategies are
// deterministic: ties are broken by original input index. A cyclic graph
// returns ErrCycle before any command runs.
func Build(g *Graph, mode model.ExecutionMode, maxParallel int) (*Plan, error) {
	if maxParallel < 1 {
		return nil, fmt.Errorf("max parallel commands must be >= 1, got %d", maxParallel)
	}
	if err := checkAcyclic(g); err != nil {
		return nil, err
	}

	var groups [][]int
	switch mode {
	case model.ModeSequential:
		groups = buildSequential(g)
	case model.ModeParallel:
		groups = buildParallel(g, maxParallel)
	case model.ModeOptimized:
		groups = buildOptimized(g, maxParallel)
	case model.ModePriorityBased:
		groups = buildPriorityBased(g, maxParallel)
	default:
		return nil, fmt.Errorf("unknown execution mode %q", mode)
	}

	return &Plan{Mode: mode, Groups: groups, EstimatedSec: estimate(g, groups)}, nil
}

// checkAcyclic runs a Kahn count over the dependency edges. The analyzer
// only creates before→after edges, so this is a defensive invariant check.
func checkAcyclic(g *Graph) error {
	indeg := make([]int, g.N)
	for j := range g.Deps {
		indeg[j] = len(g.Deps[j])
	}
	dependents := make([][]int, g.N)
	for j, deps := range g.Deps {
		for i := range deps {
			dependents[i] = append(dependents[i], j)
		}
	}

	queue := make([]int, 0, g.N)
	for i := 0; i < g.N; i++ {
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}
	processed := 0
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		processed++
		for _, v := range dependents[u] {
			indeg[v]--
			if indeg[v] == 0 {
				queue = append(queue, v)
			}
		}
	}
	if processed != g.N {
		return ErrCycle
	}
	return nil
}

func buildSequential(g *Graph) [][]int {
	groups := make([][]int, g.N)
	for i := 0; i < g.N; i++ {
		groups[i] = []int{i}
	}
	return groups
}

func depsDone(g *Graph, i int, done []bool) bool {
	for d := range g.Deps[i] {
		if !done[d] {
			return false
		}
	}
	return true
}

func conflictsWithAny(g *Graph, i int, group []int) bool {
	for _, m := range group {
		if g.Conflicts(i, m) {
			return true
		}
	}
	return false
}

// buildParallel does a topological layering: each round takes the full
// ready set, then buckets it under the size cap, forcing conflicting members
// of the same layer into different buckets.
func buildParallel(g *Graph, maxParallel int) [][]int {
	placed := make([]bool, g.N)
	done := make([]bool, g.N)
	remaining := g.N

	var groups [][]int
	for remaining > 0 {
		var layer []int
		for i := 0; i < g.N; i++ {
			if !placed[i] && depsDone(g, i, done) {
				layer = append(layer, i)
			}
		}

		var buckets [][]int
		for _, i := range layer {
			bucketed := false
			for bi := range buckets {
				if len(buckets[bi]) < maxParallel && !conflictsWithAny(g, i, buckets[bi]) {
					buckets[bi] = append(buckets[bi], i)
					bucketed = true
					break
				}
			}
			if !bucketed {
				buckets = append(buckets, []int{i})
			}
		}
		groups = append(groups, buckets...)

		for _, i := range layer {
			placed[i] = true
			done[i] = true
		}
		remaining -= len(layer)
	}
	return groups
}

// buildOptimized greedily packs the lowest-index ready command into the
// current group instead of waiting for a full layer, minimizing the number
// of groups while preserving the dependency and conflict invariants. A
// member's dependencies must be satisfied by already-closed groups, never by
// the group it joins.
func buildOptimized(g *Graph, maxParallel int) [][]int {
	placed := make([]bool, g.N)
	done := make([]bool, g.N)
	remaining := g.N

	var groups [][]int
	for remaining > 0 {
		var group []int
		for len(group) < maxParallel {
			cand := -1
			for i := 0; i < g.N; i++ {
				if !placed[i] && depsDone(g, i, done) && !conflictsWithAny(g, i, group) {
					cand = i
					break
				}
			}
			if cand < 0 {
				break
			}
			group = append(group, cand)
			placed[cand] = true
		}
		groups = append(groups, group)
		for _, i := range group {
			done[i] = true
		}
		remaining -= len(group)
	}
	return groups
}

// buildPriorityBased selects ready commands in priority order
// (EMERGENCY > HIGH > NORMAL > LOW, ties by input index). An EMERGENCY
// command is always placed alone in the earliest group where its
// dependencies are satisfied, ahead of lower-priority ready commands.
func buildPriorityBased(g *Graph, maxParallel int) [][]int {
	order := make([]int, g.N)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return g.Meta[order[a]].Priority > g.Meta[order[b]].Priority
	})

	placed := make([]bool, g.N)
	done := make([]bool, g.N)
	remaining := g.N

	var groups [][]int
	for remaining > 0 {
		var ready []int
		for _, i := range order {
			if !placed[i] && depsDone(g, i, done) {
				ready = append(ready, i)
			}
		}

		var group []int
		if g.Meta[ready[0]].Priority == action.PriorityEmergency {
			group = []int{ready[0]}
		} else {
			for _, i := range ready {
				if len(group) == maxParallel {
					break
				}
				if !conflictsWithAny(g, i, group) {
					group = append(group, i)
				}
			}
		}

		groups = append(groups, group)
		for _, i := range group {
			placed[i] = true
			done[i] = true
		}
		remaining -= len(group)
	}
	return groups
}

// estimate sums, over groups, the longest member action duration.
func estimate(g *Graph, groups [][]int) float64 {
	var total float64
	for _, group := range groups {
		var longest float64
		for _, i := range group {
			if g.Meta[i].EstimatedSec > longest {
				longest = g.Meta[i].EstimatedSec
			}
		}
		total += longest
	}
	return total
}

// SumIndividualSec is the serial lower bound used for the efficiency ratio.
func SumIndividualSec(g *Graph) float64 {
	var total float64
	for i := 0; i < g.N; i++ {
		total += g.Meta[i].EstimatedSec
	}
	return total
}
