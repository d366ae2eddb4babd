// Package rebalance bounds the number of steps in a SOP while keeping its
// phase structure intact.
//
// Oversized step lists are split into phase groups, each group is given a
// share of the step budget proportional to its size, and consecutive steps
// inside a group are merged until the group fits its share.
//
// The per-phase target is advisory. The chunk size derived from it is
// ceil(groupSize/target), so the number of chunks a phase actually emits is
// ceil(groupSize/chunkSize), which can be well below the target: 13 steps in
// a single phase with a budget of 12 produce 7 steps, not 12. This is the
// established behaviour and callers rely on it being stable.
package rebalance

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

const (
	// DefaultMaxSteps is the step budget used when none is supplied.
	DefaultMaxSteps = 12

	// defaultPhase groups steps that carry no phase label.
	defaultPhase = "General"

	actionSeparator = "; "
)

// phaseGroup is the run of steps sharing one phase label, in input order.
type phaseGroup struct {
	phase  string
	steps  []types.Step
	target int
}

// Rebalance compresses steps to at most maxSteps entries. Lists already
// within budget are returned unchanged. A non-positive maxSteps selects
// DefaultMaxSteps.
func Rebalance(steps []types.Step, maxSteps int) []types.Step {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	if len(steps) <= maxSteps {
		return steps
	}

	groups := partition(steps)
	assignTargets(groups, len(steps), maxSteps)

	out := make([]types.Step, 0, maxSteps)

	for _, g := range groups {
		chunkSize := int(math.Ceil(float64(len(g.steps)) / float64(g.target)))

		for i := 0; i < len(g.steps); i += chunkSize {
			end := min(i+chunkSize, len(g.steps))
			out = append(out, merge(g.phase, g.steps[i:end]))
		}
	}

	for i := range out {
		out[i].Order = i + 1
		out[i].ID = fmt.Sprintf("step-%d", i)
	}

	if len(out) > maxSteps {
		out = out[:maxSteps]
	}

	return out
}

// partition groups steps by phase, keeping phases in first-seen order and
// steps in input order within each phase.
func partition(steps []types.Step) []*phaseGroup {
	groups := make([]*phaseGroup, 0, 4)
	byPhase := make(map[string]*phaseGroup, 4)

	for _, step := range steps {
		phase := step.Phase
		if strings.TrimSpace(phase) == "" {
			phase = defaultPhase
		}

		g, ok := byPhase[phase]
		if !ok {
			g = &phaseGroup{phase: phase}
			byPhase[phase] = g
			groups = append(groups, g)
		}

		g.steps = append(g.steps, step)
	}

	return groups
}

// assignTargets gives every group a proportional share of maxSteps, then
// trims the largest shares until the total fits. Totals below maxSteps are
// left as they are.
func assignTargets(groups []*phaseGroup, total, maxSteps int) {
	allocated := 0

	for _, g := range groups {
		proportion := float64(len(g.steps)) / float64(total)
		g.target = max(1, int(math.Floor(proportion*float64(maxSteps)+0.5)))
		allocated += g.target
	}

	if allocated <= maxSteps {
		return
	}

	byTarget := make([]*phaseGroup, len(groups))
	copy(byTarget, groups)

	for allocated > maxSteps {
		sort.SliceStable(byTarget, func(i, j int) bool {
			return byTarget[i].target > byTarget[j].target
		})

		reduced := false

		for _, g := range byTarget {
			if allocated <= maxSteps {
				break
			}

			if g.target > 1 {
				g.target--
				allocated--
				reduced = true
			}
		}

		// More phases than budget: every target is already 1 and the
		// final truncation bounds the output.
		if !reduced {
			return
		}
	}
}

// merge collapses a chunk into one step. Single-step chunks pass through.
func merge(phase string, chunk []types.Step) types.Step {
	if len(chunk) == 1 {
		return chunk[0]
	}

	first := chunk[0]
	merged := types.Step{
		Phase:             phase,
		Owner:             first.Owner,
		EstimatedDuration: first.EstimatedDuration,
	}

	actions := make([]string, 0, len(chunk))
	seenTools := make(map[string]struct{}, len(chunk)*2)
	tools := make([]string, 0, len(chunk)*2)

	for _, step := range chunk {
		actions = append(actions, step.Action)

		for _, tool := range step.Tools {
			if _, ok := seenTools[tool]; ok {
				continue
			}

			seenTools[tool] = struct{}{}
			tools = append(tools, tool)
		}

		if merged.Warning == "" && step.Warning != "" {
			merged.Warning = step.Warning
		}

		if merged.Artifact == "" && step.Artifact != "" {
			merged.Artifact = step.Artifact
		}
	}

	merged.Action = strings.Join(actions, actionSeparator)
	merged.Tools = tools

	return merged
}
