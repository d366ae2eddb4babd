package pipeline

import (
	"fmt"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

// Values substituted for missing fields.
const (
	DefaultTrigger   = "Manual trigger"
	DefaultGuardrail = "Follow standard safety procedures"
	DefaultTag       = "generated"
	DefaultTool      = "Standard tools"
	DefaultDuration  = "TBD"
)

// FillDefaults returns a copy of sop with every empty list and step field
// filled. It is idempotent and leaves its argument untouched.
func FillDefaults(sop *types.SOP) *types.SOP {
	if sop == nil {
		return nil
	}

	out := *sop
	out.Triggers = orDefault(sop.Triggers, DefaultTrigger)
	out.Guardrails = orDefault(sop.Guardrails, DefaultGuardrail)
	out.Tags = orDefault(sop.Tags, DefaultTag)
	out.Steps = make([]types.Step, len(sop.Steps))

	for i, step := range sop.Steps {
		if step.ID == "" {
			step.ID = fmt.Sprintf("step-%d", i)
		}

		if step.Order == 0 {
			step.Order = i + 1
		}

		step.Tools = orDefault(step.Tools, DefaultTool)

		if step.EstimatedDuration == "" {
			step.EstimatedDuration = DefaultDuration
		}

		out.Steps[i] = step
	}

	return &out
}

func orDefault(in []string, fallback string) []string {
	if len(in) == 0 {
		return []string{fallback}
	}

	out := make([]string, len(in))
	copy(out, in)

	return out
}
