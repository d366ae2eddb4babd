package service

import (
	"context"
	"fmt"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/pipeline"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
	"github.com/Mdia92/bone-framework-kiroween-edition/templates"
)

// BoneStatus summarises the structural health of an incident SOP.
type BoneStatus string

const (
	StatusSolid     BoneStatus = "SOLID"
	StatusFractured BoneStatus = "FRACTURED"
)

// Diagnostic messages.
const (
	DiagnosticWeakGuardrails = "Weak bone density: Insufficient guardrails defined."
	DiagnosticTooShort       = "Hairline fracture: Procedure too short for incident class."
	DiagnosticNoTriggers     = "Structural integrity compromised: No activation triggers."
)

// Thresholds below which an incident SOP is reported as fractured.
const (
	minGuardrails    = 2
	minIncidentSteps = 3
)

// BoneHealth is the X-ray of an incident SOP.
type BoneHealth struct {
	Status      BoneStatus `json:"status"`
	Diagnostics []string   `json:"diagnostics"`
}

// IncidentResponse is the result of GenerateIncidentSOP.
type IncidentResponse struct {
	SOP        *types.SOP `json:"sop"`
	BoneHealth BoneHealth `json:"boneHealth"`
}

// Diagnose checks an incident SOP for thin guardrails, short procedures and
// missing triggers.
func Diagnose(sop *types.SOP) BoneHealth {
	diagnostics := make([]string, 0, 3)

	if len(sop.Guardrails) < minGuardrails {
		diagnostics = append(diagnostics, DiagnosticWeakGuardrails)
	}

	if len(sop.Steps) < minIncidentSteps {
		diagnostics = append(diagnostics, DiagnosticTooShort)
	}

	if len(sop.Triggers) == 0 {
		diagnostics = append(diagnostics, DiagnosticNoTriggers)
	}

	status := StatusSolid
	if len(diagnostics) > 0 {
		status = StatusFractured
	}

	return BoneHealth{Status: status, Diagnostics: diagnostics}
}

func solid() BoneHealth {
	return BoneHealth{Status: StatusSolid, Diagnostics: []string{}}
}

// GenerateIncidentSOP runs the pipeline for an incident description. It
// always returns a document.
func (s *Service) GenerateIncidentSOP(ctx context.Context, rawContext string) (resp IncidentResponse) {
	log := s.log.WithField("operation", "incident")

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).Error("Incident generation panicked")

			resp = IncidentResponse{
				SOP:        s.substitute(templates.KindEmergency, types.CategoryIncident, pipeline.VarsFromText(rawContext)),
				BoneHealth: solid(),
			}
		}
	}()

	log.Info("Received incident generation request")

	input := types.RawInput{
		Content: rawContext,
		Context: map[string]any{"source": "web-terminal", "priority": "high"},
	}

	forced := types.CategoryIncident
	result := s.pipeline.Run(ctx, input, &forced)

	if !result.Success || result.SOP == nil {
		log.WithField("validation_errors", result.ValidationErrors).Warn("Pipeline failed, returning fallback SOP")

		return IncidentResponse{
			SOP:        s.substitute(templates.KindFallback, types.CategoryIncident, pipeline.VarsFromText(rawContext)),
			BoneHealth: solid(),
		}
	}

	s.store(ctx, result.SOP)

	return IncidentResponse{SOP: result.SOP, BoneHealth: Diagnose(result.SOP)}
}
