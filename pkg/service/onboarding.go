package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/pipeline"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
	"github.com/Mdia92/bone-framework-kiroween-edition/templates"
)

// OnboardingText formats an onboarding request the way the synthesizer
// expects to read it back.
func OnboardingText(role, tools, goals string) string {
	return fmt.Sprintf("Role: %s\nTools Required: %s\nKey Goals: %s", role, tools, goals)
}

// GenerateOnboardingPlan runs the pipeline for a new hire. It always
// returns a document.
func (s *Service) GenerateOnboardingPlan(ctx context.Context, role, tools, goals string) (sop *types.SOP) {
	log := s.log.WithFields(logrus.Fields{"operation": "onboarding", "role": role})
	raw := OnboardingText(role, tools, goals)

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).Error("Onboarding generation panicked")

			sop = s.substitute(templates.KindEmergency, types.CategoryOnboarding, pipeline.VarsFromText(raw))
		}
	}()

	log.Info("Received onboarding generation request")

	input := types.RawInput{
		Content: raw,
		Context: map[string]any{"source": "ritual-form", "type": "new-hire"},
	}

	forced := types.CategoryOnboarding
	result := s.pipeline.Run(ctx, input, &forced)

	if !result.Success || result.SOP == nil {
		log.WithField("validation_errors", result.ValidationErrors).Warn("Pipeline failed, returning fallback plan")

		return s.substitute(templates.KindFallback, types.CategoryOnboarding, pipeline.VarsFromText(raw))
	}

	s.store(ctx, result.SOP)

	return result.SOP
}
