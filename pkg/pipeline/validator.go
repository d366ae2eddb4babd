package pipeline

import (
	"context"
	"strings"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

// Validation messages.
const (
	ErrNoSteps      = "SOP has no steps."
	ErrMissingTitle = "SOP missing title."
)

// StructuralValidator checks that a SOP has a title and at least one step.
type StructuralValidator struct{}

var _ Validator = StructuralValidator{}

// Validate implements Validator. A nil SOP fails both checks.
func (StructuralValidator) Validate(_ context.Context, sop *types.SOP) ValidationResult {
	errs := make([]string, 0, 2)

	if sop == nil || len(sop.Steps) == 0 {
		errs = append(errs, ErrNoSteps)
	}

	if sop == nil || strings.TrimSpace(sop.Title) == "" {
		errs = append(errs, ErrMissingTitle)
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
