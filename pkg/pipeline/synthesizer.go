package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/generation"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/ident"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/observability"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/rebalance"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
	"github.com/Mdia92/bone-framework-kiroween-edition/templates"
)

// Labels used when the onboarding request does not name them.
const (
	DefaultRole  = "New Team Member"
	DefaultTools = "Standard toolset"
)

var (
	rolePattern  = regexp.MustCompile(`(?i)Role:[ \t]*(.+)`)
	toolsPattern = regexp.MustCompile(`(?i)Tools Required:[ \t]*(.+)`)
)

// SynthesizerConfig configures a FallbackSynthesizer.
type SynthesizerConfig struct {
	// Generation is the primary path. Nil means offline.
	Generation generation.Service
	// Templates supplies the offline documents. Required.
	Templates *templates.Registry
	// IDs names offline documents. Defaults to random UUIDs.
	IDs ident.Generator
	// Now stamps offline documents. Defaults to time.Now.
	Now func() time.Time
	// MaxSteps bounds generated onboarding plans. Defaults to rebalance.DefaultMaxSteps.
	MaxSteps int
}

// FallbackSynthesizer asks the generation service first and falls back to
// the offline template for the category on any failure. It never returns
// an error.
type FallbackSynthesizer struct {
	log       logrus.FieldLogger
	gen       generation.Service
	templates *templates.Registry
	ids       ident.Generator
	now       func() time.Time
	maxSteps  int
}

var _ Synthesizer = (*FallbackSynthesizer)(nil)

// NewFallbackSynthesizer creates a FallbackSynthesizer.
func NewFallbackSynthesizer(log logrus.FieldLogger, cfg SynthesizerConfig) (*FallbackSynthesizer, error) {
	if cfg.Templates == nil {
		return nil, errors.New("synthesizer requires a template registry")
	}

	if cfg.Generation == nil {
		cfg.Generation = generation.Offline()
	}

	if cfg.IDs == nil {
		cfg.IDs = ident.UUID{}
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = rebalance.DefaultMaxSteps
	}

	return &FallbackSynthesizer{
		log:       log.WithField("component", "synthesizer"),
		gen:       cfg.Generation,
		templates: cfg.Templates,
		ids:       cfg.IDs,
		now:       cfg.Now,
		maxSteps:  cfg.MaxSteps,
	}, nil
}

// Synthesize implements Synthesizer.
func (s *FallbackSynthesizer) Synthesize(
	ctx context.Context,
	input types.RawInput,
	category types.Category,
	cfg types.DaemonConfig,
) (*types.SOP, error) {
	log := s.log.WithFields(logrus.Fields{
		"category": category,
		"provider": s.gen.Name(),
	})

	sop, err := s.generate(ctx, input, category, cfg)
	if err != nil {
		if errors.Is(err, generation.ErrNotConfigured) {
			log.Debug("Generation offline, using template")
		} else {
			log.WithError(err).Warn("Generation failed, falling back to template")
		}

		sop = s.Offline(input, category)
	}

	observability.SynthesisTotal.WithLabelValues(string(category), string(sop.Source)).Inc()

	return sop, nil
}

// generate runs the primary path and post-processes its output.
func (s *FallbackSynthesizer) generate(
	ctx context.Context,
	input types.RawInput,
	category types.Category,
	cfg types.DaemonConfig,
) (sop *types.SOP, err error) {
	defer func() {
		if r := recover(); r != nil {
			sop, err = nil, fmt.Errorf("generation panicked: %v", r)
		}
	}()

	sop, err = s.gen.Generate(ctx, generation.Request{
		RawText: input.Content,
		Mode:    category.Mode(),
		Config:  cfg,
	})
	if err != nil {
		return nil, err
	}

	if sop == nil {
		return nil, fmt.Errorf("%w: empty document", generation.ErrMalformedResponse)
	}

	sop = FillDefaults(sop)
	sop.Source = types.SourceLLM

	if category == types.CategoryOnboarding && len(sop.Steps) > s.maxSteps {
		before := len(sop.Steps)
		sop.Steps = rebalance.Rebalance(sop.Steps, s.maxSteps)

		observability.RebalancedTotal.Inc()
		s.log.WithFields(logrus.Fields{
			"before": before,
			"after":  len(sop.Steps),
		}).Info("Rebalanced onboarding steps")
	}

	return sop, nil
}

// Offline builds the deterministic template document for category. It
// has no external dependency and cannot fail.
func (s *FallbackSynthesizer) Offline(input types.RawInput, category types.Category) *types.SOP {
	vars := VarsFromText(input.Content)
	sop := s.templates.Get(templates.KindStub, category).Render(vars, s.ids.NewID(), s.now().UTC())

	return FillDefaults(sop)
}

// VarsFromText extracts template values from free text: the "Role:" and
// "Tools Required:" lines and an excerpt of the whole input.
func VarsFromText(text string) templates.Vars {
	return templates.Vars{
		Role:    match(rolePattern, text, DefaultRole),
		Tools:   match(toolsPattern, text, DefaultTools),
		Excerpt: templates.Excerpt(text),
	}
}

func match(re *regexp.Regexp, text, fallback string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return fallback
	}

	if v := strings.TrimSpace(m[1]); v != "" {
		return v
	}

	return fallback
}
