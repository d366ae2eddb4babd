// Package pipeline turns raw text into a SOP in three sequential stages:
// classify, synthesize and validate.
//
// Run never returns an error and never panics. Every failure is reported in
// the returned PipelineResult. Producing a presentable document when Success
// is false is the caller's job.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/generation"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/observability"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
	"github.com/Mdia92/bone-framework-kiroween-edition/templates"
)

// Default generation settings recorded on runs that supply none.
const (
	DefaultTemperature = 0.3
	DefaultModel       = "gemini-2.5-flash"
)

// DefaultConfig returns the generation settings used when none are supplied.
func DefaultConfig() types.DaemonConfig {
	return types.DaemonConfig{Temperature: DefaultTemperature, Model: DefaultModel}
}

// Classifier maps raw input to a category. It must always return a member
// of the enumeration.
type Classifier interface {
	Classify(ctx context.Context, input types.RawInput) types.Category
}

// Synthesizer produces a complete SOP for input in the given category.
type Synthesizer interface {
	Synthesize(ctx context.Context, input types.RawInput, category types.Category, cfg types.DaemonConfig) (*types.SOP, error)
}

// Validator performs structural checks on a SOP.
type Validator interface {
	Validate(ctx context.Context, sop *types.SOP) ValidationResult
}

// ValidationResult is the outcome of a Validator. Valid is true iff Errors
// is empty.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Options configures a Pipeline. Nil capabilities get the reference
// implementations.
type Options struct {
	Classifier  Classifier
	Synthesizer Synthesizer
	Validator   Validator
	// Config is recorded on every run. A zero value selects DefaultConfig.
	Config types.DaemonConfig
}

// Pipeline orchestrates one classify, synthesize, validate pass per call.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	log         logrus.FieldLogger
	classifier  Classifier
	synthesizer Synthesizer
	validator   Validator
	config      types.DaemonConfig
}

// New creates a Pipeline.
func New(log logrus.FieldLogger, opts Options) (*Pipeline, error) {
	log = log.WithField("component", "pipeline")

	if opts.Classifier == nil {
		opts.Classifier = NewStaticClassifier(log, types.CategoryIncident)
	}

	if opts.Validator == nil {
		opts.Validator = StructuralValidator{}
	}

	if opts.Synthesizer == nil {
		reg, err := templates.NewRegistry(log)
		if err != nil {
			return nil, fmt.Errorf("building default synthesizer: %w", err)
		}

		synth, err := NewFallbackSynthesizer(log, SynthesizerConfig{
			Generation: generation.Offline(),
			Templates:  reg,
		})
		if err != nil {
			return nil, fmt.Errorf("building default synthesizer: %w", err)
		}

		opts.Synthesizer = synth
	}

	if opts.Config == (types.DaemonConfig{}) {
		opts.Config = DefaultConfig()
	}

	return &Pipeline{
		log:         log,
		classifier:  opts.Classifier,
		synthesizer: opts.Synthesizer,
		validator:   opts.Validator,
		config:      opts.Config,
	}, nil
}

// Config returns the generation settings recorded by Run.
func (p *Pipeline) Config() types.DaemonConfig {
	return p.config
}

// Run executes the pipeline with the configured generation settings. A
// non-nil forced category skips classification.
func (p *Pipeline) Run(ctx context.Context, input types.RawInput, forced *types.Category) types.PipelineResult {
	return p.RunWithConfig(ctx, input, forced, p.config)
}

// RunWithConfig executes the pipeline with cfg passed to the synthesizer
// and recorded verbatim in the result.
func (p *Pipeline) RunWithConfig(
	ctx context.Context,
	input types.RawInput,
	forced *types.Category,
	cfg types.DaemonConfig,
) (result types.PipelineResult) {
	result = failed(cfg)

	var category types.Category

	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("panic", fmt.Sprint(r)).Error("Pipeline stage panicked")

			result = failed(cfg)
		}

		observability.PipelineRunsTotal.
			WithLabelValues(string(category), strconv.FormatBool(result.Success)).
			Inc()
	}()

	category = p.category(ctx, input, forced)

	log := p.log.WithFields(logrus.Fields{
		"category": category,
		"model":    cfg.Model,
	})

	log.Debug("Pipeline run started")

	sop, err := p.synthesizer.Synthesize(ctx, input, category, cfg)
	if err == nil && sop == nil {
		err = errors.New("synthesizer returned no document")
	}

	if err != nil {
		log.WithError(err).Error("Synthesis failed")

		return result
	}

	validation := p.validator.Validate(ctx, sop)

	result.SOP = sop
	result.Success = validation.Valid

	if validation.Errors != nil {
		result.ValidationErrors = validation.Errors
	}

	log.WithFields(observability.SOPFields(sop)).
		WithField("success", result.Success).
		Info("Pipeline run completed")

	return result
}

func (p *Pipeline) category(ctx context.Context, input types.RawInput, forced *types.Category) types.Category {
	if forced != nil {
		if forced.Valid() {
			return *forced
		}

		p.log.WithField("category", *forced).Warn("Ignoring unknown forced category")
	}

	return p.classifier.Classify(ctx, input)
}

func failed(cfg types.DaemonConfig) types.PipelineResult {
	return types.PipelineResult{
		ConfigUsed:       cfg,
		ValidationErrors: []string{},
	}
}
