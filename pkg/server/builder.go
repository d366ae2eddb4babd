package server

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/auth"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/config"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/generation"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/middleware"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/pipeline"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/service"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/storage"
	"github.com/Mdia92/bone-framework-kiroween-edition/templates"
)

// Builder constructs and wires the dependencies of the generation service
// and the HTTP server from configuration.
type Builder struct {
	log     logrus.FieldLogger
	cfg     *config.Config
	offline bool
}

// NewBuilder creates a new server builder.
func NewBuilder(log logrus.FieldLogger, cfg *config.Config) *Builder {
	return &Builder{
		log: log.WithField("component", "builder"),
		cfg: cfg,
	}
}

// WithOffline forces offline templates regardless of the configured provider.
func (b *Builder) WithOffline(offline bool) *Builder {
	b.offline = offline

	return b
}

// BuildService wires templates, generation, pipeline and archive into a
// service.Service.
func (b *Builder) BuildService() (*service.Service, error) {
	reg, err := templates.NewRegistry(b.log)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	gen, err := b.buildGeneration()
	if err != nil {
		return nil, fmt.Errorf("building generation service: %w", err)
	}

	synth, err := pipeline.NewFallbackSynthesizer(b.log, pipeline.SynthesizerConfig{
		Generation: gen,
		Templates:  reg,
		MaxSteps:   b.cfg.Pipeline.MaxSteps,
	})
	if err != nil {
		return nil, fmt.Errorf("building synthesizer: %w", err)
	}

	p, err := pipeline.New(b.log, pipeline.Options{
		Classifier:  pipeline.NewStaticClassifier(b.log, b.cfg.Pipeline.Category()),
		Synthesizer: synth,
		Config:      b.cfg.Daemon.Types(),
	})
	if err != nil {
		return nil, fmt.Errorf("building pipeline: %w", err)
	}

	svcCfg := service.Config{
		Pipeline:  p,
		Templates: reg,
		Daemon:    p.Config(),
	}

	if archive := storage.NewS3Archive(b.log, b.cfg.Storage, nil); archive != nil {
		b.log.WithField("bucket", archive.Bucket()).Info("SOP archive enabled")

		svcCfg.Archive = archive
	}

	b.log.WithFields(logrus.Fields{
		"provider":  gen.Name(),
		"templates": reg.Count(),
		"model":     p.Config().Model,
	}).Info("Generation service built")

	return service.New(b.log, svcCfg)
}

func (b *Builder) buildGeneration() (generation.Service, error) {
	if b.offline {
		b.log.Info("Offline mode, generation provider skipped")

		return generation.Offline(), nil
	}

	return generation.New(b.log, b.cfg.Generation, nil)
}

// Build constructs the HTTP server and everything behind it.
func (b *Builder) Build() (*Server, error) {
	svc, err := b.BuildService()
	if err != nil {
		return nil, err
	}

	deps := Dependencies{
		Generator:      svc,
		MetricsEnabled: b.cfg.Observability.MetricsEnabled,
	}

	if b.cfg.Auth.Enabled {
		authenticator, err := auth.New(b.log, b.cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("building authenticator: %w", err)
		}

		deps.Auth = authenticator
	}

	if b.cfg.RateLimit.Enabled {
		limiter, err := middleware.NewRateLimiter(b.log, b.cfg.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("building rate limiter: %w", err)
		}

		deps.RateLimiter = limiter
	}

	return New(b.log, b.cfg.Server, deps)
}
