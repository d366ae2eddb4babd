// Package service holds the caller-side operations behind the HTTP API,
// the CLI and the MCP tools. Unlike the pipeline, these always hand back a
// presentable document: when the pipeline reports failure they substitute
// a fallback, and when anything panics they substitute an emergency one.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/observability"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/storage"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
	"github.com/Mdia92/bone-framework-kiroween-edition/templates"
)

// Runner is the pipeline entry point.
type Runner interface {
	Run(ctx context.Context, input types.RawInput, forced *types.Category) types.PipelineResult
}

// Config configures a Service.
type Config struct {
	Pipeline  Runner
	Templates *templates.Registry
	// Daemon is the configuration the pipeline runs with, reported on
	// results the pipeline never produced.
	Daemon types.DaemonConfig
	// Archive, when set, receives every document handed out.
	Archive storage.Archive
	Now     func() time.Time
}

// Service generates incident SOPs and onboarding plans.
type Service struct {
	log       logrus.FieldLogger
	pipeline  Runner
	templates *templates.Registry
	archive   storage.Archive
	daemon    types.DaemonConfig
	now       func() time.Time
}

// New creates a Service.
func New(log logrus.FieldLogger, cfg Config) (*Service, error) {
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("service requires a pipeline")
	}

	if cfg.Templates == nil {
		return nil, fmt.Errorf("service requires a template registry")
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		log:       log.WithField("component", "service"),
		pipeline:  cfg.Pipeline,
		templates: cfg.Templates,
		archive:   cfg.Archive,
		daemon:    cfg.Daemon,
		now:       cfg.Now,
	}, nil
}

// Run exposes the raw pipeline result, recovering from panics.
func (s *Service) Run(ctx context.Context, input types.RawInput, forced *types.Category) (result types.PipelineResult) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", fmt.Sprint(r)).Error("Pipeline panicked")

			result = types.PipelineResult{
				ConfigUsed:       s.daemon,
				ValidationErrors: []string{fmt.Sprintf("internal error: %v", r)},
			}
		}
	}()

	result = s.pipeline.Run(ctx, input, forced)
	if result.Success {
		s.store(ctx, result.SOP)
	}

	return result
}

// substitute renders a template document with a time-stamped id such as
// fallback-1730332800000.
func (s *Service) substitute(kind templates.Kind, category types.Category, vars templates.Vars) *types.SOP {
	now := s.now().UTC()
	id := fmt.Sprintf("%s-%d", kind, now.UnixMilli())

	return s.templates.Get(kind, category).Render(vars, id, now)
}

// store archives sop. Failures are logged and otherwise ignored.
func (s *Service) store(ctx context.Context, sop *types.SOP) {
	if s.archive == nil || sop == nil {
		return
	}

	key, err := s.archive.Put(ctx, sop)
	if err != nil {
		s.log.WithError(err).WithFields(observability.SOPFields(sop)).Warn("Failed to archive SOP")

		return
	}

	s.log.WithField("key", key).Debug("SOP archived")
}
