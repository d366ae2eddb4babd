// Package generation adapts external text-generation services into SOP
// candidates.
//
// A Service turns a Request into a SOP or an error. Every failure mode of the
// remote side (transport, status, credentials, response shape) is reported as
// an error wrapping one of the sentinels below so callers can fall back.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/ident"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/observability"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

var (
	// ErrNotConfigured is returned when no generation provider is available.
	ErrNotConfigured = errors.New("generation service not configured")
	// ErrMissingCredentials is returned when a provider has no usable key.
	ErrMissingCredentials = errors.New("generation credentials missing")
	// ErrMalformedResponse is returned when a reply is not a valid SOP candidate.
	ErrMalformedResponse = errors.New("malformed generation response")
	// ErrUpstream is returned for non-success responses from a provider.
	ErrUpstream = errors.New("generation upstream error")
)

// Request is a single generation request.
type Request struct {
	RawText string
	// Mode is "incident" or "onboarding".
	Mode   string
	Config types.DaemonConfig
}

// Service generates SOPs from raw text.
type Service interface {
	Name() string
	Generate(ctx context.Context, req Request) (*types.SOP, error)
}

// LLMClient sends a prompt to a model and returns its text reply.
type LLMClient interface {
	Name() string
	Complete(ctx context.Context, prompt Prompt, cfg types.DaemonConfig) (string, error)
}

type llmService struct {
	log    logrus.FieldLogger
	client LLMClient
	ids    ident.Generator
	now    func() time.Time
}

var _ Service = (*llmService)(nil)

// NewService wraps an LLM client into a Service. A nil ids falls back to
// random UUIDs.
func NewService(log logrus.FieldLogger, client LLMClient, ids ident.Generator) Service {
	if ids == nil {
		ids = ident.UUID{}
	}

	return &llmService{
		log:    log.WithField("component", "generation"),
		client: client,
		ids:    ids,
		now:    time.Now,
	}
}

func (s *llmService) Name() string {
	return s.client.Name()
}

func (s *llmService) Generate(ctx context.Context, req Request) (*types.SOP, error) {
	category, err := types.ParseCategory(req.Mode)
	if err != nil {
		return nil, fmt.Errorf("generation mode: %w", err)
	}

	log := s.log.WithFields(logrus.Fields{
		"provider": s.client.Name(),
		"mode":     req.Mode,
		"model":    req.Config.Model,
	})

	start := time.Now()

	text, err := s.client.Complete(ctx, BuildPrompt(req.Mode, req.RawText), req.Config)
	if err != nil {
		s.observe(start, "error")
		log.WithError(err).Warn("Generation request failed")

		return nil, fmt.Errorf("%s: %w", s.client.Name(), err)
	}

	candidate, err := ParseCandidate([]byte(text))
	if err != nil {
		s.observe(start, "malformed")
		log.WithError(err).Warn("Generation response rejected")

		return nil, fmt.Errorf("%s: %w", s.client.Name(), err)
	}

	s.observe(start, "ok")

	sop := candidate.ToSOP(category, s.ids.NewID(), s.now().UTC())
	log.WithFields(observability.SOPFields(sop)).Debug("Generated SOP candidate")

	return sop, nil
}

func (s *llmService) observe(start time.Time, status string) {
	observability.GenerationDuration.
		WithLabelValues(s.client.Name(), status).
		Observe(time.Since(start).Seconds())
}

// offline is the Service used when no provider is configured.
type offline struct{}

var _ Service = offline{}

// Offline returns a Service that always fails with ErrNotConfigured.
func Offline() Service {
	return offline{}
}

func (offline) Name() string {
	return "none"
}

func (offline) Generate(context.Context, Request) (*types.SOP, error) {
	return nil, ErrNotConfigured
}
