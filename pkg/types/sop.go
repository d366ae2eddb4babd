// Package types holds the SOP document model shared by every pipeline stage.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Category selects the phase vocabulary and prompt strategy for a document.
type Category string

const (
	CategoryIncident   Category = "INCIDENT"
	CategoryOnboarding Category = "ONBOARDING"
)

// Mode returns the generation service mode for the category.
func (c Category) Mode() string {
	if c == CategoryOnboarding {
		return "onboarding"
	}

	return "incident"
}

// Valid reports whether c is a member of the enumeration.
func (c Category) Valid() bool {
	return c == CategoryIncident || c == CategoryOnboarding
}

// ParseCategory accepts either the category name or its mode, in any case.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "incident":
		return CategoryIncident, nil
	case "onboarding":
		return CategoryOnboarding, nil
	default:
		return "", fmt.Errorf("unknown category %q", s)
	}
}

// Source records where a SOP came from.
type Source string

const (
	SourceLLM  Source = "llm"
	SourceStub Source = "stub"
)

// RawInput is the free text a SOP is generated from.
type RawInput struct {
	Content string         `json:"content"`
	Context map[string]any `json:"context,omitempty"`
}

// Step is a single actionable entry of a SOP.
type Step struct {
	ID                string   `json:"id" yaml:"id,omitempty"`
	Order             int      `json:"order" yaml:"order,omitempty"`
	Phase             string   `json:"phase" yaml:"phase"`
	Action            string   `json:"action" yaml:"action"`
	Owner             string   `json:"owner" yaml:"owner"`
	Tools             []string `json:"tools,omitempty" yaml:"tools,omitempty"`
	EstimatedDuration string   `json:"estimatedDuration,omitempty" yaml:"estimated_duration,omitempty"`
	Warning           string   `json:"warning,omitempty" yaml:"warning,omitempty"`
	Artifact          string   `json:"artifact,omitempty" yaml:"artifact,omitempty"`
}

// SOP is a standard operating procedure.
type SOP struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Category    Category  `json:"category"`
	Summary     string    `json:"summary"`
	Triggers    []string  `json:"triggers"`
	Guardrails  []string  `json:"guardrails"`
	Steps       []Step    `json:"steps"`
	GeneratedAt time.Time `json:"generatedAt"`
	Tags        []string  `json:"tags"`
	Source      Source    `json:"source,omitempty"`
}

// Phases returns the distinct phase labels in first-seen order.
func (s *SOP) Phases() []string {
	seen := make(map[string]struct{}, len(s.Steps))
	phases := make([]string, 0, 4)

	for _, step := range s.Steps {
		if _, ok := seen[step.Phase]; ok {
			continue
		}

		seen[step.Phase] = struct{}{}
		phases = append(phases, step.Phase)
	}

	return phases
}

// DaemonConfig carries generation tuning parameters. It is passed through
// to the generation service unmodified.
type DaemonConfig struct {
	Temperature float64 `json:"temperature" yaml:"temperature"`
	Model       string  `json:"model" yaml:"model"`
	MaxTokens   *int    `json:"maxTokens,omitempty" yaml:"max_tokens,omitempty"`
}

// PipelineResult is what one pipeline invocation produces.
type PipelineResult struct {
	SOP              *SOP         `json:"sop"`
	ConfigUsed       DaemonConfig `json:"configUsed"`
	ValidationErrors []string     `json:"validationErrors"`
	Success          bool         `json:"success"`
}
