package generation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

// TitlePrefix marks titles produced by a generation service.
const TitlePrefix = "[LLM] "

// Candidate is the loosely typed document a model returns. Pointer fields
// distinguish absent values from empty ones.
type Candidate struct {
	Title      *string         `json:"title"`
	Summary    *string         `json:"summary"`
	Tags       []string        `json:"tags"`
	Triggers   []string        `json:"triggers"`
	Guardrails []string        `json:"guardrails"`
	Steps      []CandidateStep `json:"steps"`
}

// CandidateStep is one step of a Candidate. Role is an older spelling of Owner.
type CandidateStep struct {
	Phase             *string  `json:"phase"`
	Action            *string  `json:"action"`
	Owner             *string  `json:"owner"`
	Role              *string  `json:"role"`
	Tools             []string `json:"tools"`
	EstimatedDuration *string  `json:"estimatedDuration"`
	Warning           *string  `json:"warning"`
	Artifact          *string  `json:"artifact"`
}

// ParseCandidate decodes a model reply into a Candidate. Markdown code
// fences and prose around the JSON object are tolerated.
func ParseCandidate(data []byte) (*Candidate, error) {
	payload, err := extractObject(data)
	if err != nil {
		return nil, err
	}

	var c Candidate
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// extractObject returns the span from the first '{' to the last '}'.
func extractObject(data []byte) ([]byte, error) {
	start := bytes.IndexByte(data, '{')
	end := bytes.LastIndexByte(data, '}')

	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrMalformedResponse)
	}

	return data[start : end+1], nil
}

func (c *Candidate) validate() error {
	if blank(c.Title) {
		return fmt.Errorf("%w: missing title", ErrMalformedResponse)
	}

	if len(c.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrMalformedResponse)
	}

	for i, s := range c.Steps {
		switch {
		case blank(s.Phase):
			return fmt.Errorf("%w: step %d missing phase", ErrMalformedResponse, i)
		case blank(s.Action):
			return fmt.Errorf("%w: step %d missing action", ErrMalformedResponse, i)
		case blank(s.Owner) && blank(s.Role):
			return fmt.Errorf("%w: step %d missing owner", ErrMalformedResponse, i)
		}
	}

	return nil
}

// ToSOP maps the candidate into a SOP. Steps are numbered by position.
func (c *Candidate) ToSOP(category types.Category, id string, generatedAt time.Time) *types.SOP {
	sop := &types.SOP{
		ID:          id,
		Title:       TitlePrefix + strings.TrimSpace(*c.Title),
		Category:    category,
		Summary:     deref(c.Summary),
		Triggers:    nonNil(c.Triggers),
		Guardrails:  nonNil(c.Guardrails),
		Tags:        nonNil(c.Tags),
		Steps:       make([]types.Step, 0, len(c.Steps)),
		GeneratedAt: generatedAt,
		Source:      types.SourceLLM,
	}

	for i, s := range c.Steps {
		owner := deref(s.Owner)
		if strings.TrimSpace(owner) == "" {
			owner = deref(s.Role)
		}

		sop.Steps = append(sop.Steps, types.Step{
			ID:                fmt.Sprintf("step-%d", i),
			Order:             i + 1,
			Phase:             deref(s.Phase),
			Action:            deref(s.Action),
			Owner:             owner,
			Tools:             nonNil(s.Tools),
			EstimatedDuration: deref(s.EstimatedDuration),
			Warning:           deref(s.Warning),
			Artifact:          deref(s.Artifact),
		})
	}

	return sop
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}

	return in
}
