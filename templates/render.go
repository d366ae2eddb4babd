package templates

import (
	"fmt"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

// ExcerptLength is the number of characters of input quoted in summaries.
const ExcerptLength = 100

// Vars are the values available to title and summary templates.
type Vars struct {
	Role    string
	Tools   string
	Excerpt string
}

// Excerpt returns the first ExcerptLength characters of s, with "..."
// appended when s was longer.
func Excerpt(s string) string {
	if utf8.RuneCountInString(s) <= ExcerptLength {
		return s
	}

	return string([]rune(s)[:ExcerptLength]) + "..."
}

// Render builds a stub-sourced SOP from the template. Steps are numbered by
// position and every slice is a fresh copy.
func (t *Template) Render(vars Vars, id string, generatedAt time.Time) *types.SOP {
	steps := make([]types.Step, len(t.Steps))
	for i, s := range t.Steps {
		s.ID = fmt.Sprintf("step-%d", i)
		s.Order = i + 1
		s.Tools = clone(s.Tools)
		steps[i] = s
	}

	return &types.SOP{
		ID:          id,
		Title:       execute(t.title, t.Title, vars),
		Category:    t.Category,
		Summary:     execute(t.summary, t.Summary, vars),
		Triggers:    clone(t.Triggers),
		Guardrails:  clone(t.Guardrails),
		Steps:       steps,
		GeneratedAt: generatedAt,
		Tags:        clone(t.Tags),
		Source:      types.SourceStub,
	}
}

func execute(tpl *template.Template, raw string, vars Vars) string {
	var b strings.Builder
	if tpl == nil || tpl.Execute(&b, vars) != nil {
		return raw
	}

	return b.String()
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)

	return out
}
