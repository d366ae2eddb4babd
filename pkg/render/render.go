// Package render turns SOPs into human-readable markdown and HTML.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

// frontmatter is the YAML header of a rendered SOP.
type frontmatter struct {
	ID          string   `yaml:"id"`
	Category    string   `yaml:"category"`
	Source      string   `yaml:"source,omitempty"`
	GeneratedAt string   `yaml:"generated_at,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
}

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Markdown renders sop as a runbook-style markdown document with a YAML
// frontmatter header. Steps are grouped under their phase in order.
func Markdown(sop *types.SOP) ([]byte, error) {
	if sop == nil {
		return nil, fmt.Errorf("nil SOP")
	}

	fm := frontmatter{
		ID:       sop.ID,
		Category: string(sop.Category),
		Source:   string(sop.Source),
		Tags:     sop.Tags,
	}

	if !sop.GeneratedAt.IsZero() {
		fm.GeneratedAt = sop.GeneratedAt.UTC().Format(time.RFC3339)
	}

	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("marshaling frontmatter: %w", err)
	}

	var buf bytes.Buffer

	buf.WriteString("---\n")
	buf.Write(header)
	buf.WriteString("---\n\n")
	writeBody(&buf, sop)

	return buf.Bytes(), nil
}

// HTML renders the markdown body of sop, without frontmatter, to an HTML
// fragment. Raw HTML in the document is not passed through.
func HTML(sop *types.SOP) ([]byte, error) {
	if sop == nil {
		return nil, fmt.Errorf("nil SOP")
	}

	var body bytes.Buffer
	writeBody(&body, sop)

	var out bytes.Buffer

	out.WriteString("<article class=\"sop\">\n")

	if err := md.Convert(body.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}

	out.WriteString("</article>\n")

	return out.Bytes(), nil
}

func writeBody(buf *bytes.Buffer, sop *types.SOP) {
	fmt.Fprintf(buf, "# %s\n\n", inline(sop.Title))

	if sop.Summary != "" {
		fmt.Fprintf(buf, "%s\n\n", inline(sop.Summary))
	}

	writeList(buf, "Triggers", sop.Triggers)
	writeList(buf, "Guardrails", sop.Guardrails)

	for _, phase := range sop.Phases() {
		fmt.Fprintf(buf, "## %s\n\n", inline(phase))

		for _, step := range sop.Steps {
			if step.Phase != phase {
				continue
			}

			writeStep(buf, step)
		}

		buf.WriteString("\n")
	}
}

func writeList(buf *bytes.Buffer, heading string, items []string) {
	if len(items) == 0 {
		return
	}

	fmt.Fprintf(buf, "## %s\n\n", heading)

	for _, item := range items {
		fmt.Fprintf(buf, "- %s\n", inline(item))
	}

	buf.WriteString("\n")
}

func writeStep(buf *bytes.Buffer, step types.Step) {
	fmt.Fprintf(buf, "%d. **%s**\n", step.Order, inline(step.Action))

	if step.Owner != "" {
		fmt.Fprintf(buf, "   - Owner: %s\n", inline(step.Owner))
	}

	if len(step.Tools) > 0 {
		fmt.Fprintf(buf, "   - Tools: %s\n", inline(strings.Join(step.Tools, ", ")))
	}

	if step.EstimatedDuration != "" {
		fmt.Fprintf(buf, "   - Duration: %s\n", inline(step.EstimatedDuration))
	}

	if step.Artifact != "" {
		fmt.Fprintf(buf, "   - Artifact: %s\n", inline(step.Artifact))
	}

	if step.Warning != "" {
		fmt.Fprintf(buf, "   - **Warning:** %s\n", inline(step.Warning))
	}
}

// inline flattens s onto a single line so generated text cannot open new
// blocks in the document.
func inline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
