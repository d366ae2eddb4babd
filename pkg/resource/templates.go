package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/render"
	"github.com/Mdia92/bone-framework-kiroween-edition/templates"
)

// TemplatesListURI lists every offline template.
const TemplatesListURI = "templates://list"

// Placeholder values shown where a template would interpolate user input.
var previewVars = templates.Vars{
	Role:    "{role}",
	Tools:   "{tools}",
	Excerpt: "{input excerpt}",
}

type templateSummary struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Category string `json:"category"`
	Title    string `json:"title"`
	Steps    int    `json:"steps"`
	URI      string `json:"uri"`
}

// TemplateURI returns the resource URI of a template.
func TemplateURI(t *templates.Template) string {
	return "templates://" + t.Name
}

// RegisterTemplateResources exposes the offline templates: a JSON index and
// a markdown preview of each template.
func RegisterTemplateResources(log logrus.FieldLogger, reg *Registry, tmpl *templates.Registry) {
	log = log.WithField("resource", "templates")

	all := tmpl.All()

	reg.RegisterStatic(StaticResource{
		Resource: mcp.NewResource(
			TemplatesListURI,
			"Offline SOP templates",
			mcp.WithResourceDescription("Documents returned when no generation provider is available or generation fails"),
			mcp.WithMIMEType("application/json"),
		),
		Handler: func(_ context.Context, _ string) (string, error) {
			summaries := make([]templateSummary, 0, len(all))

			for _, t := range all {
				summaries = append(summaries, templateSummary{
					Name:     t.Name,
					Kind:     string(t.Kind),
					Category: string(t.Category),
					Title:    t.Title,
					Steps:    len(t.Steps),
					URI:      TemplateURI(t),
				})
			}

			data, err := json.MarshalIndent(summaries, "", "  ")
			if err != nil {
				return "", fmt.Errorf("marshaling template list: %w", err)
			}

			return string(data), nil
		},
	})

	for _, t := range all {
		reg.RegisterStatic(StaticResource{
			Resource: mcp.NewResource(
				TemplateURI(t),
				t.Name,
				mcp.WithResourceDescription(fmt.Sprintf("Offline %s template for %s documents", t.Kind, t.Category)),
				mcp.WithMIMEType("text/markdown"),
			),
			Handler: func(_ context.Context, _ string) (string, error) {
				sop := t.Render(previewVars, t.Name, time.Time{})

				data, err := render.Markdown(sop)
				if err != nil {
					return "", err
				}

				return string(data), nil
			},
		})
	}

	log.WithField("count", len(all)).Debug("Registered template resources")
}
