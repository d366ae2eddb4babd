package resource

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/observability"
	"github.com/Mdia92/bone-framework-kiroween-edition/templates"
)

type staticTools []mcp.Tool

func (s staticTools) Tools() []mcp.Tool { return s }

func newTemplateRegistry(t *testing.T) *templates.Registry {
	t.Helper()

	tmpl, err := templates.NewRegistry(observability.DiscardLogger())
	require.NoError(t, err)

	return tmpl
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(observability.DiscardLogger())

	reg.RegisterStatic(StaticResource{
		Resource: mcp.NewResource("b://two", "two", mcp.WithMIMEType("text/plain")),
		Handler:  func(context.Context, string) (string, error) { return "2", nil },
	})
	reg.RegisterStatic(StaticResource{
		Resource: mcp.NewResource("a://one", "one", mcp.WithMIMEType("text/plain")),
		Handler:  func(context.Context, string) (string, error) { return "", errors.New("boom") },
	})

	list := reg.ListStatic()
	require.Len(t, list, 2)
	assert.Equal(t, "a://one", list[0].URI)
	assert.Equal(t, "b://two", list[1].URI)

	text, mimeType, err := reg.Read(t.Context(), "b://two")
	require.NoError(t, err)
	assert.Equal(t, "2", text)
	assert.Equal(t, "text/plain", mimeType)

	_, _, err = reg.Read(t.Context(), "a://one")
	assert.EqualError(t, err, "boom")

	_, _, err = reg.Read(t.Context(), "c://missing")
	assert.Error(t, err)

	assert.NotPanics(t, func() {
		reg.AddTo(server.NewMCPServer("test", "0.0.0", server.WithResourceCapabilities(false, false)))
	})
}

func TestTemplateResources(t *testing.T) {
	tmpl := newTemplateRegistry(t)
	reg := NewRegistry(observability.DiscardLogger())

	RegisterTemplateResources(observability.DiscardLogger(), reg, tmpl)

	require.Len(t, reg.ListStatic(), tmpl.Count()+1)

	t.Run("list", func(t *testing.T) {
		text, mimeType, err := reg.Read(t.Context(), TemplatesListURI)
		require.NoError(t, err)
		assert.Equal(t, "application/json", mimeType)

		var summaries []templateSummary
		require.NoError(t, json.Unmarshal([]byte(text), &summaries))
		require.Len(t, summaries, tmpl.Count())

		for _, s := range summaries {
			assert.Equal(t, "templates://"+s.Name, s.URI)
			assert.Positive(t, s.Steps)
		}
	})

	t.Run("preview", func(t *testing.T) {
		text, mimeType, err := reg.Read(t.Context(), "templates://incident-stub")
		require.NoError(t, err)
		assert.Equal(t, "text/markdown", mimeType)
		assert.Contains(t, text, "# [STUB] Database Latency Spike")
		assert.Contains(t, text, "{input excerpt}")
		assert.Contains(t, text, "## Triggers")
	})
}

func TestGettingStarted(t *testing.T) {
	reg := NewRegistry(observability.DiscardLogger())
	RegisterTemplateResources(observability.DiscardLogger(), reg, newTemplateRegistry(t))

	tools := staticTools{
		mcp.NewTool("generate_onboarding_plan", mcp.WithDescription("Create an onboarding plan.\nMore detail.")),
		mcp.NewTool("generate_incident_sop", mcp.WithDescription("Create an incident SOP.")),
	}
	RegisterGettingStartedResources(observability.DiscardLogger(), reg, tools)

	text, mimeType, err := reg.Read(t.Context(), GettingStartedURI)
	require.NoError(t, err)
	assert.Equal(t, "text/markdown", mimeType)

	assert.Contains(t, text, "# Bone Getting Started Guide")
	assert.Contains(t, text, "- **generate_onboarding_plan**: Create an onboarding plan.\n")
	assert.NotContains(t, text, "More detail.")
	assert.Less(t, strings.Index(text, "generate_incident_sop"), strings.Index(text, "generate_onboarding_plan"))
	assert.Contains(t, text, "`"+TemplatesListURI+"`")
	assert.NotContains(t, text, "`"+GettingStartedURI+"`")
	assert.Contains(t, text, "## Tips")
}
