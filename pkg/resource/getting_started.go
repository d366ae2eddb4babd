package resource

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
)

// GettingStartedURI is the entry point resource for assistants.
const GettingStartedURI = "bone://getting-started"

// ToolLister provides access to registered tools.
type ToolLister interface {
	Tools() []mcp.Tool
}

const guideIntro = `# Bone Getting Started Guide

bone writes standard operating procedures in two flavours:

- **Incident SOPs** with Immediate, Mitigation and Resolution phases, checked for
  structural health (at least 2 guardrails, 3 steps and 1 trigger).
- **Onboarding plans** with First 30 days, Days 31–60 and Days 61–90 phases, capped
  at a readable number of steps.

## Workflow

1. Describe the incident or the new hire as concretely as you can.
2. Call the matching tool. Ask for ` + "`format: markdown`" + ` when showing the result to a person.
3. Titles starting with ` + "`[STUB]`" + ` come from an offline template, not from the model.
   Tell the user when that happens.
`

const guideTips = `
## Tips

- Include symptoms, affected systems and alert names in incident descriptions.
- For onboarding, list tools as a comma-separated string.
- An incident SOP reported as FRACTURED is still usable; list its diagnostics for the user.
`

// RegisterGettingStartedResources registers the getting-started guide. The
// tool and resource lists are built on every read.
func RegisterGettingStartedResources(log logrus.FieldLogger, reg *Registry, tools ToolLister) {
	reg.RegisterStatic(StaticResource{
		Resource: mcp.NewResource(
			GettingStartedURI,
			"Bone Getting Started Guide",
			mcp.WithResourceDescription("How to use the SOP generation tools - read this first"),
			mcp.WithMIMEType("text/markdown"),
		),
		Handler: func(_ context.Context, _ string) (string, error) {
			return buildGuide(tools.Tools(), reg.ListStatic()), nil
		},
	})

	log.WithField("resource", "getting_started").Debug("Registered getting-started resource")
}

func buildGuide(tools []mcp.Tool, resources []mcp.Resource) string {
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })

	var sb strings.Builder

	sb.WriteString(guideIntro)
	sb.WriteString("\n## Available Tools\n\n")

	for _, t := range tools {
		fmt.Fprintf(&sb, "- **%s**: %s\n", t.Name, summaryLine(t.Description))
	}

	sb.WriteString("\n## Available Resources\n\n")

	for _, res := range resources {
		if res.URI == GettingStartedURI {
			continue
		}

		fmt.Fprintf(&sb, "- `%s` - %s\n", res.URI, res.Name)
	}

	sb.WriteString(guideTips)

	return sb.String()
}

// summaryLine returns the first non-empty line of a description.
func summaryLine(desc string) string {
	for line := range strings.SplitSeq(desc, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}

	return ""
}
