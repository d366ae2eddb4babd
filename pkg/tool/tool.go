// Package tool defines the MCP tools exposed by bone.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/render"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/service"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

// Handler handles a tool call.
type Handler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Definition pairs a tool with its handler.
type Definition struct {
	Tool    mcp.Tool
	Handler Handler
}

// Generator is the part of service.Service the tools call.
type Generator interface {
	GenerateIncidentSOP(ctx context.Context, rawContext string) service.IncidentResponse
	GenerateOnboardingPlan(ctx context.Context, role, tools, goals string) *types.SOP
}

// Registry holds tool definitions by name.
type Registry struct {
	log   logrus.FieldLogger
	tools map[string]Definition
}

// NewRegistry creates an empty Registry.
func NewRegistry(log logrus.FieldLogger) *Registry {
	return &Registry{
		log:   log.WithField("component", "tool-registry"),
		tools: make(map[string]Definition, 4),
	}
}

// Register adds def, replacing any tool with the same name.
func (r *Registry) Register(def Definition) {
	r.tools[def.Tool.Name] = def
	r.log.WithField("tool", def.Tool.Name).Debug("Registered tool")
}

// Get returns the tool named name.
func (r *Registry) Get(name string) (Definition, bool) {
	def, ok := r.tools[name]

	return def, ok
}

// List returns all tools sorted by name.
func (r *Registry) List() []Definition {
	defs := make([]Definition, 0, len(r.tools))
	for _, def := range r.tools {
		defs = append(defs, def)
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].Tool.Name < defs[j].Tool.Name })

	return defs
}

// Tools returns the MCP descriptions of all tools sorted by name.
func (r *Registry) Tools() []mcp.Tool {
	defs := r.List()
	out := make([]mcp.Tool, 0, len(defs))

	for _, def := range defs {
		out = append(out, def.Tool)
	}

	return out
}

// AddTo registers every tool on an MCP server.
func (r *Registry) AddTo(s *server.MCPServer) {
	for _, def := range r.List() {
		s.AddTool(def.Tool, server.ToolHandlerFunc(def.Handler))
	}
}

// Register adds the generation tools for gen to reg.
func Register(log logrus.FieldLogger, reg *Registry, gen Generator) {
	reg.Register(NewGenerateIncidentSOPTool(log, gen))
	reg.Register(NewGenerateOnboardingPlanTool(log, gen))
}

// CallToolSuccess wraps text in a successful result.
func CallToolSuccess(text string) *mcp.CallToolResult {
	return mcp.NewToolResultText(text)
}

// CallToolError wraps err in an error result.
func CallToolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}

var formatProperty = map[string]any{
	"type":        "string",
	"description": "Output format: json (default) or markdown",
	"enum":        []string{"json", "markdown"},
}

// formatResult renders v as indented JSON, or sop as markdown.
func formatResult(format string, sop *types.SOP, v any) *mcp.CallToolResult {
	switch format {
	case "", "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return CallToolError(fmt.Errorf("marshaling response: %w", err))
		}

		return CallToolSuccess(string(data))
	case "markdown":
		data, err := render.Markdown(sop)
		if err != nil {
			return CallToolError(fmt.Errorf("rendering markdown: %w", err))
		}

		return CallToolSuccess(string(data))
	default:
		return CallToolError(fmt.Errorf("unknown format %q", format))
	}
}
