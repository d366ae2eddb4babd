package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
)

const (
	GenerateIncidentSOPToolName    = "generate_incident_sop"
	GenerateOnboardingPlanToolName = "generate_onboarding_plan"
)

const generateIncidentSOPDescription = `Generate an incident response SOP from a free-text description of what is going wrong.

The SOP has triggers, guardrails and steps grouped into Immediate, Mitigation and Resolution phases,
plus a structural health report (SOLID or FRACTURED with diagnostics).

When no generation provider is reachable a template SOP is returned instead.`

const generateOnboardingPlanDescription = `Generate a 30/60/90 day onboarding plan for a new hire.

Steps are grouped into "First 30 days", "Days 31–60" and "Days 61–90" and capped at a
readable length. When no generation provider is reachable a template plan is returned instead.`

// NewGenerateIncidentSOPTool creates the generate_incident_sop tool.
func NewGenerateIncidentSOPTool(log logrus.FieldLogger, gen Generator) Definition {
	handlerLog := log.WithField("tool", GenerateIncidentSOPToolName)

	return Definition{
		Tool: mcp.Tool{
			Name:        GenerateIncidentSOPToolName,
			Description: generateIncidentSOPDescription,
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"raw_context": map[string]any{
						"type":        "string",
						"description": "Incident description: symptoms, alerts, affected systems",
					},
					"format": formatProperty,
				},
				Required: []string{"raw_context"},
			},
		},
		Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			raw, err := request.RequireString("raw_context")
			if err != nil {
				return CallToolError(fmt.Errorf("invalid arguments: %w", err)), nil
			}

			if strings.TrimSpace(raw) == "" {
				return CallToolError(fmt.Errorf("raw_context is required")), nil
			}

			resp := gen.GenerateIncidentSOP(ctx, raw)

			handlerLog.WithFields(logrus.Fields{
				"sop_id":      resp.SOP.ID,
				"bone_status": resp.BoneHealth.Status,
			}).Debug("Incident SOP generated")

			return formatResult(request.GetString("format", ""), resp.SOP, resp), nil
		},
	}
}

// NewGenerateOnboardingPlanTool creates the generate_onboarding_plan tool.
func NewGenerateOnboardingPlanTool(log logrus.FieldLogger, gen Generator) Definition {
	handlerLog := log.WithField("tool", GenerateOnboardingPlanToolName)

	return Definition{
		Tool: mcp.Tool{
			Name:        GenerateOnboardingPlanToolName,
			Description: generateOnboardingPlanDescription,
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"role": map[string]any{
						"type":        "string",
						"description": "Job title of the new hire",
					},
					"tools": map[string]any{
						"type":        "string",
						"description": "Comma-separated tools the role uses",
					},
					"goals": map[string]any{
						"type":        "string",
						"description": "What the new hire should achieve",
					},
					"format": formatProperty,
				},
				Required: []string{"role"},
			},
		},
		Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			role, err := request.RequireString("role")
			if err != nil {
				return CallToolError(fmt.Errorf("invalid arguments: %w", err)), nil
			}

			if strings.TrimSpace(role) == "" {
				return CallToolError(fmt.Errorf("role is required")), nil
			}

			sop := gen.GenerateOnboardingPlan(ctx, role, request.GetString("tools", ""), request.GetString("goals", ""))

			handlerLog.WithFields(logrus.Fields{
				"sop_id": sop.ID,
				"steps":  len(sop.Steps),
			}).Debug("Onboarding plan generated")

			return formatResult(request.GetString("format", ""), sop, sop), nil
		},
	}
}
