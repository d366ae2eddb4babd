package generation

import (
	"fmt"
	"strings"
)

// Prompt is a system instruction plus the user's raw text.
type Prompt struct {
	System string
	User   string
}

const incidentGuidance = `Focus on INCIDENT RESPONSE, containing chaos before it spreads.
Structure steps into the phases "Immediate", "Mitigation" and "Resolution", in that order.
List "triggers" (conditions that summon this procedure) and "guardrails" (actions that are forbidden).
Typical owners are "On-Call Exorcist", "Incident Commander" and "Tech Necromancer".`

const onboardingGuidance = `Focus on ONBOARDING, the rites of initiation for a new team member.
Structure steps into the phases "First 30 days", "Days 31–60" and "Days 61–90", in that order.
Name the "artifact" (document, hardware or account) a step produces where one exists.
Typical owners are "New Acolyte", "Spirit Guide" and "IT Warlock".`

const responseSchema = `{
  "title": "string",
  "summary": "string",
  "tags": ["string"],
  "triggers": ["string"],
  "guardrails": ["string"],
  "steps": [
    {
      "phase": "string",
      "action": "string",
      "owner": "string",
      "tools": ["string"],
      "estimatedDuration": "string",
      "warning": "string (optional)",
      "artifact": "string (optional)"
    }
  ]
}`

// BuildPrompt returns the prompt for mode ("incident" or "onboarding").
// Unknown modes get the incident guidance.
func BuildPrompt(mode, rawText string) Prompt {
	guidance := incidentGuidance
	category := "INCIDENT"

	if strings.EqualFold(mode, "onboarding") {
		guidance = onboardingGuidance
		category = "ONBOARDING"
	}

	system := fmt.Sprintf(`You are the Digital Daemon of the Bone Framework, a spectral entity that weaves chaos into order.
Convert the raw input into a structured Standard Operating Procedure.

Category: %s
%s

Use clear, professional language. A light Halloween flavour in phrasing is welcome.

Return ONLY valid JSON matching this schema, with no surrounding prose:
%s`, category, guidance, responseSchema)

	return Prompt{System: system, User: rawText}
}
