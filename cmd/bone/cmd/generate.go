package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/defaults"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/service"
)

var (
	genFormat  string
	genOffline bool
	genTimeout time.Duration

	incidentText string
	incidentFile string

	onboardingRole  string
	onboardingTools string
	onboardingGoals string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a single SOP and print it",
}

var generateIncidentCmd = &cobra.Command{
	Use:   "incident",
	Short: "Generate an incident response SOP",
	Long: `Generate an incident response SOP from a description of the incident.

The description comes from --text, --file, or stdin when neither is given.

Examples:
  bone generate incident --text "Users report 5s page loads, DB CPU at 100%"
  bone generate incident --file incident.txt --format html > sop.html
  kubectl describe pod api-0 | bone generate incident --offline`,
	RunE: runGenerateIncident,
}

var generateOnboardingCmd = &cobra.Command{
	Use:   "onboarding",
	Short: "Generate a 30/60/90 day onboarding plan",
	Long: `Generate an onboarding plan for a new hire.

Examples:
  bone generate onboarding --role "Site Reliability Engineer" --tools "Go, Terraform, Grafana"
  bone generate onboarding --role "Data Engineer" --goals "Own the ingestion pipeline" --format json`,
	RunE: runGenerateOnboarding,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.AddCommand(generateIncidentCmd, generateOnboardingCmd)

	generateCmd.PersistentFlags().StringVar(&genFormat, "format", "", "output format: json, markdown or html (default: markdown on a terminal, json otherwise)")
	generateCmd.PersistentFlags().BoolVar(&genOffline, "offline", false, "skip the generation provider and use built-in templates")
	generateCmd.PersistentFlags().DurationVar(&genTimeout, "timeout", defaults.GenerateTimeout, "overall generation timeout")

	generateIncidentCmd.Flags().StringVar(&incidentText, "text", "", "incident description")
	generateIncidentCmd.Flags().StringVar(&incidentFile, "file", "", "file containing the incident description")

	generateOnboardingCmd.Flags().StringVar(&onboardingRole, "role", "", "job title of the new hire")
	generateOnboardingCmd.Flags().StringVar(&onboardingTools, "tools", "", "tools the role uses")
	generateOnboardingCmd.Flags().StringVar(&onboardingGoals, "goals", "", "what the new hire should achieve")
	_ = generateOnboardingCmd.MarkFlagRequired("role")
}

func runGenerateIncident(cmd *cobra.Command, _ []string) error {
	suppressLogs()

	format, err := resolveFormat(genFormat)
	if err != nil {
		return err
	}

	raw, err := readIncidentText(cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	svc, err := buildService(cfg, genOffline)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), genTimeout)
	defer cancel()

	resp := svc.GenerateIncidentSOP(ctx, raw)

	if format != formatJSON && resp.BoneHealth.Status == service.StatusFractured {
		fmt.Fprintf(os.Stderr, "[bone health] %s: %s\n", resp.BoneHealth.Status, strings.Join(resp.BoneHealth.Diagnostics, " "))
	}

	return writeSOP(cmd.OutOrStdout(), format, resp.SOP, resp)
}

func readIncidentText(stdin io.Reader) (string, error) {
	if incidentText != "" && incidentFile != "" {
		return "", fmt.Errorf("--text and --file are mutually exclusive")
	}

	var raw string

	switch {
	case incidentText != "":
		raw = incidentText
	case incidentFile != "":
		data, err := os.ReadFile(incidentFile)
		if err != nil {
			return "", fmt.Errorf("reading file %s: %w", incidentFile, err)
		}

		raw = string(data)
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}

		raw = string(data)
	}

	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("an incident description is required (--text, --file or stdin)")
	}

	return raw, nil
}

func runGenerateOnboarding(cmd *cobra.Command, _ []string) error {
	suppressLogs()

	format, err := resolveFormat(genFormat)
	if err != nil {
		return err
	}

	if strings.TrimSpace(onboardingRole) == "" {
		return fmt.Errorf("--role is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	svc, err := buildService(cfg, genOffline)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), genTimeout)
	defer cancel()

	sop := svc.GenerateOnboardingPlan(ctx, onboardingRole, onboardingTools, onboardingGoals)

	return writeSOP(cmd.OutOrStdout(), format, sop, sop)
}
