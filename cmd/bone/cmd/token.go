package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/auth"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/defaults"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
	tokenJSON    bool
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API bearer token",
	Long: `Issue a bearer token for the HTTP API, signed with auth.tokens.secret_key
from the config file.

Examples:
  bone token --subject ci-pipeline
  bone token --subject alice --ttl 1h`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "token subject, used for per-client rate limits")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", defaults.TokenTTL, "token lifetime (0 for no expiry)")
	tokenCmd.Flags().BoolVar(&tokenJSON, "json", false, "print the token as JSON")
	_ = tokenCmd.MarkFlagRequired("subject")
}

type tokenOutput struct {
	Token     string     `json:"token"`
	Subject   string     `json:"subject"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func runToken(cmd *cobra.Command, _ []string) error {
	suppressLogs()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	authenticator, err := auth.New(log, cfg.Auth)
	if err != nil {
		return err
	}

	token, err := authenticator.Issue(tokenSubject, tokenTTL)
	if err != nil {
		return err
	}

	if !tokenJSON {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)

		return err
	}

	out := tokenOutput{Token: token, Subject: tokenSubject}

	if tokenTTL > 0 {
		expires := time.Now().Add(tokenTTL).UTC()
		out.ExpiresAt = &expires
	}

	return outputJSON(out)
}
