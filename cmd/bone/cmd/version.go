package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mdia92/bone-framework-kiroween-edition/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
