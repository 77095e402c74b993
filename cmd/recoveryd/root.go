package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the recoveryd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recoveryd",
		Short: "Account registration, login and password reset service",
		Long: `recoveryd serves the account HTTP API: registration, login, and the
password reset flow. Backends are selected through environment variables.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
