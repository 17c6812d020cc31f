package main

import (
	"os"

	"github.com/templui/marketplace/cmd/do/cmd"

	"github.com/spf13/cobra"
)

// Run with: go run ./cmd/do <command>
func main() {
	rootCmd := &cobra.Command{
		Use:          "do",
		Short:        "Development tools for the marketplace API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cmd.DevCmd())
	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.TokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
