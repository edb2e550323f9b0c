// Package commands implements the notebot CLI commands using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "notebot",
		Short: "notebot - Discord daily notes and news bot",
		Long: `notebot collects the messages of a Discord channel into one Markdown
note per day, posts scheduled news summaries, and answers slash commands.

Examples:
  notebot serve
  notebot serve --config ./config.yaml
  notebot export 2025-07-25 -o 2025-07-25.md
  notebot list
  notebot token set`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newExportCmd(),
		newListCmd(),
		newSetupCmd(),
		newTokenCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logs")

	return rootCmd
}
