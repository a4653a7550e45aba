package app

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/shelf/cmd/shelf/cmd/browse"
	"github.com/agentstation/shelf/cmd/shelf/cmd/fetch"
	"github.com/agentstation/shelf/cmd/shelf/cmd/override"
	"github.com/agentstation/shelf/cmd/shelf/cmd/serve"
)

func (a *App) registerCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(browse.NewCommand(a))
	rootCmd.AddCommand(fetch.NewCommand(a))
	rootCmd.AddCommand(serve.NewCommand(a))

	rootCmd.AddCommand(override.NewCommand(a))

	rootCmd.AddCommand(a.CreateVersionCommand())
}

// CreateVersionCommand creates the version command.
func (a *App) CreateVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("shelf %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
			}
		},
	}
}
