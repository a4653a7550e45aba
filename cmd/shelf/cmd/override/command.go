// Package override provides the override command for managing loan overrides.
package override

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agentstation/shelf/internal/appcontext"
	"github.com/agentstation/shelf/internal/cmd/emoji"
	"github.com/agentstation/shelf/internal/cmd/output"
	"github.com/agentstation/shelf/pkg/errors"
	"github.com/agentstation/shelf/pkg/records"
)

// NewCommand creates the override command and its subcommands.
func NewCommand(app appcontext.Interface) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "override",
		Aliases: []string{"overrides"},
		GroupID: "management",
		Short:   "Manage loan overrides",
		Long: `Overrides replace the loan flag a source reports for a record.
Keys are "local:<id>" for the local backend and "api:<id>" for the
external catalog.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newSetCommand(app))
	cmd.AddCommand(newClearCommand(app))
	cmd.AddCommand(newListCommand(app))
	return cmd
}

func newSetCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "set KEY true|false",
		Short:   "Set the loan flag for a record",
		Example: `  shelf override set local:3 true`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := records.ParseKey(args[0])
			if err != nil {
				return err
			}
			onLoan, err := strconv.ParseBool(args[1])
			if err != nil {
				return errors.NewValidationError("on_loan", args[1], "must be true or false")
			}

			client, err := app.Client()
			if err != nil {
				return err
			}
			if err := client.Overrides().Set(cmd.Context(), key, onLoan); err != nil {
				return err
			}

			app.Logger().Info().Str("key", key.String()).Bool("on_loan", onLoan).Msg("Override set")
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s on_loan=%t\n", emoji.Success, key, onLoan)
			return nil
		},
	}
}

func newClearCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "clear KEY",
		Aliases: []string{"rm"},
		Short:   "Remove the override for a record",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := records.ParseKey(args[0])
			if err != nil {
				return err
			}

			client, err := app.Client()
			if err != nil {
				return err
			}
			if err := client.Overrides().Clear(cmd.Context(), key); err != nil {
				return err
			}

			app.Logger().Info().Str("key", key.String()).Msg("Override cleared")
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s cleared\n", emoji.Success, key)
			return nil
		},
	}
}

func newListCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List overrides",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			entries := client.Overrides().List(cmd.Context())
			format := output.DetectFormat(app.OutputFormat())
			return output.FormatOverrides(cmd.OutOrStdout(), entries, format)
		},
	}
}
