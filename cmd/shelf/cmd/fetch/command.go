// Package fetch provides the fetch command, which lists records from a
// single inventory source.
package fetch

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/shelf"
	"github.com/agentstation/shelf/internal/appcontext"
	"github.com/agentstation/shelf/internal/cmd/output"
	"github.com/agentstation/shelf/pkg/errors"
	"github.com/agentstation/shelf/pkg/overrides"
	"github.com/agentstation/shelf/pkg/query"
	"github.com/agentstation/shelf/pkg/reconcile"
	"github.com/agentstation/shelf/pkg/records"
)

// NewCommand creates the fetch command.
func NewCommand(app appcontext.Interface) *cobra.Command {
	var (
		q        string
		category string
		raw      bool
	)

	cmd := &cobra.Command{
		Use:       "fetch local|external",
		GroupID:   "core",
		Short:     "List records from one source",
		ValidArgs: []string{"local", "external"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		Long: `Fetch lists normalized records from either the local backend or the
external catalog, without merging.

The loan column reflects current overrides unless --raw is given, in which
case it shows the flag exactly as the source reports it.`,
		Example: `  shelf fetch local --category Roman
  shelf fetch external --query dickens -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}

			recs, err := fetch(cmd, client, args[0], q, category, raw)
			if err != nil {
				return err
			}

			app.Logger().Debug().
				Str("source", args[0]).
				Int("count", len(recs)).
				Msg("Fetched records")

			format := output.DetectFormat(app.OutputFormat())
			return output.FormatRecords(cmd.OutOrStdout(), recs, format)
		},
	}

	cmd.Flags().StringVar(&q, "query", "", "search text")
	cmd.Flags().StringVar(&category, "category", "", "category filter")
	cmd.Flags().BoolVar(&raw, "raw", false, "ignore overrides")

	return cmd
}

func fetch(cmd *cobra.Command, client shelf.Client, source, q, category string, raw bool) ([]records.Record, error) {
	ctx := cmd.Context()

	var (
		raws []records.Raw
		err  error
	)
	switch source {
	case "local":
		raws, err = client.FetchLocal(ctx, q, category)
		if err != nil {
			return nil, errors.WrapSource(records.SourceLocal.String(), err)
		}
	case "external":
		raws, err = client.FetchExternal(ctx, q)
		if err != nil {
			return nil, errors.WrapSource(records.SourceExternal.String(), err)
		}
	default:
		return nil, errors.NewValidationError("source", source, "must be local or external")
	}

	snapshot := overrides.Mapping{}
	if !raw {
		for _, e := range client.Overrides().List(ctx) {
			snapshot[e.Key] = e.OnLoan
		}
	}

	recs := reconcile.All(raws, snapshot)
	if source == "external" {
		// The external catalog has no category parameter.
		recs = query.Filter(recs, "", category)
	}
	return recs, nil
}
