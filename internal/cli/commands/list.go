package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nonibytes/pipeq/internal/cliopt"
	"github.com/nonibytes/pipeq/internal/cliutil"
	"github.com/nonibytes/pipeq/pipeq"
)

func NewListCmd(st *cliopt.State) *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:     "list -c COLLECTION [QUERYSTRING]",
		Short:   "Run a list query against a collection",
		Example: `  pipeq --config pipeq.yaml list -c products 'category=shoe&sort=-price&limit=5'`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := queryArg(args)
			if err != nil {
				return err
			}
			return withCollection(cmd, st, collection, func(ctx context.Context, col *pipeq.Collection) error {
				start := time.Now()
				res, err := col.List(ctx, params)
				if err != nil {
					return err
				}
				return printList(cmd.OutOrStdout(), cliutil.ParseOutputFormat(st.Options.Format), res, time.Since(start))
			})
		},
	}
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "collection name")
	return cmd
}

func printList(w io.Writer, format cliutil.OutputFormat, res *pipeq.ListResult, dur time.Duration) error {
	if format == cliutil.FormatJSON {
		return cliutil.PrintJSON(w, res)
	}
	fmt.Fprintf(w, "Found %d of %d items (page %d/%d) in %dms\n",
		len(res.Items), res.Count, res.CurrentPage, res.TotalPages, dur.Milliseconds())
	for _, doc := range res.Items {
		fmt.Fprint(w, "- ")
		if err := cliutil.PrintCompactJSON(w, doc); err != nil {
			return err
		}
	}
	return nil
}
