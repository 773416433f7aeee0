package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/nonibytes/pipeq/internal/cliopt"
	"github.com/nonibytes/pipeq/internal/cliutil"
	"github.com/nonibytes/pipeq/pipeq"
)

func NewGetCmd(st *cliopt.State) *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "get -c COLLECTION ID",
		Short: "Print one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCollection(cmd, st, collection, func(ctx context.Context, col *pipeq.Collection) error {
				doc, err := col.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return cliutil.PrintJSON(cmd.OutOrStdout(), doc)
			})
		},
	}
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "collection name")
	return cmd
}
