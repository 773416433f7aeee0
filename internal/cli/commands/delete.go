package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nonibytes/pipeq/internal/cliopt"
	"github.com/nonibytes/pipeq/pipeq"
)

func NewDeleteCmd(st *cliopt.State) *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "delete -c COLLECTION ID...",
		Short: "Delete documents by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCollection(cmd, st, collection, func(ctx context.Context, col *pipeq.Collection) error {
				if len(args) == 1 {
					ok, err := col.Delete(ctx, args[0])
					if err != nil {
						return err
					}
					if ok {
						fmt.Fprintln(cmd.OutOrStdout(), "deleted")
					} else {
						fmt.Fprintln(cmd.OutOrStdout(), "not found")
					}
					return nil
				}

				b := pipeq.NewBatch()
				for _, id := range args {
					if err := b.Delete(id); err != nil {
						return err
					}
				}
				n, err := col.Apply(ctx, b)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "processed %d\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "collection name")
	return cmd
}
