package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nonibytes/pipeq/internal/cliopt"
	"github.com/nonibytes/pipeq/internal/cliutil"
	"github.com/nonibytes/pipeq/pipeq"
)

func NewUpdateCmd(st *cliopt.State) *cobra.Command {
	var collection, data string
	cmd := &cobra.Command{
		Use:   "update -c COLLECTION ID [--data JSON]",
		Short: "Merge a JSON object into one document",
		Example: `  pipeq --config pipeq.yaml update -c products p1 --data '{"price":35}'
  echo '{"inStock":false}' | pipeq --config pipeq.yaml update -c products p1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := []byte(data)
			if data == "" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				patch = bytes.TrimSpace(b)
			}
			if len(patch) == 0 {
				return fmt.Errorf("missing update body: pass --data or JSON on stdin")
			}
			return withCollection(cmd, st, collection, func(ctx context.Context, col *pipeq.Collection) error {
				doc, err := col.UpdateJSON(ctx, args[0], patch)
				if err != nil {
					return err
				}
				return cliutil.PrintJSON(cmd.OutOrStdout(), doc)
			})
		},
	}
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "collection name")
	cmd.Flags().StringVar(&data, "data", "", "JSON object to merge; read from stdin when empty")
	return cmd
}
