package commands

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nonibytes/pipeq/internal/cliopt"
	"github.com/nonibytes/pipeq/pipeq"
)

func NewPutCmd(st *cliopt.State) *cobra.Command {
	var collection, importPath string
	var batchSize int

	cmd := &cobra.Command{
		Use:   "put -c COLLECTION [--import FILE]",
		Short: "Insert JSON lines from stdin or a file",
		Example: `  echo '{"name":"boot","price":30}' | pipeq --config pipeq.yaml put -c products
  pipeq --config pipeq.yaml put -c products --import products.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if importPath != "" {
				f, err := os.Open(importPath)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			if batchSize <= 0 {
				batchSize = pipeq.DefaultBatchSize
			}
			return withCollection(cmd, st, collection, func(ctx context.Context, col *pipeq.Collection) error {
				n, err := importLines(ctx, col, r, batchSize)
				if err != nil {
					return fmt.Errorf("imported %d before failing: %w", n, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "collection name")
	cmd.Flags().StringVar(&importPath, "import", "", "import a JSONL file instead of stdin")
	cmd.Flags().IntVar(&batchSize, "batch-size", pipeq.DefaultBatchSize, "documents applied per batch")
	return cmd
}

// importLines reads one JSON object per line and applies them in batches
func importLines(ctx context.Context, col *pipeq.Collection, r io.Reader, batchSize int) (int, error) {
	total := 0
	batch := pipeq.NewBatch()
	flush := func() error {
		n, err := col.Apply(ctx, batch)
		total += n
		batch = pipeq.NewBatch()
		return err
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		if err := batch.InsertJSON(b); err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		if batch.Len() >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return total, err
	}
	if !batch.Empty() {
		if err := flush(); err != nil {
			return total, err
		}
	}
	return total, nil
}
