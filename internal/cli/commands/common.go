package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nonibytes/pipeq/internal/cliopt"
	"github.com/nonibytes/pipeq/internal/cliutil"
	"github.com/nonibytes/pipeq/pipeq"
	"github.com/nonibytes/pipeq/pipeq/query"
)

// withCollection opens the configured store, runs fn against the named
// collection and closes the store.
func withCollection(cmd *cobra.Command, st *cliopt.State, name string, fn func(ctx context.Context, col *pipeq.Collection) error) error {
	if name == "" {
		return fmt.Errorf("missing --collection")
	}
	cfg, err := cliutil.LoadConfig(st.Options.Config)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	store, cols, err := cliutil.OpenCollections(ctx, st.Options.Config, cfg, st.Log())
	if err != nil {
		return err
	}
	defer store.Close()

	col, err := cliutil.FindCollection(cols, name)
	if err != nil {
		return err
	}
	return fn(ctx, col)
}

// queryArg parses the optional QUERYSTRING positional argument
func queryArg(args []string) (query.Params, error) {
	raw := ""
	if len(args) > 0 {
		raw = args[0]
	}
	params, err := query.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("malformed query string: %w", err)
	}
	return params, nil
}
