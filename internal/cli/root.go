package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nonibytes/pipeq/internal/cli/commands"
	"github.com/nonibytes/pipeq/internal/cliopt"
	"github.com/nonibytes/pipeq/internal/logging"
)

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	st := &cliopt.State{Options: cliopt.DefaultGlobalOptions()}

	root := &cobra.Command{
		Use:           "pipeq",
		Short:         "Query-string to aggregation pipeline compiler",
		Long:          rootLong,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(st.Options.LogLevel, st.Options.LogFormat)
			if err != nil {
				return err
			}
			st.Logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if st.Logger != nil {
				_ = st.Logger.Sync()
			}
		},
	}
	cliopt.BindGlobalFlags(root.PersistentFlags(), &st.Options)

	root.AddCommand(
		commands.NewCompileCmd(st),
		commands.NewServeCmd(st),
		commands.NewPutCmd(st),
		commands.NewListCmd(st),
		commands.NewGetCmd(st),
		commands.NewUpdateCmd(st),
		commands.NewDeleteCmd(st),
		commands.NewSchemaCmd(st),
	)
	return root
}

// Execute runs the CLI and returns an exit code.
func Execute(argv []string) int {
	return run(NewRootCmd(), argv, os.Stderr)
}

func run(root *cobra.Command, argv []string, stderr io.Writer) int {
	root.SetArgs(argv)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
