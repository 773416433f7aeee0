package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nonibytes/pipeq/internal/cliopt"
	"github.com/nonibytes/pipeq/internal/cliutil"
	"github.com/nonibytes/pipeq/pipeq"
)

func NewSchemaCmd(st *cliopt.State) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect collection schemas",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate schema files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				s, err := pipeq.LoadSchemaFile(path)
				if err == nil {
					err = s.Validate()
				}
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d fields)\n", path, len(s.Fields))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d schema files invalid", failed, len(args))
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show FILE",
		Short: "Print a schema with its field order and searchable fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := pipeq.LoadSchemaFile(args[0])
			if err != nil {
				return err
			}
			if err := s.Validate(); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if cliutil.ParseOutputFormat(st.Options.Format) == cliutil.FormatJSON {
				return cliutil.PrintJSON(w, s)
			}
			for _, name := range s.FieldNames() {
				spec := s.Fields[name]
				typ := string(spec.Type)
				if spec.Array {
					typ = "[" + typ + "]"
				}
				fmt.Fprintf(w, "%-24s %s\n", name, typ)
			}
			fmt.Fprintf(w, "\nsearch covers: %v\n", s.StringFields())
			return nil
		},
	})
	return cmd
}
