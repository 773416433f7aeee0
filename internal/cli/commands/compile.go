package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nonibytes/pipeq/internal/cliopt"
	"github.com/nonibytes/pipeq/internal/cliutil"
	"github.com/nonibytes/pipeq/pipeq"
	"github.com/nonibytes/pipeq/pipeq/planner"
)

type compileOutput struct {
	Pipeline      any      `json:"pipeline"`
	CountPipeline any      `json:"countPipeline"`
	Page          int64    `json:"page"`
	Limit         int64    `json:"limit"`
	Explain       []string `json:"explain,omitempty"`
	Issues        []string `json:"issues"`
}

func NewCompileCmd(st *cliopt.State) *cobra.Command {
	var schemaPath string
	var strict, explain bool

	cmd := &cobra.Command{
		Use:   "compile --schema FILE [QUERYSTRING]",
		Short: "Compile a query string into an aggregation pipeline",
		Example: `  pipeq compile --schema products.yaml 'price[gte]=20&sort=-price&page=2&limit=5'
  pipeq compile --schema products.json --strict --format json 'search=boot'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if schemaPath == "" {
				return fmt.Errorf("missing --schema")
			}
			schema, err := pipeq.LoadSchemaFile(schemaPath)
			if err != nil {
				return err
			}
			params, err := queryArg(args)
			if err != nil {
				return err
			}
			opts := pipeq.DefaultCompileOptions()
			opts.Strict = strict
			out, err := pipeq.Compile(schema, params, opts)
			if err != nil {
				return err
			}
			st.Log().Debug("compiled")
			return printCompile(cmd.OutOrStdout(), cliutil.ParseOutputFormat(st.Options.Format), out, explain)
		},
	}
	cmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "schema file (.json, .yaml)")
	cmd.Flags().BoolVar(&strict, "strict", false, "reject unknown fields, invalid operators and uncoercible values")
	cmd.Flags().BoolVar(&explain, "explain", false, "include compilation steps")
	return cmd
}

func printCompile(w io.Writer, format cliutil.OutputFormat, out *planner.Output, explain bool) error {
	issues := make([]string, len(out.Issues))
	for i, is := range out.Issues {
		issues[i] = is.String()
	}
	if format == cliutil.FormatJSON {
		res := compileOutput{
			Pipeline:      out.Pipeline,
			CountPipeline: out.CountPipeline,
			Page:          out.Page,
			Limit:         out.Limit,
			Issues:        issues,
		}
		if explain {
			res.Explain = out.ExplainSteps
		}
		return cliutil.PrintJSON(w, res)
	}

	fmt.Fprintln(w, "Pipeline:")
	if err := cliutil.PrintJSON(w, out.Pipeline); err != nil {
		return err
	}
	fmt.Fprintln(w, "\nCount pipeline:")
	if err := cliutil.PrintJSON(w, out.CountPipeline); err != nil {
		return err
	}
	fmt.Fprintf(w, "\npage %d, limit %d\n", out.Page, out.Limit)
	if len(issues) > 0 {
		fmt.Fprintln(w, "\nIssues:")
		for _, s := range issues {
			fmt.Fprintf(w, "  %s\n", s)
		}
	}
	if explain && len(out.ExplainSteps) > 0 {
		fmt.Fprintln(w, "\nExplanation:")
		for _, s := range out.ExplainSteps {
			fmt.Fprintf(w, "  %s\n", s)
		}
	}
	return nil
}
