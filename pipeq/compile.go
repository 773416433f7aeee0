package pipeq

import (
	"github.com/nonibytes/pipeq/pipeq/planner"
	"github.com/nonibytes/pipeq/pipeq/query"
)

// Compile turns query parameters into a data pipeline and its count
// pipeline. In the default permissive mode it never fails: unknown fields
// and bad values degrade to conditions that match nothing, and invalid
// operators are dropped. With opts.Strict every such problem is reported in
// one *ValidationError.
func Compile(schema Schema, params query.Params, opts CompileOptions) (*planner.Output, error) {
	out := planner.Compile(schema.AsStorageSchema(), params, opts.plannerOptions())
	if opts.Strict && len(out.Issues) > 0 {
		return nil, validationError(out.Issues)
	}
	return out, nil
}

func validationError(issues []planner.Issue) *ValidationError {
	ve := &ValidationError{Issues: make([]*Error, 0, len(issues))}
	for _, is := range issues {
		switch is.Kind {
		case planner.IssueUnknownField:
			ve.Issues = append(ve.Issues, UnknownFieldError(is.Field))
		case planner.IssueInvalidOperator:
			ve.Issues = append(ve.Issues, InvalidOperatorError(is.Field, is.Token))
		case planner.IssueCoercion:
			ve.Issues = append(ve.Issues, CoercionError(is.Field, is.Raw, is.Expected))
		}
	}
	return ve
}
