package planner

import "fmt"

type IssueKind int

const (
	IssueUnknownField IssueKind = iota
	IssueInvalidOperator
	IssueCoercion
)

func (k IssueKind) String() string {
	switch k {
	case IssueUnknownField:
		return "unknown_field"
	case IssueInvalidOperator:
		return "invalid_operator"
	case IssueCoercion:
		return "coercion_failure"
	}
	return fmt.Sprintf("issue(%d)", int(k))
}

// Issue is one problem found while compiling. Field is always set; Token
// is set for invalid operators, Raw and Expected for coercion failures.
type Issue struct {
	Kind     IssueKind
	Field    string
	Token    string
	Raw      string
	Expected string
}

func (is Issue) String() string {
	switch is.Kind {
	case IssueUnknownField:
		return fmt.Sprintf("unknown field %q", is.Field)
	case IssueInvalidOperator:
		return fmt.Sprintf("invalid operator %q on field %q", is.Token, is.Field)
	case IssueCoercion:
		return fmt.Sprintf("cannot coerce %q to %s for field %q", is.Raw, is.Expected, is.Field)
	}
	return is.Kind.String()
}
