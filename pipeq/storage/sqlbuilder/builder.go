package sqlbuilder

import (
	"strconv"
	"strings"
)

type PlaceholderStyle int

const (
	PlaceholderQuestion PlaceholderStyle = iota
	PlaceholderDollar
)

// Builder hands out placeholders in text order and collects their args.
// With PlaceholderQuestion every placeholder consumes the next arg, so a
// value used twice must be bound twice.
type Builder struct {
	Style PlaceholderStyle
	args  []any
}

func New(style PlaceholderStyle) *Builder {
	return &Builder{Style: style, args: make([]any, 0)}
}

func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	switch b.Style {
	case PlaceholderDollar:
		return "$" + strconv.Itoa(len(b.args))
	default:
		return "?"
	}
}

// List binds every value and returns the comma-joined placeholders.
func (b *Builder) List(vals []any) string {
	phs := make([]string, len(vals))
	for i, v := range vals {
		phs[i] = b.Arg(v)
	}
	return strings.Join(phs, ", ")
}

func (b *Builder) Args() []any { return b.args }
func (b *Builder) Len() int    { return len(b.args) }
