package stage

import (
	"fmt"
	"regexp"
)

// Pattern is a regular expression operand.
type Pattern struct {
	Source          string
	Anchored        bool
	CaseInsensitive bool
}

// PrefixPattern matches values starting with literal, ignoring case.
func PrefixPattern(literal string) Pattern {
	return Pattern{Source: regexp.QuoteMeta(literal), Anchored: true, CaseInsensitive: true}
}

// ContainsPattern matches values containing literal, ignoring case.
func ContainsPattern(literal string) Pattern {
	return Pattern{Source: regexp.QuoteMeta(literal), CaseInsensitive: true}
}

// RawPattern is a caller-supplied expression used as-is.
func RawPattern(expr string) Pattern {
	return Pattern{Source: expr}
}

// Expr returns the expression with the start anchor applied.
func (p Pattern) Expr() string {
	if p.Anchored {
		return "^" + p.Source
	}
	return p.Source
}

// Options returns the pipeline regex options string.
func (p Pattern) Options() string {
	if p.CaseInsensitive {
		return "i"
	}
	return ""
}

// GoExpr returns the expression in Go regexp syntax, flags inlined.
func (p Pattern) GoExpr() string {
	if p.CaseInsensitive {
		return "(?i)" + p.Expr()
	}
	return p.Expr()
}

func (p Pattern) String() string {
	return "/" + p.Expr() + "/" + p.Options()
}

// RelationID is a reference to another document. Only 24-hex-digit ids can
// be converted to a native object id.
type RelationID string

var relationIDRe = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

func (id RelationID) Valid() bool {
	return relationIDRe.MatchString(string(id))
}

// Invalid is a value that failed coercion. It never compares equal to any
// stored value, so a condition holding it matches nothing.
type Invalid struct {
	Raw  string
	Type string
}

func (v Invalid) String() string {
	return fmt.Sprintf("invalid %s %q", v.Type, v.Raw)
}
