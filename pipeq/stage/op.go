package stage

// Op is a comparison operator inside a field condition.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
	OpRegex
	OpOr
)

var opNames = [...]string{"eq", "ne", "gt", "gte", "lt", "lte", "in", "regex", "or"}

func (o Op) String() string {
	if o >= 0 && int(o) < len(opNames) {
		return opNames[o]
	}
	return "unknown"
}

// Key returns the $-prefixed operator name used in pipeline documents.
func (o Op) Key() string {
	return "$" + o.String()
}

// ParseOp resolves a bracketed filter token such as "gte". The logical "or"
// is not accepted here; it is only produced by search.
func ParseOp(token string) (Op, bool) {
	switch token {
	case "eq":
		return OpEq, true
	case "ne":
		return OpNe, true
	case "gt":
		return OpGt, true
	case "gte":
		return OpGte, true
	case "lt":
		return OpLt, true
	case "lte":
		return OpLte, true
	case "in":
		return OpIn, true
	case "regex":
		return OpRegex, true
	}
	return 0, false
}
