package sqlgen

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nonibytes/pipeq/pipeq/stage"
	"github.com/nonibytes/pipeq/pipeq/storage"
	"github.com/nonibytes/pipeq/pipeq/storage/sqlbuilder"
)

// Dialect renders the backend-specific pieces of a document query. Every
// method that takes a builder binds fresh placeholders in the order its
// text is produced.
type Dialect interface {
	Name() string
	Style() sqlbuilder.PlaceholderStyle
	// Value is the stored value at field, comparable with Operand.
	Value(b *sqlbuilder.Builder, field string) string
	// Text is the stored value at field as text, for regex matching.
	Text(b *sqlbuilder.Builder, field string) string
	Operand(b *sqlbuilder.Builder, v any) string
	// OperandList binds vals as a comma-separated operand list.
	OperandList(b *sqlbuilder.Builder, vals []any) string
	// AnyElement is true when cond holds for some element of the array at
	// field. cond receives the element's value and text expressions.
	AnyElement(b *sqlbuilder.Builder, field string, cond func(value, text string) string) string
	Regex(text, pattern string) string
	OrderBy(b *sqlbuilder.Builder, field string, dir stage.Direction) string
}

// PathOK reports whether field can be addressed as a JSON path. Segments
// are separated by dots and must not be empty or contain quotes.
func PathOK(field string) bool {
	if field == "" {
		return false
	}
	for _, seg := range strings.Split(field, ".") {
		if seg == "" || strings.ContainsAny(seg, `"\`) {
			return false
		}
	}
	return true
}

// scalarArg converts compiled operands to driver values.
func scalarArg(v any) any {
	switch x := v.(type) {
	case time.Time:
		return storage.FormatTime(x)
	case stage.RelationID:
		return string(x)
	case stage.Pattern:
		return x.GoExpr()
	case int:
		return float64(x)
	case int64:
		return float64(x)
	}
	return v
}

// SQLite stores documents as JSON text and uses the json1 functions.
// Regex matching needs a REGEXP function registered on each connection.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Style() sqlbuilder.PlaceholderStyle { return sqlbuilder.PlaceholderQuestion }

func sqlitePath(field string) string {
	var sb strings.Builder
	sb.WriteString("$")
	for _, seg := range strings.Split(field, ".") {
		sb.WriteString(`."`)
		sb.WriteString(seg)
		sb.WriteString(`"`)
	}
	return sb.String()
}

func (SQLite) Value(b *sqlbuilder.Builder, field string) string {
	return fmt.Sprintf("json_extract(data_json, %s)", b.Arg(sqlitePath(field)))
}

func (d SQLite) Text(b *sqlbuilder.Builder, field string) string {
	return d.Value(b, field)
}

// sqliteArg stores booleans as the integers json_extract returns for them.
func sqliteArg(v any) any {
	switch x := scalarArg(v).(type) {
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	default:
		return x
	}
}

func (SQLite) Operand(b *sqlbuilder.Builder, v any) string {
	return b.Arg(sqliteArg(v))
}

func (SQLite) OperandList(b *sqlbuilder.Builder, vals []any) string {
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = sqliteArg(v)
	}
	return b.List(args)
}

func (SQLite) AnyElement(b *sqlbuilder.Builder, field string, cond func(value, text string) string) string {
	ph := b.Arg(sqlitePath(field))
	return fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(data_json, %s) AS je WHERE %s)", ph, cond("je.value", "je.value"))
}

func (SQLite) Regex(text, pattern string) string {
	return fmt.Sprintf("%s REGEXP %s", text, pattern)
}

func (d SQLite) OrderBy(b *sqlbuilder.Builder, field string, dir stage.Direction) string {
	if dir == stage.Desc {
		return d.Value(b, field) + " DESC"
	}
	return d.Value(b, field) + " ASC"
}

// Postgres stores documents as JSONB and compares values as JSONB, so
// numbers order numerically and mismatched types never compare equal.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Style() sqlbuilder.PlaceholderStyle { return sqlbuilder.PlaceholderDollar }

func pgPath(b *sqlbuilder.Builder, field string) string {
	return fmt.Sprintf("CAST(%s AS text[])", b.Arg(strings.Split(field, ".")))
}

func (Postgres) Value(b *sqlbuilder.Builder, field string) string {
	return fmt.Sprintf("(data_json #> %s)", pgPath(b, field))
}

func (Postgres) Text(b *sqlbuilder.Builder, field string) string {
	return fmt.Sprintf("(data_json #>> %s)", pgPath(b, field))
}

// Operand binds v as JSONB. A value with no JSON form binds SQL NULL,
// which compares equal to nothing.
func (Postgres) Operand(b *sqlbuilder.Builder, v any) string {
	raw, err := json.Marshal(scalarArg(v))
	if err != nil {
		return fmt.Sprintf("CAST(CAST(%s AS text) AS jsonb)", b.Arg(nil))
	}
	return fmt.Sprintf("CAST(CAST(%s AS text) AS jsonb)", b.Arg(string(raw)))
}

func (d Postgres) OperandList(b *sqlbuilder.Builder, vals []any) string {
	phs := make([]string, len(vals))
	for i, v := range vals {
		phs[i] = d.Operand(b, v)
	}
	return strings.Join(phs, ", ")
}

func (Postgres) AnyElement(b *sqlbuilder.Builder, field string, cond func(value, text string) string) string {
	typed := pgPath(b, field)
	elems := pgPath(b, field)
	return fmt.Sprintf(
		"(CASE WHEN jsonb_typeof(data_json #> %s) = 'array' THEN EXISTS (SELECT 1 FROM jsonb_array_elements(data_json #> %s) AS je(value) WHERE %s) ELSE FALSE END)",
		typed, elems, cond("je.value", "(je.value #>> '{}')"))
}

func (Postgres) Regex(text, pattern string) string {
	return fmt.Sprintf("%s ~ %s", text, pattern)
}

func (d Postgres) OrderBy(b *sqlbuilder.Builder, field string, dir stage.Direction) string {
	if dir == stage.Desc {
		return d.Value(b, field) + " DESC NULLS LAST"
	}
	return d.Value(b, field) + " ASC NULLS FIRST"
}
