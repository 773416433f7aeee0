package sqlgen

import (
	"fmt"
	"strings"

	"github.com/nonibytes/pipeq/pipeq/stage"
	"github.com/nonibytes/pipeq/pipeq/storage"
	"github.com/nonibytes/pipeq/pipeq/storage/sqlbuilder"
)

// Table holds every document of every collection.
const Table = "documents"

const never = "1 = 0"

// Query is a translated statement. Project lists the fields to keep when
// the rows are decoded; nil keeps whole documents.
type Query struct {
	SQL     string
	Args    []any
	Project []string
}

// Select translates a data pipeline into a SELECT returning id and
// data_json, ordered and windowed like the pipeline.
func Select(d Dialect, collection string, schema storage.Schema, p stage.Pipeline) (Query, error) {
	if err := p.Validate(); err != nil {
		return Query{}, fmt.Errorf("invalid pipeline: %w", err)
	}
	g := &gen{d: d, b: sqlbuilder.New(d.Style()), schema: schema}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT id, data_json FROM %s WHERE collection = %s", Table, g.b.Arg(collection))
	if m, ok := p.Match(); ok && !m.Empty() {
		fmt.Fprintf(&sb, " AND (%s)", g.match(m))
	}

	srt, _ := p.Sort()
	order := make([]string, 0, len(srt.Keys)+1)
	for _, k := range srt.Keys {
		if k.Field == "_id" {
			order = append(order, "id "+strings.ToUpper(k.Dir.String()))
			continue
		}
		if !PathOK(k.Field) {
			continue
		}
		order = append(order, d.OrderBy(g.b, k.Field, k.Dir))
	}
	order = append(order, "id ASC")
	fmt.Fprintf(&sb, " ORDER BY %s", strings.Join(order, ", "))

	skip, _ := p.Skip()
	limit, _ := p.Limit()
	fmt.Fprintf(&sb, " LIMIT %s OFFSET %s", g.b.Arg(limit), g.b.Arg(skip))

	q := Query{SQL: sb.String(), Args: g.b.Args()}
	if proj, ok := p.Project(); ok {
		q.Project = proj.Fields
	}
	return q, nil
}

// Count translates a count pipeline into a SELECT COUNT(*).
func Count(d Dialect, collection string, schema storage.Schema, p stage.Pipeline) (Query, error) {
	if err := p.ValidateCount(); err != nil {
		return Query{}, fmt.Errorf("invalid count pipeline: %w", err)
	}
	g := &gen{d: d, b: sqlbuilder.New(d.Style()), schema: schema}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT COUNT(*) FROM %s WHERE collection = %s", Table, g.b.Arg(collection))
	if m, ok := p.Match(); ok && !m.Empty() {
		fmt.Fprintf(&sb, " AND (%s)", g.match(m))
	}
	return Query{SQL: sb.String(), Args: g.b.Args()}, nil
}

type gen struct {
	d      Dialect
	b      *sqlbuilder.Builder
	schema storage.Schema
}

func (g *gen) match(m stage.MatchCondition) string {
	parts := make([]string, 0, len(m.Fields)+1)
	for _, fm := range m.Fields {
		parts = append(parts, g.field(fm.Field, fm.Cond))
	}
	if len(m.Or) > 0 {
		alts := make([]string, len(m.Or))
		for i, alt := range m.Or {
			alts[i] = "(" + g.match(alt) + ")"
		}
		parts = append(parts, "("+strings.Join(alts, " OR ")+")")
	}
	if len(parts) == 0 {
		return "1 = 1"
	}
	return strings.Join(parts, " AND ")
}

func (g *gen) field(name string, cond stage.FieldCondition) string {
	if name == "_id" {
		return g.id(cond)
	}
	if !PathOK(name) {
		return never
	}
	spec, known := g.schema.Get(name)
	array := known && spec.Array

	if !cond.IsOps() {
		return g.compare(name, array, stage.OpEq, cond.Literal)
	}
	parts := make([]string, len(cond.Ops))
	for i, ov := range cond.Ops {
		parts[i] = g.compare(name, array, ov.Op, ov.Value)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

// id compares against the id column, where ids are plain strings.
func (g *gen) id(cond stage.FieldCondition) string {
	ops := cond.Ops
	if !cond.IsOps() {
		ops = []stage.OpValue{{Op: stage.OpEq, Value: cond.Literal}}
	}
	parts := make([]string, len(ops))
	for i, ov := range ops {
		parts[i] = g.idCompare(ov.Op, ov.Value)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

var idOps = map[stage.Op]string{
	stage.OpEq:  "=",
	stage.OpNe:  "<>",
	stage.OpGt:  ">",
	stage.OpGte: ">=",
	stage.OpLt:  "<",
	stage.OpLte: "<=",
}

func (g *gen) idCompare(op stage.Op, v any) string {
	switch op {
	case stage.OpIn:
		vals := validList(v)
		if len(vals) == 0 {
			return never
		}
		ids := make([]any, len(vals))
		for i, e := range vals {
			ids[i] = idString(e)
		}
		return "id IN (" + g.b.List(ids) + ")"
	case stage.OpRegex:
		p, ok := v.(stage.Pattern)
		if !ok {
			return never
		}
		return g.d.Regex("id", g.b.Arg(p.GoExpr()))
	}
	sqlOp, ok := idOps[op]
	if _, bad := v.(stage.Invalid); bad || !ok || v == nil {
		return never
	}
	return "id " + sqlOp + " " + g.b.Arg(idString(v))
}

func idString(v any) string {
	if id, ok := v.(stage.RelationID); ok {
		return string(id)
	}
	return fmt.Sprint(v)
}

func (g *gen) compare(field string, array bool, op stage.Op, v any) string {
	if _, bad := v.(stage.Invalid); bad {
		return never
	}
	value := func() string { return g.d.Value(g.b, field) }
	text := func() string { return g.d.Text(g.b, field) }

	if !array {
		if op == stage.OpNe {
			if v == nil {
				return value() + " IS NOT NULL"
			}
			return fmt.Sprintf("(%s IS NULL OR %s <> %s)", value(), value(), g.d.Operand(g.b, v))
		}
		return g.scalar(op, value, text, v)
	}

	if op == stage.OpNe {
		return "NOT " + g.d.AnyElement(g.b, field, func(value, _ string) string {
			return value + " = " + g.d.Operand(g.b, v)
		})
	}
	if op == stage.OpIn && len(validList(v)) == 0 {
		return never
	}
	return g.d.AnyElement(g.b, field, func(value, text string) string {
		return g.scalar(op, func() string { return value }, func() string { return text }, v)
	})
}

// scalar renders one comparison. value and text are called at most once,
// at the point their text appears.
func (g *gen) scalar(op stage.Op, value, text func() string, v any) string {
	switch op {
	case stage.OpEq:
		if v == nil {
			return value() + " IS NULL"
		}
		return value() + " = " + g.d.Operand(g.b, v)
	case stage.OpNe:
		return value() + " <> " + g.d.Operand(g.b, v)
	case stage.OpGt:
		return value() + " > " + g.d.Operand(g.b, v)
	case stage.OpGte:
		return value() + " >= " + g.d.Operand(g.b, v)
	case stage.OpLt:
		return value() + " < " + g.d.Operand(g.b, v)
	case stage.OpLte:
		return value() + " <= " + g.d.Operand(g.b, v)
	case stage.OpIn:
		vals := validList(v)
		if len(vals) == 0 {
			return never
		}
		lhs := value()
		return lhs + " IN (" + g.d.OperandList(g.b, vals) + ")"
	case stage.OpRegex:
		p, ok := v.(stage.Pattern)
		if !ok {
			return never
		}
		return g.d.Regex(text(), g.b.Arg(p.GoExpr()))
	}
	return never
}

// validList returns the elements of an "in" operand that can match.
func validList(v any) []any {
	list, ok := v.([]any)
	if !ok {
		if _, bad := v.(stage.Invalid); bad || v == nil {
			return nil
		}
		return []any{v}
	}
	out := make([]any, 0, len(list))
	for _, e := range list {
		if _, bad := e.(stage.Invalid); !bad {
			out = append(out, e)
		}
	}
	return out
}
