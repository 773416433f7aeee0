package planner

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/nonibytes/pipeq/pipeq/query"
	"github.com/nonibytes/pipeq/pipeq/stage"
	"github.com/nonibytes/pipeq/pipeq/storage"
)

// compileFilter builds the match condition from every non-reserved key.
// Keys are visited in sorted order so the output is deterministic.
//
// Precedence per key:
//  1. array relation field: {in: [id]}
//  2. scalar string field: case-insensitive prefix pattern
//  3. scalar relation field: equality on the id
//  4. field[op] key: operator merged into the field's condition
//  5. operator group value: each operator merged as in 4
//  6. anything else: equality on the coerced value, or on the raw string
//     for fields the schema does not know
func (c *Compiler) compileFilter(params query.Params) stage.MatchCondition {
	m := stage.MatchCondition{}
	for _, key := range params.Keys() {
		if query.IsReserved(key) {
			continue
		}
		v := params[key]
		if v.Empty() {
			continue
		}

		spec, known := c.resolve(key)
		if known && !v.IsGroup() {
			switch {
			case spec.Type == storage.TypeRelation && spec.Array:
				id := c.coerce(key, spec, v.Scalar)
				m = m.WithField(key, stage.Ops(stage.OpValue{Op: stage.OpIn, Value: []any{id}}))
				c.explain("MATCH %s IN [%v]", key, id)
				continue
			case spec.Type == storage.TypeString && !spec.Array:
				p := stage.PrefixPattern(v.Scalar)
				m = m.WithField(key, stage.Ops(stage.OpValue{Op: stage.OpRegex, Value: p}))
				c.explain("MATCH %s PREFIX %s", key, p)
				continue
			case spec.Type == storage.TypeRelation:
				id := c.coerce(key, spec, v.Scalar)
				m = m.WithField(key, stage.Eq(id))
				c.explain("MATCH %s = %v", key, id)
				continue
			}
		}

		if field, tok, ok := query.SplitBracket(key); ok {
			if v.IsGroup() {
				c.issue(Issue{Kind: IssueInvalidOperator, Field: field, Token: tok})
				continue
			}
			m = c.mergeOps(m, field, map[string]string{tok: v.Scalar})
			continue
		}
		if v.IsGroup() {
			m = c.mergeOps(m, key, v.Group)
			continue
		}

		if !known {
			c.issue(Issue{Kind: IssueUnknownField, Field: key})
			m = m.WithField(key, stage.Eq(v.Scalar))
			c.explain("MATCH %s = %q (unknown field)", key, v.Scalar)
			continue
		}
		val := c.coerce(key, spec, v.Scalar)
		m = m.WithField(key, stage.Eq(val))
		c.explain("MATCH %s = %v", key, val)
	}
	return m
}

// mergeOps folds operator tokens into the condition already held for field.
// Different operators accumulate; a repeated operator replaces its value.
func (c *Compiler) mergeOps(m stage.MatchCondition, field string, ops map[string]string) stage.MatchCondition {
	spec, known := c.resolve(field)
	if !known {
		c.issue(Issue{Kind: IssueUnknownField, Field: field})
	}

	tokens := make([]string, 0, len(ops))
	for tok := range ops {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)

	cond, _ := m.Get(field)
	changed := false
	for _, tok := range tokens {
		raw := ops[tok]
		if raw == "" {
			continue
		}
		op, ok := stage.ParseOp(tok)
		if !ok {
			c.issue(Issue{Kind: IssueInvalidOperator, Field: field, Token: tok})
			continue
		}
		val := c.operand(field, spec, known, op, raw)
		cond = cond.With(op, val)
		changed = true
		c.explain("MATCH %s %s %v", field, strings.ToUpper(op.String()), val)
	}
	if !changed {
		return m
	}
	return m.WithField(field, cond)
}

// operand coerces an operator value with the field's type. "in" takes a
// comma-separated list and "regex" a raw expression.
func (c *Compiler) operand(field string, spec storage.FieldSpec, known bool, op stage.Op, raw string) any {
	switch op {
	case stage.OpRegex:
		if _, err := regexp.Compile(raw); err != nil {
			c.issue(Issue{Kind: IssueCoercion, Field: field, Raw: raw, Expected: "regex"})
			return stage.Invalid{Raw: raw, Type: "regex"}
		}
		return stage.RawPattern(raw)
	case stage.OpIn:
		parts := query.SplitList(raw)
		vals := make([]any, 0, len(parts))
		for _, part := range parts {
			if !known {
				vals = append(vals, part)
				continue
			}
			vals = append(vals, c.coerce(field, spec, part))
		}
		return vals
	}
	if !known {
		return raw
	}
	return c.coerce(field, spec, raw)
}

func (c *Compiler) coerce(field string, spec storage.FieldSpec, raw string) any {
	v, err := query.Coerce(spec.Type, raw)
	if err != nil {
		c.issue(Issue{Kind: IssueCoercion, Field: field, Raw: raw, Expected: string(spec.Type)})
	}
	return v
}

func (c *Compiler) explain(format string, args ...any) {
	c.explainSteps = append(c.explainSteps, fmt.Sprintf(format, args...))
}
