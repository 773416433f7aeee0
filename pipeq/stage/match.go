package stage

// OpValue is one operator and its operand.
type OpValue struct {
	Op    Op
	Value any
}

// FieldCondition is either a literal equality value or an ordered set of
// operators. Operators are unique within a condition.
type FieldCondition struct {
	Literal any
	Ops     []OpValue
}

// Eq builds a literal equality condition.
func Eq(v any) FieldCondition {
	return FieldCondition{Literal: v}
}

// Ops builds an operator condition. A repeated operator keeps the last value
// at the position of its first occurrence.
func Ops(ops ...OpValue) FieldCondition {
	c := FieldCondition{Ops: []OpValue{}}
	for _, ov := range ops {
		c = c.With(ov.Op, ov.Value)
	}
	return c
}

func (c FieldCondition) IsOps() bool { return len(c.Ops) > 0 }

// Get returns the operand bound to op.
func (c FieldCondition) Get(op Op) (any, bool) {
	for _, ov := range c.Ops {
		if ov.Op == op {
			return ov.Value, true
		}
	}
	return nil, false
}

// With returns a copy of c with op bound to v. A literal condition is
// replaced by the operator form.
func (c FieldCondition) With(op Op, v any) FieldCondition {
	out := FieldCondition{Ops: make([]OpValue, 0, len(c.Ops)+1)}
	replaced := false
	for _, ov := range c.Ops {
		if ov.Op == op {
			out.Ops = append(out.Ops, OpValue{Op: op, Value: v})
			replaced = true
			continue
		}
		out.Ops = append(out.Ops, ov)
	}
	if !replaced {
		out.Ops = append(out.Ops, OpValue{Op: op, Value: v})
	}
	return out
}

func (c FieldCondition) clone() FieldCondition {
	out := FieldCondition{Literal: cloneValue(c.Literal)}
	if c.Ops != nil {
		out.Ops = make([]OpValue, len(c.Ops))
		for i, ov := range c.Ops {
			out.Ops[i] = OpValue{Op: ov.Op, Value: cloneValue(ov.Value)}
		}
	}
	return out
}

func cloneValue(v any) any {
	if list, ok := v.([]any); ok {
		out := make([]any, len(list))
		copy(out, list)
		return out
	}
	return v
}

// FieldMatch is a field and its condition.
type FieldMatch struct {
	Field string
	Cond  FieldCondition
}

// MatchCondition is a conjunction of field conditions plus an optional
// disjunction. It is treated as immutable: every With* method returns a copy
// and leaves the receiver untouched.
type MatchCondition struct {
	Fields []FieldMatch
	Or     []MatchCondition
}

// Where builds a single-field condition.
func Where(field string, cond FieldCondition) MatchCondition {
	return MatchCondition{}.WithField(field, cond)
}

func (m MatchCondition) Empty() bool {
	return len(m.Fields) == 0 && len(m.Or) == 0
}

func (m MatchCondition) Get(field string) (FieldCondition, bool) {
	for _, fm := range m.Fields {
		if fm.Field == field {
			return fm.Cond, true
		}
	}
	return FieldCondition{}, false
}

// WithField returns a copy with field bound to cond, keeping the field's
// original position when it is already present.
func (m MatchCondition) WithField(field string, cond FieldCondition) MatchCondition {
	out := m.Clone()
	for i := range out.Fields {
		if out.Fields[i].Field == field {
			out.Fields[i].Cond = cond.clone()
			return out
		}
	}
	out.Fields = append(out.Fields, FieldMatch{Field: field, Cond: cond.clone()})
	return out
}

// WithOr returns a copy whose disjunction is replaced by or.
func (m MatchCondition) WithOr(or []MatchCondition) MatchCondition {
	out := m.Clone()
	out.Or = make([]MatchCondition, len(or))
	for i, alt := range or {
		out.Or[i] = alt.Clone()
	}
	return out
}

// Clone returns a deep copy.
func (m MatchCondition) Clone() MatchCondition {
	var out MatchCondition
	if m.Fields != nil {
		out.Fields = make([]FieldMatch, len(m.Fields))
		for i, fm := range m.Fields {
			out.Fields[i] = FieldMatch{Field: fm.Field, Cond: fm.Cond.clone()}
		}
	}
	if m.Or != nil {
		out.Or = make([]MatchCondition, len(m.Or))
		for i, alt := range m.Or {
			out.Or[i] = alt.Clone()
		}
	}
	return out
}
