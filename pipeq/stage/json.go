package stage

import (
	"bytes"
	"encoding/json"
	"time"
)

// doc is a JSON object with ordered keys.
type doc []kv

type kv struct {
	Key   string
	Value any
}

func (d doc) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON renders the pipeline in aggregation-pipeline form, e.g.
// [{"$match":{...}},{"$sort":{"createdAt":-1}},{"$skip":0},{"$limit":10}].
// Typed operands use extended JSON ({"$oid":...}, {"$date":...}).
func (p Pipeline) MarshalJSON() ([]byte, error) {
	out := make([]doc, 0, len(p))
	for _, s := range p {
		out = append(out, stageDoc(s))
	}
	return json.Marshal(out)
}

func stageDoc(s Stage) doc {
	switch st := s.(type) {
	case Match:
		return doc{{"$match", matchDoc(st.Cond)}}
	case Sort:
		keys := make(doc, 0, len(st.Keys))
		for _, k := range st.Keys {
			keys = append(keys, kv{k.Field, int(k.Dir)})
		}
		return doc{{"$sort", keys}}
	case Project:
		fields := make(doc, 0, len(st.Fields))
		for _, f := range st.Fields {
			fields = append(fields, kv{f, 1})
		}
		return doc{{"$project", fields}}
	case Skip:
		return doc{{"$skip", st.N}}
	case Limit:
		return doc{{"$limit", st.N}}
	case Count:
		return doc{{"$count", st.Field}}
	}
	return doc{{"$unknown", s.Kind().String()}}
}

func matchDoc(m MatchCondition) doc {
	d := make(doc, 0, len(m.Fields)+1)
	for _, fm := range m.Fields {
		d = append(d, kv{fm.Field, condValue(fm.Cond)})
	}
	if len(m.Or) > 0 {
		alts := make([]doc, len(m.Or))
		for i, alt := range m.Or {
			alts[i] = matchDoc(alt)
		}
		d = append(d, kv{OpOr.Key(), alts})
	}
	return d
}

func condValue(c FieldCondition) any {
	if !c.IsOps() {
		return jsonValue(c.Literal)
	}
	d := make(doc, 0, len(c.Ops)+1)
	for _, ov := range c.Ops {
		if p, ok := ov.Value.(Pattern); ok && ov.Op == OpRegex {
			d = append(d, kv{"$regex", p.Expr()})
			if opts := p.Options(); opts != "" {
				d = append(d, kv{"$options", opts})
			}
			continue
		}
		d = append(d, kv{ov.Op.Key(), jsonValue(ov.Value)})
	}
	return d
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case Pattern:
		d := doc{{"$regex", x.Expr()}}
		if opts := x.Options(); opts != "" {
			d = append(d, kv{"$options", opts})
		}
		return d
	case RelationID:
		if x.Valid() {
			return doc{{"$oid", string(x)}}
		}
		return string(x)
	case Invalid:
		return doc{{"$invalid", doc{{"type", x.Type}, {"raw", x.Raw}}}}
	case time.Time:
		return doc{{"$date", x.UTC().Format(time.RFC3339Nano)}}
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = jsonValue(e)
		}
		return out
	}
	return v
}
