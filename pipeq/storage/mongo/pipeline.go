package mongo

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/nonibytes/pipeq/pipeq/stage"
)

// nothing is a condition no stored value satisfies.
var nothing = bson.D{{Key: "$in", Value: bson.A{}}}

// ToBSON converts a compiled pipeline into driver stages.
func ToBSON(p stage.Pipeline) (mongo.Pipeline, error) {
	out := make(mongo.Pipeline, 0, len(p))
	for i, s := range p {
		var d bson.D
		switch st := s.(type) {
		case stage.Match:
			d = bson.D{{Key: "$match", Value: matchDoc(st.Cond)}}
		case stage.Sort:
			keys := bson.D{}
			for _, k := range st.Keys {
				keys = append(keys, bson.E{Key: k.Field, Value: int32(k.Dir)})
			}
			d = bson.D{{Key: "$sort", Value: keys}}
		case stage.Project:
			fields := bson.D{}
			for _, f := range st.Fields {
				fields = append(fields, bson.E{Key: f, Value: int32(1)})
			}
			d = bson.D{{Key: "$project", Value: fields}}
		case stage.Skip:
			d = bson.D{{Key: "$skip", Value: st.N}}
		case stage.Limit:
			d = bson.D{{Key: "$limit", Value: st.N}}
		case stage.Count:
			d = bson.D{{Key: "$count", Value: st.Field}}
		default:
			return nil, fmt.Errorf("stage %d: unsupported %T", i, s)
		}
		out = append(out, d)
	}
	return out, nil
}

func matchDoc(m stage.MatchCondition) bson.D {
	d := make(bson.D, 0, len(m.Fields)+1)
	for _, fm := range m.Fields {
		d = append(d, bson.E{Key: fm.Field, Value: condValue(fm.Field, fm.Cond)})
	}
	if len(m.Or) > 0 {
		alts := make(bson.A, len(m.Or))
		for i, alt := range m.Or {
			alts[i] = matchDoc(alt)
		}
		d = append(d, bson.E{Key: "$or", Value: alts})
	}
	return d
}

func condValue(field string, c stage.FieldCondition) any {
	if !c.IsOps() {
		if _, bad := c.Literal.(stage.Invalid); bad {
			return nothing
		}
		return value(field, c.Literal)
	}
	ops := make(bson.D, 0, len(c.Ops))
	for _, ov := range c.Ops {
		if ov.Op == stage.OpIn {
			ops = append(ops, bson.E{Key: "$in", Value: inList(field, ov.Value)})
			continue
		}
		if _, bad := ov.Value.(stage.Invalid); bad {
			return nothing
		}
		ops = append(ops, bson.E{Key: ov.Op.Key(), Value: value(field, ov.Value)})
	}
	return ops
}

func inList(field string, v any) bson.A {
	list, ok := v.([]any)
	if !ok {
		list = []any{v}
	}
	out := bson.A{}
	for _, e := range list {
		if _, bad := e.(stage.Invalid); bad || e == nil {
			continue
		}
		out = append(out, value(field, e))
	}
	return out
}

// value converts a compiled operand to its driver form. Relation ids and
// hex _id strings become object ids.
func value(field string, v any) any {
	switch x := v.(type) {
	case stage.RelationID:
		if oid, err := bson.ObjectIDFromHex(string(x)); err == nil {
			return oid
		}
		return string(x)
	case string:
		if field == "_id" {
			if oid, err := bson.ObjectIDFromHex(x); err == nil {
				return oid
			}
		}
		return x
	case stage.Pattern:
		return bson.Regex{Pattern: x.Expr(), Options: x.Options()}
	case time.Time:
		return x.UTC()
	case []any:
		out := make(bson.A, len(x))
		for i, e := range x {
			out[i] = value(field, e)
		}
		return out
	}
	return v
}
