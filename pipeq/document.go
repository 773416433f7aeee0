package pipeq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nonibytes/pipeq/pipeq/planner"
	"github.com/nonibytes/pipeq/pipeq/query"
	"github.com/nonibytes/pipeq/pipeq/stage"
)

// prepareDocument validates doc against the schema and returns a copy ready
// for storage: dates become time.Time, relations stage.RelationID, numbers
// float64, and createdAt/updatedAt are stamped. Fields outside the schema
// keep their decoded value, with JSON numbers as float64.
func prepareDocument(schema Schema, doc Document, now time.Time) (Document, error) {
	out := make(Document, len(doc)+2)
	for k, v := range doc {
		out[k] = plainValue(v)
	}

	if id, ok := out[planner.FieldID]; ok {
		switch x := id.(type) {
		case string:
			if x == "" {
				delete(out, planner.FieldID)
			}
		case nil:
			delete(out, planner.FieldID)
		default:
			return nil, TypeMismatch(planner.FieldID, fmt.Sprintf("must be a string, got %T", id))
		}
	}

	for _, name := range schema.FieldNames() {
		v, ok := out[name]
		if !ok || v == nil {
			continue
		}
		spec := schema.Fields[name]
		conv, err := convertField(name, spec, v)
		if err != nil {
			return nil, err
		}
		out[name] = conv
	}

	if v, ok := out[planner.FieldCreatedAt]; ok && v != nil {
		if _, isSchema := schema.Fields[planner.FieldCreatedAt]; !isSchema {
			t, err := convertScalar(planner.FieldCreatedAt, FieldDate, v)
			if err != nil {
				return nil, err
			}
			out[planner.FieldCreatedAt] = t
		}
	} else {
		out[planner.FieldCreatedAt] = now
	}
	out[planner.FieldUpdatedAt] = now
	return out, nil
}

func convertField(name string, spec FieldSpec, v any) (any, error) {
	if !spec.Array {
		return convertScalar(name, spec.Type, v)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, TypeMismatch(name, fmt.Sprintf("must be an array of %s", spec.Type))
	}
	out := make([]any, len(list))
	for i, e := range list {
		conv, err := convertScalar(name, spec.Type, e)
		if err != nil {
			return nil, err
		}
		out[i] = conv
	}
	return out, nil
}

func convertScalar(name string, t FieldType, v any) (any, error) {
	switch t {
	case FieldString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case FieldNumber:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case json.Number:
			f, err := n.Float64()
			if err == nil {
				return f, nil
			}
		}
	case FieldBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case FieldDate:
		switch d := v.(type) {
		case time.Time:
			return d.UTC(), nil
		case string:
			if parsed, ok := query.ParseDate(d); ok {
				return parsed, nil
			}
		}
	case FieldRelation:
		switch id := v.(type) {
		case stage.RelationID:
			return id, nil
		case string:
			return stage.RelationID(id), nil
		}
	}
	return nil, TypeMismatch(name, fmt.Sprintf("must be a %s, got %v", t, v))
}

func plainValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plainValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = plainValue(e)
		}
		return out
	}
	return v
}
