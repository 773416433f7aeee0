package mongo

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nonibytes/pipeq/pipeq/stage"
	"github.com/nonibytes/pipeq/pipeq/storage"
)

// encode converts a prepared document value for storage.
func encode(v any) any {
	switch x := v.(type) {
	case stage.RelationID:
		if oid, err := bson.ObjectIDFromHex(string(x)); err == nil {
			return oid
		}
		return string(x)
	case time.Time:
		return x.UTC()
	case []any:
		out := make(bson.A, len(x))
		for i, e := range x {
			out[i] = encode(e)
		}
		return out
	case map[string]any:
		out := make(bson.M, len(x))
		for k, e := range x {
			out[k] = encode(e)
		}
		return out
	}
	return v
}

// normalizeDoc turns driver types into plain Go values: object ids become
// hex strings, dates time.Time, and nested documents maps.
func normalizeDoc(m bson.M) storage.Document {
	out := make(storage.Document, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch x := v.(type) {
	case bson.ObjectID:
		return x.Hex()
	case bson.DateTime:
		return x.Time().UTC()
	case bson.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case bson.A:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	}
	return v
}

func idString(v any) string {
	if oid, ok := v.(bson.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(v)
}
