package sqlgen

import (
	"strings"

	"github.com/nonibytes/pipeq/pipeq/storage"
)

// ProjectDocument keeps _id plus the listed fields. Dotted fields keep the
// nested value under the same path; missing fields are omitted.
func ProjectDocument(doc storage.Document, fields []string) storage.Document {
	out := storage.Document{}
	if id, ok := doc["_id"]; ok {
		out["_id"] = id
	}
	for _, f := range fields {
		path := strings.Split(f, ".")
		v, ok := lookup(doc, path)
		if !ok {
			continue
		}
		place(out, path, v)
	}
	return out
}

func lookup(doc map[string]any, path []string) (any, bool) {
	var cur any = doc
	for _, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			if d, isDoc := cur.(storage.Document); isDoc {
				m = d
			} else {
				return nil, false
			}
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func place(dst map[string]any, path []string, v any) {
	for _, seg := range path[:len(path)-1] {
		next, ok := dst[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			dst[seg] = next
		}
		dst = next
	}
	dst[path[len(path)-1]] = v
}
