package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/nonibytes/pipeq/pipeq/stage"
	"github.com/nonibytes/pipeq/pipeq/storage"
)

// DateLayouts are tried in order when coercing a date value.
var DateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// CoercionError describes a raw value that does not fit its field type.
type CoercionError struct {
	Raw      string
	Expected storage.FieldType
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot coerce %q to %s", e.Raw, e.Expected)
}

// Coerce converts raw into the value stored for a field of type t:
// finite float64 for numbers, bool for booleans (true iff raw is "true"),
// time.Time for dates, stage.RelationID for relations and the string
// itself otherwise. On failure it returns a non-matching value alongside
// a *CoercionError: stage.Invalid for numbers and dates, the unconvertible
// stage.RelationID for relations.
func Coerce(t storage.FieldType, raw string) (any, error) {
	switch t {
	case storage.TypeNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return stage.Invalid{Raw: raw, Type: string(t)}, &CoercionError{Raw: raw, Expected: t}
		}
		return f, nil
	case storage.TypeBoolean:
		return raw == "true", nil
	case storage.TypeDate:
		if d, ok := ParseDate(raw); ok {
			return d, nil
		}
		return stage.Invalid{Raw: raw, Type: string(t)}, &CoercionError{Raw: raw, Expected: t}
	case storage.TypeRelation:
		id := stage.RelationID(strings.TrimSpace(raw))
		if !id.Valid() {
			return id, &CoercionError{Raw: raw, Expected: t}
		}
		return id, nil
	}
	return raw, nil
}

// ParseDate parses s with DateLayouts. Layouts without a zone are UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range DateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.UTC(), true
		}
	}
	return time.Time{}, false
}
