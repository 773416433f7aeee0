package query

import (
	"net/url"
	"sort"
	"strings"
)

// Reserved parameter keys. They drive sort, projection, pagination and
// search and are never treated as filters.
const (
	ParamPage   = "page"
	ParamSort   = "sort"
	ParamLimit  = "limit"
	ParamFields = "fields"
	ParamSearch = "search"
)

// IsReserved reports whether key is one of the reserved parameter keys.
func IsReserved(key string) bool {
	switch key {
	case ParamPage, ParamSort, ParamLimit, ParamFields, ParamSearch:
		return true
	}
	return false
}

// Value is a raw parameter value: a scalar string, or an operator group
// such as {"gte": "20", "lte": "100"} when bracket keys were pre-grouped.
type Value struct {
	Scalar string
	Group  map[string]string
}

func Scalar(s string) Value { return Value{Scalar: s} }

func Grouped(g map[string]string) Value { return Value{Group: g} }

func (v Value) IsGroup() bool { return v.Group != nil }

// Empty reports whether the value carries nothing to filter on.
func (v Value) Empty() bool {
	if v.IsGroup() {
		for _, s := range v.Group {
			if s != "" {
				return false
			}
		}
		return true
	}
	return v.Scalar == ""
}

// Params is the per-request parameter mapping. Compilers only read it.
type Params map[string]Value

// FromValues converts url.Values, keeping the first value of repeated keys.
func FromValues(vals url.Values) Params {
	p := make(Params, len(vals))
	for k, vs := range vals {
		if len(vs) == 0 {
			continue
		}
		p[k] = Scalar(vs[0])
	}
	return p
}

// Parse parses a raw query string such as "price[gte]=20&sort=-price".
func Parse(raw string) (Params, error) {
	raw = strings.TrimPrefix(raw, "?")
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return nil, err
	}
	return FromValues(vals), nil
}

// FromMap builds scalar params from a plain string map.
func FromMap(m map[string]string) Params {
	p := make(Params, len(m))
	for k, v := range m {
		p[k] = Scalar(v)
	}
	return p
}

// Get returns the scalar value of key, or "" when absent or grouped.
func (p Params) Get(key string) string {
	v, ok := p[key]
	if !ok || v.IsGroup() {
		return ""
	}
	return v.Scalar
}

// Keys returns the parameter keys in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SplitBracket splits "field[op]" into its parts. Segments after the first
// bracket pair are ignored. ok is false when key has no bracket pair or an
// empty field name.
func SplitBracket(key string) (field, op string, ok bool) {
	open := strings.IndexByte(key, '[')
	if open <= 0 {
		return "", "", false
	}
	end := strings.IndexByte(key[open:], ']')
	if end < 0 {
		return "", "", false
	}
	return key[:open], key[open+1 : open+end], true
}

// SplitList splits a comma-separated list, trimming blanks and dropping
// empty entries.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
