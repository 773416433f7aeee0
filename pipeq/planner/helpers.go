package planner

import (
	"math"
	"strconv"
	"strings"

	"github.com/nonibytes/pipeq/pipeq/query"
	"github.com/nonibytes/pipeq/pipeq/stage"
	"github.com/nonibytes/pipeq/pipeq/storage"
)

// Timestamp fields stamped on every stored document. They resolve as dates
// even when a schema leaves them out.
const (
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
	FieldID        = "_id"
)

// resolve looks a field up in the schema, falling back to the timestamp
// fields. ok is false for unknown fields.
func (c *Compiler) resolve(name string) (storage.FieldSpec, bool) {
	if spec, ok := c.schema.Get(name); ok {
		return spec, true
	}
	switch name {
	case FieldCreatedAt, FieldUpdatedAt:
		return storage.FieldSpec{Type: storage.TypeDate}, true
	}
	return storage.FieldSpec{}, false
}

// knownOutputField reports whether name can be sorted on or projected.
func (c *Compiler) knownOutputField(name string) bool {
	if name == FieldID {
		return true
	}
	_, ok := c.resolve(name)
	return ok
}

// compileSearch adds an "or" of unanchored case-insensitive patterns over
// every string field. The result is a new condition; m is not modified.
func (c *Compiler) compileSearch(m stage.MatchCondition, term string) stage.MatchCondition {
	fields := c.schema.StringFieldsInOrder()
	if len(fields) == 0 {
		c.explain("SEARCH %q skipped: no string fields", term)
		return m
	}
	p := stage.ContainsPattern(term)
	or := make([]stage.MatchCondition, 0, len(fields))
	for _, f := range fields {
		or = append(or, stage.Where(f, stage.Ops(stage.OpValue{Op: stage.OpRegex, Value: p})))
	}
	c.explain("SEARCH %s OVER %s", p, strings.Join(fields, ","))
	return m.WithOr(or)
}

// compileSort parses "-createdAt,name". A leading "-" sorts descending, a
// leading "+" or none ascending. Repeated fields keep their first position.
func (c *Compiler) compileSort(raw string) stage.Sort {
	var keys []stage.SortKey
	seen := map[string]bool{}
	for _, part := range query.SplitList(raw) {
		dir := stage.Asc
		switch part[0] {
		case '-':
			dir = stage.Desc
			part = part[1:]
		case '+':
			part = part[1:]
		}
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		if !c.knownOutputField(part) {
			c.issue(Issue{Kind: IssueUnknownField, Field: part})
		}
		seen[part] = true
		keys = append(keys, stage.SortKey{Field: part, Dir: dir})
	}
	if len(keys) == 0 {
		keys = []stage.SortKey{{Field: c.opts.DefaultSortField, Dir: stage.Desc}}
	}

	steps := make([]string, len(keys))
	for i, k := range keys {
		steps[i] = k.Field + " " + strings.ToUpper(k.Dir.String())
	}
	c.explain("SORT %s", strings.Join(steps, ", "))
	return stage.Sort{Keys: keys}
}

// compileProject parses an inclusion list. ok is false when no field is
// listed, meaning full documents are returned.
func (c *Compiler) compileProject(raw string) (stage.Project, bool) {
	var fields []string
	seen := map[string]bool{}
	for _, f := range query.SplitList(raw) {
		if seen[f] {
			continue
		}
		if !c.knownOutputField(f) {
			c.issue(Issue{Kind: IssueUnknownField, Field: f})
		}
		seen[f] = true
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return stage.Project{}, false
	}
	c.explain("PROJECT %s", strings.Join(fields, ","))
	return stage.Project{Fields: fields}, true
}

// compilePagination resolves page and limit. Missing or zero values take
// the defaults; anything else that is not a positive integer also takes the
// default and is reported.
func (c *Compiler) compilePagination(rawPage, rawLimit string) (page, limit int64) {
	page = c.positiveInt(query.ParamPage, rawPage, DefaultPage)
	limit = c.positiveInt(query.ParamLimit, rawLimit, c.opts.DefaultLimit)
	c.explain("SKIP %d", skipFor(page, limit))
	c.explain("LIMIT %d", limit)
	return page, limit
}

func (c *Compiler) positiveInt(name, raw string, def int64) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		c.issue(Issue{Kind: IssueCoercion, Field: name, Raw: raw, Expected: "non-negative integer"})
		return def
	}
	if n == 0 {
		return def
	}
	return n
}

func skipFor(page, limit int64) int64 {
	if page-1 > math.MaxInt64/limit {
		return math.MaxInt64
	}
	return (page - 1) * limit
}
