package planner

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonibytes/pipeq/pipeq/query"
	"github.com/nonibytes/pipeq/pipeq/stage"
	"github.com/nonibytes/pipeq/pipeq/storage"
)

// testSchema is a minimal storage.Schema keeping declaration order.
type testSchema struct {
	names []string
	specs map[string]storage.FieldSpec
}

func newTestSchema(fields ...any) testSchema {
	s := testSchema{specs: map[string]storage.FieldSpec{}}
	for i := 0; i < len(fields); i += 2 {
		name := fields[i].(string)
		s.names = append(s.names, name)
		s.specs[name] = fields[i+1].(storage.FieldSpec)
	}
	return s
}

func (s testSchema) ToJSON() ([]byte, error) { return json.Marshal(s.specs) }

func (s testSchema) Get(name string) (storage.FieldSpec, bool) {
	spec, ok := s.specs[name]
	return spec, ok
}

func (s testSchema) HasField(name string) bool {
	_, ok := s.specs[name]
	return ok
}

func (s testSchema) StringFieldsInOrder() []string {
	var out []string
	for _, n := range s.names {
		if s.specs[n].Type == storage.TypeString {
			out = append(out, n)
		}
	}
	return out
}

var (
	str     = storage.FieldSpec{Type: storage.TypeString}
	num     = storage.FieldSpec{Type: storage.TypeNumber}
	date    = storage.FieldSpec{Type: storage.TypeDate}
	boolean = storage.FieldSpec{Type: storage.TypeBoolean}
	rel     = storage.FieldSpec{Type: storage.TypeRelation}
	rels    = storage.FieldSpec{Type: storage.TypeRelation, Array: true}
)

func shopSchema() testSchema {
	return newTestSchema(
		"category", str,
		"price", num,
		"createdAt", date,
		"name", str,
	)
}

const oid = "507f1f77bcf86cd799439011"

func compile(t *testing.T, s storage.Schema, raw string) *Output {
	t.Helper()
	params, err := query.Parse(raw)
	require.NoError(t, err)
	out := Compile(s, params, Options{})
	require.NoError(t, out.Pipeline.Validate())
	require.NoError(t, out.CountPipeline.ValidateCount())
	return out
}

func regexOp(p stage.Pattern) stage.FieldCondition {
	return stage.Ops(stage.OpValue{Op: stage.OpRegex, Value: p})
}

func TestCompileScenario(t *testing.T) {
	out := compile(t, shopSchema(),
		"category=shoes&price[gte]=20&price[lte]=100&sort=-createdAt,name&fields=name,price&page=2&limit=10")

	want := stage.Pipeline{
		stage.Match{Cond: stage.MatchCondition{}.
			WithField("category", regexOp(stage.PrefixPattern("shoes"))).
			WithField("price", stage.Ops(
				stage.OpValue{Op: stage.OpGte, Value: 20.0},
				stage.OpValue{Op: stage.OpLte, Value: 100.0},
			))},
		stage.Sort{Keys: []stage.SortKey{{Field: "createdAt", Dir: stage.Desc}, {Field: "name", Dir: stage.Asc}}},
		stage.Project{Fields: []string{"name", "price"}},
		stage.Skip{N: 10},
		stage.Limit{N: 10},
	}
	if diff := cmp.Diff(want, out.Pipeline); diff != "" {
		t.Fatalf("pipeline mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, out.Issues)
	assert.Equal(t, int64(2), out.Page)
	assert.Equal(t, int64(10), out.Limit)
}

func TestCompileSearchScenario(t *testing.T) {
	out := compile(t, shopSchema(), "search=sho")

	require.Equal(t, []stage.Kind{stage.KindMatch, stage.KindSort, stage.KindSkip, stage.KindLimit}, out.Pipeline.Kinds())
	m, _ := out.Pipeline.Match()
	assert.Empty(t, m.Fields)
	require.Len(t, m.Or, 2)
	for i, field := range []string{"category", "name"} {
		c, ok := m.Or[i].Get(field)
		require.True(t, ok, field)
		v, _ := c.Get(stage.OpRegex)
		assert.Equal(t, stage.ContainsPattern("sho"), v)
	}
}

func TestFilterAndSearchShareOneMatch(t *testing.T) {
	out := compile(t, shopSchema(), "search=sho&price[gt]=5")

	matches := 0
	for _, s := range out.Pipeline {
		if s.Kind() == stage.KindMatch {
			matches++
		}
	}
	assert.Equal(t, 1, matches)

	m, _ := out.Pipeline.Match()
	_, hasPrice := m.Get("price")
	assert.True(t, hasPrice)
	assert.Len(t, m.Or, 2)

	// the count pipeline holds an independent copy
	cm, _ := out.CountPipeline.Match()
	cm.Or[0].Fields[0].Field = "mutated"
	m, _ = out.Pipeline.Match()
	assert.Equal(t, "category", m.Or[0].Fields[0].Field)
}

func TestStringFilterIsPrefixMatch(t *testing.T) {
	out := compile(t, shopSchema(), "name=Run.ning")
	m, _ := out.Pipeline.Match()
	c, _ := m.Get("name")
	v, _ := c.Get(stage.OpRegex)
	p := v.(stage.Pattern)
	assert.True(t, p.Anchored)
	assert.True(t, p.CaseInsensitive)
	assert.Equal(t, `^Run\.ning`, p.Expr())
}

func TestRelationFilters(t *testing.T) {
	s := newTestSchema("owner", rel, "tags", rels)
	out := compile(t, s, "owner="+oid+"&tags="+oid)
	m, _ := out.Pipeline.Match()

	owner, _ := m.Get("owner")
	assert.False(t, owner.IsOps())
	assert.Equal(t, stage.RelationID(oid), owner.Literal)

	tags, _ := m.Get("tags")
	in, ok := tags.Get(stage.OpIn)
	require.True(t, ok)
	assert.Equal(t, []any{stage.RelationID(oid)}, in)
	assert.Empty(t, out.Issues)
}

func TestInvalidRelationIsReported(t *testing.T) {
	s := newTestSchema("owner", rel)
	out := compile(t, s, "owner=xyz")
	m, _ := out.Pipeline.Match()
	c, _ := m.Get("owner")
	assert.Equal(t, stage.RelationID("xyz"), c.Literal)
	require.Len(t, out.Issues, 1)
	assert.Equal(t, IssueCoercion, out.Issues[0].Kind)
	assert.Equal(t, "relation", out.Issues[0].Expected)
}

func TestFallbackCoercion(t *testing.T) {
	s := newTestSchema("price", num, "active", boolean, "since", date)
	out := compile(t, s, "price=12.5&active=true&since=2024-01-02")
	m, _ := out.Pipeline.Match()

	price, _ := m.Get("price")
	assert.Equal(t, 12.5, price.Literal)
	active, _ := m.Get("active")
	assert.Equal(t, true, active.Literal)
	since, _ := m.Get("since")
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), since.Literal)
}

func TestCoercionFailureMatchesNothing(t *testing.T) {
	out := compile(t, shopSchema(), "price=cheap&createdAt[gte]=someday")
	m, _ := out.Pipeline.Match()

	price, _ := m.Get("price")
	assert.Equal(t, stage.Invalid{Raw: "cheap", Type: "number"}, price.Literal)
	created, _ := m.Get("createdAt")
	v, _ := created.Get(stage.OpGte)
	assert.IsType(t, stage.Invalid{}, v)

	require.Len(t, out.Issues, 2)
	for _, is := range out.Issues {
		assert.Equal(t, IssueCoercion, is.Kind)
	}
}

func TestUnknownFieldPassesThrough(t *testing.T) {
	out := compile(t, shopSchema(), "color=red")
	m, _ := out.Pipeline.Match()
	c, _ := m.Get("color")
	assert.Equal(t, "red", c.Literal)
	assert.Equal(t, []Issue{{Kind: IssueUnknownField, Field: "color"}}, out.Issues)
}

func TestInvalidOperatorDropped(t *testing.T) {
	out := compile(t, shopSchema(), "price[where]=1&price[gt]=3&price[or]=2")
	m, _ := out.Pipeline.Match()
	c, _ := m.Get("price")
	require.Len(t, c.Ops, 1)
	assert.Equal(t, stage.OpGt, c.Ops[0].Op)

	var tokens []string
	for _, is := range out.Issues {
		assert.Equal(t, IssueInvalidOperator, is.Kind)
		tokens = append(tokens, is.Token)
	}
	assert.ElementsMatch(t, []string{"where", "or"}, tokens)
}

func TestGroupedOperators(t *testing.T) {
	params := query.Params{
		"price": query.Grouped(map[string]string{"gte": "20", "lte": "100"}),
	}
	out := Compile(shopSchema(), params, Options{})
	m, _ := out.Pipeline.Match()
	c, _ := m.Get("price")
	want := stage.Ops(
		stage.OpValue{Op: stage.OpGte, Value: 20.0},
		stage.OpValue{Op: stage.OpLte, Value: 100.0},
	)
	assert.Equal(t, want, c)
}

func TestBracketOverridesLiteral(t *testing.T) {
	out := compile(t, shopSchema(), "price=5&price[gte]=3")
	m, _ := out.Pipeline.Match()
	c, _ := m.Get("price")
	assert.Equal(t, stage.Ops(stage.OpValue{Op: stage.OpGte, Value: 3.0}), c)
}

func TestInAndRegexOperands(t *testing.T) {
	out := compile(t, shopSchema(), "price[in]=1,2,x&name[regex]=^Al")
	m, _ := out.Pipeline.Match()

	price, _ := m.Get("price")
	in, _ := price.Get(stage.OpIn)
	assert.Equal(t, []any{1.0, 2.0, stage.Invalid{Raw: "x", Type: "number"}}, in)

	name, _ := m.Get("name")
	re, _ := name.Get(stage.OpRegex)
	assert.Equal(t, stage.RawPattern("^Al"), re)

	bad := compile(t, shopSchema(), "name[regex]=(")
	m, _ = bad.Pipeline.Match()
	name, _ = m.Get("name")
	re, _ = name.Get(stage.OpRegex)
	assert.IsType(t, stage.Invalid{}, re)
}

func TestEmptyValuesSkipped(t *testing.T) {
	out := compile(t, shopSchema(), "category=&price[gte]=")
	_, ok := out.Pipeline.Match()
	assert.False(t, ok)
}

func TestSortDefaultAndParsing(t *testing.T) {
	out := compile(t, shopSchema(), "")
	srt, _ := out.Pipeline.Sort()
	assert.Equal(t, []stage.SortKey{{Field: "createdAt", Dir: stage.Desc}}, srt.Keys)

	out = compile(t, shopSchema(), "sort=name,-price,+category,name")
	srt, _ = out.Pipeline.Sort()
	assert.Equal(t, []stage.SortKey{
		{Field: "name", Dir: stage.Asc},
		{Field: "price", Dir: stage.Desc},
		{Field: "category", Dir: stage.Asc},
	}, srt.Keys)

	out = Compile(shopSchema(), query.Params{}, Options{DefaultSortField: "price"})
	srt, _ = out.Pipeline.Sort()
	assert.Equal(t, []stage.SortKey{{Field: "price", Dir: stage.Desc}}, srt.Keys)
}

func TestProjection(t *testing.T) {
	out := compile(t, shopSchema(), "fields=name, price,name")
	p, ok := out.Pipeline.Project()
	require.True(t, ok)
	assert.Equal(t, []string{"name", "price"}, p.Fields)

	out = compile(t, shopSchema(), "fields=")
	_, ok = out.Pipeline.Project()
	assert.False(t, ok)
}

func TestPaginationDefaults(t *testing.T) {
	out := compile(t, shopSchema(), "")
	skip, _ := out.Pipeline.Skip()
	limit, _ := out.Pipeline.Limit()
	assert.Equal(t, int64(0), skip)
	assert.Equal(t, int64(10000), limit)

	out = compile(t, shopSchema(), "page=0&limit=0")
	skip, _ = out.Pipeline.Skip()
	limit, _ = out.Pipeline.Limit()
	assert.Equal(t, int64(0), skip)
	assert.Equal(t, int64(10000), limit)
	assert.Empty(t, out.Issues)

	out = compile(t, shopSchema(), "page=-2&limit=abc")
	skip, _ = out.Pipeline.Skip()
	limit, _ = out.Pipeline.Limit()
	assert.Equal(t, int64(0), skip)
	assert.Equal(t, int64(10000), limit)
	assert.Len(t, out.Issues, 2)

	out = Compile(shopSchema(), query.FromMap(map[string]string{"page": "3"}), Options{DefaultLimit: 25})
	skip, _ = out.Pipeline.Skip()
	assert.Equal(t, int64(50), skip)
}

func TestCountPipelineNeverWindowed(t *testing.T) {
	for _, raw := range []string{"", "page=4&limit=3", "search=x&fields=name", "category=a&sort=name"} {
		out := compile(t, shopSchema(), raw)
		for _, s := range out.CountPipeline {
			assert.NotEqual(t, stage.KindSkip, s.Kind(), raw)
			assert.NotEqual(t, stage.KindLimit, s.Kind(), raw)
		}
		c, ok := out.CountPipeline.Count()
		require.True(t, ok)
		assert.Equal(t, "total", c.Field)
		assert.Len(t, out.CountPipeline, len(out.Pipeline)-1)
	}
}

func TestCompileIsPure(t *testing.T) {
	params := query.Params{
		"price": query.Grouped(map[string]string{"gte": "20"}),
		"name":  query.Scalar("a"),
	}
	first := Compile(shopSchema(), params, Options{})
	second := Compile(shopSchema(), params, Options{})
	if diff := cmp.Diff(first.Pipeline, second.Pipeline); diff != "" {
		t.Fatalf("repeated compile differs:\n%s", diff)
	}
	assert.Equal(t, map[string]string{"gte": "20"}, params["price"].Group)
}

func TestExplainSteps(t *testing.T) {
	out := compile(t, shopSchema(), "price[gte]=20&sort=name&page=2&limit=5")
	assert.Equal(t, []string{
		"MATCH price GTE 20",
		"SORT name ASC",
		"SKIP 5",
		"LIMIT 5",
	}, out.ExplainSteps)
}
