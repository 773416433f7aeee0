package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonibytes/pipeq/pipeq/stage"
	"github.com/nonibytes/pipeq/pipeq/storage"
)

type schemaStub map[string]storage.FieldSpec

func (s schemaStub) ToJSON() ([]byte, error) { return []byte("{}"), nil }

func (s schemaStub) Get(name string) (storage.FieldSpec, bool) {
	spec, ok := s[name]
	return spec, ok
}

func (s schemaStub) HasField(name string) bool {
	_, ok := s[name]
	return ok
}

func (s schemaStub) StringFieldsInOrder() []string { return []string{"name"} }

var schema = schemaStub{
	"name":  {Type: storage.TypeString},
	"price": {Type: storage.TypeNumber},
	"tags":  {Type: storage.TypeString, Array: true},
	"sold":  {Type: storage.TypeDate},
}

func openAdapter(t *testing.T) (*Adapter, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	a := New(path)
	require.NoError(t, a.Connect(context.Background()))
	t.Cleanup(func() { _ = a.Close() })
	require.NoError(t, a.EnsureCollection(context.Background(), "products"))
	return a, path
}

func window(m stage.MatchCondition, field string) stage.Pipeline {
	return stage.Pipeline{
		stage.Match{Cond: m},
		stage.Sort{Keys: []stage.SortKey{{Field: field, Dir: stage.Asc}}},
		stage.Skip{N: 0},
		stage.Limit{N: 100},
	}
}

func names(docs []storage.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i], _ = d["name"].(string)
	}
	return out
}

func TestInsertGetDelete(t *testing.T) {
	a, _ := openAdapter(t)
	ctx := context.Background()

	id, err := a.Insert(ctx, "products", storage.Document{
		"name":      "boot",
		"price":     30.0,
		"sold":      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		"createdAt": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := a.Get(ctx, "products", id)
	require.NoError(t, err)
	assert.Equal(t, id, doc["_id"])
	assert.Equal(t, "boot", doc["name"])
	assert.Equal(t, 30.0, doc["price"])
	assert.Equal(t, "2024-03-01T00:00:00.000Z", doc["sold"])

	_, err = a.Get(ctx, "other", id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	ok, err := a.Delete(ctx, "products", id)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = a.Delete(ctx, "products", id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateReplacesBody(t *testing.T) {
	a, _ := openAdapter(t)
	ctx := context.Background()

	id, err := a.Insert(ctx, "products", storage.Document{"_id": "p1", "name": "boot", "price": 30.0})
	require.NoError(t, err)

	ok, err := a.Update(ctx, "products", id, storage.Document{
		"_id":       "ignored",
		"name":      "boot",
		"tags":      []any{"leather"},
		"updatedAt": time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	doc, err := a.Get(ctx, "products", id)
	require.NoError(t, err)
	assert.Equal(t, "p1", doc["_id"])
	assert.Equal(t, []any{"leather"}, doc["tags"])
	assert.NotContains(t, doc, "price")
	assert.Equal(t, "2024-05-01T00:00:00.000Z", doc["updatedAt"])

	ok, err = a.Update(ctx, "products", "missing", storage.Document{"name": "x"})
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = a.Update(ctx, "other", id, storage.Document{"name": "x"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAggregateFiltersAndCounts(t *testing.T) {
	a, _ := openAdapter(t)
	ctx := context.Background()
	for _, d := range []storage.Document{
		{"name": "Shoe", "price": 25.0, "tags": []any{"feet", "sale"}},
		{"name": "shovel", "price": 15.0, "tags": []any{"garden"}},
		{"name": "hat", "price": 40.0},
	} {
		_, err := a.Insert(ctx, "products", d)
		require.NoError(t, err)
	}

	search := stage.MatchCondition{}.WithOr([]stage.MatchCondition{
		stage.Where("name", stage.Ops(stage.OpValue{Op: stage.OpRegex, Value: stage.ContainsPattern("sho")})),
	})
	docs, err := a.Aggregate(ctx, "products", schema, window(search, "name"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Shoe", "shovel"}, names(docs))

	priced := stage.Where("price", stage.Ops(stage.OpValue{Op: stage.OpGte, Value: 20.0}))
	docs, err = a.Aggregate(ctx, "products", schema, window(priced, "price"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Shoe", "hat"}, names(docs))

	n, err := a.Count(ctx, "products", schema, window(priced, "price").CountPipeline("total"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	tagged := stage.Where("tags", stage.Eq("sale"))
	docs, err = a.Aggregate(ctx, "products", schema, window(tagged, "name"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Shoe"}, names(docs))

	none := stage.Where("price", stage.Eq(stage.Invalid{Raw: "abc", Type: "number"}))
	n, err = a.Count(ctx, "products", schema, window(none, "name").CountPipeline("total"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReopenKeepsDocuments(t *testing.T) {
	a, path := openAdapter(t)
	ctx := context.Background()
	id, err := a.Insert(ctx, "products", storage.Document{"name": "kept"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b := New(path)
	require.NoError(t, b.Connect(ctx))
	defer b.Close()
	doc, err := b.Get(ctx, "products", id)
	require.NoError(t, err)
	assert.Equal(t, "kept", doc["name"])
}

func TestRegexpMatchOnlyText(t *testing.T) {
	ok, err := regexpMatch("(?i)^sh", "Shoe")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = regexpMatch("1", 1.0)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = regexpMatch("x", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}
