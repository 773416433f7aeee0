package pipeq_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nonibytes/pipeq/pipeq"
	"github.com/nonibytes/pipeq/pipeq/query"
	"github.com/nonibytes/pipeq/pipeq/storage/sqlite"
)

func monotonicNow(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

func newStore(t *testing.T, opts pipeq.StoreOptions) *pipeq.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	opts.Now = monotonicNow(time.Unix(1700000000, 0)) // deterministic ordering

	st, err := pipeq.Open(context.Background(), sqlite.New(dbPath), opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func productSchema() pipeq.Schema {
	return pipeq.Schema{
		Fields: map[string]pipeq.FieldSpec{
			"name":     {Type: pipeq.FieldString},
			"category": {Type: pipeq.FieldString},
			"price":    {Type: pipeq.FieldNumber},
			"inStock":  {Type: pipeq.FieldBoolean},
			"tags":     {Type: pipeq.FieldString, Array: true},
		},
		Order: []string{"name", "category"},
	}
}

func seedProducts(t *testing.T, c *pipeq.Collection) {
	t.Helper()
	var b pipeq.Batch
	for _, doc := range []string{
		`{"name":"boot","category":"shoes","price":30,"inStock":true,"tags":["leather"]}`,
		`{"name":"sandal","category":"shoes","price":20,"inStock":false,"tags":["summer"]}`,
		`{"name":"hat","category":"head","price":15,"inStock":true}`,
		`{"name":"scarf","category":"neck","price":25,"inStock":true,"tags":["winter","wool"]}`,
	} {
		if err := b.InsertJSON([]byte(doc)); err != nil {
			t.Fatalf("InsertJSON: %v", err)
		}
	}
	n, err := c.Apply(context.Background(), b)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if n != 4 {
		t.Fatalf("applied %d ops, want 4", n)
	}
}

func list(t *testing.T, c *pipeq.Collection, raw string) *pipeq.ListResult {
	t.Helper()
	params, err := query.Parse(raw)
	if err != nil {
		t.Fatalf("Parse(%q): %v", raw, err)
	}
	res, err := c.List(context.Background(), params)
	if err != nil {
		t.Fatalf("List(%q): %v", raw, err)
	}
	return res
}

func names(res *pipeq.ListResult) []string {
	out := make([]string, len(res.Items))
	for i, d := range res.Items {
		out[i], _ = d["name"].(string)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestListPaginates_SQLite(t *testing.T) {
	st := newStore(t, pipeq.DefaultStoreOptions())
	c, err := st.Collection(context.Background(), "products", productSchema())
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	seedProducts(t, c)

	res := list(t, c, "price[gte]=20&sort=name&page=1&limit=2")
	if got := names(res); !equal(got, []string{"boot", "sandal"}) {
		t.Fatalf("page 1 = %v", got)
	}
	if res.Count != 3 || res.TotalPages != 2 || res.CurrentPage != 1 || res.PageSize != 2 {
		t.Fatalf("metadata = %+v", res)
	}

	res = list(t, c, "price[gte]=20&sort=name&page=2&limit=2")
	if got := names(res); !equal(got, []string{"scarf"}) {
		t.Fatalf("page 2 = %v", got)
	}
	if res.Count != 3 {
		t.Fatalf("count on page 2 = %d, want 3", res.Count)
	}

	res = list(t, c, "price[gte]=20&sort=name&page=9&limit=2")
	if len(res.Items) != 0 || res.Count != 3 {
		t.Fatalf("past the end: %d items, count %d", len(res.Items), res.Count)
	}
}

func TestListFilters_SQLite(t *testing.T) {
	st := newStore(t, pipeq.DefaultStoreOptions())
	c, err := st.Collection(context.Background(), "products", productSchema())
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	seedProducts(t, c)

	cases := []struct {
		raw  string
		want []string
	}{
		{"category=sho&sort=name", []string{"boot", "sandal"}},
		{"category=SHO&sort=name", []string{"boot", "sandal"}},
		{"search=ca&sort=name", []string{"scarf"}},
		{"search=he&sort=name", []string{"hat"}},
		{"inStock=false", []string{"sandal"}},
		{"tags=wool", []string{"scarf"}},
		{"price[in]=15,30&sort=-price", []string{"boot", "hat"}},
		{"price[gt]=15&price[lt]=30&sort=price", []string{"sandal", "scarf"}},
		{"name[regex]=^s.*l$", []string{"sandal"}},
		{"name[ne]=boot&category=sh", []string{"sandal"}},
		{"price=abc", []string{}},
		{"sort=createdAt", []string{"boot", "sandal", "hat", "scarf"}},
		{"", []string{"scarf", "hat", "sandal", "boot"}},
	}
	for _, tc := range cases {
		res := list(t, c, tc.raw)
		if got := names(res); !equal(got, tc.want) {
			t.Errorf("%q: got %v, want %v", tc.raw, got, tc.want)
		}
		if res.Count != int64(len(tc.want)) {
			t.Errorf("%q: count %d, want %d", tc.raw, res.Count, len(tc.want))
		}
	}
}

func TestListProjects_SQLite(t *testing.T) {
	st := newStore(t, pipeq.DefaultStoreOptions())
	c, err := st.Collection(context.Background(), "products", productSchema())
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	seedProducts(t, c)

	res := list(t, c, "fields=name&sort=name&limit=1")
	if len(res.Items) != 1 {
		t.Fatalf("items = %d", len(res.Items))
	}
	doc := res.Items[0]
	if len(doc) != 2 || doc["name"] != "boot" || doc["_id"] == nil {
		t.Fatalf("projected doc = %v", doc)
	}
}

func TestStrictRejects_SQLite(t *testing.T) {
	opts := pipeq.DefaultStoreOptions()
	opts.Compile.Strict = true
	st := newStore(t, opts)
	c, err := st.Collection(context.Background(), "products", productSchema())
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}

	params, _ := query.Parse("color=red")
	_, err = c.List(context.Background(), params)
	if !pipeq.IsKind(err, pipeq.ErrUnknownField) {
		t.Fatalf("expected unknown_field, got %v", err)
	}
}

func TestGetDelete_SQLite(t *testing.T) {
	st := newStore(t, pipeq.DefaultStoreOptions())
	ctx := context.Background()
	c, err := st.Collection(ctx, "products", productSchema())
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}

	id, err := c.InsertJSON(ctx, []byte(`{"_id":"p1","name":"boot","price":30}`))
	if err != nil {
		t.Fatalf("InsertJSON: %v", err)
	}
	if id != "p1" {
		t.Fatalf("id = %q", id)
	}
	doc, err := c.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc["name"] != "boot" || doc["price"] != 30.0 {
		t.Fatalf("doc = %v", doc)
	}
	if _, ok := doc["createdAt"].(string); !ok {
		t.Fatalf("createdAt not stored: %v", doc)
	}

	if _, err := c.InsertJSON(ctx, []byte(`{"price":"cheap"}`)); !pipeq.IsKind(err, pipeq.ErrTypeMismatch) {
		t.Fatalf("expected type_mismatch, got %v", err)
	}

	ok, err := c.Delete(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	if _, err := c.Get(ctx, id); !pipeq.IsKind(err, pipeq.ErrNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestUpdate_SQLite(t *testing.T) {
	st := newStore(t, pipeq.DefaultStoreOptions())
	ctx := context.Background()
	c, err := st.Collection(ctx, "products", productSchema())
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}

	id, err := c.InsertJSON(ctx, []byte(`{"_id":"p1","name":"boot","price":30,"tags":["leather"]}`))
	if err != nil {
		t.Fatalf("InsertJSON: %v", err)
	}
	before, err := c.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	after, err := c.UpdateJSON(ctx, id, []byte(`{"price":35,"inStock":true}`))
	if err != nil {
		t.Fatalf("UpdateJSON: %v", err)
	}
	if after["name"] != "boot" || after["price"] != 35.0 || after["inStock"] != true {
		t.Fatalf("after = %v", after)
	}
	if after["createdAt"] != before["createdAt"] {
		t.Fatalf("createdAt changed: %v -> %v", before["createdAt"], after["createdAt"])
	}
	if after["updatedAt"] == before["updatedAt"] {
		t.Fatalf("updatedAt not restamped: %v", after["updatedAt"])
	}

	// the updated document is what list sees
	res := list(t, c, "price[gte]=35")
	if got := names(res); !equal(got, []string{"boot"}) {
		t.Fatalf("names = %v", got)
	}

	if _, err := c.UpdateJSON(ctx, id, []byte(`{"price":"cheap"}`)); !pipeq.IsKind(err, pipeq.ErrTypeMismatch) {
		t.Fatalf("expected type_mismatch, got %v", err)
	}
	if _, err := c.UpdateJSON(ctx, id, []byte(`{"_id":"p2"}`)); !pipeq.IsKind(err, pipeq.ErrTypeMismatch) {
		t.Fatalf("expected type_mismatch for id change, got %v", err)
	}
	if _, err := c.UpdateJSON(ctx, "missing", []byte(`{"price":1}`)); !pipeq.IsKind(err, pipeq.ErrNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}

	doc, err := c.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc["price"] != 35.0 {
		t.Fatalf("rejected update was stored: %v", doc)
	}
}

func TestCollectionsAreIsolated_SQLite(t *testing.T) {
	st := newStore(t, pipeq.DefaultStoreOptions())
	ctx := context.Background()
	a, err := st.Collection(ctx, "a", productSchema())
	if err != nil {
		t.Fatalf("Collection a: %v", err)
	}
	b, err := st.Collection(ctx, "b", productSchema())
	if err != nil {
		t.Fatalf("Collection b: %v", err)
	}
	seedProducts(t, a)

	if res := list(t, b, ""); res.Count != 0 {
		t.Fatalf("collection b sees %d docs", res.Count)
	}
	if _, err := st.Collection(ctx, "bad-name", productSchema()); !pipeq.IsKind(err, pipeq.ErrSchema) {
		t.Fatalf("expected schema error, got %v", err)
	}
}
