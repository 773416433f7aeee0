package pipeq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/nonibytes/pipeq/pipeq/planner"
	"github.com/nonibytes/pipeq/pipeq/query"
	"github.com/nonibytes/pipeq/pipeq/storage"
)

// Store is an open backend holding any number of collections
type Store struct {
	adapter storage.Adapter
	opts    StoreOptions
	log     *zap.Logger
}

// Open connects the adapter
func Open(ctx context.Context, adapter storage.Adapter, opts StoreOptions) (*Store, error) {
	opts = opts.withDefaults()
	if err := adapter.Connect(ctx); err != nil {
		return nil, Wrap(ErrIO, "connect to backend", err)
	}
	opts.Logger.Debug("store opened", zap.String("backend", string(adapter.Backend())))
	return &Store{adapter: adapter, opts: opts, log: opts.Logger}, nil
}

// Close closes the store
func (s *Store) Close() error {
	if err := s.adapter.Close(); err != nil {
		return Wrap(ErrIO, "close backend", err)
	}
	return nil
}

func (s *Store) Backend() storage.Backend { return s.adapter.Backend() }

func (s *Store) Adapter() storage.Adapter { return s.adapter }

var collectionNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Collection validates schema and prepares the backend for the named
// collection
func (s *Store) Collection(ctx context.Context, name string, schema Schema) (*Collection, error) {
	if !collectionNameRe.MatchString(name) {
		return nil, SchemaError(fmt.Sprintf("invalid collection name: %s (must match %s)", name, collectionNameRe.String()))
	}
	schema = schema.normalize()
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if err := s.adapter.EnsureCollection(ctx, name); err != nil {
		return nil, Wrap(ErrBackend, "ensure collection", err)
	}
	return &Collection{
		name:   name,
		schema: schema,
		store:  s,
		log:    s.log.With(zap.String("collection", name)),
	}, nil
}

// Collection is a schema-typed set of documents
type Collection struct {
	name   string
	schema Schema
	store  *Store
	log    *zap.Logger
}

func (c *Collection) Name() string { return c.name }

// Schema returns the collection schema
func (c *Collection) Schema() Schema { return c.schema }

// Compile compiles params with the store's compile options
func (c *Collection) Compile(params query.Params) (*planner.Output, error) {
	out, err := Compile(c.schema, params, c.store.opts.Compile)
	if err != nil {
		c.log.Debug("query rejected", zap.Error(err))
		return nil, err
	}
	if len(out.Issues) > 0 {
		issues := make([]string, len(out.Issues))
		for i, is := range out.Issues {
			issues[i] = is.String()
		}
		c.log.Debug("query degraded", zap.Strings("issues", issues))
	}
	c.log.Debug("query compiled", zap.Strings("explain", out.ExplainSteps))
	return out, nil
}

// Insert stores doc and returns its id
func (c *Collection) Insert(ctx context.Context, doc Document) (string, error) {
	prepared, err := prepareDocument(c.schema, doc, c.store.opts.Now())
	if err != nil {
		return "", err
	}
	id, err := c.store.adapter.Insert(ctx, c.name, prepared)
	if err != nil {
		return "", Wrap(ErrBackend, "insert document", err)
	}
	return id, nil
}

// InsertJSON stores a JSON object and returns its id
func (c *Collection) InsertJSON(ctx context.Context, docJSON []byte) (string, error) {
	doc, err := decodeDocument(docJSON)
	if err != nil {
		return "", err
	}
	return c.Insert(ctx, doc)
}

// Get fetches one document by id
func (c *Collection) Get(ctx context.Context, id string) (Document, error) {
	doc, err := c.store.adapter.Get(ctx, c.name, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, NotFoundError(c.name, id)
	}
	if err != nil {
		return nil, Wrap(ErrBackend, "get document", err)
	}
	return doc, nil
}

// Update merges patch over the stored document and writes it back. The
// merged document is validated like an insert; createdAt is kept and
// updatedAt restamped.
func (c *Collection) Update(ctx context.Context, id string, patch Document) (Document, error) {
	if v, ok := patch[planner.FieldID]; ok && v != nil && v != id {
		return nil, TypeMismatch(planner.FieldID, "cannot change document id")
	}
	current, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	merged := make(Document, len(current)+len(patch))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	delete(merged, planner.FieldID)
	delete(merged, planner.FieldUpdatedAt)
	if created, ok := current[planner.FieldCreatedAt]; ok {
		merged[planner.FieldCreatedAt] = created
	}

	prepared, err := prepareDocument(c.schema, merged, c.store.opts.Now())
	if err != nil {
		return nil, err
	}
	ok, err := c.store.adapter.Update(ctx, c.name, id, prepared)
	if err != nil {
		return nil, Wrap(ErrBackend, "update document", err)
	}
	if !ok {
		return nil, NotFoundError(c.name, id)
	}
	return c.Get(ctx, id)
}

// UpdateJSON applies a JSON object patch to the document with the given id
func (c *Collection) UpdateJSON(ctx context.Context, id string, patchJSON []byte) (Document, error) {
	patch, err := decodeDocument(patchJSON)
	if err != nil {
		return nil, err
	}
	return c.Update(ctx, id, patch)
}

// Delete removes one document by id and reports whether it existed
func (c *Collection) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := c.store.adapter.Delete(ctx, c.name, id)
	if err != nil {
		return false, Wrap(ErrBackend, "delete document", err)
	}
	return ok, nil
}

// List compiles params and runs the result. See Run for the consistency
// caveat.
func (c *Collection) List(ctx context.Context, params query.Params) (*ListResult, error) {
	out, err := c.Compile(params)
	if err != nil {
		return nil, err
	}
	return c.Run(ctx, out)
}

// Run executes a compiled query: the count pipeline first, then the data
// pipeline. The two reads do not share a snapshot, so writes landing in
// between can make Count disagree with Items.
func (c *Collection) Run(ctx context.Context, out *planner.Output) (*ListResult, error) {
	schema := c.schema.AsStorageSchema()
	total, err := c.store.adapter.Count(ctx, c.name, schema, out.CountPipeline)
	if err != nil {
		return nil, Wrap(ErrBackend, "count documents", err)
	}
	items, err := c.store.adapter.Aggregate(ctx, c.name, schema, out.Pipeline)
	if err != nil {
		return nil, Wrap(ErrBackend, "aggregate documents", err)
	}
	if items == nil {
		items = []Document{}
	}
	c.log.Debug("list done", zap.Int64("count", total), zap.Int("items", len(items)))

	return &ListResult{
		Items:       items,
		Count:       total,
		CurrentPage: out.Page,
		TotalPages:  totalPages(total, out.Limit),
		PageSize:    out.Limit,
	}, nil
}

func totalPages(total, pageSize int64) int64 {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

func decodeDocument(b []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, Wrap(ErrSchema, "document json", err)
	}
	if doc == nil {
		return nil, New(ErrSchema, "document must be a JSON object")
	}
	return doc, nil
}
