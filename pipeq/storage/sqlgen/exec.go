package sqlgen

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nonibytes/pipeq/pipeq/stage"
	"github.com/nonibytes/pipeq/pipeq/storage"
)

// Templates holds the statements that differ between SQL backends.
type Templates struct {
	DDL                string
	GetMeta            string
	SetMeta            string
	RegisterCollection string
	InsertDocument     string
	GetDocument        string
	UpdateDocument     string
	DeleteDocument     string
}

const (
	metaMagic   = "pipeq_magic"
	metaVersion = "pipeq_version"
	magicValue  = "pipeq"
)

// Store implements the document half of storage.Adapter on top of
// database/sql. Backend adapters open the connection and Attach it.
type Store struct {
	Dialect Dialect
	SQL     Templates
	Now     func() time.Time

	db *sql.DB
}

func (s *Store) Attach(db *sql.DB) { s.db = db }

func (s *Store) DB() *sql.DB { return s.db }

// Detach closes the attached connection, if any.
func (s *Store) Detach() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) conn() (*sql.DB, error) {
	if s.db == nil {
		return nil, errors.New("store is not connected")
	}
	return s.db, nil
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Init creates the base tables and checks the database belongs to pipeq.
func (s *Store) Init(ctx context.Context) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, s.SQL.DDL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	var magic string
	err = db.QueryRowContext(ctx, s.SQL.GetMeta, metaMagic).Scan(&magic)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, s.SQL.SetMeta, metaMagic, magicValue); err != nil {
			return err
		}
		_, err = db.ExecContext(ctx, s.SQL.SetMeta, metaVersion, "1")
		return err
	case err != nil:
		return err
	case magic != magicValue:
		return fmt.Errorf("not a pipeq database (magic %q)", magic)
	}
	return nil
}

func (s *Store) EnsureCollection(ctx context.Context, collection string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, s.SQL.RegisterCollection, collection, s.now().UnixMilli())
	return err
}

func (s *Store) Insert(ctx context.Context, collection string, doc storage.Document) (string, error) {
	db, err := s.conn()
	if err != nil {
		return "", err
	}
	id, _ := doc["_id"].(string)
	if id == "" {
		id = uuid.NewString()
	}
	data, err := encodeBody(doc)
	if err != nil {
		return "", err
	}

	now := s.now()
	created := millis(doc["createdAt"], now)
	updated := millis(doc["updatedAt"], now)
	if _, err := db.ExecContext(ctx, s.SQL.InsertDocument, id, collection, data, created, updated); err != nil {
		return "", err
	}
	return id, nil
}

// Update replaces the stored body of id and reports whether it existed.
func (s *Store) Update(ctx context.Context, collection, id string, doc storage.Document) (bool, error) {
	db, err := s.conn()
	if err != nil {
		return false, err
	}
	data, err := encodeBody(doc)
	if err != nil {
		return false, err
	}
	updated := millis(doc["updatedAt"], s.now())
	res, err := db.ExecContext(ctx, s.SQL.UpdateDocument, collection, id, data, updated)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// encodeBody renders doc without its id as the stored JSON text.
func encodeBody(doc storage.Document) (string, error) {
	body := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		body[k] = encodeValue(v)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(data), nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	var raw []byte
	err = db.QueryRowContext(ctx, s.SQL.GetDocument, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRow(id, raw)
}

func (s *Store) Delete(ctx context.Context, collection, id string) (bool, error) {
	db, err := s.conn()
	if err != nil {
		return false, err
	}
	res, err := db.ExecContext(ctx, s.SQL.DeleteDocument, collection, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Aggregate(ctx context.Context, collection string, schema storage.Schema, p stage.Pipeline) ([]storage.Document, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	q, err := Select(s.Dialect, collection, schema, p)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]storage.Document, 0)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		doc, err := decodeRow(id, raw)
		if err != nil {
			return nil, err
		}
		if q.Project != nil {
			doc = ProjectDocument(doc, q.Project)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context, collection string, schema storage.Schema, p stage.Pipeline) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	q, err := Count(s.Dialect, collection, schema, p)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.QueryRowContext(ctx, q.SQL, q.Args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func decodeRow(id string, raw []byte) (storage.Document, error) {
	var doc storage.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	if doc == nil {
		doc = storage.Document{}
	}
	doc["_id"] = id
	return doc, nil
}

// encodeValue rewrites typed values into their stored JSON form.
func encodeValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return storage.FormatTime(x)
	case stage.RelationID:
		return string(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = encodeValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = encodeValue(e)
		}
		return out
	}
	return v
}

func millis(v any, fallback time.Time) int64 {
	if t, ok := v.(time.Time); ok {
		return t.UnixMilli()
	}
	return fallback.UnixMilli()
}
