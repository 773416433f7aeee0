package storage

import (
	"context"
	"errors"
	"time"

	"github.com/nonibytes/pipeq/pipeq/stage"
)

type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendMongo    Backend = "mongo"
)

// TimeLayout is the fixed-width UTC layout SQL backends store dates in, so
// that text ordering matches chronological ordering.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// ErrNotFound is returned by Get when no document has the given id.
var ErrNotFound = errors.New("document not found")

// Document is a decoded stored document. The "_id" key always holds the
// document id as a string.
type Document map[string]any

// Adapter abstracts a document backend that can execute compiled pipelines.
type Adapter interface {
	Backend() Backend
	Connect(ctx context.Context) error
	Close() error

	EnsureCollection(ctx context.Context, collection string) error

	Insert(ctx context.Context, collection string, doc Document) (string, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	// Update replaces the whole document stored under id. It reports false
	// when no such document exists.
	Update(ctx context.Context, collection, id string, doc Document) (bool, error)
	Delete(ctx context.Context, collection, id string) (bool, error)

	// Aggregate runs a data pipeline and returns the matching documents.
	Aggregate(ctx context.Context, collection string, schema Schema, p stage.Pipeline) ([]Document, error)
	// Count runs a count pipeline and returns the single total.
	Count(ctx context.Context, collection string, schema Schema, p stage.Pipeline) (int64, error)
}

// Schema is a minimal interface to avoid circular dependency
type Schema interface {
	ToJSON() ([]byte, error)
	Get(name string) (FieldSpec, bool)
	HasField(name string) bool
	StringFieldsInOrder() []string
}

type FieldType string

const (
	TypeString   FieldType = "string"
	TypeNumber   FieldType = "number"
	TypeBoolean  FieldType = "boolean"
	TypeDate     FieldType = "date"
	TypeRelation FieldType = "relation"
)

type FieldSpec struct {
	Type  FieldType
	Array bool
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
