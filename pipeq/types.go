package pipeq

import (
	"time"

	"go.uber.org/zap"

	"github.com/nonibytes/pipeq/pipeq/planner"
	"github.com/nonibytes/pipeq/pipeq/storage"
)

// CompileOptions configures query compilation
type CompileOptions struct {
	// Strict rejects queries with unknown fields, invalid operators or
	// values that do not coerce, returning a *ValidationError.
	Strict           bool
	DefaultSortField string
	DefaultLimit     int64
}

// DefaultCompileOptions returns the permissive defaults
func DefaultCompileOptions() CompileOptions {
	return CompileOptions{
		DefaultSortField: DefaultSortField,
		DefaultLimit:     DefaultLimit,
	}
}

func (o CompileOptions) plannerOptions() planner.Options {
	return planner.Options{
		DefaultSortField: o.DefaultSortField,
		DefaultLimit:     o.DefaultLimit,
		CountField:       DefaultCountField,
	}
}

// StoreOptions configures a Store and the collections opened from it
type StoreOptions struct {
	Compile CompileOptions
	Now     func() time.Time
	Logger  *zap.Logger
}

// DefaultStoreOptions returns sensible defaults
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{
		Compile: DefaultCompileOptions(),
		Now:     time.Now,
		Logger:  zap.NewNop(),
	}
}

func (o StoreOptions) withDefaults() StoreOptions {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Document is a stored document keyed by field name. "_id" holds its id.
type Document = storage.Document

// ListResult is one page of a list query plus the total match count.
type ListResult struct {
	Items       []Document `json:"items"`
	Count       int64      `json:"count"`
	CurrentPage int64      `json:"currentPage"`
	TotalPages  int64      `json:"totalPages"`
	PageSize    int64      `json:"pageSize"`
}
