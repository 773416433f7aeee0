package cliutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/nonibytes/pipeq/internal/config"
	"github.com/nonibytes/pipeq/pipeq"
	"github.com/nonibytes/pipeq/pipeq/storage"
	"github.com/nonibytes/pipeq/pipeq/storage/mongo"
	"github.com/nonibytes/pipeq/pipeq/storage/postgres"
	"github.com/nonibytes/pipeq/pipeq/storage/sqlite"
)

type OutputFormat string

const (
	FormatPretty OutputFormat = "pretty"
	FormatJSON   OutputFormat = "json"
)

func ParseOutputFormat(s string) OutputFormat {
	switch OutputFormat(s) {
	case FormatPretty, FormatJSON:
		return OutputFormat(s)
	default:
		return FormatPretty
	}
}

func PrintJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// PrintCompactJSON writes v on one line
func PrintCompactJSON(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// ResolvePath makes a relative path from the config file relative to the
// config file's directory.
func ResolvePath(configPath, p string) string {
	if p == "" || filepath.IsAbs(p) || configPath == "" {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}

// LoadConfig loads and validates the configuration at path
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateCollections(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewAdapter builds the storage adapter selected by store.backend
func NewAdapter(configPath string, sc config.StoreConfig) (storage.Adapter, error) {
	switch storage.Backend(sc.Backend) {
	case storage.BackendSQLite:
		driver := sqlite.DriverModernc
		if sc.SQLiteDriver == "sqlite3" {
			driver = sqlite.DriverMattn
		}
		return sqlite.NewWithDriver(ResolvePath(configPath, sc.SQLitePath), driver), nil
	case storage.BackendPostgres:
		return postgres.New(sc.PGDSN, sc.PGSchema), nil
	case storage.BackendMongo:
		return mongo.New(sc.MongoURI, sc.MongoDatabase), nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", sc.Backend)
	}
}

// OpenCollections opens the configured store and every configured
// collection. The caller closes the store.
func OpenCollections(ctx context.Context, configPath string, cfg *config.Config, log *zap.Logger) (*pipeq.Store, []*pipeq.Collection, error) {
	schemas := make([]pipeq.Schema, len(cfg.Collections))
	for i, cc := range cfg.Collections {
		s, err := pipeq.LoadSchemaFile(ResolvePath(configPath, cc.Schema))
		if err != nil {
			return nil, nil, fmt.Errorf("collection %s: %w", cc.Name, err)
		}
		schemas[i] = s
	}

	adapter, err := NewAdapter(configPath, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	opts := pipeq.DefaultStoreOptions()
	opts.Compile = cfg.CompileOptions()
	opts.Logger = log
	st, err := pipeq.Open(ctx, adapter, opts)
	if err != nil {
		return nil, nil, err
	}

	cols := make([]*pipeq.Collection, len(cfg.Collections))
	for i, cc := range cfg.Collections {
		col, err := st.Collection(ctx, cc.Name, schemas[i])
		if err != nil {
			_ = st.Close()
			return nil, nil, fmt.Errorf("collection %s: %w", cc.Name, err)
		}
		cols[i] = col
	}
	return st, cols, nil
}

// FindCollection returns the collection called name
func FindCollection(cols []*pipeq.Collection, name string) (*pipeq.Collection, error) {
	for _, c := range cols {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unknown collection: %s", name)
}
