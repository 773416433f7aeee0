// Package config loads pipeq server and CLI configuration from an optional
// YAML/JSON file and PIPEQ_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/nonibytes/pipeq/pipeq"
	"github.com/nonibytes/pipeq/pipeq/storage"
)

// EnvPrefix prefixes environment overrides: PIPEQ_STORE_BACKEND -> store.backend
const EnvPrefix = "PIPEQ_"

type Config struct {
	Server      ServerConfig       `mapstructure:"server"`
	Log         LogConfig          `mapstructure:"log"`
	Store       StoreConfig        `mapstructure:"store"`
	Query       QueryConfig        `mapstructure:"query"`
	Collections []CollectionConfig `mapstructure:"collections"`
}

type ServerConfig struct {
	Addr          string `mapstructure:"addr"`
	RatePerMinute int    `mapstructure:"rate_per_minute"`
	Burst         int    `mapstructure:"burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StoreConfig struct {
	Backend       string `mapstructure:"backend"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	SQLiteDriver  string `mapstructure:"sqlite_driver"`
	PGDSN         string `mapstructure:"pg_dsn"`
	PGSchema      string `mapstructure:"pg_schema"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

type QueryConfig struct {
	Strict       bool   `mapstructure:"strict"`
	DefaultLimit int64  `mapstructure:"default_limit"`
	DefaultSort  string `mapstructure:"default_sort"`
}

// CollectionConfig names a collection and the schema file describing it
type CollectionConfig struct {
	Name   string `mapstructure:"name"`
	Schema string `mapstructure:"schema"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.rate_per_minute", 600)
	v.SetDefault("server.burst", 50)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.backend", string(storage.BackendSQLite))
	v.SetDefault("store.sqlite_path", "pipeq.db")
	v.SetDefault("store.sqlite_driver", "sqlite")
	v.SetDefault("store.pg_dsn", "")
	v.SetDefault("store.pg_schema", "")
	v.SetDefault("store.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("store.mongo_database", "pipeq")
	v.SetDefault("query.strict", false)
	v.SetDefault("query.default_limit", pipeq.DefaultLimit)
	v.SetDefault("query.default_sort", pipeq.DefaultSortField)
}

// Load reads path (optional, "" skips the file) and applies PIPEQ_*
// environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	applyEnv(v, os.Environ())

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// applyEnv maps PIPEQ_SECTION_KEY onto known keys. Underscores inside key
// names (rate_per_minute) rule out a plain "_" -> "." replacement.
func applyEnv(v *viper.Viper, environ []string) {
	known := make(map[string]string)
	for _, k := range v.AllKeys() {
		known[strings.ToUpper(strings.ReplaceAll(k, ".", "_"))] = k
	}
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if prop, ok := known[strings.TrimPrefix(key, EnvPrefix)]; ok {
			v.Set(prop, value)
		}
	}
}

// Validate checks the loaded configuration. Commands that need collections
// call ValidateCollections as well.
func (c *Config) Validate() error {
	var errs []error
	switch storage.Backend(c.Store.Backend) {
	case storage.BackendSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite backend"))
		}
		if d := c.Store.SQLiteDriver; d != "sqlite" && d != "sqlite3" {
			errs = append(errs, fmt.Errorf("store.sqlite_driver: unknown driver %q (want sqlite or sqlite3)", d))
		}
	case storage.BackendPostgres:
		if c.Store.PGDSN == "" {
			errs = append(errs, errors.New("store.pg_dsn is required for the postgres backend"))
		}
	case storage.BackendMongo:
		if c.Store.MongoURI == "" || c.Store.MongoDatabase == "" {
			errs = append(errs, errors.New("store.mongo_uri and store.mongo_database are required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend: unknown backend %q (want sqlite, postgres or mongo)", c.Store.Backend))
	}
	if c.Server.RatePerMinute < 0 || c.Server.Burst < 0 {
		errs = append(errs, errors.New("server.rate_per_minute and server.burst must not be negative"))
	}
	if c.Query.DefaultLimit < 0 {
		errs = append(errs, errors.New("query.default_limit must not be negative"))
	}
	return errors.Join(errs...)
}

// ValidateCollections rejects an empty collection list, unnamed entries and
// duplicate names.
func (c *Config) ValidateCollections() error {
	if len(c.Collections) == 0 {
		return errors.New("collections: at least one collection is required")
	}
	seen := make(map[string]bool, len(c.Collections))
	for i, col := range c.Collections {
		if col.Name == "" || col.Schema == "" {
			return fmt.Errorf("collections[%d]: name and schema are required", i)
		}
		if seen[col.Name] {
			return fmt.Errorf("collections[%d]: duplicate collection %q", i, col.Name)
		}
		seen[col.Name] = true
	}
	return nil
}

// CompileOptions returns the query compile options
func (c *Config) CompileOptions() pipeq.CompileOptions {
	opts := pipeq.DefaultCompileOptions()
	opts.Strict = c.Query.Strict
	if c.Query.DefaultLimit > 0 {
		opts.DefaultLimit = c.Query.DefaultLimit
	}
	if c.Query.DefaultSort != "" {
		opts.DefaultSortField = c.Query.DefaultSort
	}
	return opts
}
