package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/nonibytes/pipeq/pipeq/storage"
	"github.com/nonibytes/pipeq/pipeq/storage/sqlgen"
)

type Adapter struct {
	DSN    string
	Schema string // used as dedicated schema via search_path

	sqlgen.Store
}

func New(dsn, schema string) *Adapter {
	return &Adapter{
		DSN:    dsn,
		Schema: schema,
		Store:  sqlgen.Store{Dialect: sqlgen.Postgres{}, SQL: SQLTemplates},
	}
}

func (a *Adapter) Backend() storage.Backend { return storage.BackendPostgres }

var schemaNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func quoteIdent(ident string) string {
	// ident is validated to contain no quotes; safe to wrap
	return `"` + ident + `"`
}

func (a *Adapter) validSchema() error {
	if a.Schema == "" || !schemaNameRe.MatchString(a.Schema) {
		return fmt.Errorf("invalid postgres schema name %q (must match %s)", a.Schema, schemaNameRe.String())
	}
	return nil
}

func (a *Adapter) ensureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoteIdent(a.Schema))
	return err
}

func (a *Adapter) Connect(ctx context.Context) error {
	if err := a.validSchema(); err != nil {
		return err
	}

	// 1) Connect without search_path to ensure schema exists
	cfg0, err := pgx.ParseConfig(a.DSN)
	if err != nil {
		return err
	}
	db0 := stdlib.OpenDB(*cfg0)
	if err := db0.PingContext(ctx); err != nil {
		_ = db0.Close()
		return err
	}
	if err := a.ensureSchema(ctx, db0); err != nil {
		_ = db0.Close()
		return err
	}
	_ = db0.Close()

	// 2) Connect with search_path pinned to the schema
	cfg, err := pgx.ParseConfig(a.DSN)
	if err != nil {
		return err
	}
	if cfg.RuntimeParams == nil {
		cfg.RuntimeParams = make(map[string]string)
	}
	cfg.RuntimeParams["search_path"] = fmt.Sprintf("%s,public", quoteIdent(a.Schema))

	db := stdlib.OpenDB(*cfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	a.Attach(db)
	if err := a.Init(ctx); err != nil {
		_ = a.Detach()
		return err
	}
	return nil
}

func (a *Adapter) Close() error { return a.Detach() }
