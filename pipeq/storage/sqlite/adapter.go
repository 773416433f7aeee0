package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/nonibytes/pipeq/pipeq/storage"
	"github.com/nonibytes/pipeq/pipeq/storage/sqlgen"
)

// DriverModernc is the pure-Go driver registered by modernc.org/sqlite.
const DriverModernc = "sqlite"

// DriverMattn is the cgo driver with REGEXP registered on each connection.
// It is only registered in cgo builds.
const DriverMattn = "sqlite3_pipeq"

type Adapter struct {
	Path       string
	DriverName string

	sqlgen.Store
}

func New(path string) *Adapter {
	return NewWithDriver(path, DriverModernc)
}

// NewWithDriver selects the database/sql driver. The driver must provide a
// REGEXP function; DriverModernc and DriverMattn both do.
func NewWithDriver(path, driver string) *Adapter {
	return &Adapter{
		Path:       path,
		DriverName: driver,
		Store:      sqlgen.Store{Dialect: sqlgen.SQLite{}, SQL: SQLTemplates},
	}
}

func (a *Adapter) Backend() storage.Backend {
	return storage.BackendSQLite
}

func (a *Adapter) dsn() string {
	dsn := a.Path
	params := "_busy_timeout=5000"
	if a.DriverName == DriverModernc {
		params = "_pragma=busy_timeout(5000)"
	}
	if !strings.Contains(dsn, "?") {
		return dsn + "?" + params
	}
	return dsn + "&" + params
}

func (a *Adapter) Connect(ctx context.Context) error {
	if a.DriverName == DriverModernc {
		if err := registerRegexp(); err != nil {
			return err
		}
	}
	db, err := sql.Open(a.DriverName, a.dsn())
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode=WAL;")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous=NORMAL;")

	a.Attach(db)
	if err := a.Init(ctx); err != nil {
		_ = a.Detach()
		return err
	}
	return nil
}

func (a *Adapter) Close() error {
	return a.Detach()
}
