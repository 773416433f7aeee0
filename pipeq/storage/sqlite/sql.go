package sqlite

import "github.com/nonibytes/pipeq/pipeq/storage/sqlgen"

const ddlBase = `
CREATE TABLE IF NOT EXISTS meta (
  key   TEXT PRIMARY KEY,
  value TEXT
);

CREATE TABLE IF NOT EXISTS collections (
  name       TEXT PRIMARY KEY,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
  id         TEXT NOT NULL,
  collection TEXT NOT NULL,
  data_json  TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(collection, created_at);
`

var SQLTemplates = sqlgen.Templates{
	DDL:                ddlBase,
	GetMeta:            "SELECT value FROM meta WHERE key = ?1",
	SetMeta:            "INSERT INTO meta(key,value) VALUES(?1,?2) ON CONFLICT(key) DO UPDATE SET value=excluded.value",
	RegisterCollection: "INSERT INTO collections(name, created_at) VALUES(?1, ?2) ON CONFLICT(name) DO NOTHING",
	InsertDocument:     "INSERT INTO documents(id, collection, data_json, created_at, updated_at) VALUES(?1, ?2, ?3, ?4, ?5)",
	GetDocument:        "SELECT data_json FROM documents WHERE collection = ?1 AND id = ?2",
	UpdateDocument:     "UPDATE documents SET data_json = ?3, updated_at = ?4 WHERE collection = ?1 AND id = ?2",
	DeleteDocument:     "DELETE FROM documents WHERE collection = ?1 AND id = ?2",
}
