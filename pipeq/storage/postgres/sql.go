package postgres

import "github.com/nonibytes/pipeq/pipeq/storage/sqlgen"

const ddlBase = `
CREATE TABLE IF NOT EXISTS meta (
  key   TEXT PRIMARY KEY,
  value TEXT
);

CREATE TABLE IF NOT EXISTS collections (
  name       TEXT PRIMARY KEY,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
  id         TEXT   NOT NULL,
  collection TEXT   NOT NULL,
  data_json  JSONB  NOT NULL,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL,
  PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(collection, created_at);
CREATE INDEX IF NOT EXISTS idx_documents_data ON documents USING GIN (data_json jsonb_path_ops);
`

var SQLTemplates = sqlgen.Templates{
	DDL:                ddlBase,
	GetMeta:            "SELECT value FROM meta WHERE key = $1",
	SetMeta:            "INSERT INTO meta(key,value) VALUES($1,$2) ON CONFLICT(key) DO UPDATE SET value=excluded.value",
	RegisterCollection: "INSERT INTO collections(name, created_at) VALUES($1, $2) ON CONFLICT(name) DO NOTHING",
	InsertDocument:     "INSERT INTO documents(id, collection, data_json, created_at, updated_at) VALUES($1, $2, CAST(CAST($3 AS text) AS jsonb), $4, $5)",
	GetDocument:        "SELECT data_json FROM documents WHERE collection = $1 AND id = $2",
	UpdateDocument:     "UPDATE documents SET data_json = CAST(CAST($3 AS text) AS jsonb), updated_at = $4 WHERE collection = $1 AND id = $2",
	DeleteDocument:     "DELETE FROM documents WHERE collection = $1 AND id = $2",
}
