package pipeq

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonibytes/pipeq/pipeq/stage"
)

func TestPrepareDocumentConverts(t *testing.T) {
	schema := Schema{Fields: map[string]FieldSpec{
		"price":  {Type: FieldNumber},
		"sold":   {Type: FieldDate},
		"owner":  {Type: FieldRelation},
		"labels": {Type: FieldString, Array: true},
	}}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	doc, err := decodeDocument([]byte(`{"_id":"","price":12,"sold":"2024-01-02","owner":"507f1f77bcf86cd799439011","labels":["a"],"extra":{"n":3}}`))
	require.NoError(t, err)
	out, err := prepareDocument(schema, doc, now)
	require.NoError(t, err)

	assert.NotContains(t, out, "_id")
	assert.Equal(t, 12.0, out["price"])
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), out["sold"])
	assert.Equal(t, stage.RelationID("507f1f77bcf86cd799439011"), out["owner"])
	assert.Equal(t, []any{"a"}, out["labels"])
	assert.Equal(t, map[string]any{"n": 3.0}, out["extra"])
	assert.Equal(t, now, out["createdAt"])
	assert.Equal(t, now, out["updatedAt"])

	_, isNumber := doc["price"].(json.Number)
	assert.True(t, isNumber, "input document must not be modified")
}

func TestPrepareDocumentKeepsCreatedAt(t *testing.T) {
	schema := Schema{Fields: map[string]FieldSpec{"name": {Type: FieldString}}}
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	out, err := prepareDocument(schema, Document{"name": "a", "createdAt": "2023-01-01T00:00:00Z"}, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), out["createdAt"])
	assert.Equal(t, now, out["updatedAt"])
}

func TestPrepareDocumentRejectsMismatches(t *testing.T) {
	schema := Schema{Fields: map[string]FieldSpec{
		"price":  {Type: FieldNumber},
		"labels": {Type: FieldString, Array: true},
		"sold":   {Type: FieldDate},
	}}
	now := time.Now()
	for name, doc := range map[string]Document{
		"number":    {"price": "12"},
		"array":     {"labels": "a"},
		"element":   {"labels": []any{1.0}},
		"date":      {"sold": "yesterday"},
		"id":        {"_id": 5.0},
		"createdAt": {"createdAt": "nope"},
	} {
		_, err := prepareDocument(schema, doc, now)
		assert.True(t, IsKind(err, ErrTypeMismatch), name)
	}
}

func TestDecodeDocumentRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{`null`, `[1]`, `{`} {
		_, err := decodeDocument([]byte(raw))
		assert.True(t, IsKind(err, ErrSchema), raw)
	}
}
