package pipeq

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nonibytes/pipeq/pipeq/query"
	"github.com/nonibytes/pipeq/pipeq/storage"
)

// FieldType specifies the type of a field
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldNumber   FieldType = "number"
	FieldBoolean  FieldType = "boolean"
	FieldDate     FieldType = "date"
	FieldRelation FieldType = "relation"
)

var fieldTypeAliases = map[string]FieldType{
	"string":   FieldString,
	"number":   FieldNumber,
	"boolean":  FieldBoolean,
	"bool":     FieldBoolean,
	"date":     FieldDate,
	"relation": FieldRelation,
	"objectid": FieldRelation,
}

// ParseFieldType accepts the canonical names, case-insensitively, plus the
// "bool" and "objectid" aliases.
func ParseFieldType(s string) (FieldType, bool) {
	t, ok := fieldTypeAliases[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

// FieldSpec defines a field's configuration
type FieldSpec struct {
	Type  FieldType `json:"type" yaml:"type"`
	Array bool      `json:"array,omitempty" yaml:"array,omitempty"`
}

// parseShorthand reads "type" or "[type]".
func parseShorthand(s string) FieldSpec {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		return FieldSpec{Type: FieldType(strings.TrimSpace(s[1 : len(s)-1])), Array: true}
	}
	return FieldSpec{Type: FieldType(s)}
}

// UnmarshalJSON accepts the object form or the "type" / "[type]" shorthand.
func (f *FieldSpec) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = parseShorthand(s)
		return nil
	}
	type plain FieldSpec
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*f = FieldSpec(p)
	return nil
}

func (f *FieldSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*f = parseShorthand(node.Value)
		return nil
	}
	type plain FieldSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*f = FieldSpec(p)
	return nil
}

// Schema maps field names to their specs. Order fixes the field order used
// by search; when empty, fields are ordered by name.
type Schema struct {
	Fields map[string]FieldSpec `json:"fields" yaml:"fields"`
	Order  []string             `json:"order,omitempty" yaml:"order,omitempty"`
}

var validFieldNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Validate checks if the schema is valid
func (s Schema) Validate() error {
	if len(s.Fields) == 0 {
		return SchemaError("schema must have at least one field")
	}

	for _, name := range s.sortedNames() {
		spec := s.Fields[name]
		if !validFieldNameRe.MatchString(name) {
			return SchemaError(fmt.Sprintf("invalid field name: %s (must match %s)", name, validFieldNameRe.String()))
		}
		if query.IsReserved(name) {
			return SchemaError(fmt.Sprintf("field name '%s' is reserved", name))
		}
		switch spec.Type {
		case FieldString, FieldNumber, FieldBoolean, FieldDate, FieldRelation:
		default:
			return SchemaError(fmt.Sprintf("unknown field type '%s' for field '%s'", spec.Type, name))
		}
	}

	if len(s.Order) > 0 {
		seen := make(map[string]bool, len(s.Order))
		for _, name := range s.Order {
			if _, ok := s.Fields[name]; !ok {
				return SchemaError(fmt.Sprintf("order lists unknown field '%s'", name))
			}
			if seen[name] {
				return SchemaError(fmt.Sprintf("order lists field '%s' twice", name))
			}
			seen[name] = true
		}
	}
	return nil
}

// normalize canonicalizes type names and completes Order.
func (s Schema) normalize() Schema {
	out := Schema{Fields: make(map[string]FieldSpec, len(s.Fields))}
	for name, spec := range s.Fields {
		if t, ok := ParseFieldType(string(spec.Type)); ok {
			spec.Type = t
		}
		out.Fields[name] = spec
	}
	seen := map[string]bool{}
	for _, name := range s.Order {
		if !seen[name] {
			out.Order = append(out.Order, name)
			seen[name] = true
		}
	}
	if len(out.Order) > 0 {
		for _, name := range out.sortedNames() {
			if !seen[name] {
				out.Order = append(out.Order, name)
			}
		}
	}
	return out
}

func (s Schema) sortedNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldNames returns every field in schema order.
func (s Schema) FieldNames() []string {
	if len(s.Order) > 0 {
		out := make([]string, len(s.Order))
		copy(out, s.Order)
		return out
	}
	return s.sortedNames()
}

// Resolve looks up a field. Unknown fields report false.
func (s Schema) Resolve(name string) (FieldSpec, bool) {
	spec, ok := s.Fields[name]
	return spec, ok
}

// Get retrieves a field spec by name
func (s Schema) Get(name string) (FieldSpec, bool) {
	return s.Resolve(name)
}

// HasField checks if a field exists in the schema
func (s Schema) HasField(name string) bool {
	_, ok := s.Fields[name]
	return ok
}

// StringFields lists the scalar string fields in schema order.
func (s Schema) StringFields() []string {
	var out []string
	for _, name := range s.FieldNames() {
		spec := s.Fields[name]
		if spec.Type == FieldString && !spec.Array {
			out = append(out, name)
		}
	}
	return out
}

// ToJSON serializes the schema to JSON
func (s Schema) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// SchemaFromJSON deserializes a schema from JSON
func SchemaFromJSON(b []byte) (Schema, error) {
	var s Schema
	if err := json.Unmarshal(b, &s); err != nil {
		return Schema{}, Wrap(ErrSchema, "invalid schema JSON", err)
	}
	s = s.normalize()
	if err := s.Validate(); err != nil {
		return Schema{}, err
	}
	return s, nil
}

// SchemaFromYAML deserializes a schema from YAML. Without an explicit
// order, fields keep the order they are written in.
func SchemaFromYAML(b []byte) (Schema, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return Schema{}, Wrap(ErrSchema, "invalid schema YAML", err)
	}
	var s Schema
	if err := doc.Decode(&s); err != nil {
		return Schema{}, Wrap(ErrSchema, "invalid schema YAML", err)
	}
	if len(s.Order) == 0 {
		s.Order = yamlFieldOrder(&doc)
	}
	s = s.normalize()
	if err := s.Validate(); err != nil {
		return Schema{}, err
	}
	return s, nil
}

// yamlFieldOrder returns the keys of the top-level "fields" mapping in
// document order.
func yamlFieldOrder(doc *yaml.Node) []string {
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "fields" || root.Content[i+1].Kind != yaml.MappingNode {
			continue
		}
		fields := root.Content[i+1]
		var names []string
		for j := 0; j+1 < len(fields.Content); j += 2 {
			names = append(names, fields.Content[j].Value)
		}
		return names
	}
	return nil
}

// LoadSchemaFile reads a .json, .yaml or .yml schema file.
func LoadSchemaFile(path string) (Schema, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, Wrap(ErrIO, "read schema file", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return SchemaFromYAML(b)
	default:
		return SchemaFromJSON(b)
	}
}

// The following methods are needed to implement storage.Schema interface
// They convert between pipeq types and storage types

// GetStorageFieldSpec retrieves a field spec as storage.FieldSpec
func (s *Schema) GetStorageFieldSpec(name string) (storage.FieldSpec, bool) {
	spec, ok := s.Fields[name]
	if !ok {
		return storage.FieldSpec{}, false
	}
	return storage.FieldSpec{
		Type:  storage.FieldType(spec.Type),
		Array: spec.Array,
	}, true
}

// schemaStorageAdapter wraps Schema to implement storage.Schema interface
type schemaStorageAdapter struct {
	*Schema
}

// ToJSON implements storage.Schema
func (s schemaStorageAdapter) ToJSON() ([]byte, error) {
	return s.Schema.ToJSON()
}

// Get implements storage.Schema
func (s schemaStorageAdapter) Get(name string) (storage.FieldSpec, bool) {
	return s.Schema.GetStorageFieldSpec(name)
}

// HasField implements storage.Schema
func (s schemaStorageAdapter) HasField(name string) bool {
	return s.Schema.HasField(name)
}

// StringFieldsInOrder implements storage.Schema
func (s schemaStorageAdapter) StringFieldsInOrder() []string {
	return s.Schema.StringFields()
}

// AsStorageSchema returns a storage.Schema adapter
func (s *Schema) AsStorageSchema() storage.Schema {
	return schemaStorageAdapter{s}
}
