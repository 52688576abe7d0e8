package model

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// FieldType is the expected value type for a schema field.
type FieldType string

const (
	FieldTypeString   FieldType = "string"
	FieldTypeNumber   FieldType = "number"
	FieldTypeCurrency FieldType = "currency"
	FieldTypeDate     FieldType = "date"
	FieldTypeBool     FieldType = "bool"
	FieldTypeEnum     FieldType = "enum"
)

// FieldDefinition describes one expected field in the extraction schema.
type FieldDefinition struct {
	Key        string    `yaml:"key" json:"key"`
	Type       FieldType `yaml:"type" json:"type"`
	Required   bool      `yaml:"required" json:"required"`
	Critical   bool      `yaml:"critical" json:"critical"`
	Aliases    []string  `yaml:"aliases" json:"aliases,omitempty"`
	EnumValues []string  `yaml:"enum_values" json:"enum_values,omitempty"`
}

// FieldSchema is an indexed collection of field definitions. Alias lookups
// are case-insensitive.
type FieldSchema struct {
	Fields   []FieldDefinition
	byKey    map[string]*FieldDefinition
	byAlias  map[string]*FieldDefinition
	critical []*FieldDefinition
}

// NewFieldSchema builds a FieldSchema with indexed lookups.
func NewFieldSchema(fields []FieldDefinition) *FieldSchema {
	s := &FieldSchema{
		Fields:  fields,
		byKey:   make(map[string]*FieldDefinition, len(fields)),
		byAlias: make(map[string]*FieldDefinition),
	}
	for i := range s.Fields {
		f := &s.Fields[i]
		s.byKey[f.Key] = f
		s.byAlias[normalizeAlias(f.Key)] = f
		for _, a := range f.Aliases {
			s.byAlias[normalizeAlias(a)] = f
		}
		if f.Critical {
			s.critical = append(s.critical, f)
		}
	}
	return s
}

// LoadFieldSchema reads a YAML schema file of the form:
//
//	fields:
//	  - key: base_rent
//	    type: currency
//	    critical: true
//	    aliases: ["monthly rent", "base rental"]
func LoadFieldSchema(path string) (*FieldSchema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "schema: read file")
	}
	var doc struct {
		Fields []FieldDefinition `yaml:"fields"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, eris.Wrap(err, "schema: parse yaml")
	}
	if len(doc.Fields) == 0 {
		return nil, eris.Errorf("schema: no fields defined in %s", path)
	}
	return NewFieldSchema(doc.Fields), nil
}

// ByKey returns the definition for an exact key, or nil.
func (s *FieldSchema) ByKey(key string) *FieldDefinition {
	return s.byKey[key]
}

// Resolve maps a raw label (key or alias, any case) to its definition, or nil.
func (s *FieldSchema) Resolve(label string) *FieldDefinition {
	return s.byAlias[normalizeAlias(label)]
}

// Critical returns all critical field definitions.
func (s *FieldSchema) Critical() []*FieldDefinition {
	return s.critical
}

func normalizeAlias(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	label = strings.ReplaceAll(label, "-", " ")
	label = strings.ReplaceAll(label, "_", " ")
	return strings.Join(strings.Fields(label), " ")
}
