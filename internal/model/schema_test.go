package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaResolve(t *testing.T) {
	schema := NewFieldSchema([]FieldDefinition{
		{Key: "base_rent", Type: FieldTypeCurrency, Critical: true, Aliases: []string{"monthly rent", "Base Rental"}},
		{Key: "lease_start", Type: FieldTypeDate, Aliases: []string{"commencement date"}},
	})

	// Key itself resolves, in any casing or separator style.
	assert.Equal(t, "base_rent", schema.Resolve("base_rent").Key)
	assert.Equal(t, "base_rent", schema.Resolve("Base Rent").Key)
	assert.Equal(t, "base_rent", schema.Resolve("BASE-RENT").Key)

	// Aliases resolve case-insensitively with collapsed whitespace.
	assert.Equal(t, "base_rent", schema.Resolve("Monthly  Rent").Key)
	assert.Equal(t, "base_rent", schema.Resolve("base rental").Key)
	assert.Equal(t, "lease_start", schema.Resolve(" Commencement Date ").Key)

	assert.Nil(t, schema.Resolve("no such label"))
}

func TestSchemaCritical(t *testing.T) {
	schema := NewFieldSchema([]FieldDefinition{
		{Key: "base_rent", Critical: true},
		{Key: "lease_start", Critical: true},
		{Key: "tenant_name"},
	})
	crit := schema.Critical()
	require.Len(t, crit, 2)
	assert.Equal(t, "base_rent", crit[0].Key)
	assert.Equal(t, "lease_start", crit[1].Key)
}

func TestLoadFieldSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
fields:
  - key: base_rent
    type: currency
    required: true
    critical: true
    aliases: ["monthly rent"]
  - key: lease_type
    type: enum
    enum_values: ["gross", "triple_net"]
`), 0644))

	schema, err := LoadFieldSchema(path)
	require.NoError(t, err)
	require.Len(t, schema.Fields, 2)

	rent := schema.ByKey("base_rent")
	require.NotNil(t, rent)
	assert.Equal(t, FieldTypeCurrency, rent.Type)
	assert.True(t, rent.Required)
	assert.True(t, rent.Critical)
	assert.Equal(t, "base_rent", schema.Resolve("monthly rent").Key)

	leaseType := schema.ByKey("lease_type")
	require.NotNil(t, leaseType)
	assert.Equal(t, []string{"gross", "triple_net"}, leaseType.EnumValues)
}

func TestLoadFieldSchemaErrors(t *testing.T) {
	_, err := LoadFieldSchema(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("fields: []\n"), 0644))
	_, err = LoadFieldSchema(empty)
	assert.Error(t, err)
}
