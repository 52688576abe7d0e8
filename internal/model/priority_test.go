package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPriority(t *testing.T) {
	// conf 0.50 -> 25 base points.
	assert.Equal(t, 25, Priority(0.50, 0, 0))
	// Each low critical field adds 10.
	assert.Equal(t, 45, Priority(0.50, 2, 0))
	// Age adds a point per full hour.
	assert.Equal(t, 28, Priority(0.50, 0, 3*time.Hour+30*time.Minute))
	// Age boost caps at 20.
	assert.Equal(t, 45, Priority(0.50, 0, 400*time.Hour))
	// Perfect-confidence, fresh extraction scores zero.
	assert.Equal(t, 0, Priority(1.0, 0, 0))
	// Negative age (clock skew) never subtracts.
	assert.Equal(t, 25, Priority(0.50, 0, -time.Hour))
}

func TestPriorityMonotonicity(t *testing.T) {
	// Lower confidence never lowers priority.
	for conf := 0.0; conf < 1.0; conf += 0.1 {
		assert.GreaterOrEqual(t,
			Priority(conf, 1, time.Hour),
			Priority(conf+0.1, 1, time.Hour),
		)
	}
	// More low-confidence critical fields never lower priority.
	assert.Greater(t, Priority(0.7, 3, 0), Priority(0.7, 1, 0))
	// Older never scores lower.
	assert.GreaterOrEqual(t,
		Priority(0.7, 0, 10*time.Hour),
		Priority(0.7, 0, 2*time.Hour),
	)
}

func TestCountLowConfidenceCritical(t *testing.T) {
	schema := NewFieldSchema([]FieldDefinition{
		{Key: "base_rent", Type: FieldTypeCurrency, Critical: true},
		{Key: "lease_start", Type: FieldTypeDate, Critical: true},
		{Key: "tenant_name", Type: FieldTypeString},
	})

	fields := []ExtractionField{
		{Key: "base_rent", Confidence: 0.60},    // critical, low
		{Key: "lease_start", Confidence: 0.95},  // critical, fine
		{Key: "tenant_name", Confidence: 0.10},  // not critical
		{Key: "unknown_field", Confidence: 0.1}, // not in schema
	}
	assert.Equal(t, 1, CountLowConfidenceCritical(schema, fields))
	assert.Equal(t, 0, CountLowConfidenceCritical(nil, fields))
}
