package model

import (
	"math"
	"time"
)

// LowConfidenceCritical is the per-field confidence below which a critical
// field counts toward review priority.
const LowConfidenceCritical = 0.80

// maxAgeBoost caps how many priority points an old extraction can accrue.
const maxAgeBoost = 20

// Priority scores an extraction's review urgency. Higher is more urgent.
// It is deterministic and cheap, and is recomputed on every enqueue rather
// than cached: confidence drives the base score, each low-confidence critical
// field adds a fixed penalty, and age adds up to maxAgeBoost points so stale
// work eventually surfaces.
func Priority(overallConfidence float64, lowCriticalCount int, age time.Duration) int {
	p := int(math.Round((1 - overallConfidence) * 50))
	p += 10 * lowCriticalCount
	hours := int(math.Floor(age.Hours()))
	if hours < 0 {
		hours = 0
	}
	if hours > maxAgeBoost {
		hours = maxAgeBoost
	}
	return p + hours
}

// CountLowConfidenceCritical counts fields that are critical per the schema
// and below the critical confidence threshold.
func CountLowConfidenceCritical(schema *FieldSchema, fields []ExtractionField) int {
	if schema == nil {
		return 0
	}
	n := 0
	for _, f := range fields {
		def := schema.ByKey(f.Key)
		if def != nil && def.Critical && f.Confidence < LowConfidenceCritical {
			n++
		}
	}
	return n
}
