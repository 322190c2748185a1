package engine

import (
	"github.com/quarrylabs/harvester/pkg/models"
)

// Field completeness weights. Primary fields carry double weight because
// downstream validation rejects records missing them.
const (
	primaryFieldWeight   = 2.0
	secondaryFieldWeight = 1.0
)

// EstimateQuality scores a source result in [0,1] by weighted field
// completeness across its records, resolving source-specific field names
// through the alias table. Failed or empty results score 0.
func EstimateQuality(result *models.SourceResult) float64 {
	if result == nil || !result.Success || len(result.Records) == 0 {
		return 0
	}

	total := 0.0
	for _, raw := range result.Records {
		total += rawCompleteness(raw)
	}
	return total / float64(len(result.Records))
}

// RecordCompleteness scores a canonical record in [0,1] by weighted
// field completeness.
func RecordCompleteness(rec *models.CanonicalRecord) float64 {
	if rec == nil {
		return 0
	}

	filled, possible := 0.0, 0.0
	for _, field := range models.PrimaryFields {
		possible += primaryFieldWeight
		if rec.Field(field) != "" {
			filled += primaryFieldWeight
		}
	}
	for _, field := range models.SecondaryFields {
		possible += secondaryFieldWeight
		if rec.Field(field) != "" {
			filled += secondaryFieldWeight
		}
	}
	return filled / possible
}

func rawCompleteness(raw models.RawRecord) float64 {
	filled, possible := 0.0, 0.0
	for _, field := range models.PrimaryFields {
		possible += primaryFieldWeight
		if resolveAlias(raw, field) != "" {
			filled += primaryFieldWeight
		}
	}
	for _, field := range models.SecondaryFields {
		possible += secondaryFieldWeight
		if resolveAlias(raw, field) != "" {
			filled += secondaryFieldWeight
		}
	}
	return filled / possible
}

// resolveAlias returns the first non-empty value among the canonical
// field name and its known aliases, in priority order.
func resolveAlias(raw models.RawRecord, field string) string {
	for _, name := range fieldAliases[field] {
		if v := raw.GetString(name); v != "" {
			return v
		}
	}
	return ""
}
