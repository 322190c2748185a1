package engine

import (
	"strings"

	"go.uber.org/zap"

	"github.com/quarrylabs/harvester/pkg/logger"
	"github.com/quarrylabs/harvester/pkg/metrics"
	"github.com/quarrylabs/harvester/pkg/models"
)

// fieldAliases maps each canonical field to its known backend spellings
// in priority order. The first non-empty alias wins during
// standardization; everything unmatched lands in the record's Extra map.
var fieldAliases = map[string][]string{
	"title":       {"title", "job_title", "jobTitle", "position", "name", "role"},
	"company":     {"company", "company_name", "companyName", "employer", "organization", "hiring_organization"},
	"location":    {"location", "job_location", "jobLocation", "city", "place", "area"},
	"description": {"description", "job_description", "jobDescription", "summary", "details", "snippet"},
	"salary":      {"salary", "salary_range", "salaryRange", "compensation", "pay", "wage"},
	"url":         {"url", "link", "job_url", "jobUrl", "href", "apply_url", "applyUrl"},
	"posted_at":   {"posted_at", "postedAt", "date_posted", "datePosted", "published", "created_at", "listed_at"},
}

// canonicalFields is the alias-resolution order: primary identity fields
// before secondary detail fields.
var canonicalFields = append(append([]string{}, models.PrimaryFields...), models.SecondaryFields...)

// Fuser turns heterogeneous per-source results into one deduplicated,
// validated canonical record set with provenance.
type Fuser struct {
	logger *zap.Logger
}

// NewFuser creates a fusion processor.
func NewFuser() *Fuser {
	return &Fuser{
		logger: logger.Get().With(zap.String("component", "fuser")),
	}
}

// Fuse standardizes every record from every successful source result,
// deduplicates across sources, and drops records failing validation.
// Failed source results contribute nothing; they are reported upstream.
// crossValidate controls whether merged duplicate groups are promoted to
// verified records with full confidence.
func (f *Fuser) Fuse(results []*models.SourceResult, crossValidate bool) []models.CanonicalRecord {
	var records []models.CanonicalRecord
	for _, res := range results {
		if res == nil || !res.Success {
			continue
		}
		for _, raw := range res.Records {
			records = append(records, f.Standardize(res.SourceID, raw))
		}
	}

	records = f.Dedupe(records, crossValidate)

	valid := records[:0]
	for _, rec := range records {
		if f.Validate(&rec) {
			valid = append(valid, rec)
		} else {
			metrics.RecordsDropped.WithLabelValues("invalid").Inc()
		}
	}
	return valid
}

// Standardize maps one backend-specific record onto the canonical shape.
// Field names resolve through the alias table; unmapped keys are kept in
// Extra. Confidence starts at the record's own completeness and rises to
// 1.0 only through merge verification.
func (f *Fuser) Standardize(sourceID string, raw models.RawRecord) models.CanonicalRecord {
	rec := models.CanonicalRecord{
		Provenance: []string{sourceID},
	}

	consumed := make(map[string]bool, len(raw))
	for _, field := range canonicalFields {
		for _, alias := range fieldAliases[field] {
			v := raw.GetString(alias)
			if v == "" {
				continue
			}
			rec.SetField(field, strings.TrimSpace(v))
			consumed[alias] = true
			break
		}
	}

	for key, value := range raw {
		if consumed[key] {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]interface{})
		}
		rec.Extra[key] = value
	}

	rec.Confidence = RecordCompleteness(&rec)
	return rec
}

// Dedupe collapses duplicate records in two passes: first by normalized
// URL, then by case-insensitive (title, company). Duplicates are merged
// rather than dropped so provenance from every contributing source
// survives. Input order of first appearance is preserved.
func (f *Fuser) Dedupe(records []models.CanonicalRecord, crossValidate bool) []models.CanonicalRecord {
	records = f.mergeBy(records, "duplicate_url", crossValidate, func(rec *models.CanonicalRecord) string {
		return normalizeURL(rec.URL)
	})
	return f.mergeBy(records, "duplicate_pair", crossValidate, func(rec *models.CanonicalRecord) string {
		title := strings.ToLower(strings.TrimSpace(rec.Title))
		company := strings.ToLower(strings.TrimSpace(rec.Company))
		if title == "" || company == "" {
			return ""
		}
		return title + "\x00" + company
	})
}

// mergeBy groups records by the given key and merges each group of size
// >1; records with an empty key are never grouped.
func (f *Fuser) mergeBy(records []models.CanonicalRecord, reason string, crossValidate bool, keyFn func(*models.CanonicalRecord) string) []models.CanonicalRecord {
	groups := make(map[string][]models.CanonicalRecord)
	var order []string
	var keyed []string

	for i := range records {
		key := keyFn(&records[i])
		keyed = append(keyed, key)
		if key == "" {
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], records[i])
	}

	merged := make(map[string]models.CanonicalRecord, len(order))
	for _, key := range order {
		group := groups[key]
		if len(group) == 1 {
			merged[key] = group[0]
			continue
		}
		merged[key] = f.Merge(group, crossValidate)
		metrics.RecordsDropped.WithLabelValues(reason).Add(float64(len(group) - 1))
	}

	out := make([]models.CanonicalRecord, 0, len(records))
	emitted := make(map[string]bool, len(order))
	for i := range records {
		key := keyed[i]
		if key == "" {
			out = append(out, records[i])
			continue
		}
		if emitted[key] {
			continue
		}
		emitted[key] = true
		out = append(out, merged[key])
	}
	return out
}

// Merge combines a duplicate group into one record. The most complete
// member is the base, missing fields are filled from the others, and
// provenance becomes the union of all contributors. With crossValidate
// set, agreement across the group marks the record verified with full
// confidence; otherwise confidence stays at the merged completeness.
func (f *Fuser) Merge(group []models.CanonicalRecord, crossValidate bool) models.CanonicalRecord {
	base := group[0]
	for _, rec := range group[1:] {
		if rec.FilledFieldCount() > base.FilledFieldCount() {
			base = rec
		}
	}

	seen := make(map[string]bool)
	var provenance []string
	for _, rec := range group {
		for _, field := range canonicalFields {
			if base.Field(field) == "" {
				base.SetField(field, rec.Field(field))
			}
		}
		for key, value := range rec.Extra {
			if base.Extra == nil {
				base.Extra = make(map[string]interface{})
			}
			if _, ok := base.Extra[key]; !ok {
				base.Extra[key] = value
			}
		}
		for _, src := range rec.Provenance {
			if !seen[src] {
				seen[src] = true
				provenance = append(provenance, src)
			}
		}
	}

	base.Provenance = provenance
	if crossValidate {
		base.Verified = true
		base.Confidence = 1.0
	} else {
		base.Verified = false
		base.Confidence = RecordCompleteness(&base)
	}
	return base
}

// Validate requires a non-whitespace title and company. No other field
// is mandatory.
func (f *Fuser) Validate(rec *models.CanonicalRecord) bool {
	return strings.TrimSpace(rec.Title) != "" && strings.TrimSpace(rec.Company) != ""
}

// normalizeURL reduces a URL to its identity for deduplication: scheme,
// a leading www, any fragment, and a trailing slash are ignored, and the
// remainder is lower-cased.
func normalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	u = strings.ToLower(u)
	for _, prefix := range []string{"https://", "http://"} {
		u = strings.TrimPrefix(u, prefix)
	}
	u = strings.TrimPrefix(u, "www.")
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	return strings.TrimSuffix(u, "/")
}
