package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/harvester/pkg/models"
	"github.com/quarrylabs/harvester/pkg/testutil"
)

func TestStandardizeAliases(t *testing.T) {
	f := NewFuser()

	raw := models.RawRecord{
		"jobTitle":     "Data Engineer",
		"employer":     "Acme",
		"link":         "https://jobs.example.com/1",
		"city":         "Berlin",
		"snippet":      "Build pipelines.",
		"compensation": "90k",
		"datePosted":   "2025-05-01",
		"req_id":       "ABC-123",
	}

	rec := f.Standardize("api", raw)
	assert.Equal(t, "Data Engineer", rec.Title)
	assert.Equal(t, "Acme", rec.Company)
	assert.Equal(t, "https://jobs.example.com/1", rec.URL)
	assert.Equal(t, "Berlin", rec.Location)
	assert.Equal(t, "Build pipelines.", rec.Description)
	assert.Equal(t, "90k", rec.Salary)
	assert.Equal(t, "2025-05-01", rec.PostedAt)
	assert.Equal(t, "ABC-123", rec.Extra["req_id"], "unmapped fields land in the overflow map")
	assert.Equal(t, []string{"api"}, rec.Provenance)
	assert.False(t, rec.Verified)
}

func TestStandardizeAliasPriority(t *testing.T) {
	f := NewFuser()

	// the canonical name outranks any alias
	raw := models.RawRecord{"title": "Engineer", "position": "Ignored", "company": "Acme"}
	rec := f.Standardize("api", raw)
	assert.Equal(t, "Engineer", rec.Title)
}

func TestFuseCrossSourceMerge(t *testing.T) {
	f := NewFuser()

	results := []*models.SourceResult{
		testutil.SuccessResult("browser", models.RawRecord{
			"title": "Data Engineer", "company": "Acme", "url": "https://x/1",
		}),
		testutil.SuccessResult("api", models.RawRecord{
			"title": "data engineer", "company": "ACME", "url": "https://x/1",
		}),
	}

	fused := f.Fuse(results, true)
	require.Len(t, fused, 1)
	assert.ElementsMatch(t, []string{"browser", "api"}, fused[0].Provenance)
	assert.True(t, fused[0].Verified)
	assert.Equal(t, 1.0, fused[0].Confidence)
}

func TestFuseCrossValidationDisabled(t *testing.T) {
	f := NewFuser()

	results := []*models.SourceResult{
		testutil.SuccessResult("browser", models.RawRecord{
			"title": "Data Engineer", "company": "Acme", "url": "https://x/1",
		}),
		testutil.SuccessResult("api", models.RawRecord{
			"title": "data engineer", "company": "ACME", "url": "https://x/1",
		}),
	}

	fused := f.Fuse(results, false)
	require.Len(t, fused, 1, "dedup still merges with cross-validation off")
	assert.ElementsMatch(t, []string{"browser", "api"}, fused[0].Provenance)
	assert.False(t, fused[0].Verified, "verification requires cross-validation")
	assert.Less(t, fused[0].Confidence, 1.0)
	assert.InDelta(t, RecordCompleteness(&fused[0]), fused[0].Confidence, 1e-9)
}

func TestDedupeByTitleCompany(t *testing.T) {
	f := NewFuser()

	records := []models.CanonicalRecord{
		{Title: "Engineer", Company: "Acme", URL: "https://a/1", Provenance: []string{"browser"}},
		{Title: "engineer ", Company: " ACME", URL: "https://b/2", Provenance: []string{"api"}},
		{Title: "Analyst", Company: "Globex", Provenance: []string{"api"}},
	}

	out := f.Dedupe(records, true)
	require.Len(t, out, 2)
	assert.ElementsMatch(t, []string{"browser", "api"}, out[0].Provenance)
	assert.True(t, out[0].Verified)
	assert.Equal(t, "Analyst", out[1].Title)
	assert.False(t, out[1].Verified, "singletons pass through untouched")
}

func TestMergePicksMostCompleteBase(t *testing.T) {
	f := NewFuser()

	sparse := models.CanonicalRecord{
		Title: "Engineer", Company: "Acme", URL: "https://x/1",
		Provenance: []string{"api"},
	}
	full := models.CanonicalRecord{
		Title: "Engineer", Company: "Acme", URL: "https://x/1",
		Location: "Berlin", Salary: "90k", Provenance: []string{"browser"},
	}

	merged := f.Merge([]models.CanonicalRecord{sparse, full}, true)
	assert.Equal(t, "Berlin", merged.Location)
	assert.Equal(t, "90k", merged.Salary)
	assert.ElementsMatch(t, []string{"api", "browser"}, merged.Provenance)
	assert.True(t, merged.Verified)
	assert.Equal(t, 1.0, merged.Confidence)
}

func TestMergeFillsMissingFields(t *testing.T) {
	f := NewFuser()

	a := models.CanonicalRecord{
		Title: "Engineer", Company: "Acme", URL: "https://x/1",
		Location: "Berlin", Provenance: []string{"browser"},
	}
	b := models.CanonicalRecord{
		Title: "Engineer", Company: "Acme", URL: "https://x/1",
		Salary: "90k", Provenance: []string{"api"},
	}

	merged := f.Merge([]models.CanonicalRecord{a, b}, true)
	assert.Equal(t, "Berlin", merged.Location)
	assert.Equal(t, "90k", merged.Salary, "fields missing on the base are filled from the group")
}

func TestFuseIdempotent(t *testing.T) {
	f := NewFuser()

	results := []*models.SourceResult{
		testutil.SuccessResult("browser",
			testutil.JobRecord("Data Engineer", "Acme", "https://x/1"),
			testutil.JobRecord("Analyst", "Globex", "https://x/2"),
		),
		testutil.SuccessResult("api",
			testutil.JobRecord("data engineer", "ACME", "https://x/1"),
			testutil.SparseRecord("Platform Engineer", "Initech"),
		),
	}

	for _, crossValidate := range []bool{true, false} {
		once := f.Fuse(results, crossValidate)
		twice := f.Dedupe(append([]models.CanonicalRecord{}, once...), crossValidate)
		assert.Equal(t, once, twice, "fusing fused output must change nothing")
	}
}

func TestFuseDropsInvalidRecords(t *testing.T) {
	f := NewFuser()

	results := []*models.SourceResult{
		testutil.SuccessResult("api",
			models.RawRecord{"title": "Engineer", "company": "Acme"},
			models.RawRecord{"title": "   ", "company": "Acme"},
			models.RawRecord{"title": "Orphan"},
			models.RawRecord{"description": "no identity at all"},
		),
	}

	fused := f.Fuse(results, false)
	require.Len(t, fused, 1)
	assert.Equal(t, "Engineer", fused[0].Title)
	assert.Equal(t, "Acme", fused[0].Company)
}

func TestFuseSkipsFailedSources(t *testing.T) {
	f := NewFuser()

	results := []*models.SourceResult{
		testutil.FailureResult("browser", "blocked"),
		testutil.SuccessResult("api", testutil.SparseRecord("Engineer", "Acme")),
	}

	fused := f.Fuse(results, false)
	require.Len(t, fused, 1)
	assert.Equal(t, []string{"api"}, fused[0].Provenance)
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://www.example.com/jobs/1/", "example.com/jobs/1"},
		{"http://example.com/jobs/1", "example.com/jobs/1"},
		{"HTTPS://Example.com/Jobs/1#apply", "example.com/jobs/1"},
		{"example.com/jobs/1", "example.com/jobs/1"},
		{"  ", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, normalizeURL(tc.in), tc.in)
	}
}

func TestEstimateQuality(t *testing.T) {
	full := testutil.SuccessResult("api", testutil.JobRecord("Engineer", "Acme", "https://x/1"))
	sparse := testutil.SuccessResult("api", testutil.SparseRecord("Engineer", "Acme"))
	failed := testutil.FailureResult("api", "blocked")

	assert.Equal(t, 1.0, EstimateQuality(full))
	assert.InDelta(t, 0.4, EstimateQuality(sparse), 1e-9)
	assert.Equal(t, 0.0, EstimateQuality(failed))
	assert.Equal(t, 0.0, EstimateQuality(nil))
}
