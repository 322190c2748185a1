package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/harvester/pkg/collector/registry"
	"github.com/quarrylabs/harvester/pkg/config"
	"github.com/quarrylabs/harvester/pkg/models"
)

func TestRegistersAPISource(t *testing.T) {
	assert.True(t, registry.Exists("api"), "package init registers the api source")
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Reliability.RetryAttempts = 0
	cfg.Reliability.CircuitBreaker = false
	return cfg
}

func newTestCollector(t *testing.T, handler http.HandlerFunc, opts Options) *Collector {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts.BaseURL = srv.URL
	c := New("api", opts)
	require.NoError(t, c.Initialize(context.Background(), testConfig()))
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestCollectMapsResponse(t *testing.T) {
	var gotQuery string
	handler := func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_ = gojson.NewEncoder(w).Encode(map[string]interface{}{
			"total": 2,
			"results": []map[string]interface{}{
				{"title": "Data Engineer", "company": "Acme", "url": "https://x/1"},
				{"jobTitle": "Analyst", "employer": "Globex", "link": "https://x/2"},
			},
		})
	}

	c := newTestCollector(t, handler, Options{})
	req := &models.AcquisitionRequest{SearchTerm: "data engineer", Location: "Berlin", MaxRecords: 10}
	result := c.Collect(context.Background(), req)

	require.NotNil(t, result)
	assert.True(t, result.Success)
	require.Len(t, result.Records, 2)
	assert.Equal(t, "Data Engineer", result.Records[0].GetString("title"))
	assert.Equal(t, "Analyst", result.Records[1].GetString("jobTitle"))

	assert.Contains(t, gotQuery, "q=data+engineer")
	assert.Contains(t, gotQuery, "location=Berlin")
	assert.Contains(t, gotQuery, "limit=10")
}

func TestCollectSendsBearerToken(t *testing.T) {
	var gotAuth string
	handler := func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"results":[],"total":0}`))
	}

	c := newTestCollector(t, handler, Options{APIKey: "secret-token"})
	result := c.Collect(context.Background(), &models.AcquisitionRequest{SearchTerm: "go"})

	assert.True(t, result.Success)
	assert.Equal(t, "Bearer secret-token", gotAuth)
}

func TestCollectTruncatesToMaxRecords(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[
			{"title":"A","company":"X"},
			{"title":"B","company":"X"},
			{"title":"C","company":"X"}
		],"total":3}`))
	}

	c := newTestCollector(t, handler, Options{})
	result := c.Collect(context.Background(), &models.AcquisitionRequest{SearchTerm: "go", MaxRecords: 2})

	assert.True(t, result.Success)
	assert.Len(t, result.Records, 2)
}

func TestCollectFoldsServerErrorIntoResult(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}

	c := newTestCollector(t, handler, Options{})
	result := c.Collect(context.Background(), &models.AcquisitionRequest{SearchTerm: "go"})

	require.NotNil(t, result, "collector failures never surface as errors")
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestInitializeRequiresBaseURL(t *testing.T) {
	t.Setenv("JOBS_API_URL", "")
	c := New("api", Options{})
	err := c.Initialize(context.Background(), testConfig())
	assert.Error(t, err)
}
