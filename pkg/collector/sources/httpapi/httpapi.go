// Package httpapi implements the lightweight API-backed collector. It
// queries a JSON job-search endpoint over a pooled HTTP client and maps
// response items to raw records for the engine to standardize.
package httpapi

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/quarrylabs/harvester/pkg/clients"
	"github.com/quarrylabs/harvester/pkg/collector/base"
	"github.com/quarrylabs/harvester/pkg/collector/core"
	"github.com/quarrylabs/harvester/pkg/collector/registry"
	"github.com/quarrylabs/harvester/pkg/config"
	"github.com/quarrylabs/harvester/pkg/errors"
	"github.com/quarrylabs/harvester/pkg/models"
)

// Options configures the API collector. Zero values fall back to the
// JOBS_API_* environment variables.
type Options struct {
	// BaseURL is the search endpoint, e.g. https://api.example.com/v1/jobs
	BaseURL string

	// APIKey authenticates with a static bearer token when set
	APIKey string

	// OAuth2 client-credentials flow, used when APIKey is empty and all
	// three values are set
	ClientID     string
	ClientSecret string
	TokenURL     string

	// PageSize caps records per request; the server may return fewer
	PageSize int
}

func (o *Options) applyEnv() {
	if o.BaseURL == "" {
		o.BaseURL = os.Getenv("JOBS_API_URL")
	}
	if o.APIKey == "" {
		o.APIKey = os.Getenv("JOBS_API_KEY")
	}
	if o.ClientID == "" {
		o.ClientID = os.Getenv("JOBS_API_CLIENT_ID")
	}
	if o.ClientSecret == "" {
		o.ClientSecret = os.Getenv("JOBS_API_CLIENT_SECRET")
	}
	if o.TokenURL == "" {
		o.TokenURL = os.Getenv("JOBS_API_TOKEN_URL")
	}
}

// searchResponse is the endpoint's envelope.
type searchResponse struct {
	Results []models.RawRecord `json:"results"`
	Total   int                `json:"total"`
}

// Collector fetches job postings from the HTTP API backend.
type Collector struct {
	*base.BaseCollector
	opts   Options
	client *clients.HTTPClient
	oauth  *clientcredentials.Config
}

// New creates an API collector registered under sourceID.
func New(sourceID string, opts Options) *Collector {
	opts.applyEnv()
	return &Collector{
		BaseCollector: base.NewBaseCollector(sourceID, "1.0.0"),
		opts:          opts,
	}
}

// Initialize prepares the shared HTTP client and, when configured, the
// OAuth2 token source.
func (c *Collector) Initialize(ctx context.Context, cfg *config.Config) error {
	if err := c.BaseCollector.Initialize(ctx, cfg); err != nil {
		return err
	}
	if c.opts.BaseURL == "" {
		return errors.New(errors.ErrorTypeConfig, "api collector requires a base URL")
	}

	httpCfg := clients.DefaultHTTPConfig()
	httpCfg.DialTimeout = cfg.Timeouts.Connection
	httpCfg.RequestTimeout = cfg.Timeouts.Collector
	if cfg.Reliability.RateLimitPerSec > 0 {
		httpCfg.RateLimit = float64(cfg.Reliability.RateLimitPerSec)
		httpCfg.RateBurst = cfg.Reliability.RateLimitPerSec * 2
	}
	httpCfg.CircuitBreakerEnabled = cfg.Reliability.CircuitBreaker

	client, err := clients.NewHTTPClient(httpCfg, c.GetLogger())
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "create http client")
	}
	c.client = client

	if c.opts.APIKey == "" && c.opts.ClientID != "" && c.opts.ClientSecret != "" && c.opts.TokenURL != "" {
		c.oauth = &clientcredentials.Config{
			ClientID:     c.opts.ClientID,
			ClientSecret: c.opts.ClientSecret,
			TokenURL:     c.opts.TokenURL,
		}
	}
	return nil
}

// Collect performs one search against the API. All failures are folded
// into the result; this method never returns nil.
func (c *Collector) Collect(ctx context.Context, req *models.AcquisitionRequest) *models.SourceResult {
	return c.Guard(ctx, req, func(ctx context.Context) ([]models.RawRecord, error) {
		return c.search(ctx, req)
	})
}

func (c *Collector) search(ctx context.Context, req *models.AcquisitionRequest) ([]models.RawRecord, error) {
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := c.client.GetJSON(ctx, c.searchURL(req), headers, &resp); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "search request failed")
	}

	c.GetLogger().Debug("search completed",
		zap.Int("results", len(resp.Results)),
		zap.Int("total", resp.Total))

	if req.MaxRecords > 0 && len(resp.Results) > req.MaxRecords {
		resp.Results = resp.Results[:req.MaxRecords]
	}
	return resp.Results, nil
}

func (c *Collector) searchURL(req *models.AcquisitionRequest) string {
	q := url.Values{}
	q.Set("q", req.SearchTerm)
	if req.Location != "" {
		q.Set("location", req.Location)
	}
	limit := c.opts.PageSize
	if req.MaxRecords > 0 && (limit == 0 || req.MaxRecords < limit) {
		limit = req.MaxRecords
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.opts.BaseURL + "?" + q.Encode()
}

func (c *Collector) authHeaders(ctx context.Context) (map[string]string, error) {
	if c.opts.APIKey != "" {
		return map[string]string{"Authorization": "Bearer " + c.opts.APIKey}, nil
	}
	if c.oauth != nil {
		tok, err := c.oauth.Token(ctx)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "oauth2 token fetch failed")
		}
		return map[string]string{"Authorization": fmt.Sprintf("%s %s", tok.Type(), tok.AccessToken)}, nil
	}
	return nil, nil
}

// Close releases the HTTP client alongside base resources.
func (c *Collector) Close(ctx context.Context) error {
	if c.client != nil {
		c.client.CloseIdleConnections()
	}
	return c.BaseCollector.Close(ctx)
}

func init() {
	// duplicate registration is a programmer error, surface it at startup
	if err := registry.Register("api", func(cfg *config.Config) (core.Collector, error) {
		return New(cfg.Sources.API, Options{}), nil
	}); err != nil {
		panic(err)
	}
}
