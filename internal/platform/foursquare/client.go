// Package foursquare implements the place-search side of the enrichment
// pipeline: one request per restaurant, top-ranked result only.
package foursquare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/platewatch/platewatch-backend/internal/platform/envutil"
	"github.com/platewatch/platewatch-backend/internal/platform/httpx"
	"github.com/platewatch/platewatch-backend/internal/platform/logger"
	"github.com/platewatch/platewatch-backend/internal/platform/places"
)

const apiVersion = "2025-06-17"

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Retry   httpx.RetryPolicy
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:  envutil.String("FOURSQUARE_API_KEY", ""),
		BaseURL: envutil.String("FOURSQUARE_BASE_URL", "https://places-api.foursquare.com"),
		Timeout: envutil.Duration("FOURSQUARE_TIMEOUT", 10*time.Second),
		Retry: httpx.RetryPolicy{
			MaxAttempts: envutil.Int("FOURSQUARE_MAX_RETRIES", 3),
			BaseDelay:   envutil.Duration("FOURSQUARE_RETRY_DELAY", 2*time.Second),
			Exponential: true,
			Jitter:      true,
		},
	}
}

func New(log *logger.Logger, cfg Config) (places.SearchProvider, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing FOURSQUARE_API_KEY")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://places-api.foursquare.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	return &client{
		log:        log.With("client", "FoursquareClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

type searchResponse struct {
	Results []struct {
		FsqPlaceID string `json:"fsq_place_id"`
		Name       string `json:"name"`
	} `json:"results"`
}

// Search queries /places/search with the restaurant name biased to its
// coordinates and keeps only the top result. Transient failures are retried
// with exponential backoff; any other 4xx fails immediately without touching
// the retry budget.
func (c *client) Search(ctx context.Context, name string, lat, lon *float64) (places.Status, *places.Match) {
	if lat == nil || lon == nil {
		return places.StatusMissingData, nil
	}

	q := url.Values{}
	q.Set("query", name)
	q.Set("limit", "1")
	q.Set("ll", fmt.Sprintf("%f,%f", *lat, *lon))
	reqURL := c.cfg.BaseURL + "/places/search?" + q.Encode()

	for attempt := 0; attempt < c.cfg.Retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.cfg.Retry.Sleep(ctx, attempt-1); err != nil {
				return places.StatusFailed, nil
			}
		}
		status, match, retryable := c.doSearch(ctx, reqURL, name)
		if !retryable {
			return status, match
		}
	}
	c.log.Error("Foursquare search failed after retries", "name", name)
	return places.StatusFailed, nil
}

func (c *client) doSearch(ctx context.Context, reqURL, name string) (status places.Status, match *places.Match, retryable bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return places.StatusFailed, nil, false
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("X-Places-Api-Version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("Foursquare request error", "name", name, "error", err)
		return places.StatusFailed, nil, true
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return places.StatusFailed, nil, true
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		var parsed searchResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			c.log.Warn("Foursquare response decode failed", "name", name, "error", err)
			return places.StatusFailed, nil, false
		}
		if len(parsed.Results) == 0 {
			return places.StatusNoMatch, nil, false
		}
		top := parsed.Results[0]
		return places.StatusSuccess, &places.Match{PlaceID: top.FsqPlaceID, Name: top.Name}, false
	case httpx.IsPermanentHTTPStatus(resp.StatusCode):
		// Bad request / auth / quota: retrying wastes quota.
		c.log.Error("Foursquare permanent failure", "name", name, "status", resp.StatusCode)
		return places.StatusFailed, nil, false
	default:
		c.log.Warn("Foursquare transient failure", "name", name, "status", resp.StatusCode)
		return places.StatusFailed, nil, true
	}
}
