// Package googleplaces wraps the two Google Places surfaces the enrichment
// jobs use: legacy find-place-from-text for id resolution, and the v1 place
// details endpoint for derived fields.
package googleplaces

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

const detailsFieldMask = "id,displayName,rating,userRatingCount,websiteUri,regularOpeningHours,googleMapsUri,priceLevel,dineIn,takeout,delivery"

type Config struct {
	APIKey     string
	BaseURL    string
	V1BaseURL  string
	Timeout    time.Duration
	Retry      httpx.RetryPolicy
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:    envutil.String("GOOGLE_API_KEY", ""),
		BaseURL:   envutil.String("GOOGLE_PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place"),
		V1BaseURL: envutil.String("GOOGLE_PLACES_V1_BASE_URL", "https://places.googleapis.com/v1/places"),
		Timeout:   envutil.Duration("GOOGLE_PLACES_TIMEOUT", 10*time.Second),
		Retry: httpx.RetryPolicy{
			MaxAttempts: envutil.Int("GOOGLE_PLACES_MAX_RETRIES", 3),
			BaseDelay:   envutil.Duration("GOOGLE_PLACES_RETRY_DELAY", 1*time.Second),
			Exponential: true,
			Jitter:      true,
		},
	}
}

func New(log *logger.Logger, cfg Config) (places.DetailsProvider, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing GOOGLE_API_KEY")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.V1BaseURL = strings.TrimRight(strings.TrimSpace(cfg.V1BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	return &client{
		log:        log.With("client", "GooglePlacesClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

type findPlaceResponse struct {
	Status     string `json:"status"`
	Candidates []struct {
		PlaceID string `json:"place_id"`
	} `json:"candidates"`
}

func (c *client) FindPlaceID(ctx context.Context, name, address string) (places.Status, string) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(address) == "" {
		return places.StatusMissingData, ""
	}
	q := url.Values{}
	q.Set("input", name+" "+address)
	q.Set("inputtype", "textquery")
	q.Set("fields", "place_id")
	q.Set("key", c.cfg.APIKey)
	reqURL := c.cfg.BaseURL + "/findplacefromtext/json?" + q.Encode()

	body, status, err := c.getWithRetry(ctx, reqURL, nil)
	if err != nil {
		c.log.Error("Google find-place failed", "name", name, "error", err)
		return places.StatusFailed, ""
	}
	if status < 200 || status > 299 {
		return places.StatusFailed, ""
	}
	var parsed findPlaceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.log.Warn("Google find-place decode failed", "name", name, "error", err)
		return places.StatusFailed, ""
	}
	if parsed.Status == "OK" && len(parsed.Candidates) > 0 {
		return places.StatusSuccess, parsed.Candidates[0].PlaceID
	}
	return places.StatusNoMatch, ""
}

type detailsResponse struct {
	ID                  string          `json:"id"`
	Rating              *float64        `json:"rating"`
	UserRatingCount     *int            `json:"userRatingCount"`
	WebsiteURI          string          `json:"websiteUri"`
	RegularOpeningHours json.RawMessage `json:"regularOpeningHours"`
	GoogleMapsURI       string          `json:"googleMapsUri"`
	PriceLevel          string          `json:"priceLevel"`
	DineIn              *bool           `json:"dineIn"`
	Takeout             *bool           `json:"takeout"`
	Delivery            *bool           `json:"delivery"`
}

func (c *client) PlaceDetails(ctx context.Context, placeID string) (*places.Details, error) {
	if strings.TrimSpace(placeID) == "" {
		return nil, fmt.Errorf("missing place id")
	}
	reqURL := c.cfg.V1BaseURL + "/" + url.PathEscape(placeID)
	headers := map[string]string{
		"X-Goog-Api-Key":   c.cfg.APIKey,
		"X-Goog-FieldMask": detailsFieldMask,
	}
	body, status, err := c.getWithRetry(ctx, reqURL, headers)
	if err != nil {
		return nil, fmt.Errorf("place details for %s: %w", placeID, err)
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("place details for %s: status %d", placeID, status)
	}
	var parsed detailsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode place details for %s: %w", placeID, err)
	}
	out := &places.Details{
		PlaceID:     parsed.ID,
		Rating:      parsed.Rating,
		ReviewCount: parsed.UserRatingCount,
		Hours:       parsed.RegularOpeningHours,
		DineIn:      parsed.DineIn,
		Takeout:     parsed.Takeout,
		Delivery:    parsed.Delivery,
	}
	if parsed.WebsiteURI != "" {
		out.Website = &parsed.WebsiteURI
	}
	if parsed.GoogleMapsURI != "" {
		out.MapsURL = &parsed.GoogleMapsURI
	}
	if parsed.PriceLevel != "" {
		out.PriceLevel = &parsed.PriceLevel
	}
	return out, nil
}

// getWithRetry applies the shared policy: transient statuses and network
// errors are retried with backoff, permanent client errors return at once.
func (c *client) getWithRetry(ctx context.Context, reqURL string, headers map[string]string) ([]byte, int, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.Retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.cfg.Retry.Sleep(ctx, attempt-1); err != nil {
				return nil, 0, err
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, 0, err
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.log.Warn("Google request error", "attempt", attempt+1, "error", err)
			continue
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}
		if httpx.IsRetryableHTTPStatus(resp.StatusCode) {
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			c.log.Warn("Google transient failure", "attempt", attempt+1, "status", resp.StatusCode)
			continue
		}
		// Success or permanent client error: both return immediately.
		return body, resp.StatusCode, nil
	}
	return nil, 0, fmt.Errorf("request failed after %d attempts: %w", c.cfg.Retry.MaxAttempts, lastErr)
}
