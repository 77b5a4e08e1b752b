// Package socrata pulls NYC restaurant inspection records from the city's
// open-data feed. The feed is append-only and flat: one record per
// (restaurant, inspection, violation), repeated restaurant fields on every
// row.
package socrata

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
)

// InspectionRecord is the raw feed shape. Socrata serves every field as a
// string; parsing and coercion happen in the ingestion pipeline.
type InspectionRecord struct {
	Camis                string `json:"camis"`
	DBA                  string `json:"dba"`
	Boro                 string `json:"boro"`
	Building             string `json:"building"`
	Street               string `json:"street"`
	Zipcode              string `json:"zipcode"`
	Phone                string `json:"phone"`
	Latitude             string `json:"latitude"`
	Longitude            string `json:"longitude"`
	Grade                string `json:"grade"`
	GradeDate            string `json:"grade_date"`
	InspectionDate       string `json:"inspection_date"`
	InspectionType       string `json:"inspection_type"`
	CuisineDescription   string `json:"cuisine_description"`
	CriticalFlag         string `json:"critical_flag"`
	Action               string `json:"action"`
	ViolationCode        string `json:"violation_code"`
	ViolationDescription string `json:"violation_description"`
}

type Client interface {
	FetchRange(ctx context.Context, start, end time.Time) []InspectionRecord
	FetchAll(ctx context.Context) []InspectionRecord
	FetchByCamis(ctx context.Context, camis string) []InspectionRecord
	FetchInspection(ctx context.Context, camis string, inspectionDate time.Time) []InspectionRecord
}

type Config struct {
	BaseURL  string
	AppToken string
	PageSize int
	Timeout  time.Duration
	Retry    httpx.RetryPolicy
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL:  envutil.String("NYC_API_URL", "https://data.cityofnewyork.us/resource/43nn-pn8j.json"),
		AppToken: envutil.String("NYC_API_APP_TOKEN", ""),
		PageSize: envutil.Int("NYC_API_PAGE_SIZE", 50000),
		Timeout:  envutil.Duration("NYC_API_TIMEOUT", 180*time.Second),
		Retry: httpx.RetryPolicy{
			MaxAttempts: envutil.Int("NYC_API_MAX_RETRIES", 3),
			BaseDelay:   envutil.Duration("NYC_API_RETRY_DELAY", 2*time.Second),
		},
	}
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("missing NYC_API_URL")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	return &client{
		log:        log.With("client", "SocrataClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

const dateTimeSuffix = "T00:00:00.000"

func (c *client) FetchRange(ctx context.Context, start, end time.Time) []InspectionRecord {
	where := fmt.Sprintf("inspection_date >= '%s%s' AND inspection_date < '%s%s'",
		start.Format("2006-01-02"), dateTimeSuffix,
		end.Format("2006-01-02"), dateTimeSuffix)
	return c.fetchPaged(ctx, url.Values{"$where": {where}})
}

func (c *client) FetchAll(ctx context.Context) []InspectionRecord {
	return c.fetchPaged(ctx, url.Values{})
}

func (c *client) FetchByCamis(ctx context.Context, camis string) []InspectionRecord {
	return c.fetchPaged(ctx, url.Values{"camis": {camis}})
}

func (c *client) FetchInspection(ctx context.Context, camis string, inspectionDate time.Time) []InspectionRecord {
	return c.fetchPaged(ctx, url.Values{
		"camis":           {camis},
		"inspection_date": {inspectionDate.Format("2006-01-02") + dateTimeSuffix},
	})
}

// fetchPaged walks $offset pages until a short or empty page. A page that
// fails past the retry budget abandons the whole fetch: callers treat an
// empty result as "nothing to do", and a partial range must not look like a
// complete one.
func (c *client) fetchPaged(ctx context.Context, params url.Values) []InspectionRecord {
	var all []InspectionRecord
	for offset := 0; ; offset += c.cfg.PageSize {
		page, err := c.fetchPage(ctx, params, offset)
		if err != nil {
			c.log.Error("Feed fetch abandoned", "error", err, "offset", offset)
			return nil
		}
		all = append(all, page...)
		if len(page) < c.cfg.PageSize {
			break
		}
	}
	c.log.Info("Feed fetch complete", "records", len(all))
	return all
}

func (c *client) fetchPage(ctx context.Context, params url.Values, offset int) ([]InspectionRecord, error) {
	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("$limit", fmt.Sprintf("%d", c.cfg.PageSize))
	q.Set("$offset", fmt.Sprintf("%d", offset))
	q.Set("$order", "camis,inspection_date")
	reqURL := c.cfg.BaseURL + "?" + q.Encode()

	var lastErr error
	for attempt := 0; attempt < c.cfg.Retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.cfg.Retry.Sleep(ctx, attempt-1); err != nil {
				return nil, err
			}
		}
		page, err := c.doPage(ctx, reqURL)
		if err == nil {
			return page, nil
		}
		lastErr = err
		c.log.Warn("Feed page fetch failed",
			"attempt", attempt+1,
			"max_attempts", c.cfg.Retry.MaxAttempts,
			"offset", offset,
			"error", err,
		)
	}
	return nil, fmt.Errorf("page fetch failed after %d attempts: %w", c.cfg.Retry.MaxAttempts, lastErr)
}

func (c *client) doPage(ctx context.Context, reqURL string) ([]InspectionRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.AppToken != "" {
		req.Header.Set("X-App-Token", c.cfg.AppToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}
	var page []InspectionRecord
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode feed page: %w", err)
	}
	return page, nil
}
