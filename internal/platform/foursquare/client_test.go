package foursquare

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/platewatch/platewatch-backend/internal/platform/httpx"
	"github.com/platewatch/platewatch-backend/internal/platform/logger"
	"github.com/platewatch/platewatch-backend/internal/platform/places"
)

func testClient(t *testing.T, baseURL string) places.SearchProvider {
	t.Helper()
	c, err := New(logger.NewNop(), Config{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
		Retry:   httpx.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func coords() (*float64, *float64) {
	lat, lon := 40.7306, -73.9352
	return &lat, &lon
}

func TestSearchReturnsTopResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header: got=%q", got)
		}
		if got := r.Header.Get("X-Places-Api-Version"); got == "" {
			t.Errorf("version header missing")
		}
		if got := r.URL.Query().Get("limit"); got != "1" {
			t.Errorf("limit: got=%s", got)
		}
		w.Write([]byte(`{"results":[{"fsq_place_id":"fsq-1","name":"Joe's Pizza"},{"fsq_place_id":"fsq-2","name":"Other"}]}`))
	}))
	defer srv.Close()

	lat, lon := coords()
	status, match := testClient(t, srv.URL).Search(context.Background(), "Joe's Pizza", lat, lon)
	if status != places.StatusSuccess {
		t.Fatalf("status: want=%s got=%s", places.StatusSuccess, status)
	}
	if match == nil || match.PlaceID != "fsq-1" {
		t.Fatalf("match: got=%+v", match)
	}
}

func TestSearchNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	lat, lon := coords()
	status, match := testClient(t, srv.URL).Search(context.Background(), "Nowhere", lat, lon)
	if status != places.StatusNoMatch || match != nil {
		t.Fatalf("no results: status=%s match=%+v", status, match)
	}
}

func TestSearchMissingCoordinatesSkipsRequest(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	status, _ := testClient(t, srv.URL).Search(context.Background(), "No Geo", nil, nil)
	if status != places.StatusMissingData {
		t.Fatalf("status: want=%s got=%s", places.StatusMissingData, status)
	}
	if requests != 0 {
		t.Fatalf("no request should be sent without coordinates, got=%d", requests)
	}
}

func TestSearchPermanentFailureConsumesNoRetries(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	lat, lon := coords()
	status, _ := testClient(t, srv.URL).Search(context.Background(), "Joe's Pizza", lat, lon)
	if status != places.StatusFailed {
		t.Fatalf("status: want=%s got=%s", places.StatusFailed, status)
	}
	if requests != 1 {
		t.Fatalf("permanent failure must not retry: requests=%d", requests)
	}
}

func TestSearchTransientFailureUsesFullBudget(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	lat, lon := coords()
	status, _ := testClient(t, srv.URL).Search(context.Background(), "Joe's Pizza", lat, lon)
	if status != places.StatusFailed {
		t.Fatalf("status: want=%s got=%s", places.StatusFailed, status)
	}
	if requests != 3 {
		t.Fatalf("transient failure should use the retry budget: requests=%d", requests)
	}
}

func TestSearchRecoversAfterTransientFailure(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"results":[{"fsq_place_id":"fsq-1","name":"Joe's Pizza"}]}`))
	}))
	defer srv.Close()

	lat, lon := coords()
	status, match := testClient(t, srv.URL).Search(context.Background(), "Joe's Pizza", lat, lon)
	if status != places.StatusSuccess || match == nil {
		t.Fatalf("recovery: status=%s match=%+v", status, match)
	}
	if requests != 2 {
		t.Fatalf("requests: want=2 got=%d", requests)
	}
}
