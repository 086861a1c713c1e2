package notion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// scriptedServer returns a test server that answers with the given
// status codes in order (repeating the last one), plus a counter.
func scriptedServer(t *testing.T, statuses []int, headers map[string]string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx := calls
		if idx >= len(statuses) {
			idx = len(statuses) - 1
		}
		calls++
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(statuses[idx])
		w.Write([]byte(`{"object":"page","id":"page-1"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testClient(baseURL string, maxRetries int) (*Client, *[]time.Duration) {
	c := NewClient("secret", Options{
		BaseURL:     baseURL,
		MaxRetries:  maxRetries,
		BaseBackoff: time.Second,
	})
	var sleeps []time.Duration
	c.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return c, &sleeps
}

func TestRequestRetriesRateLimitWithExponentialBackoff(t *testing.T) {
	srv, calls := scriptedServer(t, []int{429, 429, 429, 200}, nil)
	c, sleeps := testClient(srv.URL, 5)

	raw, err := c.request(context.Background(), http.MethodPost, "/pages", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("expected response body")
	}
	if *calls != 4 {
		t.Errorf("got %d HTTP calls, want 4", *calls)
	}

	// No Retry-After header: backoff doubles per attempt, floored at base.
	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("got %d sleeps %v, want %d", len(*sleeps), *sleeps, len(want))
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Errorf("sleep %d = %v, want %v", i, (*sleeps)[i], d)
		}
	}
}

func TestRequestHonorsRetryAfterHeader(t *testing.T) {
	srv, _ := scriptedServer(t, []int{429, 200}, map[string]string{"Retry-After": "2.5"})
	c, sleeps := testClient(srv.URL, 5)

	if _, err := c.request(context.Background(), http.MethodPost, "/pages", nil); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if len(*sleeps) != 1 || (*sleeps)[0] != 2500*time.Millisecond {
		t.Errorf("sleeps = %v, want [2.5s]", *sleeps)
	}
}

func TestRequestRetryAfterFloorIsBaseBackoff(t *testing.T) {
	// A server-supplied value below the base must be raised to the base.
	srv, _ := scriptedServer(t, []int{429, 200}, map[string]string{"Retry-After": "0.1"})
	c, sleeps := testClient(srv.URL, 5)

	if _, err := c.request(context.Background(), http.MethodPost, "/pages", nil); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if len(*sleeps) != 1 || (*sleeps)[0] != time.Second {
		t.Errorf("sleeps = %v, want [1s]", *sleeps)
	}
}

func TestRequestRetriesServerErrors(t *testing.T) {
	srv, calls := scriptedServer(t, []int{500, 503, 200}, nil)
	c, sleeps := testClient(srv.URL, 5)

	if _, err := c.request(context.Background(), http.MethodPost, "/pages", nil); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if *calls != 3 {
		t.Errorf("got %d HTTP calls, want 3", *calls)
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(*sleeps) != 2 || (*sleeps)[0] != want[0] || (*sleeps)[1] != want[1] {
		t.Errorf("sleeps = %v, want %v", *sleeps, want)
	}
}

func TestRequestExhaustsRetries(t *testing.T) {
	srv, calls := scriptedServer(t, []int{429}, nil)
	c, _ := testClient(srv.URL, 3)

	_, err := c.request(context.Background(), http.MethodPost, "/pages", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", apiErr.StatusCode)
	}
	// Attempt counter is checked after each sleep: 3 sleeps then failure.
	if *calls != 3 {
		t.Errorf("got %d HTTP calls, want 3", *calls)
	}
}

func TestRequestClientErrorFailsImmediately(t *testing.T) {
	srv, calls := scriptedServer(t, []int{404}, nil)
	c, sleeps := testClient(srv.URL, 5)

	_, err := c.request(context.Background(), http.MethodGet, "/pages/x", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", apiErr.StatusCode)
	}
	if *calls != 1 || len(*sleeps) != 0 {
		t.Errorf("calls = %d, sleeps = %v; want single call, no sleeps", *calls, *sleeps)
	}
}

func TestRequestSetsAuthHeaders(t *testing.T) {
	var gotAuth, gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("Notion-Version")
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient("secret", Options{BaseURL: srv.URL, APIVersion: "2025-09-03"})
	if _, err := c.request(context.Background(), http.MethodGet, "/", nil); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotVersion != "2025-09-03" {
		t.Errorf("Notion-Version = %q", gotVersion)
	}
}

func TestQueryDatabaseDecodesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data_sources/db-1/query" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"results":[{"id":"p1"},{"id":"p2"}]}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient("secret", Options{BaseURL: srv.URL})
	pages, err := c.QueryDatabase(context.Background(), "db-1", nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(pages) != 2 || pages[0].ID != "p1" || pages[1].ID != "p2" {
		t.Errorf("pages = %#v", pages)
	}
}
