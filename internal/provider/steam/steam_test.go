package steam

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/playpulse/playpulse-data/internal/sync"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-key", 100, 10, nil)
	c.apiBaseURL = srv.URL
	c.storeBaseURL = srv.URL
	return c
}

func TestCCUFetcher(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("appid"); got != "570" {
			t.Errorf("appid = %q, want 570", got)
		}
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("key = %q, want test-key", got)
		}
		w.Write([]byte(`{"response":{"player_count":412345,"result":1}}`))
	})

	sample, err := NewCCUFetcher(client).Fetch(context.Background(), sync.Candidate{AppID: 570})
	if err != nil {
		t.Fatal(err)
	}
	if !sample.HasCCU || sample.CCU != 412345 {
		t.Errorf("sample = %+v, want CCU 412345", sample)
	}
	if sample.HasReviews {
		t.Error("CCU fetch should not carry review data")
	}
}

func TestCCUFetcherUnknownApp(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"response":{"result":42}}`))
	})

	_, err := NewCCUFetcher(client).Fetch(context.Background(), sync.Candidate{AppID: 999999})
	if !errors.Is(err, sync.ErrEntityInvalid) {
		t.Errorf("err = %v, want ErrEntityInvalid", err)
	}
}

func TestCCUFetcherServerErrorIsTransient(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "backend unavailable", http.StatusBadGateway)
	})

	_, err := NewCCUFetcher(client).Fetch(context.Background(), sync.Candidate{AppID: 570})
	if err == nil {
		t.Fatal("expected error for 502")
	}
	if errors.Is(err, sync.ErrEntityInvalid) {
		t.Error("server errors must stay transient, not quarantine the app")
	}
}

func TestReviewFetcher(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/appreviews/570" {
			t.Errorf("path = %q, want /appreviews/570", r.URL.Path)
		}
		if got := r.URL.Query().Get("num_per_page"); got != "0" {
			t.Errorf("num_per_page = %q, want 0 (summary only)", got)
		}
		w.Write([]byte(`{"success":1,"query_summary":{"total_reviews":2100000,"total_positive":1900000,"total_negative":200000}}`))
	})

	sample, err := NewReviewFetcher(client).Fetch(context.Background(), sync.Candidate{AppID: 570})
	if err != nil {
		t.Fatal(err)
	}
	if !sample.HasReviews {
		t.Fatal("expected review data")
	}
	if sample.TotalReviews != 2100000 || sample.PositiveReviews != 1900000 {
		t.Errorf("sample = %+v", sample)
	}
}

func TestReviewFetcherDelistedApp(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"success":2}`))
	})

	_, err := NewReviewFetcher(client).Fetch(context.Background(), sync.Candidate{AppID: 999999})
	if !errors.Is(err, sync.ErrEntityInvalid) {
		t.Errorf("err = %v, want ErrEntityInvalid", err)
	}
}

func TestClientRateLimiterBlocks(t *testing.T) {
	var hits int
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Write([]byte(`{"response":{"player_count":1,"result":1}}`))
	})
	// Zero steady rate with burst 1: the first call consumes the only
	// token, the second must block until the context expires.
	client.limiter.SetLimit(0)
	client.limiter.SetBurst(1)

	f := NewCCUFetcher(client)
	if _, err := f.Fetch(context.Background(), sync.Candidate{AppID: 570}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Fetch(ctx, sync.Candidate{AppID: 570}); err == nil {
		t.Fatal("expected rate limiter to refuse under cancelled context")
	}
	if hits != 1 {
		t.Errorf("server hits = %d, want 1", hits)
	}
}
