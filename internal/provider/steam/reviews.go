package steam

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/playpulse/playpulse-data/internal/sync"
)

// reviewResponse wraps the storefront appreviews summary endpoint.
// Success 1 = ok; anything else means the app is delisted or unknown.
type reviewResponse struct {
	Success      int `json:"success"`
	QuerySummary struct {
		TotalReviews  int64 `json:"total_reviews"`
		TotalPositive int64 `json:"total_positive"`
		TotalNegative int64 `json:"total_negative"`
	} `json:"query_summary"`
}

// ReviewFetcher fetches review count summaries. It implements sync.Fetcher
// for the review_sync pass.
type ReviewFetcher struct {
	client *Client
}

// NewReviewFetcher wraps the shared client.
func NewReviewFetcher(client *Client) *ReviewFetcher {
	return &ReviewFetcher{client: client}
}

// Fetch returns the game's review totals. Delisted app ids map to
// sync.ErrEntityInvalid so the runner quarantines them.
func (f *ReviewFetcher) Fetch(ctx context.Context, c sync.Candidate) (sync.Sample, error) {
	params := url.Values{
		"json":          {"1"},
		"language":      {"all"},
		"purchase_type": {"all"},
		"num_per_page":  {"0"},
	}

	var resp reviewResponse
	err := f.client.get(ctx, f.client.storeBaseURL,
		"/appreviews/"+strconv.FormatInt(c.AppID, 10), params, &resp)
	if err != nil {
		return sync.Sample{}, err
	}
	if resp.Success != 1 {
		return sync.Sample{}, fmt.Errorf("app %d: %w", c.AppID, sync.ErrEntityInvalid)
	}

	return sync.Sample{
		TotalReviews:    resp.QuerySummary.TotalReviews,
		PositiveReviews: resp.QuerySummary.TotalPositive,
		HasReviews:      true,
	}, nil
}
