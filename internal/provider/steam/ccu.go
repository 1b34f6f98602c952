package steam

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/playpulse/playpulse-data/internal/sync"
)

// ccuResponse wraps ISteamUserStats/GetNumberOfCurrentPlayers.
// Result 1 = ok; anything else means the app id is unknown to Steam.
type ccuResponse struct {
	Response struct {
		PlayerCount int64 `json:"player_count"`
		Result      int   `json:"result"`
	} `json:"response"`
}

// CCUFetcher fetches current player counts. It implements sync.Fetcher for
// the ccu_sync pass.
type CCUFetcher struct {
	client *Client
}

// NewCCUFetcher wraps the shared client.
func NewCCUFetcher(client *Client) *CCUFetcher {
	return &CCUFetcher{client: client}
}

// Fetch returns the game's concurrent player count. Unknown app ids map to
// sync.ErrEntityInvalid so the runner quarantines them.
func (f *CCUFetcher) Fetch(ctx context.Context, c sync.Candidate) (sync.Sample, error) {
	params := url.Values{"appid": {strconv.FormatInt(c.AppID, 10)}}
	if f.client.apiKey != "" {
		params.Set("key", f.client.apiKey)
	}

	var resp ccuResponse
	err := f.client.get(ctx, f.client.apiBaseURL,
		"/ISteamUserStats/GetNumberOfCurrentPlayers/v1/", params, &resp)
	if err != nil {
		return sync.Sample{}, err
	}
	if resp.Response.Result != 1 {
		return sync.Sample{}, fmt.Errorf("app %d: %w", c.AppID, sync.ErrEntityInvalid)
	}

	return sync.Sample{CCU: resp.Response.PlayerCount, HasCCU: true}, nil
}
