package bitfinex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

const (
	BitfinexAPIURL = "https://api.bitfinex.com/v1"
	BitfinexWSURL  = "wss://api.bitfinex.com/ws/2"
)

// Ticker is the v1 pubticker response. All prices arrive as strings.
type Ticker struct {
	Mid       string `json:"mid"`
	Bid       string `json:"bid"`
	Ask       string `json:"ask"`
	LastPrice string `json:"last_price"`
	Low       string `json:"low"`
	High      string `json:"high"`
	Volume    string `json:"volume"`
	Timestamp string `json:"timestamp"`
}

// API is a thin client for the public Bitfinex REST endpoints.
type API struct {
	client  *http.Client
	baseURL string
}

func NewAPI() *API {
	return &API{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: BitfinexAPIURL,
	}
}

// FetchSymbols returns all tradable pairs, e.g. ["btcusd", "ethusd", ...].
func (a *API) FetchSymbols(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/symbols", nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching symbols from Bitfinex API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code: %d", resp.StatusCode)
	}

	var symbols []string
	if err := json.NewDecoder(resp.Body).Decode(&symbols); err != nil {
		return nil, fmt.Errorf("error decoding symbols response: %w", err)
	}

	sort.Strings(symbols)
	return symbols, nil
}

// FetchTicker returns the current ticker snapshot for one pair.
func (a *API) FetchTicker(ctx context.Context, pair string) (*Ticker, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/pubticker/"+pair, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching ticker for %s: %w", pair, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code %d for %s", resp.StatusCode, pair)
	}

	var ticker Ticker
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return nil, fmt.Errorf("error decoding ticker response: %w", err)
	}
	return &ticker, nil
}
