// Package client provides a Go client for the quote server HTTP API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/palontologist/price-oracles/pkg/server/sources"
)

// QuotesOptions narrows a quote request. Empty options fetch the server's
// default commodity set.
type QuotesOptions struct {
	Commodities  []string // canonical names or aliases
	IncludeFlour bool
	Mock         []string // source names that should serve offline data
}

// QuotesResult is the /v1/quotes response envelope.
type QuotesResult struct {
	Quotes    []sources.NormalizedQuote `json:"quotes"`
	Count     int                       `json:"count"`
	Degraded  bool                      `json:"degraded"`
	Timestamp time.Time                 `json:"timestamp"`
}

// HistoryResult is the /v1/history response envelope.
type HistoryResult struct {
	Commodity string                    `json:"commodity"`
	Quotes    []sources.NormalizedQuote `json:"quotes"`
	Count     int                       `json:"count"`
}

// Client interface for fetching quotes from a quote server
type Client interface {
	GetQuotes(ctx context.Context, opts QuotesOptions) (*QuotesResult, error)
	GetHistory(ctx context.Context, commodity string, limit int) (*HistoryResult, error)
}

// HTTPClient implements Client using HTTP requests
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a new HTTP quote client
func NewHTTPClient(baseURL string, timeout time.Duration) (Client, error) {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// GetQuotes fetches normalized quotes from the quote server
func (c *HTTPClient) GetQuotes(ctx context.Context, opts QuotesOptions) (*QuotesResult, error) {
	params := url.Values{}
	if len(opts.Commodities) > 0 {
		params.Set("commodities", strings.Join(opts.Commodities, ","))
	}
	if opts.IncludeFlour {
		params.Set("flour", "true")
	}
	if len(opts.Mock) > 0 {
		params.Set("mock", strings.Join(opts.Mock, ","))
	}

	endpoint := c.baseURL + "/v1/quotes"
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var result QuotesResult
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetHistory fetches stored quote history for one commodity
func (c *HTTPClient) GetHistory(ctx context.Context, commodity string, limit int) (*HistoryResult, error) {
	params := url.Values{}
	params.Set("commodity", commodity)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var result HistoryResult
	if err := c.getJSON(ctx, c.baseURL+"/v1/history?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// getJSON performs a GET request and decodes the JSON response into out.
func (c *HTTPClient) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch quotes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("quote server returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
