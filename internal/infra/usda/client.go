// Package usda is the HTTP adapter for the USDA FoodData Central search API.
// Endpoint used:
//   - GET /foods/search?query=&pageSize=  — full-text food search
//
// The API key travels in the X-Api-Key header so it never appears in URLs,
// and therefore never in *url.Error messages or logs.
package usda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/matiasleandrokruk/macrometer/pkg/apperr"
)

// DefaultBaseURL is the public FoodData Central v1 API root.
const DefaultBaseURL = "https://api.nal.usda.gov/fdc/v1"

const (
	serviceName  = "usda"
	headerAPIKey = "X-Api-Key"
)

// SearchRequest is the input for a single food search.
type SearchRequest struct {
	Query    string
	PageSize int // 0 means 1 (best match only)
}

// SearchResponse is the subset of the /foods/search payload the lookup needs.
type SearchResponse struct {
	TotalHits int    `json:"totalHits"`
	Foods     []Food `json:"foods"`
}

// Food is one search hit. Nutrient values are per 100 g for every data type we query.
type Food struct {
	FdcID         int            `json:"fdcId"`
	Description   string         `json:"description"`
	DataType      string         `json:"dataType"`
	FoodNutrients []FoodNutrient `json:"foodNutrients"`
}

// FoodNutrient is a single labelled nutrient value. Value is nil when the API omits it.
type FoodNutrient struct {
	NutrientName string   `json:"nutrientName"`
	Value        *float64 `json:"value"`
	UnitName     string   `json:"unitName"`
}

// Client calls the FoodData Central API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Client. A zero timeout falls back to 30s.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Search runs one /foods/search query. Transport failures, timeouts and non-2xx
// statuses are returned wrapped in apperr.ErrUpstream.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 1
	}

	reqURL, err := url.Parse(c.baseURL + "/foods/search")
	if err != nil {
		return nil, fmt.Errorf("usda search: parse base URL: %w", err)
	}
	params := reqURL.Query()
	params.Set("query", req.Query)
	params.Set("pageSize", strconv.Itoa(pageSize))
	reqURL.RawQuery = params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("usda search: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(headerAPIKey, c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperr.Upstream(serviceName, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperr.Upstream(serviceName, fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var out SearchResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&out); decodeErr != nil {
		return nil, apperr.Upstream(serviceName, fmt.Errorf("decode search response: %w", decodeErr))
	}
	return &out, nil
}
