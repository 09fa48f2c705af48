// Uses httptest.NewServer to mock FoodData Central — no API key or network needed.
package usda

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matiasleandrokruk/macrometer/pkg/apperr"
)

func TestClient_Search_SendsQueryParams(t *testing.T) {
	t.Parallel()

	var gotQuery, gotPageSize, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/foods/search" || r.Method != http.MethodGet {
			http.Error(w, "unexpected path", http.StatusNotFound)
			return
		}
		gotQuery = r.URL.Query().Get("query")
		gotPageSize = r.URL.Query().Get("pageSize")
		gotKey = r.Header.Get("X-Api-Key")
		if r.URL.Query().Has("api_key") {
			t.Error("api key must not be sent in the query string")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"totalHits":0,"foods":[]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-key", time.Second)
	if _, err := c.Search(context.Background(), SearchRequest{Query: "white rice"}); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if gotQuery != "white rice" {
		t.Errorf("expected query 'white rice', got %q", gotQuery)
	}
	if gotPageSize != "1" {
		t.Errorf("expected pageSize '1' by default, got %q", gotPageSize)
	}
	if gotKey != "secret-key" {
		t.Errorf("expected X-Api-Key header to carry the key, got %q", gotKey)
	}
}

func TestClient_Search_DecodesFoods(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"totalHits": 1,
			"foods": []map[string]any{{
				"fdcId":       171477,
				"description": "Chicken, broilers or fryers, breast, meat only, cooked, roasted",
				"dataType":    "SR Legacy",
				"foodNutrients": []map[string]any{
					{"nutrientName": "Protein", "value": 31.0, "unitName": "G"},
					{"nutrientName": "Energy", "unitName": "KCAL"},
				},
			}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", time.Second)
	resp, err := c.Search(context.Background(), SearchRequest{Query: "chicken breast"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(resp.Foods) != 1 {
		t.Fatalf("expected 1 food, got %d", len(resp.Foods))
	}
	food := resp.Foods[0]
	if food.FdcID != 171477 {
		t.Errorf("expected fdcId 171477, got %d", food.FdcID)
	}
	if len(food.FoodNutrients) != 2 {
		t.Fatalf("expected 2 nutrients, got %d", len(food.FoodNutrients))
	}
	if food.FoodNutrients[0].Value == nil || *food.FoodNutrients[0].Value != 31.0 {
		t.Errorf("expected protein value 31, got %v", food.FoodNutrients[0].Value)
	}
	if food.FoodNutrients[1].Value != nil {
		t.Errorf("expected missing value to decode as nil, got %v", *food.FoodNutrients[1].Value)
	}
}

func TestClient_Search_ServerError_ReturnsUpstream(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", time.Second)
	_, err := c.Search(context.Background(), SearchRequest{Query: "rice"})
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("expected ErrUpstream for 429 response, got %v", err)
	}
}

func TestClient_Search_InvalidJSON_ReturnsUpstream(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", time.Second)
	_, err := c.Search(context.Background(), SearchRequest{Query: "rice"})
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("expected ErrUpstream for malformed body, got %v", err)
	}
}

func TestClient_Search_Timeout_ReturnsUpstream(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, "k", 50*time.Millisecond)
	_, err := c.Search(context.Background(), SearchRequest{Query: "rice"})
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("expected timeout to surface as ErrUpstream, got %v", err)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewClient("", "k", 0)
	if c.baseURL != DefaultBaseURL {
		t.Errorf("expected default base URL, got %q", c.baseURL)
	}
	if c.httpClient.Timeout != 30*time.Second {
		t.Errorf("expected 30s default timeout, got %v", c.httpClient.Timeout)
	}
}

func TestClient_Search_TransportErrorOmitsAPIKey(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	c := NewClient(baseURL, "SECRET-KEY-123", time.Second)
	_, err := c.Search(context.Background(), SearchRequest{Query: "chicken"})
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if strings.Contains(err.Error(), "SECRET-KEY-123") {
		t.Errorf("error leaks the api key: %v", err)
	}
}
