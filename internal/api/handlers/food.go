// HTTP handlers for single-food nutrition lookups.
// GET /api/v1/foods/{name}          — per-100g profile of the first matching variant
// GET /api/v1/foods/{name}/variants — the query variants a lookup would try
package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matiasleandrokruk/macrometer/internal/domain/nutrition"
)

// FoodHandler handles food lookup HTTP requests.
type FoodHandler struct {
	lookup nutrition.Finder
}

// NewFoodHandler creates a FoodHandler.
func NewFoodHandler(lookup nutrition.Finder) *FoodHandler {
	return &FoodHandler{lookup: lookup}
}

// variantsResponse is the JSON body for GET /api/v1/foods/{name}/variants.
type variantsResponse struct {
	Name     string   `json:"name"`
	Variants []string `json:"variants"`
}

// GetFood handles GET /api/v1/foods/{name}.
func (h *FoodHandler) GetFood(w http.ResponseWriter, r *http.Request) {
	name, ok := foodName(w, r)
	if !ok {
		return
	}
	match, err := h.lookup.Lookup(r.Context(), name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// GetVariants handles GET /api/v1/foods/{name}/variants. No upstream call is made.
func (h *FoodHandler) GetVariants(w http.ResponseWriter, r *http.Request) {
	name, ok := foodName(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, variantsResponse{Name: name, Variants: nutrition.QueryVariants(name)})
}

// foodName reads the {name} URL parameter, writing a 400 when it is blank.
func foodName(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "name")
	name, err := url.PathUnescape(raw)
	if err != nil {
		name = raw
	}
	if strings.TrimSpace(name) == "" {
		writeError(w, http.StatusBadRequest, "food name is required")
		return "", false
	}
	return name, true
}
