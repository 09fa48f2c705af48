// HTTP handler for dish analysis.
// POST /api/v1/dishes/analyze — multipart image + weight_g, returns the macro estimate.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/matiasleandrokruk/macrometer/internal/domain/dish"
)

// MaxImageBytes caps the uploaded image size.
const MaxImageBytes = 10 << 20

// DishAnalyzer is the pipeline contract. dish.Aggregator satisfies it.
type DishAnalyzer interface {
	Aggregate(ctx context.Context, image []byte, weightG float64) (*dish.Analysis, error)
}

// DishHandler handles dish analysis HTTP requests.
type DishHandler struct {
	analyzer DishAnalyzer
}

// NewDishHandler creates a DishHandler.
func NewDishHandler(analyzer DishAnalyzer) *DishHandler {
	return &DishHandler{analyzer: analyzer}
}

// Analyze handles POST /api/v1/dishes/analyze.
// The response body is {"result": DishResult, "skipped": [ingredient names]}.
func (h *DishHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxImageBytes+1<<20)
	if err := r.ParseMultipartForm(MaxImageBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "image exceeds 10MB")
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart/form-data with image and weight_g")
		return
	}

	weight, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue("weight_g")), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "weight_g must be a number of grams")
		return
	}

	image, err := readImage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	analysis, err := h.analyzer.Aggregate(r.Context(), image, weight)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// readImage returns the bytes of the "image" form file.
func readImage(r *http.Request) ([]byte, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, errors.New("image file is required")
	}
	defer file.Close() //nolint:errcheck

	if header.Size > MaxImageBytes {
		return nil, errors.New("image exceeds 10MB")
	}
	data, err := io.ReadAll(io.LimitReader(file, MaxImageBytes+1))
	if err != nil {
		return nil, errors.New("could not read image")
	}
	if len(data) > MaxImageBytes {
		return nil, errors.New("image exceeds 10MB")
	}
	return data, nil
}
