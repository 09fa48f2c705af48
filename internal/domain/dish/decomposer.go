package dish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/matiasleandrokruk/macrometer/internal/infra/llm"
	"github.com/matiasleandrokruk/macrometer/pkg/apperr"
)

// Decomposer splits a dish image into named ingredients with mass percentages.
type Decomposer interface {
	Decompose(ctx context.Context, image []byte, weightG float64) (*Decomposition, error)
}

// Wire field names of the structured model response.
const (
	fieldDishName             = "DishName"
	fieldIngredientName       = "IngredientName"
	fieldIngredientPercentage = "IngredientPercentage"
)

// decomposeMaxTokens caps the model reply; a decomposition is a few hundred tokens.
const decomposeMaxTokens = 1024

// promptTemplate is a fmt format filled with the dish weight in grams; a literal percent is %%.
const promptTemplate = `
You are decomposing a complex dish into its main ingredients for nutritional analysis.
The weight of the dish is %s grams for the nutritional analysis.

Please respond ONLY with a JSON object matching this schema:
{
  "DishName": "(string - name of the dish, use best guess if not given)",
  "IngredientName": ["list of ingredient names (strings), using USDA standard ingredient names"],
  "IngredientPercentage": ["corresponding percentages (numbers, not strings), without %% signs"]
}

Example:
{
  "DishName": "Chicken Over Rice",
  "IngredientName": ["grilled chicken", "white rice", "yogurt sauce", "lettuce", "tomatoes"],
  "IngredientPercentage": [40.0, 35.0, 15.0, 5.0, 5.0]
}
`

// BuildPrompt returns the decomposition prompt for a dish of weightG grams.
// The same weight always yields the same prompt.
func BuildPrompt(weightG float64) string {
	return fmt.Sprintf(promptTemplate, strconv.FormatFloat(weightG, 'f', -1, 64))
}

// ResponseSchema is the structured-output schema sent with every decomposition request.
func ResponseSchema() *llm.Schema {
	return &llm.Schema{
		Type: "object",
		Properties: map[string]*llm.Schema{
			fieldDishName:             {Type: "string"},
			fieldIngredientName:       {Type: "array", Items: &llm.Schema{Type: "string"}},
			fieldIngredientPercentage: {Type: "array", Items: &llm.Schema{Type: "number"}},
		},
		Required: []string{fieldDishName, fieldIngredientName, fieldIngredientPercentage},
	}
}

// VisionDecomposer asks a vision-language model for the decomposition.
type VisionDecomposer struct {
	provider llm.VisionProvider
	logger   *zap.Logger
}

// NewVisionDecomposer creates a VisionDecomposer over provider.
func NewVisionDecomposer(provider llm.VisionProvider, logger *zap.Logger) *VisionDecomposer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VisionDecomposer{provider: provider, logger: logger}
}

// Decompose validates the input, sends one request to the model and parses its answer.
// No retry happens here; provider errors are returned as they come (apperr.ErrUpstream).
func (d *VisionDecomposer) Decompose(ctx context.Context, image []byte, weightG float64) (*Decomposition, error) {
	if err := ValidateInput(image, weightG); err != nil {
		return nil, err
	}

	temperature := float32(0)
	resp, err := d.provider.Generate(ctx, llm.VisionRequest{
		Prompt:      BuildPrompt(weightG),
		Images:      []llm.Image{{Data: image, MimeType: imageMIME(image)}},
		Schema:      ResponseSchema(),
		Temperature: &temperature,
		MaxTokens:   decomposeMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("vision decompose: %w", err)
	}

	dec, err := ParseDecomposition(resp.Content)
	if err != nil {
		d.logger.Warn("vision model returned an unusable decomposition",
			zap.String("model", d.provider.ModelInfo().ID),
			zap.String("stop_reason", resp.StopReason),
			zap.Error(err))
		return nil, err
	}
	d.logger.Debug("dish decomposed",
		zap.String("dish", dec.DishName),
		zap.Int("ingredients", len(dec.Ingredients)),
		zap.Int("tokens", resp.Tokens))
	return dec, nil
}

// ValidateInput rejects an empty image and a weight that is not a positive finite number.
func ValidateInput(image []byte, weightG float64) error {
	if len(image) == 0 {
		return apperr.Invalid("image is empty")
	}
	if math.IsNaN(weightG) || math.IsInf(weightG, 0) || weightG <= 0 {
		return apperr.Invalid("dish weight must be a positive number of grams, got %v", weightG)
	}
	return nil
}

// imageMIME sniffs the image type; non-image content is left to the provider default.
func imageMIME(image []byte) string {
	mime := http.DetectContentType(image)
	if strings.HasPrefix(mime, "image/") {
		return mime
	}
	return ""
}

type rawDecomposition struct {
	DishName             *string    `json:"DishName"`
	IngredientName       []*string  `json:"IngredientName"`
	IngredientPercentage []*float64 `json:"IngredientPercentage"`
}

// ParseDecomposition decodes model output into a Decomposition.
// Unparseable text is apperr.ErrDecomposition; JSON of the wrong shape, missing
// fields, lists of different lengths or percentages outside [0,100] are
// apperr.ErrSchemaMismatch.
func ParseDecomposition(content string) (*Decomposition, error) {
	text := stripCodeFence(content)
	if text == "" {
		return nil, fmt.Errorf("%w: empty model response", apperr.ErrDecomposition)
	}

	var raw rawDecomposition
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: field %q: %v", apperr.ErrSchemaMismatch, typeErr.Field, err)
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrDecomposition, err)
	}

	switch {
	case raw.DishName == nil:
		return nil, fmt.Errorf("%w: missing %s", apperr.ErrSchemaMismatch, fieldDishName)
	case raw.IngredientName == nil:
		return nil, fmt.Errorf("%w: missing %s", apperr.ErrSchemaMismatch, fieldIngredientName)
	case raw.IngredientPercentage == nil:
		return nil, fmt.Errorf("%w: missing %s", apperr.ErrSchemaMismatch, fieldIngredientPercentage)
	case len(raw.IngredientName) != len(raw.IngredientPercentage):
		return nil, fmt.Errorf("%w: %d ingredient names but %d percentages",
			apperr.ErrSchemaMismatch, len(raw.IngredientName), len(raw.IngredientPercentage))
	}

	dec := &Decomposition{
		DishName:    strings.TrimSpace(*raw.DishName),
		Ingredients: make([]IngredientFraction, len(raw.IngredientName)),
	}
	if dec.DishName == "" {
		dec.DishName = UnknownDish
	}
	for i, rawName := range raw.IngredientName {
		if rawName == nil || strings.TrimSpace(*rawName) == "" {
			return nil, fmt.Errorf("%w: %s[%d] is null or blank", apperr.ErrSchemaMismatch, fieldIngredientName, i)
		}
		name := strings.TrimSpace(*rawName)
		if raw.IngredientPercentage[i] == nil {
			return nil, fmt.Errorf("%w: %s[%d] for %q is null", apperr.ErrSchemaMismatch, fieldIngredientPercentage, i, name)
		}
		pct := *raw.IngredientPercentage[i]
		if pct < 0 || pct > 100 {
			return nil, fmt.Errorf("%w: percentage %v for %q outside [0,100]", apperr.ErrSchemaMismatch, pct, name)
		}
		dec.Ingredients[i] = IngredientFraction{Name: name, Percentage: pct}
	}
	return dec, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
