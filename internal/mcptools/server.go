// Package mcptools exposes nutrition lookup and dish estimation as MCP tools
// so assistants can call them over stdio.
package mcptools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/matiasleandrokruk/macrometer/internal/domain/dish"
	"github.com/matiasleandrokruk/macrometer/internal/domain/nutrition"
	"github.com/matiasleandrokruk/macrometer/internal/version"
	"github.com/matiasleandrokruk/macrometer/pkg/apperr"
)

// Tool names.
const (
	ToolLookupNutrition    = "lookup_nutrition"
	ToolEstimateDishMacros = "estimate_dish_macros"
)

// maxImageBytes matches the HTTP upload limit.
const maxImageBytes = 10 << 20

// Analyzer runs the full dish pipeline. dish.Aggregator satisfies it.
type Analyzer interface {
	Aggregate(ctx context.Context, image []byte, weightG float64) (*dish.Analysis, error)
}

// LookupNutritionParams is the input of lookup_nutrition.
type LookupNutritionParams struct {
	Name string `json:"name" jsonschema:"food name, e.g. white rice"`
}

// EstimateDishParams is the input of estimate_dish_macros.
type EstimateDishParams struct {
	ImagePath string  `json:"image_path" jsonschema:"path to a JPEG or PNG photo of the dish"`
	WeightG   float64 `json:"weight_g" jsonschema:"measured dish weight in grams"`
}

// Tools holds the services behind the MCP tools.
type Tools struct {
	analyzer Analyzer
	foods    nutrition.Finder
	logger   *zap.Logger
}

// NewTools creates Tools.
func NewTools(analyzer Analyzer, foods nutrition.Finder, logger *zap.Logger) *Tools {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tools{analyzer: analyzer, foods: foods, logger: logger}
}

// NewServer builds an MCP server with every tool registered.
func NewServer(t *Tools) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "macrometer", Version: version.Version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolLookupNutrition,
		Description: "Per-100g calories, protein, carbohydrate and fat for a food from USDA FoodData Central.",
	}, t.LookupNutrition)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolEstimateDishMacros,
		Description: "Estimate total calories and macros of a plated dish from a photo and its weight in grams.",
	}, t.EstimateDishMacros)

	return server
}

// Serve runs the MCP server over stdin/stdout until ctx is done or the client disconnects.
func Serve(ctx context.Context, t *Tools) error {
	t.logger.Info("serving MCP tools over stdio")
	return NewServer(t).Run(ctx, &mcp.StdioTransport{})
}

// LookupNutrition handles lookup_nutrition. A food with no data is reported as a tool
// error so the model can try another name.
func (t *Tools) LookupNutrition(ctx context.Context, _ *mcp.CallToolRequest, in LookupNutritionParams) (*mcp.CallToolResult, nutrition.FoodMatch, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, nutrition.FoodMatch{}, errors.New("name is required")
	}
	m, err := t.foods.Lookup(ctx, name)
	if err != nil {
		t.logger.Debug("mcp lookup failed", zap.String("food", name), zap.Error(err))
		return nil, nutrition.FoodMatch{}, toolError(err)
	}
	return nil, *m, nil
}

// EstimateDishMacros handles estimate_dish_macros.
func (t *Tools) EstimateDishMacros(ctx context.Context, _ *mcp.CallToolRequest, in EstimateDishParams) (*mcp.CallToolResult, dish.Analysis, error) {
	image, err := readImage(in.ImagePath)
	if err != nil {
		return nil, dish.Analysis{}, err
	}
	analysis, err := t.analyzer.Aggregate(ctx, image, in.WeightG)
	if err != nil {
		t.logger.Warn("mcp dish estimate failed", zap.String("image", in.ImagePath), zap.Error(err))
		return nil, dish.Analysis{}, toolError(err)
	}
	return nil, *analysis, nil
}

// readImage loads a dish photo from disk, refusing empty or oversized files.
func readImage(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("image_path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("image_path: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("image_path %s is a directory", path)
	}
	if info.Size() > maxImageBytes {
		return nil, fmt.Errorf("image_path %s exceeds 10MB", path)
	}
	return os.ReadFile(path)
}

// toolError rewords pipeline errors for the calling model.
func toolError(err error) error {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return fmt.Errorf("no nutrition data found; try a more generic food name (%w)", err)
	case errors.Is(err, apperr.ErrInvalidInput):
		return err
	case errors.Is(err, apperr.ErrUpstream), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("upstream service unavailable, retry later (%w)", err)
	default:
		return err
	}
}
