// Package rekognition decomposes dish photos with AWS Rekognition image labels
// instead of a vision-language model. Labels carry no mass information, so every
// ingredient gets an equal share of the dish.
package rekognition

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"go.uber.org/zap"

	"github.com/matiasleandrokruk/macrometer/internal/domain/dish"
	"github.com/matiasleandrokruk/macrometer/pkg/apperr"
)

const (
	defaultMaxLabels     = 10
	defaultMinConfidence = 75
)

// genericLabels describe "food" in general rather than an ingredient.
var genericLabels = map[string]struct{}{
	"food":      {},
	"meal":      {},
	"dish":      {},
	"plate":     {},
	"lunch":     {},
	"dinner":    {},
	"breakfast": {},
	"produce":   {},
	"cuisine":   {},
}

// LabelDetector is the slice of the Rekognition client the decomposer needs.
type LabelDetector interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// Options tunes the DetectLabels call.
type Options struct {
	MaxLabels     int32
	MinConfidence float32
}

// LabelDecomposer implements dish.Decomposer on top of DetectLabels.
type LabelDecomposer struct {
	client LabelDetector
	opts   Options
	logger *zap.Logger
}

// NewClient builds a Rekognition client from the default AWS credential chain.
func NewClient(ctx context.Context, region string) (*rekognition.Client, error) {
	if region == "" {
		return nil, fmt.Errorf("%w: AWS_REGION is required for the rekognition decomposer", apperr.ErrConfiguration)
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", apperr.ErrConfiguration, err)
	}
	return rekognition.NewFromConfig(cfg), nil
}

// NewLabelDecomposer creates a LabelDecomposer. Zero options use 10 labels at 75% confidence.
func NewLabelDecomposer(client LabelDetector, opts Options, logger *zap.Logger) *LabelDecomposer {
	if opts.MaxLabels <= 0 {
		opts.MaxLabels = defaultMaxLabels
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = defaultMinConfidence
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LabelDecomposer{client: client, opts: opts, logger: logger}
}

// Decompose detects labels, drops generic ones and splits the dish equally across the rest.
// The first remaining label names the dish.
func (d *LabelDecomposer) Decompose(ctx context.Context, image []byte, weightG float64) (*dish.Decomposition, error) {
	if err := dish.ValidateInput(image, weightG); err != nil {
		return nil, err
	}

	out, err := d.client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: image},
		MaxLabels:     aws.Int32(d.opts.MaxLabels),
		MinConfidence: aws.Float32(d.opts.MinConfidence),
	})
	if err != nil {
		return nil, apperr.Upstream("rekognition", err)
	}

	names := ingredientLabels(out.Labels)
	d.logger.Debug("rekognition labels",
		zap.Int("labels", len(out.Labels)),
		zap.Strings("ingredients", names))

	dec := &dish.Decomposition{DishName: dish.UnknownDish, Ingredients: []dish.IngredientFraction{}}
	if len(names) == 0 {
		return dec, nil
	}
	dec.DishName = names[0]
	share := 100 / float64(len(names))
	for _, n := range names {
		dec.Ingredients = append(dec.Ingredients, dish.IngredientFraction{Name: n, Percentage: share})
	}
	return dec, nil
}

// ingredientLabels returns the non-generic label names, in response order, without duplicates.
func ingredientLabels(labels []types.Label) []string {
	seen := make(map[string]struct{}, len(labels))
	var out []string
	for _, l := range labels {
		name := strings.TrimSpace(aws.ToString(l.Name))
		key := strings.ToLower(name)
		if name == "" {
			continue
		}
		if _, generic := genericLabels[key]; generic {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}
