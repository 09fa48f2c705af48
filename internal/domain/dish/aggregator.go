package dish

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/matiasleandrokruk/macrometer/internal/domain/nutrition"
	"github.com/matiasleandrokruk/macrometer/pkg/apperr"
)

// NutrientLookup resolves an ingredient name to its per-100g profile.
// nutrition.LookupService and nutrition.CachedLookup satisfy it.
type NutrientLookup interface {
	Lookup(ctx context.Context, name string) (*nutrition.FoodMatch, error)
}

// AggregatorConfig tunes the per-ingredient lookups.
type AggregatorConfig struct {
	// Concurrency caps parallel lookups; <= 1 looks ingredients up one at a time.
	Concurrency int
}

// Aggregator runs one decomposition and one lookup per ingredient and sums the
// scaled macros into a DishResult.
type Aggregator struct {
	decomposer  Decomposer
	lookup      NutrientLookup
	concurrency int
	logger      *zap.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(decomposer Decomposer, lookup NutrientLookup, cfg AggregatorConfig, logger *zap.Logger) *Aggregator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{decomposer: decomposer, lookup: lookup, concurrency: cfg.Concurrency, logger: logger}
}

// lookupResult is one ingredient's lookup outcome, kept at the ingredient's index.
type lookupResult struct {
	match *nutrition.FoodMatch
	err   error
}

// Aggregate estimates the macros of the dish in image weighing weightG grams.
// Decomposition errors abort. Ingredients whose lookup fails are skipped, logged and
// listed in Analysis.Skipped; they contribute nothing. Only a cancelled or expired
// ctx aborts during lookups.
func (a *Aggregator) Aggregate(ctx context.Context, image []byte, weightG float64) (*Analysis, error) {
	if err := ValidateInput(image, weightG); err != nil {
		return nil, err
	}

	dec, err := a.decomposer.Decompose(ctx, image, weightG)
	if err != nil {
		return nil, fmt.Errorf("decompose dish: %w", err)
	}
	log := a.logger.With(zap.String("dish", dec.DishName), zap.Float64("weight_g", weightG))

	results := a.lookupAll(ctx, dec.Ingredients)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	analysis := combine(dec, weightG, results, log)
	log.Info("dish macros estimated",
		zap.Int("ingredients", len(dec.Ingredients)),
		zap.Int("skipped", len(analysis.Skipped)),
		zap.Float64("calories", analysis.Result.Macros.Calories))
	return analysis, nil
}

// lookupAll resolves every ingredient; results[i] belongs to ingredients[i].
func (a *Aggregator) lookupAll(ctx context.Context, ingredients []IngredientFraction) []lookupResult {
	results := make([]lookupResult, len(ingredients))

	if a.concurrency <= 1 {
		for i, ing := range ingredients {
			if ctx.Err() != nil {
				break
			}
			m, err := a.lookup.Lookup(ctx, ing.Name)
			results[i] = lookupResult{match: m, err: err}
		}
		return results
	}

	semaphore := make(chan struct{}, a.concurrency)
	var wg sync.WaitGroup
	for i, ing := range ingredients {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				results[i] = lookupResult{err: ctx.Err()}
				return
			}
			m, err := a.lookup.Lookup(ctx, name)
			results[i] = lookupResult{match: m, err: err}
		}(i, ing.Name)
	}
	wg.Wait()
	return results
}

// combine scales each resolved ingredient to its portion of weightG and sums the
// macros in ingredient order. results[i] must belong to dec.Ingredients[i].
//
// portion = weightG * pct / 100 grams, and a per-100g value v contributes
// v * portion / 100. Sums are exact decimals rounded half away from zero to 2 places.
func combine(dec *Decomposition, weightG float64, results []lookupResult, logger *zap.Logger) *Analysis {
	if logger == nil {
		logger = zap.NewNop()
	}

	var cal, prot, carbs, fat decimal.Decimal
	skipped := []string{}
	w := decimal.NewFromFloat(weightG)

	for i, ing := range dec.Ingredients {
		res := results[i]
		if res.err != nil || res.match == nil {
			skipped = append(skipped, ing.Name)
			if res.err != nil && !errors.Is(res.err, apperr.ErrNotFound) {
				logger.Warn("ingredient lookup failed, skipping", zap.String("ingredient", ing.Name), zap.Error(res.err))
			} else {
				logger.Warn("no nutrition data for ingredient, skipping", zap.String("ingredient", ing.Name))
			}
			continue
		}

		// weight * pct / 100 / 100, shifted once at the end of each term.
		factor := w.Mul(decimal.NewFromFloat(ing.Percentage))
		p := res.match.Profile
		cal = cal.Add(scaled(p.Calories, factor))
		prot = prot.Add(scaled(p.ProteinG, factor))
		carbs = carbs.Add(scaled(p.CarbsG, factor))
		fat = fat.Add(scaled(p.FatG, factor))

		if !p.Complete() {
			logger.Debug("ingredient has unknown macros, counted as zero",
				zap.String("ingredient", ing.Name), zap.String("match", res.match.Description))
		}
	}

	return &Analysis{
		Result: DishResult{
			DishName: dec.DishName,
			WeightG:  weightG,
			Macros: Macros{
				Calories: round2(cal),
				ProteinG: round2(prot),
				CarbsG:   round2(carbs),
				FatG:     round2(fat),
			},
		},
		Skipped: skipped,
	}
}

// scaled returns v * factor / 10^4, or zero when v is unknown.
func scaled(v *float64, factor decimal.Decimal) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*v).Mul(factor).Shift(-4)
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
