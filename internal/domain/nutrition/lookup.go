package nutrition

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matiasleandrokruk/macrometer/internal/infra/usda"
	"github.com/matiasleandrokruk/macrometer/pkg/apperr"
)

// FoodSearcher is the database search contract. usda.Client satisfies it.
type FoodSearcher interface {
	Search(ctx context.Context, req usda.SearchRequest) (*usda.SearchResponse, error)
}

// Finder resolves a food name to a FoodMatch, or apperr.ErrNotFound.
// LookupService and CachedLookup both satisfy it.
type Finder interface {
	Lookup(ctx context.Context, name string) (*FoodMatch, error)
}

// LookupConfig bounds the variant retry loop.
type LookupConfig struct {
	MaxAttempts int           // searches issued at most, across all variants
	Delay       time.Duration // pause between attempts (upstream rate limit)
}

// DefaultLookupConfig returns the production retry budget: 8 attempts, 1s apart.
func DefaultLookupConfig() LookupConfig {
	return LookupConfig{MaxAttempts: 8, Delay: time.Second}
}

// LookupService queries the food database one variant at a time.
type LookupService struct {
	searcher FoodSearcher
	cfg      LookupConfig
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewLookupService creates a LookupService. A non-positive MaxAttempts falls back to the default.
func NewLookupService(searcher FoodSearcher, cfg LookupConfig, logger *zap.Logger) *LookupService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultLookupConfig().MaxAttempts
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LookupService{searcher: searcher, cfg: cfg, logger: logger, sleep: sleepCtx}
}

// Lookup tries each query variant in order until one returns a food or the attempt
// budget runs out. Search errors count as a failed attempt and are only logged.
// Exhaustion returns apperr.ErrNotFound; a cancelled ctx returns ctx.Err().
func (s *LookupService) Lookup(ctx context.Context, name string) (*FoodMatch, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperr.Invalid("food name is empty")
	}

	variants := QueryVariants(name)
	log := s.logger.With(zap.String("food", name))

	attempts := 0
	for _, variant := range variants {
		if attempts >= s.cfg.MaxAttempts {
			break
		}
		if attempts > 0 {
			if err := s.sleep(ctx, s.cfg.Delay); err != nil {
				return nil, err
			}
		}
		attempts++

		resp, err := s.searcher.Search(ctx, usda.SearchRequest{Query: variant, PageSize: 1})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Warn("nutrition search failed", zap.String("variant", variant), zap.Int("attempt", attempts), zap.Error(err))
			continue
		}
		if len(resp.Foods) == 0 {
			log.Debug("no food for variant", zap.String("variant", variant), zap.Int("attempt", attempts))
			continue
		}

		food := resp.Foods[0]
		log.Debug("nutrition match", zap.String("variant", variant), zap.String("description", food.Description))
		return &FoodMatch{
			Name:        name,
			Query:       variant,
			Description: food.Description,
			Profile:     ExtractProfile(food.FoodNutrients),
		}, nil
	}

	log.Info("nutrition lookup exhausted", zap.Int("attempts", attempts))
	return nil, fmt.Errorf("%w: no nutrition data for %q after %d attempts", apperr.ErrNotFound, name, attempts)
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
