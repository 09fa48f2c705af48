// Package app assembles the MacroMeter pipeline from a validated config.Config.
// Every command (analyze, lookup, serve, mcp) builds its services here once at startup.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/matiasleandrokruk/macrometer/internal/domain/dish"
	"github.com/matiasleandrokruk/macrometer/internal/domain/nutrition"
	"github.com/matiasleandrokruk/macrometer/internal/infra/config"
	"github.com/matiasleandrokruk/macrometer/internal/infra/llm"
	"github.com/matiasleandrokruk/macrometer/internal/infra/rekognition"
	"github.com/matiasleandrokruk/macrometer/internal/infra/sqlite"
	"github.com/matiasleandrokruk/macrometer/internal/infra/usda"
	"github.com/matiasleandrokruk/macrometer/pkg/apperr"
)

// App holds the wired services and the resources to release on exit.
type App struct {
	Foods      nutrition.Finder
	Decomposer dish.Decomposer
	Aggregator *dish.Aggregator
	Logger     *zap.Logger

	// vision is the provider behind the decomposer; nil for Rekognition.
	vision  llm.VisionProvider
	closers []io.Closer
}

// NewLookup builds only the nutrition side (USDA client, retry loop, optional cache).
// It is enough for the lookup command.
func NewLookup(cfg config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.ValidateNutrition(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Logger: logger}

	client := usda.NewClient(cfg.USDABaseURL, cfg.USDAAPIKey, cfg.NutritionTimeout)
	var foods nutrition.Finder = nutrition.NewLookupService(client, nutrition.LookupConfig{
		MaxAttempts: cfg.LookupMaxAttempts,
		Delay:       cfg.LookupDelay,
	}, logger.Named("nutrition"))

	if cfg.NutritionCachePath != "" {
		db, err := openCache(cfg.NutritionCachePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		foods = nutrition.NewCachedLookup(foods, nutrition.NewSQLCache(db, cfg.NutritionCacheTTL), logger.Named("cache"))
		logger.Info("nutrition cache enabled", zap.String("path", cfg.NutritionCachePath), zap.Duration("ttl", cfg.NutritionCacheTTL))
	}
	a.Foods = foods
	return a, nil
}

// New builds the full pipeline: decomposer, nutrition lookup and aggregator.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a, err := NewLookup(cfg, logger)
	if err != nil {
		return nil, err
	}

	dec, vision, err := newDecomposer(ctx, cfg, a.Logger)
	if err != nil {
		a.Close() //nolint:errcheck
		return nil, err
	}
	a.Decomposer, a.vision = dec, vision
	a.Aggregator = dish.NewAggregator(dec, a.Foods, dish.AggregatorConfig{Concurrency: cfg.LookupConcurrency}, a.Logger.Named("dish"))
	return a, nil
}

// HealthCheck checks the vision provider's reachability and credentials.
// Rekognition has no cheap probe, so it always reports healthy.
func (a *App) HealthCheck(ctx context.Context) error {
	if a.vision == nil {
		return nil
	}
	return a.vision.HealthCheck(ctx)
}

// Closers returns the resources a long-running server must close on shutdown.
func (a *App) Closers() []io.Closer {
	return a.closers
}

// Close releases every resource opened by New or NewLookup.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewVisionRouter registers every vision provider and routes to cfg.LLMProvider.
func NewVisionRouter(cfg config.Config) *llm.Router {
	return llm.NewRouter(map[string]llm.VisionProvider{
		config.ProviderGemini: llm.NewGeminiProvider(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.VisionTimeout),
		config.ProviderOllama: llm.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaVisionModel, cfg.VisionTimeout),
	}, cfg.LLMProvider)
}

func newDecomposer(ctx context.Context, cfg config.Config, logger *zap.Logger) (dish.Decomposer, llm.VisionProvider, error) {
	switch cfg.Decomposer {
	case config.DecomposerRekognition:
		client, err := rekognition.NewClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, nil, err
		}
		return rekognition.NewLabelDecomposer(client, rekognition.Options{}, logger.Named("rekognition")), nil, nil
	case config.DecomposerVision:
		router := NewVisionRouter(cfg)
		if _, err := router.Route(ctx); err != nil {
			return nil, nil, err
		}
		return dish.NewVisionDecomposer(router, logger.Named("vision")), router, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown decomposer %q", apperr.ErrConfiguration, cfg.Decomposer)
	}
}

func openCache(path string) (*sql.DB, error) {
	db, err := sqlite.NewDB(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open nutrition cache: %v", apperr.ErrConfiguration, err)
	}
	if err := sqlite.MigrateUp(db); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("%w: migrate nutrition cache: %v", apperr.ErrConfiguration, err)
	}
	return db, nil
}
