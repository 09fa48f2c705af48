package nutrition

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MatchCache stores successful lookups keyed by normalized food name.
type MatchCache interface {
	Get(ctx context.Context, key string) (*FoodMatch, bool, error)
	Put(ctx context.Context, key string, m *FoodMatch) error
}

// CachedLookup serves repeat foods from a MatchCache and delegates misses.
// Only matches are cached; NotFound always goes back to the database.
type CachedLookup struct {
	next   Finder
	cache  MatchCache
	logger *zap.Logger
}

// NewCachedLookup wraps next with cache.
func NewCachedLookup(next Finder, cache MatchCache, logger *zap.Logger) *CachedLookup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedLookup{next: next, cache: cache, logger: logger}
}

// Lookup implements Finder. Cache failures are logged and never fail the lookup.
func (c *CachedLookup) Lookup(ctx context.Context, name string) (*FoodMatch, error) {
	key := CacheKey(name)

	if key != "" {
		hit, ok, err := c.cache.Get(ctx, key)
		switch {
		case err != nil:
			c.logger.Warn("nutrition cache read failed", zap.String("food", name), zap.Error(err))
		case ok:
			hit.Name = name
			return hit, nil
		}
	}

	m, err := c.next.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if key != "" {
		if putErr := c.cache.Put(ctx, key, m); putErr != nil {
			c.logger.Warn("nutrition cache write failed", zap.String("food", name), zap.Error(putErr))
		}
	}
	return m, nil
}

// CacheKey normalizes a food name for cache lookups ("  White Rice " -> "white rice").
func CacheKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SQLCache is a MatchCache over the nutrition_cache table (see infra/sqlite migrations).
type SQLCache struct {
	db     *sql.DB
	maxAge time.Duration
	now    func() time.Time
}

// NewSQLCache creates a SQLCache. maxAge <= 0 keeps entries forever.
func NewSQLCache(db *sql.DB, maxAge time.Duration) *SQLCache {
	return &SQLCache{db: db, maxAge: maxAge, now: time.Now}
}

// Get returns the cached match for key, or ok=false on miss or expiry.
func (s *SQLCache) Get(ctx context.Context, key string) (*FoodMatch, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, query, description, calories, protein_g, carbs_g, fat_g, cached_at
		FROM nutrition_cache
		WHERE food_key = ?`, key)

	var (
		m                     FoodMatch
		cal, prot, carbs, fat sql.NullFloat64
		cachedAt              string
	)
	err := row.Scan(&m.Name, &m.Query, &m.Description, &cal, &prot, &carbs, &fat, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("nutrition cache get: %w", err)
	}

	if s.maxAge > 0 {
		at, parseErr := time.Parse(time.RFC3339, cachedAt)
		if parseErr != nil || s.now().Sub(at) > s.maxAge {
			return nil, false, nil
		}
	}

	m.Profile = MacroProfile{
		Calories: floatPtr(cal),
		ProteinG: floatPtr(prot),
		CarbsG:   floatPtr(carbs),
		FatG:     floatPtr(fat),
	}
	return &m, true, nil
}

// Put upserts m under key.
func (s *SQLCache) Put(ctx context.Context, key string, m *FoodMatch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nutrition_cache (food_key, name, query, description, calories, protein_g, carbs_g, fat_g, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(food_key) DO UPDATE SET
			name = excluded.name,
			query = excluded.query,
			description = excluded.description,
			calories = excluded.calories,
			protein_g = excluded.protein_g,
			carbs_g = excluded.carbs_g,
			fat_g = excluded.fat_g,
			cached_at = excluded.cached_at`,
		key, m.Name, m.Query, m.Description,
		nullFloat(m.Profile.Calories), nullFloat(m.Profile.ProteinG),
		nullFloat(m.Profile.CarbsG), nullFloat(m.Profile.FatG),
		s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("nutrition cache put: %w", err)
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
