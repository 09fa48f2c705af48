// Package nutrition resolves a food name to its per-100g macro profile against a
// food-composition database, retrying across deterministic name variants.
package nutrition

// MacroProfile holds the four headline macros per 100 g of a food.
// A nil field means the database did not report it: unknown, not zero.
type MacroProfile struct {
	Calories *float64 `json:"calories"`
	ProteinG *float64 `json:"protein_g"`
	CarbsG   *float64 `json:"carbs_g"`
	FatG     *float64 `json:"fat_g"`
}

// Complete reports whether every field is known.
func (p MacroProfile) Complete() bool {
	return p.Calories != nil && p.ProteinG != nil && p.CarbsG != nil && p.FatG != nil
}

// FoodMatch is a successful lookup: the variant that matched, the database
// description of the food and its per-100g profile.
type FoodMatch struct {
	Name        string       `json:"name"`
	Query       string       `json:"query"`
	Description string       `json:"description"`
	Profile     MacroProfile `json:"per_100g"`
}
