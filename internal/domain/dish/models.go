// Package dish turns a dish photo and its weight into a dish-level macro estimate:
// a vision model splits the dish into ingredient mass fractions, each ingredient is
// resolved against the nutrition database, and the per-100g values are scaled and summed.
package dish

// UnknownDish names a dish the decomposer could not name.
const UnknownDish = "Unknown Dish"

// IngredientFraction is one ingredient and its share of the dish mass, in percent.
// Shares are taken as reported and need not sum to 100.
type IngredientFraction struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
}

// Decomposition is what a Decomposer reports for one image.
type Decomposition struct {
	DishName    string               `json:"dish_name"`
	Ingredients []IngredientFraction `json:"ingredients"`
}

// Macros are absolute dish totals, rounded to 2 decimals.
// Field order is the wire order.
type Macros struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// DishResult is the caller-facing estimate.
type DishResult struct {
	DishName string  `json:"DishName"`
	WeightG  float64 `json:"Weight_g"`
	Macros   Macros  `json:"Macros"`
}

// Analysis wraps a DishResult with the ingredients that could not be resolved
// and therefore contributed nothing.
type Analysis struct {
	Result  DishResult `json:"result"`
	Skipped []string   `json:"skipped"`
}
