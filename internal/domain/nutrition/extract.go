package nutrition

import (
	"strings"

	"github.com/matiasleandrokruk/macrometer/internal/infra/usda"
)

const unitKcal = "KCAL"

// ExtractProfile maps labelled nutrients onto a MacroProfile by case-insensitive
// substring match on the nutrient name. Energy counts only when the unit is exactly KCAL
// (FoodData Central also reports kJ rows). A later row for the same field wins.
func ExtractProfile(nutrients []usda.FoodNutrient) MacroProfile {
	var p MacroProfile
	for _, n := range nutrients {
		name := strings.ToLower(n.NutrientName)
		switch {
		case strings.Contains(name, "energy") && n.UnitName == unitKcal:
			p.Calories = n.Value
		case strings.Contains(name, "protein"):
			p.ProteinG = n.Value
		case strings.Contains(name, "carbohydrate"):
			p.CarbsG = n.Value
		case strings.Contains(name, "total lipid"), strings.Contains(name, "total fat"):
			p.FatG = n.Value
		}
	}
	return p
}
