package coaching

import "math"

// BlendSatisfaction folds a new satisfaction reading into the user's
// rolling score: 70% history, 30% new, rounded to one decimal. With no
// history the new reading stands alone.
func BlendSatisfaction(current *float64, latest float64) float64 {
	if current == nil {
		return latest
	}
	blended := *current*0.7 + latest*0.3
	return math.Round(blended*10) / 10
}
