package classify

import "github.com/ppiankov/veritas/internal/model"

// threeWay maps index-ordered scores to labels
var threeWay = [3]model.Label{model.LabelFact, model.LabelMyth, model.LabelScam}

// argmax returns the index of the largest value; the first one wins ties
func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
