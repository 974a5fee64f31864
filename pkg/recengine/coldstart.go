package recengine

import (
	"github.com/freshcart/cartsense-go/pkg/tracking"
)

// Cold-start confidence ladder. Scores start at the base and step down per
// position so the ordering is stable and testable, not an accident of
// iteration order. For lists long enough that the standard step would hit
// the minimum, the step shrinks so the ladder stays strictly decreasing.
const (
	coldStartBaseConfidence = 0.80
	coldStartConfidenceStep = 0.05
	coldStartMinConfidence  = 0.01
)

// coldStart builds the popularity-based fallback list for users without
// qualifying interaction history.
//
// Product order is the popularity snapshot when one is available (unknown
// ids dropped), then the catalog in fixed order. Every entry is tagged
// popularity with strictly decreasing confidence.
func (e *Engine) coldStart(popular []*tracking.PopularityEntry, listSize int) *Response {
	ordered := make([]Product, 0, listSize)
	seen := make(map[string]bool, listSize)

	for _, entry := range popular {
		if len(ordered) >= listSize {
			break
		}
		product := e.catalog.Find(entry.ProductID)
		if product == nil || seen[entry.ProductID] {
			continue
		}
		seen[entry.ProductID] = true
		ordered = append(ordered, *product)
	}

	for _, product := range e.catalog.Products() {
		if len(ordered) >= listSize {
			break
		}
		if seen[product.ID] {
			continue
		}
		seen[product.ID] = true
		ordered = append(ordered, product)
	}

	step := coldStartConfidenceStep
	if n := len(ordered); n > 1 {
		if maxStep := (coldStartBaseConfidence - coldStartMinConfidence) / float64(n-1); step > maxStep {
			step = maxStep
		}
	}

	recommendations := make([]Recommendation, 0, len(ordered))
	for i, product := range ordered {
		confidence := coldStartBaseConfidence - float64(i)*step
		recommendations = append(recommendations, Recommendation{
			Product:            product,
			ConfidenceScore:    confidence,
			Reasoning:          "Popular among our customers - great for first-time shoppers!",
			RecommendationType: TypePopularity,
		})
	}

	return &Response{
		Recommendations: recommendations,
		Source:          SourceColdStart,
		Analysis:        &Analysis{TopCategories: []string{}},
	}
}
