package recengine

import (
	"fmt"

	"github.com/freshcart/cartsense-go/pkg/analysis"
	"github.com/freshcart/cartsense-go/pkg/catalog"
)

// Candidate is a pre-assembly recommendation: a product id with its score,
// reasoning, and strategy tag. Candidates come either from the generation
// service or from the deterministic heuristic.
type Candidate struct {
	// ProductID is the proposed product; resolved against the catalog
	// during assembly.
	ProductID string

	// Confidence is the proposed confidence; clamped to [0, 1] during assembly.
	Confidence float64

	// Reasoning is the proposed justification; a generic one is substituted
	// if empty.
	Reasoning string

	// Type is the strategy tag; TypeCategory is substituted if invalid.
	Type RecommendationType
}

// Assembler maps candidates back to catalog entries and guarantees the
// final list invariants: no duplicate product ids, length exactly K when
// the catalog allows, confidence in [0, 1], non-empty reasoning.
//
// The assembler never fails; the worst case is a shorter list when the
// catalog has fewer than K distinct eligible products.
type Assembler struct {
	catalog  *catalog.Catalog
	listSize int
}

// NewAssembler creates an Assembler over the given catalog with target
// list size k.
func NewAssembler(c *catalog.Catalog, k int) *Assembler {
	if k <= 0 {
		k = 6
	}
	return &Assembler{catalog: c, listSize: k}
}

// Assemble builds the final recommendation list.
//
// Steps, in order:
//  1. Drop candidates whose product id does not resolve in the catalog.
//  2. Deduplicate by product id, keeping the first occurrence.
//  3. Truncate to K.
//  4. Pad from replenishment candidates not already present, tagged
//     replenishment at a fixed 0.7 confidence with a reasoning derived
//     from the occurrence count.
//  5. Pad from the catalog in fixed order with a generic reasoning.
//
// Running Assemble on an already-valid, already-deduplicated, correctly
// sized list returns it unchanged.
func (a *Assembler) Assemble(candidates []Candidate, replenishment []analysis.Candidate) []Recommendation {
	result := make([]Recommendation, 0, a.listSize)
	seen := make(map[string]bool, a.listSize)

	for _, cand := range candidates {
		if len(result) >= a.listSize {
			break
		}
		product := a.catalog.Find(cand.ProductID)
		if product == nil || seen[cand.ProductID] {
			continue
		}
		seen[cand.ProductID] = true
		result = append(result, Recommendation{
			Product:            *product,
			ConfidenceScore:    clampConfidence(cand.Confidence),
			Reasoning:          nonEmptyReasoning(cand.Reasoning),
			RecommendationType: normalizeType(cand.Type),
		})
	}

	for _, rep := range replenishment {
		if len(result) >= a.listSize {
			break
		}
		product := a.catalog.Find(rep.ProductID)
		if product == nil || seen[rep.ProductID] {
			continue
		}
		seen[rep.ProductID] = true
		result = append(result, Recommendation{
			Product:            *product,
			ConfidenceScore:    0.7,
			Reasoning:          fmt.Sprintf("You've ordered this %d time%s - might need a refill!", rep.Count, plural(rep.Count)),
			RecommendationType: TypeReplenishment,
		})
	}

	for _, product := range a.catalog.Products() {
		if len(result) >= a.listSize {
			break
		}
		if seen[product.ID] {
			continue
		}
		seen[product.ID] = true
		result = append(result, Recommendation{
			Product:            product,
			ConfidenceScore:    0.5,
			Reasoning:          "A popular choice among our customers",
			RecommendationType: TypePopularity,
		})
	}

	return result
}

// clampConfidence bounds a confidence score to [0, 1].
func clampConfidence(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// nonEmptyReasoning substitutes a generic justification for an empty one.
func nonEmptyReasoning(reasoning string) string {
	if reasoning == "" {
		return "Recommended based on your shopping history"
	}
	return reasoning
}

// normalizeType substitutes TypeCategory for unknown strategy tags.
func normalizeType(t RecommendationType) RecommendationType {
	if !t.Valid() {
		return TypeCategory
	}
	return t
}

// plural returns "s" for counts other than 1.
func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
