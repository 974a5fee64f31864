package analysis

import (
	"sort"

	"github.com/freshcart/cartsense-go/pkg/rules"
)

// Suggestion is a complementary product proposed by association mining.
type Suggestion struct {
	// ProductID is the proposed product.
	ProductID string

	// Confidence is the winning rule confidence in (0, 1].
	Confidence float64

	// AnchorID is the purchased product whose rule produced the winning
	// confidence, kept for explanation purposes.
	AnchorID string
}

// Miner proposes complementary products from the static association-rule
// table and a user's purchased-product set.
type Miner struct {
	table *rules.Table
}

// NewMiner creates a Miner over the given rule table.
func NewMiner(table *rules.Table) *Miner {
	if table == nil {
		table = rules.Default()
	}
	return &Miner{table: table}
}

// Complementary returns complementary products for the purchased ids.
//
// For every purchased id with a rule, its related products are enumerated;
// anything already purchased is discarded. When the same related id is
// reachable from several anchors, the highest confidence wins and the anchor
// that produced it is recorded. The result is sorted by confidence,
// highest first, with ties keeping enumeration order.
//
// A purchased id without a rule contributes nothing; an empty purchased set
// yields an empty result (cold start is handled elsewhere).
func (m *Miner) Complementary(purchasedIDs []string) []Suggestion {
	purchased := make(map[string]bool, len(purchasedIDs))
	for _, id := range purchasedIDs {
		purchased[id] = true
	}

	var order []string
	best := make(map[string]Suggestion)

	for _, anchorID := range purchasedIDs {
		rule, ok := m.table.Lookup(anchorID)
		if !ok {
			continue
		}
		for _, relatedID := range rule.RelatedProducts {
			if purchased[relatedID] {
				continue
			}
			existing, seen := best[relatedID]
			if !seen {
				order = append(order, relatedID)
			}
			if !seen || rule.Confidence > existing.Confidence {
				best[relatedID] = Suggestion{
					ProductID:  relatedID,
					Confidence: rule.Confidence,
					AnchorID:   anchorID,
				}
			}
		}
	}

	suggestions := make([]Suggestion, 0, len(order))
	for _, id := range order {
		suggestions = append(suggestions, best[id])
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})

	return suggestions
}
