package analysis

import (
	"sort"
	"time"

	"github.com/freshcart/cartsense-go/pkg/tracking"
)

// ProductStat holds per-product statistics derived from one user's
// interaction records. Built fresh for each recommendation request,
// never persisted.
type ProductStat struct {
	// ProductID is the catalog id of the product.
	ProductID string

	// Name is the product name as recorded at interaction time.
	Name string

	// Category is the product category as recorded at interaction time.
	Category string

	// Count is the number of purchase records contributing to this stat.
	Count int

	// TotalQuantity is the sum of quantities across purchase records.
	TotalQuantity int

	// RecencyScore is the sum of per-record decayed weights. It strictly
	// increases with more recent activity and additional occurrences.
	RecencyScore float64

	// LastSeen is the most recent OccurredAt among contributing records.
	LastSeen time.Time
}

// ScoreWeights are the blending weights for the replenishment score.
//
// Pure frequency over-weights one-off bulk buys and pure recency
// over-weights a single recent purchase, so quantity is capped and all
// three signals are blended.
type ScoreWeights struct {
	// Frequency is the weight applied to the purchase count.
	Frequency float64

	// Recency is the weight applied to the summed recency score.
	Recency float64

	// Quantity is the weight applied to the capped, normalized quantity.
	Quantity float64

	// QuantityCap bounds the quantity contribution (total quantity above
	// the cap contributes no additional score).
	QuantityCap int
}

// DefaultScoreWeights returns the standard 0.4 / 0.4 / 0.2 blend with a
// quantity cap of 10.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Frequency:   0.4,
		Recency:     0.4,
		Quantity:    0.2,
		QuantityCap: 10,
	}
}

// Candidate is a product stat with its computed replenishment score.
type Candidate struct {
	*ProductStat

	// Score is the blended frequency/recency/quantity score.
	Score float64
}

// Summary is the aggregated view of one user's purchase history.
//
// It is produced by Analyzer.Analyze in a single linear pass and discarded
// after the request completes.
type Summary struct {
	// Stats maps product id to its per-product statistics.
	Stats map[string]*ProductStat

	// CategoryCounts maps category name to the number of contributing records.
	CategoryCounts map[string]int

	// TotalInteractions is the number of records analyzed.
	TotalInteractions int

	// productOrder preserves first-seen product order for deterministic ties.
	productOrder []string

	// categoryOrder preserves first-seen category order for deterministic ties.
	categoryOrder []string

	weights ScoreWeights
}

// Analyzer aggregates raw interaction records into per-product and
// per-category statistics.
type Analyzer struct {
	weighter *Weighter
	weights  ScoreWeights
}

// NewAnalyzer creates an Analyzer using the given recency weighter and
// score weights.
//
// A zero-value weights struct falls back to the standard blend; otherwise
// the configured weights are kept as given and only a missing quantity cap
// is defaulted.
func NewAnalyzer(weighter *Weighter, weights ScoreWeights) *Analyzer {
	if weighter == nil {
		weighter = NewWeighter(DefaultHalfLifeDays)
	}
	if weights == (ScoreWeights{}) {
		weights = DefaultScoreWeights()
	} else if weights.QuantityCap <= 0 {
		weights.QuantityCap = DefaultScoreWeights().QuantityCap
	}
	return &Analyzer{weighter: weighter, weights: weights}
}

// Analyze builds a Summary from the user's purchase records.
//
// For each record it increments the product's count, adds the quantity
// (default 1 when absent), adds the decayed recency weight, tracks the
// latest OccurredAt, and increments the per-category counter. Single pass,
// O(n) in the record count.
func (a *Analyzer) Analyze(records []*tracking.Record, now time.Time) *Summary {
	s := &Summary{
		Stats:          make(map[string]*ProductStat),
		CategoryCounts: make(map[string]int),
		weights:        a.weights,
	}

	for _, rec := range records {
		if rec == nil || rec.ProductID == "" {
			continue
		}
		s.TotalInteractions++

		stat, ok := s.Stats[rec.ProductID]
		if !ok {
			stat = &ProductStat{
				ProductID: rec.ProductID,
				Name:      rec.ProductName,
				Category:  rec.Category,
				LastSeen:  rec.OccurredAt,
			}
			s.Stats[rec.ProductID] = stat
			s.productOrder = append(s.productOrder, rec.ProductID)
		}

		stat.Count++
		qty := rec.Quantity
		if qty <= 0 {
			qty = 1
		}
		stat.TotalQuantity += qty
		stat.RecencyScore += a.weighter.Weight(rec.OccurredAt, now)
		if rec.OccurredAt.After(stat.LastSeen) {
			stat.LastSeen = rec.OccurredAt
		}

		if _, ok := s.CategoryCounts[rec.Category]; !ok {
			s.categoryOrder = append(s.categoryOrder, rec.Category)
		}
		s.CategoryCounts[rec.Category]++
	}

	return s
}

// FoldSecondary folds secondary signals (views, cart adds) into an existing
// summary with a reduced weight multiplier.
//
// Secondary signals only add to the recency score of products the user has
// already purchased; they never touch count or quantity and never create new
// candidates, so purchase-derived candidates stay strictly dominant and
// secondary activity acts as a tie-break at most.
func (a *Analyzer) FoldSecondary(s *Summary, records []*tracking.Record, multiplier float64, now time.Time) {
	if multiplier <= 0 {
		return
	}
	for _, rec := range records {
		if rec == nil {
			continue
		}
		stat, ok := s.Stats[rec.ProductID]
		if !ok {
			continue
		}
		stat.RecencyScore += multiplier * a.weighter.Weight(rec.OccurredAt, now)
	}
}

// Score computes the blended replenishment score for a product stat.
func (s *Summary) Score(stat *ProductStat) float64 {
	w := s.weights
	qty := stat.TotalQuantity
	if qty > w.QuantityCap {
		qty = w.QuantityCap
	}
	return w.Frequency*float64(stat.Count) +
		w.Recency*stat.RecencyScore +
		w.Quantity*float64(qty)/float64(w.QuantityCap)
}

// TopProducts returns the top-n products by blended score, highest first.
// Ties keep first-purchase order, so the result is deterministic for a
// given record sequence.
func (s *Summary) TopProducts(n int) []Candidate {
	candidates := make([]Candidate, 0, len(s.productOrder))
	for _, id := range s.productOrder {
		stat := s.Stats[id]
		candidates = append(candidates, Candidate{ProductStat: stat, Score: s.Score(stat)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if n > 0 && len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

// TopCategories returns the top-n categories by record count, highest first.
// Ties keep first-seen order.
func (s *Summary) TopCategories(n int) []string {
	categories := make([]string, len(s.categoryOrder))
	copy(categories, s.categoryOrder)

	sort.SliceStable(categories, func(i, j int) bool {
		return s.CategoryCounts[categories[i]] > s.CategoryCounts[categories[j]]
	})

	if n > 0 && len(categories) > n {
		categories = categories[:n]
	}
	return categories
}

// PurchasedIDs returns the distinct purchased product ids in first-purchase
// order. This is the anchor set for association mining.
func (s *Summary) PurchasedIDs() []string {
	ids := make([]string, len(s.productOrder))
	copy(ids, s.productOrder)
	return ids
}
