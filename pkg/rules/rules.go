// Package rules provides the static association-rule table used for
// complementary-product mining.
//
// A rule states that buying the anchor product correlates with also wanting
// the related products at a given confidence. The table is a finite,
// hand-authored graph loaded once at process start and never mutated at
// request time; replacing the rule set means building a new Table, not
// mutating an existing one.
package rules

import (
	"encoding/json"
	"fmt"
	"os"
)

// Rule is a single association-rule entry.
type Rule struct {
	// RelatedProducts are the product ids correlated with the anchor,
	// in descending order of strength within the rule.
	RelatedProducts []string `json:"related_products"`

	// Confidence is the rule confidence in (0, 1].
	Confidence float64 `json:"confidence"`
}

// Table is an immutable mapping from anchor product id to its rule.
//
// Safe for unsynchronized concurrent reads.
type Table struct {
	rules map[string]Rule
}

// New creates a Table from the given anchor → rule mapping.
//
// The input map is copied so later mutation of the argument does not
// affect the table.
func New(rules map[string]Rule) *Table {
	copied := make(map[string]Rule, len(rules))
	for anchor, r := range rules {
		related := make([]string, len(r.RelatedProducts))
		copy(related, r.RelatedProducts)
		copied[anchor] = Rule{RelatedProducts: related, Confidence: r.Confidence}
	}
	return &Table{rules: copied}
}

// LoadFromJSON loads a rule table from a JSON file containing an object
// keyed by anchor product id.
func LoadFromJSON(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}

	var raw map[string]Rule
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}

	return New(raw), nil
}

// Lookup returns the rule for the given anchor product id.
//
// The second return value reports whether the anchor has a rule.
func (t *Table) Lookup(anchorID string) (Rule, bool) {
	r, ok := t.rules[anchorID]
	return r, ok
}

// Len returns the number of anchors in the table.
func (t *Table) Len() int {
	return len(t.rules)
}

// Default returns the built-in rule table for the grocery catalog.
//
// Anchors reference the default catalog: milk → bread/eggs/croissants,
// bread → milk/cheese/yogurt, and so on.
func Default() *Table {
	return New(map[string]Rule{
		"6":  {RelatedProducts: []string{"11", "9", "12"}, Confidence: 0.85}, // Milk
		"11": {RelatedProducts: []string{"6", "10", "8"}, Confidence: 0.80},  // Bread
		"9":  {RelatedProducts: []string{"6", "11", "10"}, Confidence: 0.75}, // Eggs
		"1":  {RelatedProducts: []string{"8", "7", "3"}, Confidence: 0.70},   // Bananas
		"8":  {RelatedProducts: []string{"1", "3", "7"}, Confidence: 0.72},   // Yogurt
		"4":  {RelatedProducts: []string{"2", "5", "9"}, Confidence: 0.68},   // Spinach
		"2":  {RelatedProducts: []string{"4", "9", "11"}, Confidence: 0.65},  // Avocados
		"10": {RelatedProducts: []string{"11", "9", "6"}, Confidence: 0.78},  // Cheese
	})
}
