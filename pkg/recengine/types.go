// Package recengine provides the recommendation engine client.
//
// The engine turns a user's interaction history into a ranked, fixed-size
// list of product recommendations with confidence scores and human-readable
// justifications. It degrades gracefully: users without history get a
// popularity-based list, and the personalized path works with or without
// the external generation service.
package recengine

import "github.com/freshcart/cartsense-go/pkg/catalog"

// Product is the catalog entry type carried inside recommendations.
type Product = catalog.Product

// RecommendationType tags the strategy that produced a recommendation.
type RecommendationType string

const (
	// TypeReplenishment marks products the user buys regularly and may reorder.
	TypeReplenishment RecommendationType = "replenishment"

	// TypeAssociation marks complementary products from association rules.
	TypeAssociation RecommendationType = "association"

	// TypeCategory marks products from the user's favorite categories.
	TypeCategory RecommendationType = "category"

	// TypePopularity marks globally popular products (cold start).
	TypePopularity RecommendationType = "popularity"

	// TypeTrending marks currently popular products the user has not tried.
	TypeTrending RecommendationType = "trending"

	// TypeCollaborative marks products liked by similar users.
	TypeCollaborative RecommendationType = "collaborative"

	// TypeContentBased marks products similar to ones the user interacted with.
	TypeContentBased RecommendationType = "content_based"
)

// Valid reports whether t is one of the defined recommendation types.
func (t RecommendationType) Valid() bool {
	switch t {
	case TypeReplenishment, TypeAssociation, TypeCategory, TypePopularity,
		TypeTrending, TypeCollaborative, TypeContentBased:
		return true
	}
	return false
}

// Source identifies which pipeline path produced a response.
type Source string

const (
	// SourcePersonalized means the list was built from the user's history
	// (with or without the generation service).
	SourcePersonalized Source = "personalized"

	// SourceColdStart means the user had no history and the list is
	// popularity-based.
	SourceColdStart Source = "cold_start"

	// SourceFallback means a generation attempt failed and the list was
	// built by the deterministic heuristic instead.
	SourceFallback Source = "fallback"
)

// Recommendation is one ranked product recommendation.
//
// Created by the pipeline, immutable, returned to the caller.
type Recommendation struct {
	// Product is the full catalog entry being recommended.
	Product Product `json:"product"`

	// ConfidenceScore is the recommendation confidence in [0, 1].
	ConfidenceScore float64 `json:"confidence_score"`

	// Reasoning is a non-empty, human-readable justification.
	Reasoning string `json:"reasoning"`

	// RecommendationType tags the strategy behind the recommendation.
	RecommendationType RecommendationType `json:"recommendation_type"`
}

// Analysis summarizes the history that informed a personalized response.
type Analysis struct {
	// TotalInteractions is the number of purchase records analyzed.
	TotalInteractions int `json:"total_interactions"`

	// TopCategories are the user's affinity categories, strongest first.
	TopCategories []string `json:"top_categories,omitempty"`
}

// Response is the engine's answer to a recommendation request.
type Response struct {
	// Recommendations is the ranked list; no two entries share a product id.
	Recommendations []Recommendation `json:"recommendations"`

	// Source identifies the pipeline path that produced the list.
	Source Source `json:"source"`

	// Analysis is present for personalized responses.
	Analysis *Analysis `json:"analysis,omitempty"`
}
