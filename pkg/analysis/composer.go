package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/freshcart/cartsense-go/pkg/catalog"
	"github.com/freshcart/cartsense-go/pkg/llm"
)

// GeneratedRecommendation is one entry of the generation service's
// structured response. Product ids are validated against the catalog by
// the result assembler, not here.
type GeneratedRecommendation struct {
	// ProductID is the catalog id the service recommends.
	ProductID string `json:"product_id"`

	// ConfidenceScore is the service's confidence in [0, 1].
	ConfidenceScore float64 `json:"confidence_score"`

	// Reasoning is the human-readable justification.
	Reasoning string `json:"reasoning"`

	// RecommendationType is the strategy tag
	// (replenishment, association, category, trending, ...).
	RecommendationType string `json:"recommendation_type"`
}

// Brief is the analysis material the composer turns into a natural-language
// prompt for the generation service.
type Brief struct {
	// Replenishment are the top purchase-pattern candidates.
	Replenishment []Candidate

	// Complementary are the association-rule suggestions.
	Complementary []Suggestion

	// TopCategories are the user's affinity categories, strongest first.
	TopCategories []string

	// Catalog is the product catalog the service must recommend from.
	Catalog *catalog.Catalog

	// ListSize is the number of recommendations to request.
	ListSize int
}

// Composer builds the generation brief from the purchase analysis, invokes
// the generation service, and parses its structured response.
//
// The composer performs a single attempt per call, bounded by the configured
// timeout; retry policy belongs to the caller. A nil provider means the
// service is not configured and Generate must not be called (Configured
// reports this).
type Composer struct {
	// provider is the generation service (nil if not configured).
	provider llm.Provider

	// timeout bounds the single generation attempt.
	timeout time.Duration
}

// NewComposer creates a Composer over the given provider.
//
// A non-positive timeout falls back to 20 seconds.
func NewComposer(provider llm.Provider, timeout time.Duration) *Composer {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Composer{provider: provider, timeout: timeout}
}

// Configured reports whether a generation service is available.
func (c *Composer) Configured() bool {
	return c != nil && c.provider != nil
}

// Generate submits the brief to the generation service and parses the
// structured response.
//
// Failures keep their classification: rate-limit and quota errors from the
// provider (llm.ErrRateLimited, llm.ErrQuotaExhausted) pass through wrapped
// so the caller can propagate them distinctly; every other failure,
// including timeouts and unparseable responses, is an ordinary error the
// caller recovers from via its deterministic fallback.
func (c *Composer) Generate(ctx context.Context, brief *Brief) ([]GeneratedRecommendation, error) {
	if !c.Configured() {
		return nil, errors.New("generation service not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []llm.Message{
		{Role: "system", Content: buildSystemPrompt(brief)},
		{Role: "user", Content: buildUserPrompt(brief)},
	}

	response, err := c.provider.GenerateWithMessages(ctx, messages,
		llm.WithTemperature(0.2))
	if err != nil {
		return nil, fmt.Errorf("generate recommendations: %w", err)
	}

	recommendations, err := parseResponse(response)
	if err != nil {
		return nil, fmt.Errorf("parse recommendations response: %w", err)
	}

	return recommendations, nil
}

// buildSystemPrompt returns the system prompt describing the recommendation
// strategies and explainability requirements.
func buildSystemPrompt(brief *Brief) string {
	var b strings.Builder
	b.WriteString(`You are a grocery recommendation engine analyzing ORDER HISTORY to provide personalized recommendations.

RECOMMENDATION STRATEGIES (use all):

1. REPLENISHMENT (40%): Products the user buys frequently and may need to reorder.
   Look at purchase frequency and recency; suggest items they buy regularly.

2. ASSOCIATION RULES (30%): Complementary products often bought together.
   If the user buys milk, suggest bread and eggs. Use the provided association data.

3. CATEGORY AFFINITY (20%): New products from categories they shop often.

4. TRENDING (10%): Popular items they have not tried.

EXPLAINABILITY: every reasoning must reference the user's specific history, for example:
- "You've ordered this 5 times in the last month"
- "Usually bought with [product] which you purchase often"`)

	if len(brief.TopCategories) > 0 {
		fmt.Fprintf(&b, "\n- \"Popular in %s - your favorite category\"", brief.TopCategories[0])
	}

	fmt.Fprintf(&b, `

Return JSON only, no prose:
{"recommendations": [{"product_id": "...", "confidence_score": 0.0, "reasoning": "...", "recommendation_type": "replenishment|association|category|trending"}]}
Recommend exactly %d products.`, brief.ListSize)

	return b.String()
}

// buildUserPrompt returns the user prompt carrying the purchase analysis,
// the association suggestions, and the catalog.
func buildUserPrompt(brief *Brief) string {
	var b strings.Builder

	b.WriteString("PURCHASE FREQUENCY ANALYSIS:\n")
	for _, cand := range brief.Replenishment {
		fmt.Fprintf(&b, "- %s: Ordered %dx, Total qty: %d, Last: %s\n",
			cand.Name, cand.Count, cand.TotalQuantity, cand.LastSeen.Format("2006-01-02"))
	}

	fmt.Fprintf(&b, "\nTOP CATEGORIES: %s\n", strings.Join(brief.TopCategories, ", "))

	b.WriteString("\nASSOCIATION RULE SUGGESTIONS (products often bought together):\n")
	limit := 5
	for i, sugg := range brief.Complementary {
		if i >= limit {
			break
		}
		target := brief.Catalog.Find(sugg.ProductID)
		anchor := brief.Catalog.Find(sugg.AnchorID)
		if target == nil || anchor == nil {
			continue
		}
		fmt.Fprintf(&b, "- %s (often bought with %s, confidence: %.0f%%)\n",
			target.Name, anchor.Name, sugg.Confidence*100)
	}

	b.WriteString("\nPRODUCT CATALOG:\n")
	type catalogEntry struct {
		ID       string  `json:"id"`
		Name     string  `json:"name"`
		Category string  `json:"category"`
		Price    float64 `json:"price"`
	}
	entries := make([]catalogEntry, 0, brief.Catalog.Len())
	for _, p := range brief.Catalog.Products() {
		entries = append(entries, catalogEntry{ID: p.ID, Name: p.Name, Category: p.Category, Price: p.Price})
	}
	if data, err := json.Marshal(entries); err == nil {
		b.Write(data)
	}

	fmt.Fprintf(&b, "\n\nRecommend %d products with detailed, personalized explanations referencing their specific purchase history.", brief.ListSize)

	return b.String()
}

// parseResponse parses the generation response into structured recommendations.
func parseResponse(response string) ([]GeneratedRecommendation, error) {
	response = removeCodeBlocks(response)

	var result struct {
		Recommendations []GeneratedRecommendation `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(response), &result); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	if len(result.Recommendations) == 0 {
		return nil, errors.New("response contains no recommendations")
	}

	return result.Recommendations, nil
}

// removeCodeBlocks removes code fences (```json ... ```) from a response.
func removeCodeBlocks(response string) string {
	response = strings.ReplaceAll(response, "```json", "")
	response = strings.ReplaceAll(response, "```", "")
	return strings.TrimSpace(response)
}
