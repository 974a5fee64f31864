package analysis_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshcart/cartsense-go/pkg/analysis"
	"github.com/freshcart/cartsense-go/pkg/catalog"
	"github.com/freshcart/cartsense-go/pkg/llm"
)

// fakeProvider is a scripted llm.Provider for composer tests.
type fakeProvider struct {
	response   string
	err        error
	lastPrompt string
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return f.GenerateWithMessages(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

func (f *fakeProvider) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	f.lastPrompt = b.String()
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeProvider) Close() error { return nil }

func testBrief(now time.Time) *analysis.Brief {
	stat := &analysis.ProductStat{
		ProductID:     "6",
		Name:          "Whole Milk",
		Category:      "Dairy",
		Count:         3,
		TotalQuantity: 4,
		LastSeen:      now.AddDate(0, 0, -2),
	}
	return &analysis.Brief{
		Replenishment: []analysis.Candidate{{ProductStat: stat, Score: 1.8}},
		Complementary: []analysis.Suggestion{
			{ProductID: "11", Confidence: 0.85, AnchorID: "6"},
		},
		TopCategories: []string{"Dairy"},
		Catalog:       catalog.Default(),
		ListSize:      6,
	}
}

func TestComposerConfigured(t *testing.T) {
	assert.False(t, analysis.NewComposer(nil, 0).Configured())
	assert.True(t, analysis.NewComposer(&fakeProvider{}, 0).Configured())
}

func TestComposerGenerateParsesResponse(t *testing.T) {
	provider := &fakeProvider{
		response: `{"recommendations": [
			{"product_id": "11", "confidence_score": 0.85, "reasoning": "Usually bought with Whole Milk which you purchase often", "recommendation_type": "association"},
			{"product_id": "6", "confidence_score": 0.9, "reasoning": "You've ordered this 3 times recently", "recommendation_type": "replenishment"}
		]}`,
	}
	composer := analysis.NewComposer(provider, 5*time.Second)

	recs, err := composer.Generate(context.Background(), testBrief(time.Now()))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "11", recs[0].ProductID)
	assert.Equal(t, 0.85, recs[0].ConfidenceScore)
	assert.Equal(t, "association", recs[0].RecommendationType)
}

func TestComposerGenerateStripsCodeFences(t *testing.T) {
	provider := &fakeProvider{
		response: "```json\n{\"recommendations\": [{\"product_id\": \"9\", \"confidence_score\": 0.7, \"reasoning\": \"Goes well with your dairy purchases\", \"recommendation_type\": \"association\"}]}\n```",
	}
	composer := analysis.NewComposer(provider, 5*time.Second)

	recs, err := composer.Generate(context.Background(), testBrief(time.Now()))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "9", recs[0].ProductID)
}

func TestComposerGeneratePromptContents(t *testing.T) {
	provider := &fakeProvider{
		response: `{"recommendations": [{"product_id": "11", "confidence_score": 0.8, "reasoning": "r", "recommendation_type": "association"}]}`,
	}
	composer := analysis.NewComposer(provider, 5*time.Second)

	_, err := composer.Generate(context.Background(), testBrief(time.Now()))
	require.NoError(t, err)

	assert.Contains(t, provider.lastPrompt, "Whole Milk: Ordered 3x")
	assert.Contains(t, provider.lastPrompt, "TOP CATEGORIES: Dairy")
	assert.Contains(t, provider.lastPrompt, "PRODUCT CATALOG:")
	assert.Contains(t, provider.lastPrompt, "Recommend exactly 6 products.")
}

func TestComposerGenerateMalformedResponse(t *testing.T) {
	cases := []string{
		"not json at all",
		`{"recommendations": []}`,
		`{"something_else": true}`,
	}
	for _, response := range cases {
		composer := analysis.NewComposer(&fakeProvider{response: response}, 5*time.Second)
		_, err := composer.Generate(context.Background(), testBrief(time.Now()))
		assert.Error(t, err, "response %q should fail parsing", response)
	}
}

func TestComposerGenerateKeepsRateLimitClassification(t *testing.T) {
	provider := &fakeProvider{err: fmt.Errorf("%w: too many requests", llm.ErrRateLimited)}
	composer := analysis.NewComposer(provider, 5*time.Second)

	_, err := composer.Generate(context.Background(), testBrief(time.Now()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrRateLimited))
}

func TestComposerGenerateUnconfigured(t *testing.T) {
	composer := analysis.NewComposer(nil, 0)
	_, err := composer.Generate(context.Background(), testBrief(time.Now()))
	assert.Error(t, err)
}
