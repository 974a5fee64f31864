package recengine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshcart/cartsense-go/pkg/catalog"
	"github.com/freshcart/cartsense-go/pkg/llm"
	"github.com/freshcart/cartsense-go/pkg/recengine"
	"github.com/freshcart/cartsense-go/pkg/tracking"
)

// fakeStore is an in-memory tracking.Store for engine tests.
type fakeStore struct {
	records []*tracking.Record
	popular []*tracking.PopularityEntry
	fetchErr error
}

func (f *fakeStore) Record(ctx context.Context, rec *tracking.Record) error {
	if err := tracking.Validate(rec); err != nil {
		return err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeStore) fetchByKind(userID string, kind tracking.Kind, limit int) ([]*tracking.Record, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []*tracking.Record
	for _, rec := range f.records {
		if rec.UserID == userID && rec.Kind == kind {
			out = append(out, rec)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) FetchPurchases(ctx context.Context, userID string, limit int) ([]*tracking.Record, error) {
	return f.fetchByKind(userID, tracking.KindPurchase, limit)
}

func (f *fakeStore) FetchRecentViews(ctx context.Context, userID string, limit int) ([]*tracking.Record, error) {
	return f.fetchByKind(userID, tracking.KindView, limit)
}

func (f *fakeStore) FetchCartAdds(ctx context.Context, userID string, limit int) ([]*tracking.Record, error) {
	return f.fetchByKind(userID, tracking.KindCartAdd, limit)
}

func (f *fakeStore) FetchTopPopular(ctx context.Context, limit int) ([]*tracking.PopularityEntry, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if limit > 0 && len(f.popular) > limit {
		return f.popular[:limit], nil
	}
	return f.popular, nil
}

func (f *fakeStore) Close() error { return nil }

// fakeProvider is a scripted llm.Provider for engine tests.
type fakeProvider struct {
	response string
	err      error
	calls    int
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return f.GenerateWithMessages(ctx, nil, opts...)
}

func (f *fakeProvider) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeProvider) Close() error { return nil }

func testConfig() *recengine.Config {
	return &recengine.Config{
		Store:  recengine.StoreConfig{Provider: "sqlite"},
		Tuning: recengine.DefaultTuning(),
	}
}

func newTestEngine(t *testing.T, store tracking.Store, opts ...recengine.EngineOption) *recengine.Engine {
	t.Helper()
	engine, err := recengine.NewEngine(testConfig(), append([]recengine.EngineOption{recengine.WithStore(store)}, opts...)...)
	require.NoError(t, err)
	return engine
}

func seedPurchases(store *fakeStore, userID string, now time.Time) {
	purchases := []struct {
		productID, name, category string
		qty, daysAgo              int
	}{
		{"6", "Whole Milk (1L)", "Dairy", 1, 1},
		{"6", "Whole Milk (1L)", "Dairy", 2, 8},
		{"6", "Whole Milk (1L)", "Dairy", 1, 15},
		{"1", "Organic Bananas (1 Dozen)", "Produce", 1, 3},
	}
	for _, p := range purchases {
		store.records = append(store.records, &tracking.Record{
			UserID:      userID,
			ProductID:   p.productID,
			ProductName: p.name,
			Category:    p.category,
			Kind:        tracking.KindPurchase,
			Quantity:    p.qty,
			OccurredAt:  now.AddDate(0, 0, -p.daysAgo),
		})
	}
}

func TestNewEngineInvalidConfig(t *testing.T) {
	_, err := recengine.NewEngine(nil)
	assert.ErrorIs(t, err, recengine.ErrInvalidConfig)

	_, err = recengine.NewEngine(&recengine.Config{}, recengine.WithStore(&fakeStore{}))
	assert.ErrorIs(t, err, recengine.ErrInvalidConfig)
}

func TestRecommendColdStartForNewUser(t *testing.T) {
	store := &fakeStore{
		popular: []*tracking.PopularityEntry{
			{ProductID: "11", PopularityScore: 25},
			{ProductID: "6", PopularityScore: 18},
			{ProductID: "2", PopularityScore: 7},
		},
	}
	engine := newTestEngine(t, store)

	resp, err := engine.Recommend(context.Background(), "brand_new_user")
	require.NoError(t, err)

	assert.Equal(t, recengine.SourceColdStart, resp.Source)
	require.Len(t, resp.Recommendations, 6)

	// Popularity snapshot first, then catalog order.
	assert.Equal(t, "11", resp.Recommendations[0].Product.ID)
	assert.Equal(t, "6", resp.Recommendations[1].Product.ID)
	assert.Equal(t, "2", resp.Recommendations[2].Product.ID)

	seen := map[string]bool{}
	for i, rec := range resp.Recommendations {
		assert.Equal(t, recengine.TypePopularity, rec.RecommendationType)
		assert.NotEmpty(t, rec.Reasoning)
		assert.InDelta(t, 0.80-float64(i)*0.05, rec.ConfidenceScore, 1e-9)
		assert.False(t, seen[rec.Product.ID], "Duplicate product %s", rec.Product.ID)
		seen[rec.Product.ID] = true
	}
}

func TestRecommendColdStartForAnonymousUser(t *testing.T) {
	engine := newTestEngine(t, &fakeStore{})

	resp, err := engine.Recommend(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, recengine.SourceColdStart, resp.Source)
	require.Len(t, resp.Recommendations, 6)
	// Empty popularity snapshot falls back to catalog order.
	assert.Equal(t, "1", resp.Recommendations[0].Product.ID)
}

func TestRecommendColdStartLongListStaysStrictlyDecreasing(t *testing.T) {
	// With a catalog larger than the default the 0.05 step would cross the
	// confidence minimum; the ladder must shrink its step instead of
	// flattening at the floor.
	products := make([]catalog.Product, 0, 30)
	for i := 1; i <= 30; i++ {
		products = append(products, catalog.Product{
			ID:       fmt.Sprintf("p%d", i),
			Name:     fmt.Sprintf("Pantry Item %d", i),
			Category: "Pantry",
			Price:    10,
		})
	}
	engine := newTestEngine(t, &fakeStore{}, recengine.WithCatalog(catalog.New(products)))

	resp, err := engine.Recommend(context.Background(), "", recengine.WithListSize(25))
	require.NoError(t, err)

	require.Len(t, resp.Recommendations, 25)
	for i, rec := range resp.Recommendations {
		if i > 0 {
			assert.Less(t, rec.ConfidenceScore, resp.Recommendations[i-1].ConfidenceScore,
				"Confidence must strictly decrease at position %d", i)
		}
		assert.GreaterOrEqual(t, rec.ConfidenceScore, 0.01)
	}
}

func TestRecommendPersonalizedWithoutProvider(t *testing.T) {
	store := &fakeStore{}
	seedPurchases(store, "user_001", time.Now())
	engine := newTestEngine(t, store)

	resp, err := engine.Recommend(context.Background(), "user_001")
	require.NoError(t, err)

	assert.Equal(t, recengine.SourcePersonalized, resp.Source)
	require.Len(t, resp.Recommendations, 6)
	require.NotNil(t, resp.Analysis)
	assert.Equal(t, 4, resp.Analysis.TotalInteractions)
	assert.Equal(t, []string{"Dairy", "Produce"}, resp.Analysis.TopCategories)

	// Milk dominates the history: the top recommendation is a replenishment.
	first := resp.Recommendations[0]
	assert.Equal(t, "6", first.Product.ID)
	assert.Equal(t, recengine.TypeReplenishment, first.RecommendationType)
	assert.LessOrEqual(t, first.ConfidenceScore, 0.95)
	assert.GreaterOrEqual(t, first.ConfidenceScore, 0.7)
	assert.Contains(t, first.Reasoning, "ordered this 3 times")

	seen := map[string]bool{}
	for _, rec := range resp.Recommendations {
		assert.False(t, seen[rec.Product.ID], "Duplicate product %s", rec.Product.ID)
		seen[rec.Product.ID] = true
		assert.GreaterOrEqual(t, rec.ConfidenceScore, 0.0)
		assert.LessOrEqual(t, rec.ConfidenceScore, 1.0)
		assert.NotEmpty(t, rec.Reasoning)
		assert.True(t, rec.RecommendationType.Valid())
	}
}

func TestRecommendDeterministicAcrossRuns(t *testing.T) {
	store := &fakeStore{}
	seedPurchases(store, "user_001", time.Now())
	engine := newTestEngine(t, store)

	first, err := engine.Recommend(context.Background(), "user_001")
	require.NoError(t, err)

	for run := 0; run < 5; run++ {
		again, err := engine.Recommend(context.Background(), "user_001")
		require.NoError(t, err)
		require.Len(t, again.Recommendations, len(first.Recommendations))
		for i := range first.Recommendations {
			assert.Equal(t, first.Recommendations[i].Product.ID, again.Recommendations[i].Product.ID,
				fmt.Sprintf("run %d position %d", run, i))
		}
	}
}

func TestRecommendUsesGeneratedResults(t *testing.T) {
	store := &fakeStore{}
	seedPurchases(store, "user_001", time.Now())

	provider := &fakeProvider{
		response: `{"recommendations": [
			{"product_id": "12", "confidence_score": 0.9, "reasoning": "Croissants pair with your regular milk order", "recommendation_type": "association"},
			{"product_id": "9", "confidence_score": 0.8, "reasoning": "Eggs complete your dairy basket", "recommendation_type": "association"}
		]}`,
	}
	engine := newTestEngine(t, store, recengine.WithProvider(provider))

	resp, err := engine.Recommend(context.Background(), "user_001")
	require.NoError(t, err)

	assert.Equal(t, recengine.SourcePersonalized, resp.Source)
	assert.Equal(t, 1, provider.calls)
	require.Len(t, resp.Recommendations, 6)
	assert.Equal(t, "12", resp.Recommendations[0].Product.ID)
	assert.Equal(t, "9", resp.Recommendations[1].Product.ID)
	// Short generated lists are padded from replenishment candidates.
	assert.Equal(t, "6", resp.Recommendations[2].Product.ID)
	assert.Equal(t, recengine.TypeReplenishment, resp.Recommendations[2].RecommendationType)
}

func TestRecommendDropsUnknownGeneratedProducts(t *testing.T) {
	store := &fakeStore{}
	seedPurchases(store, "user_001", time.Now())

	provider := &fakeProvider{
		response: `{"recommendations": [
			{"product_id": "999", "confidence_score": 0.9, "reasoning": "Hallucinated product", "recommendation_type": "association"},
			{"product_id": "12", "confidence_score": 0.8, "reasoning": "Croissants pair with milk", "recommendation_type": "association"}
		]}`,
	}
	engine := newTestEngine(t, store, recengine.WithProvider(provider))

	resp, err := engine.Recommend(context.Background(), "user_001")
	require.NoError(t, err)

	require.Len(t, resp.Recommendations, 6)
	for _, rec := range resp.Recommendations {
		assert.NotEqual(t, "999", rec.Product.ID)
	}
	assert.Equal(t, "12", resp.Recommendations[0].Product.ID)
}

func TestRecommendFallsBackOnGenerationFailure(t *testing.T) {
	store := &fakeStore{}
	seedPurchases(store, "user_001", time.Now())

	provider := &fakeProvider{err: errors.New("connection reset")}
	engine := newTestEngine(t, store, recengine.WithProvider(provider))

	resp, err := engine.Recommend(context.Background(), "user_001")
	require.NoError(t, err)

	assert.Equal(t, recengine.SourceFallback, resp.Source)
	require.Len(t, resp.Recommendations, 6)
	assert.Equal(t, "6", resp.Recommendations[0].Product.ID)
	assert.Equal(t, recengine.TypeReplenishment, resp.Recommendations[0].RecommendationType)
}

func TestRecommendFallsBackOnMalformedResponse(t *testing.T) {
	store := &fakeStore{}
	seedPurchases(store, "user_001", time.Now())

	provider := &fakeProvider{response: "I cannot produce JSON today."}
	engine := newTestEngine(t, store, recengine.WithProvider(provider))

	resp, err := engine.Recommend(context.Background(), "user_001")
	require.NoError(t, err)
	assert.Equal(t, recengine.SourceFallback, resp.Source)
	assert.Len(t, resp.Recommendations, 6)
}

func TestRecommendPropagatesRateLimit(t *testing.T) {
	store := &fakeStore{}
	seedPurchases(store, "user_001", time.Now())

	provider := &fakeProvider{err: fmt.Errorf("%w: 429", llm.ErrRateLimited)}
	engine := newTestEngine(t, store, recengine.WithProvider(provider))

	resp, err := engine.Recommend(context.Background(), "user_001")
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, recengine.ErrRateLimited)
}

func TestRecommendPropagatesQuotaExhausted(t *testing.T) {
	store := &fakeStore{}
	seedPurchases(store, "user_001", time.Now())

	provider := &fakeProvider{err: fmt.Errorf("%w: 402", llm.ErrQuotaExhausted)}
	engine := newTestEngine(t, store, recengine.WithProvider(provider))

	_, err := engine.Recommend(context.Background(), "user_001")
	require.Error(t, err)
	assert.ErrorIs(t, err, recengine.ErrQuotaExhausted)
}

func TestRecommendStoreFailureIsFatal(t *testing.T) {
	store := &fakeStore{fetchErr: errors.New("disk io error")}
	engine := newTestEngine(t, store)

	_, err := engine.Recommend(context.Background(), "user_001")
	require.Error(t, err)
	assert.ErrorIs(t, err, recengine.ErrStoreUnavailable)
}

func TestRecommendListSizeOverride(t *testing.T) {
	store := &fakeStore{}
	seedPurchases(store, "user_001", time.Now())
	engine := newTestEngine(t, store)

	resp, err := engine.Recommend(context.Background(), "user_001", recengine.WithListSize(3))
	require.NoError(t, err)
	assert.Len(t, resp.Recommendations, 3)
}

func TestRecommendSecondarySignalsTieBreak(t *testing.T) {
	now := time.Now()
	store := &fakeStore{}

	// Identical purchase histories for yogurt and cheese; views on cheese
	// should break the tie in its favor without creating new candidates.
	for _, id := range []string{"8", "10"} {
		store.records = append(store.records, &tracking.Record{
			UserID:     "user_001",
			ProductID:  id,
			Kind:       tracking.KindPurchase,
			Quantity:   1,
			OccurredAt: now.AddDate(0, 0, -5),
		})
	}
	for i := 0; i < 3; i++ {
		store.records = append(store.records, &tracking.Record{
			UserID:     "user_001",
			ProductID:  "10",
			Kind:       tracking.KindView,
			OccurredAt: now,
		})
	}
	// A viewed but never-purchased product must not appear as replenishment.
	store.records = append(store.records, &tracking.Record{
		UserID:     "user_001",
		ProductID:  "3",
		Kind:       tracking.KindView,
		OccurredAt: now,
	})

	engine := newTestEngine(t, store)

	resp, err := engine.Recommend(context.Background(), "user_001",
		recengine.WithSecondarySignals(true))
	require.NoError(t, err)

	require.NotEmpty(t, resp.Recommendations)
	assert.Equal(t, "10", resp.Recommendations[0].Product.ID,
		"Views should break the tie between equal purchase histories")
	for _, rec := range resp.Recommendations {
		if rec.Product.ID == "3" {
			assert.NotEqual(t, recengine.TypeReplenishment, rec.RecommendationType,
				"A never-purchased product must not be a replenishment candidate")
		}
	}
}
