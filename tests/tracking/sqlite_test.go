package tracking_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshcart/cartsense-go/pkg/tracking"
	sqliteStore "github.com/freshcart/cartsense-go/pkg/tracking/sqlite"
)

func setupSQLiteTest(t *testing.T) (tracking.Store, func()) {
	testDBPath := "./test_cartsense.db"

	// Clean up any existing test database
	_ = os.Remove(testDBPath)

	store, err := sqliteStore.NewClient(&sqliteStore.Config{DBPath: testDBPath})
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		_ = store.Close()
		_ = os.Remove(testDBPath)
	}

	return store, cleanup
}

func TestSQLiteClient_RecordAndFetchPurchases(t *testing.T) {
	store, cleanup := setupSQLiteTest(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	older := &tracking.Record{
		UserID:      "user_001",
		ProductID:   "6",
		ProductName: "Whole Milk (1L)",
		Category:    "Dairy",
		Kind:        tracking.KindPurchase,
		Quantity:    2,
		Price:       72,
		OccurredAt:  now.AddDate(0, 0, -7),
	}
	newer := &tracking.Record{
		UserID:      "user_001",
		ProductID:   "11",
		ProductName: "Sourdough Bread Loaf",
		Category:    "Bakery",
		Kind:        tracking.KindPurchase,
		Quantity:    1,
		Price:       120,
		OccurredAt:  now,
	}

	require.NoError(t, store.Record(ctx, older))
	require.NoError(t, store.Record(ctx, newer))
	assert.NotZero(t, older.ID, "Record should assign an ID")
	assert.NotEqual(t, older.ID, newer.ID)

	purchases, err := store.FetchPurchases(ctx, "user_001", 10)
	require.NoError(t, err)
	require.Len(t, purchases, 2)

	// Most recent first
	assert.Equal(t, "11", purchases[0].ProductID)
	assert.Equal(t, "6", purchases[1].ProductID)
	assert.Equal(t, "Whole Milk (1L)", purchases[1].ProductName)
	assert.Equal(t, 2, purchases[1].Quantity)
	assert.Equal(t, tracking.KindPurchase, purchases[1].Kind)
}

func TestSQLiteClient_FetchUnknownUser(t *testing.T) {
	store, cleanup := setupSQLiteTest(t)
	defer cleanup()

	purchases, err := store.FetchPurchases(context.Background(), "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, purchases)
}

func TestSQLiteClient_FetchByKindSeparation(t *testing.T) {
	store, cleanup := setupSQLiteTest(t)
	defer cleanup()

	ctx := context.Background()
	kinds := []tracking.Kind{tracking.KindPurchase, tracking.KindView, tracking.KindCartAdd}
	for _, kind := range kinds {
		require.NoError(t, store.Record(ctx, &tracking.Record{
			UserID:    "user_001",
			ProductID: "6",
			Kind:      kind,
		}))
	}

	purchases, err := store.FetchPurchases(ctx, "user_001", 10)
	require.NoError(t, err)
	assert.Len(t, purchases, 1)

	views, err := store.FetchRecentViews(ctx, "user_001", 10)
	require.NoError(t, err)
	assert.Len(t, views, 1)
	assert.Equal(t, tracking.KindView, views[0].Kind)

	cartAdds, err := store.FetchCartAdds(ctx, "user_001", 10)
	require.NoError(t, err)
	assert.Len(t, cartAdds, 1)
	assert.Equal(t, tracking.KindCartAdd, cartAdds[0].Kind)
}

func TestSQLiteClient_PopularityAggregate(t *testing.T) {
	store, cleanup := setupSQLiteTest(t)
	defer cleanup()

	ctx := context.Background()

	// Milk: 2 purchases + 1 view = 11. Bread: 1 cart add + 1 view = 3.
	events := []*tracking.Record{
		{UserID: "a", ProductID: "6", Kind: tracking.KindPurchase},
		{UserID: "b", ProductID: "6", Kind: tracking.KindPurchase},
		{UserID: "c", ProductID: "6", Kind: tracking.KindView},
		{UserID: "a", ProductID: "11", Kind: tracking.KindCartAdd},
		{UserID: "b", ProductID: "11", Kind: tracking.KindView},
		// Ratings and cart removals do not touch popularity.
		{UserID: "a", ProductID: "11", Kind: tracking.KindRating, Rating: 5},
		{UserID: "a", ProductID: "6", Kind: tracking.KindCartRemove},
	}
	for _, event := range events {
		require.NoError(t, store.Record(ctx, event))
	}

	popular, err := store.FetchTopPopular(ctx, 10)
	require.NoError(t, err)
	require.Len(t, popular, 2)

	assert.Equal(t, "6", popular[0].ProductID)
	assert.Equal(t, 2, popular[0].PurchaseCount)
	assert.Equal(t, 1, popular[0].ViewCount)
	assert.Equal(t, tracking.Score(1, 0, 2), popular[0].PopularityScore)

	assert.Equal(t, "11", popular[1].ProductID)
	assert.Equal(t, tracking.Score(1, 1, 0), popular[1].PopularityScore)
}

func TestSQLiteClient_RecordValidation(t *testing.T) {
	store, cleanup := setupSQLiteTest(t)
	defer cleanup()

	err := store.Record(context.Background(), &tracking.Record{
		UserID: "user_001",
		Kind:   tracking.KindPurchase,
	})
	assert.ErrorIs(t, err, tracking.ErrInvalidRecord)
}
