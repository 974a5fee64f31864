// Package sqlite provides a SQLite implementation of the interaction event store.
//
// SQLite is a lightweight, file-based database suitable for local development
// and small deployments. Interaction records live in a single append-only
// table; the popularity aggregate is a second table updated in the same
// transaction as each write.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/freshcart/cartsense-go/pkg/tracking"
	_ "github.com/mattn/go-sqlite3"
)

// Client implements tracking.Store using SQLite as the backend.
type Client struct {
	// db is the SQLite database connection.
	db *sql.DB

	// node generates unique record IDs.
	node *snowflake.Node
}

// Config contains configuration for creating a SQLite event store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string
}

// NewClient creates a new SQLite event store client.
//
// Parameters:
//   - cfg: Configuration containing the database file path
//
// Returns:
//   - *Client: The SQLite client instance
//   - error: Error if database connection or table creation fails
func NewClient(cfg *Config) (*Client, error) {
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	client := &Client{db: db, node: node}

	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table structure.
func (c *Client) initTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS interactions (
			id INTEGER PRIMARY KEY,
			user_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			product_name TEXT,
			category TEXT,
			kind TEXT NOT NULL,
			quantity INTEGER DEFAULT 0,
			rating INTEGER DEFAULT 0,
			price REAL DEFAULT 0,
			occurred_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_user_kind
			ON interactions(user_id, kind, occurred_at)`,
		`CREATE TABLE IF NOT EXISTS popular_products (
			product_id TEXT PRIMARY KEY,
			view_count INTEGER NOT NULL DEFAULT 0,
			cart_add_count INTEGER NOT NULL DEFAULT 0,
			purchase_count INTEGER NOT NULL DEFAULT 0,
			popularity_score REAL NOT NULL DEFAULT 0
		)`,
	}

	for _, query := range queries {
		if _, err := c.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("initTables: %w", err)
		}
	}

	return nil
}

// Record appends an interaction record and updates the popularity aggregate.
//
// The record ID is assigned from the snowflake node. A zero OccurredAt is
// stamped with the current time. Cart removals and ratings are stored but do
// not affect the popularity counters.
func (c *Client) Record(ctx context.Context, rec *tracking.Record) error {
	if err := tracking.Validate(rec); err != nil {
		return err
	}

	rec.ID = c.node.Generate().Int64()
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now()
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Record: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO interactions
		(id, user_id, product_id, product_name, category, kind, quantity, rating, price, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.UserID, rec.ProductID, rec.ProductName, rec.Category,
		string(rec.Kind), rec.Quantity, rec.Rating, rec.Price, rec.OccurredAt)
	if err != nil {
		return fmt.Errorf("Record: %w", err)
	}

	if err := bumpPopularity(ctx, tx, rec); err != nil {
		return fmt.Errorf("Record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Record: %w", err)
	}

	return nil
}

// bumpPopularity increments the counter matching the record kind and
// recomputes the popularity score in a single upsert.
func bumpPopularity(ctx context.Context, tx *sql.Tx, rec *tracking.Record) error {
	var viewInc, cartInc, purchaseInc int
	switch rec.Kind {
	case tracking.KindView:
		viewInc = 1
	case tracking.KindCartAdd:
		cartInc = 1
	case tracking.KindPurchase:
		purchaseInc = 1
	default:
		return nil
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO popular_products (product_id, view_count, cart_add_count, purchase_count, popularity_score)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET
			view_count = view_count + excluded.view_count,
			cart_add_count = cart_add_count + excluded.cart_add_count,
			purchase_count = purchase_count + excluded.purchase_count,
			popularity_score = (view_count + excluded.view_count) * 1.0
				+ (cart_add_count + excluded.cart_add_count) * 2.0
				+ (purchase_count + excluded.purchase_count) * 5.0
	`, rec.ProductID, viewInc, cartInc, purchaseInc,
		tracking.Score(viewInc, cartInc, purchaseInc))

	return err
}

// FetchPurchases returns the user's purchase records, most recent first.
func (c *Client) FetchPurchases(ctx context.Context, userID string, limit int) ([]*tracking.Record, error) {
	return c.fetchByKind(ctx, userID, tracking.KindPurchase, limit)
}

// FetchRecentViews returns the user's view records, most recent first.
func (c *Client) FetchRecentViews(ctx context.Context, userID string, limit int) ([]*tracking.Record, error) {
	return c.fetchByKind(ctx, userID, tracking.KindView, limit)
}

// FetchCartAdds returns the user's cart-add records, most recent first.
func (c *Client) FetchCartAdds(ctx context.Context, userID string, limit int) ([]*tracking.Record, error) {
	return c.fetchByKind(ctx, userID, tracking.KindCartAdd, limit)
}

func (c *Client) fetchByKind(ctx context.Context, userID string, kind tracking.Kind, limit int) ([]*tracking.Record, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, user_id, product_id, product_name, category, kind, quantity, rating, price, occurred_at
		FROM interactions
		WHERE user_id = ? AND kind = ?
		ORDER BY occurred_at DESC
		LIMIT ?
	`, userID, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("fetchByKind: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

// scanRecords converts result rows into tracking records.
func scanRecords(rows *sql.Rows) ([]*tracking.Record, error) {
	var records []*tracking.Record
	for rows.Next() {
		var rec tracking.Record
		var kind string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.ProductID, &rec.ProductName,
			&rec.Category, &kind, &rec.Quantity, &rec.Rating, &rec.Price, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanRecords: %w", err)
		}
		rec.Kind = tracking.Kind(kind)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scanRecords: %w", err)
	}
	return records, nil
}

// FetchTopPopular returns the top products by popularity score, highest first.
func (c *Client) FetchTopPopular(ctx context.Context, limit int) ([]*tracking.PopularityEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT product_id, view_count, cart_add_count, purchase_count, popularity_score
		FROM popular_products
		ORDER BY popularity_score DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("FetchTopPopular: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*tracking.PopularityEntry
	for rows.Next() {
		var e tracking.PopularityEntry
		if err := rows.Scan(&e.ProductID, &e.ViewCount, &e.CartAddCount,
			&e.PurchaseCount, &e.PopularityScore); err != nil {
			return nil, fmt.Errorf("FetchTopPopular: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FetchTopPopular: %w", err)
	}

	return entries, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	return c.db.Close()
}
