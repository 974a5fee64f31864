// Package postgres provides a PostgreSQL implementation of the interaction event store.
//
// PostgreSQL is suited to production deployments where the storefront and the
// recommendation engine share a database. The schema mirrors the SQLite
// backend: an append-only interactions table plus a popularity aggregate
// updated transactionally with each write.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/freshcart/cartsense-go/pkg/tracking"
	_ "github.com/lib/pq"
)

// Client implements tracking.Store using PostgreSQL as the backend.
type Client struct {
	// db is the PostgreSQL database connection pool.
	db *sql.DB

	// node generates unique record IDs.
	node *snowflake.Node
}

// Config contains configuration for creating a PostgreSQL event store.
type Config struct {
	// Host is the database server host.
	Host string

	// Port is the database server port.
	Port int

	// User is the database user.
	User string

	// Password is the database password.
	Password string

	// DBName is the database name.
	DBName string

	// SSLMode is the SSL mode (disable, require, verify-ca, verify-full).
	SSLMode string
}

// NewClient creates a new PostgreSQL event store client.
//
// Parameters:
//   - cfg: Configuration containing connection parameters
//
// Returns:
//   - *Client: The PostgreSQL client instance
//   - error: Error if connection or table creation fails
func NewClient(cfg *Config) (*Client, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
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
			id BIGINT PRIMARY KEY,
			user_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			product_name TEXT,
			category TEXT,
			kind TEXT NOT NULL,
			quantity INTEGER DEFAULT 0,
			rating INTEGER DEFAULT 0,
			price DOUBLE PRECISION DEFAULT 0,
			occurred_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_user_kind
			ON interactions(user_id, kind, occurred_at)`,
		`CREATE TABLE IF NOT EXISTS popular_products (
			product_id TEXT PRIMARY KEY,
			view_count INTEGER NOT NULL DEFAULT 0,
			cart_add_count INTEGER NOT NULL DEFAULT 0,
			purchase_count INTEGER NOT NULL DEFAULT 0,
			popularity_score DOUBLE PRECISION NOT NULL DEFAULT 0
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
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
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id) DO UPDATE SET
			view_count = popular_products.view_count + EXCLUDED.view_count,
			cart_add_count = popular_products.cart_add_count + EXCLUDED.cart_add_count,
			purchase_count = popular_products.purchase_count + EXCLUDED.purchase_count,
			popularity_score = (popular_products.view_count + EXCLUDED.view_count) * 1.0
				+ (popular_products.cart_add_count + EXCLUDED.cart_add_count) * 2.0
				+ (popular_products.purchase_count + EXCLUDED.purchase_count) * 5.0
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
		WHERE user_id = $1 AND kind = $2
		ORDER BY occurred_at DESC
		LIMIT $3
	`, userID, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("fetchByKind: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*tracking.Record
	for rows.Next() {
		var rec tracking.Record
		var kindStr string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.ProductID, &rec.ProductName,
			&rec.Category, &kindStr, &rec.Quantity, &rec.Rating, &rec.Price, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("fetchByKind: %w", err)
		}
		rec.Kind = tracking.Kind(kindStr)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetchByKind: %w", err)
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
		LIMIT $1
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

// Close closes the database connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}
