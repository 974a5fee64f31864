// Package mysql provides a MySQL implementation of the interaction event store.
//
// The schema mirrors the SQLite and PostgreSQL backends; the popularity
// upsert uses MySQL's ON DUPLICATE KEY UPDATE.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/freshcart/cartsense-go/pkg/tracking"
	_ "github.com/go-sql-driver/mysql"
)

// Client implements tracking.Store using MySQL as the backend.
type Client struct {
	// db is the MySQL database connection pool.
	db *sql.DB

	// node generates unique record IDs.
	node *snowflake.Node
}

// Config contains configuration for creating a MySQL event store.
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
}

// NewClient creates a new MySQL event store client.
func NewClient(cfg *Config) (*Client, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
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
			user_id VARCHAR(64) NOT NULL,
			product_id VARCHAR(64) NOT NULL,
			product_name VARCHAR(255),
			category VARCHAR(128),
			kind VARCHAR(16) NOT NULL,
			quantity INT DEFAULT 0,
			rating INT DEFAULT 0,
			price DOUBLE DEFAULT 0,
			occurred_at DATETIME(6) NOT NULL,
			INDEX idx_interactions_user_kind (user_id, kind, occurred_at)
		)`,
		`CREATE TABLE IF NOT EXISTS popular_products (
			product_id VARCHAR(64) PRIMARY KEY,
			view_count INT NOT NULL DEFAULT 0,
			cart_add_count INT NOT NULL DEFAULT 0,
			purchase_count INT NOT NULL DEFAULT 0,
			popularity_score DOUBLE NOT NULL DEFAULT 0
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
// recomputes the popularity score.
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
		ON DUPLICATE KEY UPDATE
			view_count = view_count + VALUES(view_count),
			cart_add_count = cart_add_count + VALUES(cart_add_count),
			purchase_count = purchase_count + VALUES(purchase_count),
			popularity_score = view_count * 1.0 + cart_add_count * 2.0 + purchase_count * 5.0
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

// Close closes the database connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}
