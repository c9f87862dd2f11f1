// Package sqlstore keeps product stock in MySQL or SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	domain "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/inventory"
)

// Supported database/sql driver names.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id    VARCHAR(64)  NOT NULL PRIMARY KEY,
	name  VARCHAR(255) NOT NULL DEFAULT '',
	stock INTEGER      NOT NULL DEFAULT 0
)`

// Gateway implements inventory.Gateway with a conditional UPDATE, so stock
// never goes negative regardless of how many processes decrement it.
type Gateway struct {
	db     *sql.DB
	driver string
}

var _ domain.Gateway = (*Gateway)(nil)

// Open connects and pings. SQLite is limited to one connection so that
// in-memory databases are shared.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if driver != DriverMySQL && driver != DriverSQLite {
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", driver, err)
	}
	return db, nil
}

func New(db *sql.DB, driver string) *Gateway {
	return &Gateway{db: db, driver: driver}
}

// Migrate creates the products table if needed.
func (g *Gateway) Migrate(ctx context.Context) error {
	if _, err := g.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return nil
}

// Upsert creates or replaces a product row.
func (g *Gateway) Upsert(ctx context.Context, it domain.Item) error {
	query := `INSERT INTO products (id, name, stock) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, stock = excluded.stock`
	if g.driver == DriverMySQL {
		query = `INSERT INTO products (id, name, stock) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), stock = VALUES(stock)`
	}
	if _, err := g.db.ExecContext(ctx, query, it.ProductID, it.Name, it.Stock); err != nil {
		return fmt.Errorf("sqlstore: upsert %s: %w", it.ProductID, err)
	}
	return nil
}

func (g *Gateway) Stock(ctx context.Context, productID string) (int, error) {
	return stock(ctx, g.db, productID)
}

func (g *Gateway) Decrement(ctx context.Context, productID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, domain.ErrInvalidQuantity
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: begin tx: %w: %w", domain.ErrGateway, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?`,
		quantity, productID, quantity,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: decrement %s: %w: %w", productID, domain.ErrGateway, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: decrement %s: %w: %w", productID, domain.ErrGateway, err)
	}

	remaining, err := stock(ctx, tx, productID)
	if err != nil {
		return 0, err
	}
	if rows == 0 {
		return remaining, domain.ErrInsufficientStock
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlstore: commit: %w: %w", domain.ErrGateway, err)
	}
	return remaining, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func stock(ctx context.Context, q queryer, productID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = ?`, productID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("sqlstore: read stock %s: %w: %w", productID, domain.ErrGateway, err)
	}
	return n, nil
}
