package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"attn/backend/internal/domain"
	"attn/backend/internal/store"
)

// Schema is the subset of the store database this service reads.
const Schema = `
CREATE TABLE IF NOT EXISTS products (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	display_name TEXT,
	category TEXT NOT NULL DEFAULT '',
	stock INTEGER NOT NULL DEFAULT 0,
	cost_price NUMERIC(10,2) NOT NULL DEFAULT 0,
	selling_price NUMERIC(10,2) NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT true
);
CREATE TABLE IF NOT EXISTS orders (
	order_id BIGSERIAL PRIMARY KEY,
	status TEXT NOT NULL DEFAULT '',
	order_date TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS ordered_items (
	id BIGSERIAL PRIMARY KEY,
	order_id BIGINT NOT NULL REFERENCES orders(order_id) ON DELETE CASCADE,
	product_name TEXT NOT NULL,
	qty INTEGER NOT NULL DEFAULT 0,
	cost_price NUMERIC(10,2),
	selling_price NUMERIC(10,2),
	order_date TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS users (
	username TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an already opened database handle.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id::text, name, COALESCE(display_name, ''), category, stock,
			cost_price::text, selling_price::text, is_active
		FROM products
		WHERE is_active = true
		ORDER BY category, name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		var costPrice, sellingPrice string
		if err := rows.Scan(&p.ID, &p.Name, &p.DisplayName, &p.Category, &p.Stock, &costPrice, &sellingPrice, &p.Active); err != nil {
			return nil, err
		}
		p.CostPrice = parseDecimal(costPrice)
		p.SellingPrice = parseDecimal(sellingPrice)
		if p.Stock < 0 {
			p.Stock = 0
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) ListOrderLines(ctx context.Context) ([]domain.OrderLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT oi.order_id::text, oi.product_name, oi.qty,
			COALESCE(oi.order_date, o.order_date),
			COALESCE(oi.selling_price::text, '0'), COALESCE(oi.cost_price::text, '0')
		FROM ordered_items oi
		LEFT JOIN orders o ON o.order_id = oi.order_id
		ORDER BY oi.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0, 256)
	for rows.Next() {
		var line domain.OrderLine
		var orderDate sql.NullTime
		var sellingPrice, costPrice string
		if err := rows.Scan(&line.OrderID, &line.ProductName, &line.Qty, &orderDate, &sellingPrice, &costPrice); err != nil {
			return nil, err
		}
		if orderDate.Valid {
			date := orderDate.Time
			line.OrderDate = &date
		}
		if line.Qty < 0 {
			line.Qty = 0
		}
		line.SellingPrice = parseDecimal(sellingPrice)
		line.CostPrice = parseDecimal(costPrice)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

func (s *Store) CountOrders(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return count, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2 WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username)), password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func parseDecimal(raw string) decimal.Decimal {
	val, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return val
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
