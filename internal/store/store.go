package store

import (
	"context"
	"errors"

	"attn/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SnapshotSource supplies the read-only catalogue and order history the
// forecast is computed from.
type SnapshotSource interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListOrderLines(ctx context.Context) ([]domain.OrderLine, error)
	CountOrders(ctx context.Context) (int, error)
}

// OrderHistoryLister is implemented by sources that read order lines and
// the order count in one pass. Snapshots prefer it over separate calls.
type OrderHistoryLister interface {
	ListOrderHistory(ctx context.Context) ([]domain.OrderLine, int, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type Repository interface {
	SnapshotSource
	UserStore
}
