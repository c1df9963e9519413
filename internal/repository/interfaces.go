package repository

import (
	"context"

	"github.com/Lixing-Zhang/storefront/internal/models"
)

// ProductRepository defines the interface for catalog data access
type ProductRepository interface {
	ListAvailable(ctx context.Context) ([]models.Product, error)
	ListAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, id int64, changes models.ProductChanges) (*models.Product, error)
	Delete(ctx context.Context, id int64) error
}

// OrderRepository is the append-only order ledger
type OrderRepository interface {
	// PlaceOrder checks stock for every line in listed order, decrements all of it
	// and appends the order as one unit. Nothing changes if any line fails.
	// On success the order's ID, CreatedAt and line names/prices are filled in.
	PlaceOrder(ctx context.Context, order *models.Order) error
	ListOrders(ctx context.Context) ([]models.Order, error)
}

// UserRepository holds administrator credentials
type UserRepository interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	CountUsers(ctx context.Context) (int, error)
}

// Store bundles every collection the application needs
type Store interface {
	ProductRepository
	OrderRepository
	UserRepository
	Close() error
}
