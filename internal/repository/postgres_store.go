package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/Lixing-Zhang/storefront/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const productColumns = `id, name, description, price, quantity, photo, category`

// PostgresStore keeps the collections in three relational tables
type PostgresStore struct {
	db *sqlx.DB
}

type orderRow struct {
	ID              int64     `db:"id"`
	CustomerName    string    `db:"customer_name"`
	Phone           string    `db:"phone"`
	DeliveryMethod  string    `db:"delivery_method"`
	Address         string    `db:"address"`
	DesiredDateTime string    `db:"desired_datetime"`
	Items           []byte    `db:"items"`
	CreatedAt       time.Time `db:"created_at"`
}

// NewPostgresStore connects through the pgx database/sql driver and verifies the connection
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing handle
func NewPostgresStoreFromDB(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies every embedded *.up.sql file that is not yet recorded in schema_migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	var versions []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			versions = append(versions, e.Name())
		}
	}
	sort.Strings(versions)

	for _, version := range versions {
		var exists bool
		err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version)
		if err != nil {
			return fmt.Errorf("failed to check migration %s: %w", version, err)
		}
		if exists {
			continue
		}

		body, err := migrationsFS.ReadFile("migrations/" + version)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", version, err)
		}

		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", version, err)
		}
	}
	return nil
}

func (s *PostgresStore) ListAvailable(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	query := `SELECT ` + productColumns + ` FROM products WHERE quantity > 0 ORDER BY id`
	if err := s.db.SelectContext(ctx, &products, query); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	query := `SELECT ` + productColumns + ` FROM products ORDER BY id`
	if err := s.db.SelectContext(ctx, &products, query); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if err := s.db.GetContext(ctx, &product, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, productNotFound(id)
		}
		return nil, fmt.Errorf("failed to get product by id %d: %w", id, err)
	}
	return &product, nil
}

func (s *PostgresStore) Create(ctx context.Context, product *models.Product) error {
	if err := validateProduct(*product); err != nil {
		return err
	}

	query := `
		INSERT INTO products (name, description, price, quantity, photo, category)
		VALUES (:name, :description, :price, :quantity, :photo, :category)
		RETURNING id
	`
	rows, err := s.db.NamedQueryContext(ctx, query, product)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		return fmt.Errorf("failed to create product: no id returned")
	}
	if err := rows.Scan(&product.ID); err != nil {
		return fmt.Errorf("failed to scan product id: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, id int64, changes models.ProductChanges) (*models.Product, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	defer tx.Rollback()

	var product models.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &product, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, productNotFound(id)
		}
		return nil, fmt.Errorf("failed to lock product %d: %w", id, err)
	}

	changes.Apply(&product)
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	update := `
		UPDATE products
		SET name = :name, description = :description, price = :price,
		    quantity = :quantity, photo = :photo, category = :category
		WHERE id = :id
	`
	if _, err := tx.NamedExecContext(ctx, update, product); err != nil {
		return nil, fmt.Errorf("failed to update product %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &product, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}
	if affected == 0 {
		return productNotFound(id)
	}
	return nil
}

// PlaceOrder locks every referenced product row (ordered by id so concurrent
// orders cannot deadlock), checks the lines, then decrements and inserts the
// order in the same transaction.
func (s *PostgresStore) PlaceOrder(ctx context.Context, order *models.Order) error {
	if err := validateOrderLines(order.Items); err != nil {
		return err
	}
	desired, err := time.Parse(models.DateTimeLayout, order.DesiredDateTime)
	if err != nil {
		return fmt.Errorf("%w: desired_datetime %q", ErrInvalidInput, order.DesiredDateTime)
	}

	ids := make([]int64, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := sqlx.In(`SELECT `+productColumns+` FROM products WHERE id IN (?) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return fmt.Errorf("failed to build stock query: %w", err)
	}
	var locked []models.Product
	if err := tx.SelectContext(ctx, &locked, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to get products information: %w", err)
	}

	stock := make(map[int64]models.Product, len(locked))
	for _, p := range locked {
		stock[p.ID] = p
	}
	items, err := reserveStock(stock, order.Items)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE products SET quantity = $1 WHERE id = $2`, stock[id].Quantity, id); err != nil {
			return fmt.Errorf("failed to update product %d: %w", id, err)
		}
	}

	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode order items: %w", err)
	}

	placed := *order
	placed.Items = items
	insert := `
		INSERT INTO orders (customer_name, phone, delivery_method, address, desired_datetime, items)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err = tx.QueryRowxContext(ctx, insert,
		placed.CustomerName,
		placed.Phone,
		placed.DeliveryMethod,
		placed.Address,
		desired,
		string(itemsJSON),
	).Scan(&placed.ID, &placed.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	placed.CreatedAt = placed.CreatedAt.UTC()
	*order = placed
	return nil
}

func (s *PostgresStore) ListOrders(ctx context.Context) ([]models.Order, error) {
	var rows []orderRow
	query := `
		SELECT id, customer_name, phone, delivery_method, address,
		       to_char(desired_datetime, 'YYYY-MM-DD HH24:MI:SS') AS desired_datetime,
		       items, created_at
		FROM orders
		ORDER BY id
	`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	orders := make([]models.Order, 0, len(rows))
	for _, r := range rows {
		o := models.Order{
			ID:              r.ID,
			CustomerName:    r.CustomerName,
			Phone:           r.Phone,
			DeliveryMethod:  r.DeliveryMethod,
			Address:         r.Address,
			DesiredDateTime: r.DesiredDateTime,
			CreatedAt:       r.CreatedAt.UTC(),
		}
		if err := json.Unmarshal(r.Items, &o.Items); err != nil {
			return nil, fmt.Errorf("malformed items for order %d: %w", r.ID, err)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, `SELECT id, username, password_hash FROM users WHERE username = $1`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	if strings.TrimSpace(user.Username) == "" || user.PasswordHash == "" {
		return fmt.Errorf("%w: username and password hash are required", ErrInvalidInput)
	}
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id`,
		user.Username, user.PasswordHash,
	).Scan(&user.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: user %q already exists", ErrInvalidInput, user.Username)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT count(*) FROM users`); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// Ping checks database connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
