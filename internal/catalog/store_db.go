package catalog

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"Storefront/internal/order"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
)

type PostgresStore struct {
	db *sql.DB
}

func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return NewPostgresStore(db), nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

func (s *PostgresStore) ListSortedByID(ctx context.Context) ([]Product, error) {
	var out []Product

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT p.id, p.name, p.price, p.stock,
			       COALESCE(p.description, ''), COALESCE(p.image_url, ''), COALESCE(c.name, '')
			FROM products p
			LEFT JOIN categories c ON c.id = p.category_id
			ORDER BY p.id ASC
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]Product, 0, 16)
		for rows.Next() {
			var p Product
			if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Description, &p.ImageURL, &p.CategoryName); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (Product, bool, error) {
	var p Product

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `
			SELECT p.id, p.name, p.price, p.stock,
			       COALESCE(p.description, ''), COALESCE(p.image_url, ''), COALESCE(c.name, '')
			FROM products p
			LEFT JOIN categories c ON c.id = p.category_id
			WHERE p.id = $1
		`, id).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Description, &p.ImageURL, &p.CategoryName)
	})

	if err == sql.ErrNoRows {
		return Product{}, false, nil
	}
	if err != nil {
		return Product{}, false, err
	}
	return p, true, nil
}

// Reserve decrements stock when at least qty is left.
func (s *PostgresStore) Reserve(ctx context.Context, productID string, qty int) error {
	id, err := parseID(productID)
	if err != nil {
		return err
	}

	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		var left int
		err := s.db.QueryRowContext(ctx, `
			UPDATE products SET stock = stock - $2
			WHERE id = $1 AND stock >= $2
			RETURNING stock
		`, id, qty).Scan(&left)
		if err != sql.ErrNoRows {
			return err
		}

		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return order.ErrUnknownProduct
		}
		return order.ErrOutOfStock
	})
}

func (s *PostgresStore) Release(ctx context.Context, productID string, qty int) error {
	id, err := parseID(productID)
	if err != nil {
		return err
	}
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `UPDATE products SET stock = stock + $2 WHERE id = $1`, id, qty)
		return err
	})
}

// DB exposes the pool so the order store can share it.
func (s *PostgresStore) DB() *sql.DB { return s.db }

func (s *PostgresStore) Close() error { return s.db.Close() }

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
