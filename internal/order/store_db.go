package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"Storefront/internal/cart"
)

const (
	pingTimeout  = 1 * time.Second
	writeTimeout = 5 * time.Second
	queryTimeout = 3 * time.Second
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Create(ctx context.Context, o Order) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	customer, err := json.Marshal(o.CustomerDetails)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, customer, total_amount, shipping_method, payment_method, notes, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, o.ID, o.UserID, customer, o.TotalAmount.String(), string(o.ShippingMethod), string(o.PaymentMethod),
		o.Notes, o.Status, o.CreatedAt)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, price_at_purchase)
		VALUES ($1, $2, $3, $4)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, it := range o.Items {
		if _, err := stmt.ExecContext(ctx, o.ID, string(it.ProductID), it.Quantity, it.PriceAtPurchase.String()); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT o.id, o.customer, o.total_amount::text, o.shipping_method, o.payment_method,
		       o.notes, o.status, o.created_at,
		       i.product_id, i.quantity, i.price_at_purchase::text
		FROM orders o
		JOIN order_items i ON i.order_id = o.id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC, o.id, i.product_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Order, 0, 8)
	for rows.Next() {
		var (
			o                 Order
			customer          []byte
			total, price, pid string
			qty               int
			shipping, payment string
		)
		if err := rows.Scan(&o.ID, &customer, &total, &shipping, &payment,
			&o.Notes, &o.Status, &o.CreatedAt, &pid, &qty, &price); err != nil {
			return nil, err
		}

		if n := len(out); n == 0 || out[n-1].ID != o.ID {
			if err := json.Unmarshal(customer, &o.CustomerDetails); err != nil {
				return nil, err
			}
			if o.TotalAmount.Decimal, err = decimal.NewFromString(total); err != nil {
				return nil, err
			}
			o.UserID = userID
			o.ShippingMethod = ShippingMethod(shipping)
			o.PaymentMethod = PaymentMethod(payment)
			out = append(out, o)
		}

		it := Item{ProductID: cart.ProductID(pid), Quantity: qty}
		if it.PriceAtPurchase.Decimal, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		last := &out[len(out)-1]
		last.Items = append(last.Items, it)
	}
	return out, rows.Err()
}
