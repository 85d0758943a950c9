package catalog

import (
	"context"
	"fmt"
	"strconv"

	"Storefront/internal/order"
)

// Product is the wire shape of GET /api/products/{id}. Ids are numeric, as the
// commerce backend issues them.
type Product struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	Stock        int     `json:"stock"`
	Description  string  `json:"description,omitempty"`
	ImageURL     string  `json:"image_url,omitempty"`
	CategoryName string  `json:"category_name,omitempty"`
}

type Store interface {
	Ping(ctx context.Context) error
	ListSortedByID(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, bool, error)
}

// parseID reads a catalog id; anything non-numeric cannot name a product.
func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", order.ErrUnknownProduct, raw)
	}
	return id, nil
}
