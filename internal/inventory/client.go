package inventory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"Storefront/internal/cart"
	"Storefront/pkg/kit"
)

const (
	DefaultStockTimeout = 3 * time.Second

	tracerName = "Storefront/internal/inventory"
)

var (
	ErrNotFound    = errors.New("inventory: product not found")
	ErrBadStatus   = errors.New("inventory: bad status")
	ErrUnavailable = errors.New("inventory: unavailable")
	ErrMalformed   = errors.New("inventory: malformed response")
)

// Client reads products and their live stock from the commerce API. Every
// call is an independent point read: nothing is cached.
type Client struct {
	API          *kit.APIClient
	StockTimeout time.Duration
	Log          *zap.Logger
	Tracer       trace.Tracer
	Metrics      *Metrics
}

func NewClient(api *kit.APIClient, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		API:          api,
		StockTimeout: DefaultStockTimeout,
		Log:          log,
		Tracer:       otel.Tracer(tracerName),
	}
}

type stockResp struct {
	Stock *int `json:"stock"`
}

// CheckStock returns the current stock of productID. ok is false when the
// lookup failed for any reason, including the timeout expiring.
func (c *Client) CheckStock(ctx context.Context, productID string) (int, bool) {
	ctx, span := c.tracer().Start(ctx, "inventory.CheckStock", trace.WithAttributes(
		attribute.String("product.id", productID),
	))
	defer span.End()

	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	var r stockResp
	err := c.API.Do(ctx, http.MethodGet, productPath(productID), nil, &r)
	if err == nil && r.Stock == nil {
		err = fmt.Errorf("%w: stock field missing", ErrMalformed)
	}
	if err != nil {
		err = classify(err)
		c.Metrics.observe(resultOf(err), start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "stock unknown")
		c.Log.Warn("stock check failed", zap.String("product_id", productID), zap.Error(err))
		return 0, false
	}

	c.Metrics.observe(resultOK, start)
	span.SetAttributes(attribute.Int("inventory.stock", *r.Stock))
	return *r.Stock, true
}

// GetProduct fetches the full product, used when a product is added by id.
func (c *Client) GetProduct(ctx context.Context, productID string) (cart.Product, error) {
	ctx, span := c.tracer().Start(ctx, "inventory.GetProduct", trace.WithAttributes(
		attribute.String("product.id", productID),
	))
	defer span.End()

	var p cart.Product
	if err := c.API.Do(ctx, http.MethodGet, productPath(productID), nil, &p); err != nil {
		err = classify(err)
		span.RecordError(err)
		return cart.Product{}, err
	}
	return p, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]cart.Product, error) {
	ctx, span := c.tracer().Start(ctx, "inventory.ListProducts")
	defer span.End()

	var out []cart.Product
	if err := c.API.Do(ctx, http.MethodGet, "/products", nil, &out); err != nil {
		err = classify(err)
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

func (c *Client) timeout() time.Duration {
	if c.StockTimeout <= 0 {
		return DefaultStockTimeout
	}
	return c.StockTimeout
}

func (c *Client) tracer() trace.Tracer {
	if c.Tracer == nil {
		return otel.Tracer(tracerName)
	}
	return c.Tracer
}

func productPath(id string) string {
	return "/products/" + url.PathEscape(id)
}

func classify(err error) error {
	var se *kit.StatusError
	switch {
	case errors.As(err, &se) && se.Status == http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.As(err, &se):
		return fmt.Errorf("%w: %v", ErrBadStatus, err)
	case errors.Is(err, kit.ErrBadResponse), errors.Is(err, ErrMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func resultOf(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return resultNotFound
	case errors.Is(err, ErrBadStatus):
		return resultBadStatus
	case errors.Is(err, ErrMalformed):
		return resultMalformed
	default:
		return resultUnavailable
	}
}
