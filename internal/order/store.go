package order

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"Storefront/internal/cart"
)

type ShippingMethod string

const (
	ShippingStandard ShippingMethod = "standard"
	ShippingExpress  ShippingMethod = "express"
)

type PaymentMethod string

const (
	PaymentCOD      PaymentMethod = "cod"
	PaymentCardMock PaymentMethod = "credit_card_mock"
)

const StatusPending = "pending"

var (
	ErrUnknownProduct = errors.New("unknown product")
	ErrOutOfStock     = errors.New("not enough stock")
)

// Amount is a money value that travels as a plain JSON number.
type Amount struct {
	decimal.Decimal
}

func NewAmount(f float64) Amount { return Amount{decimal.NewFromFloat(f)} }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.StringFixed(2)), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	return a.Decimal.UnmarshalJSON(b)
}

type CustomerDetails struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Email   string `json:"email"`
}

type Item struct {
	ProductID       cart.ProductID `json:"product_id"`
	Quantity        int            `json:"quantity"`
	PriceAtPurchase Amount         `json:"price_at_purchase"`
}

// MarshalJSON writes numeric product ids as numbers, which is what the
// commerce backend declares for order items.
func (it Item) MarshalJSON() ([]byte, error) {
	type wire struct {
		ProductID       any    `json:"product_id"`
		Quantity        int    `json:"quantity"`
		PriceAtPurchase Amount `json:"price_at_purchase"`
	}
	w := wire{ProductID: string(it.ProductID), Quantity: it.Quantity, PriceAtPurchase: it.PriceAtPurchase}
	if n, err := strconv.ParseInt(string(it.ProductID), 10, 64); err == nil {
		w.ProductID = n
	}
	return json.Marshal(w)
}

// Request is the order creation payload.
type Request struct {
	CustomerDetails CustomerDetails `json:"customer_details"`
	Items           []Item          `json:"items"`
	TotalAmount     Amount          `json:"total_amount"`
	ShippingMethod  ShippingMethod  `json:"shipping_method"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	Notes           string          `json:"notes,omitempty"`
	Status          string          `json:"status"`
}

type Confirmation struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"order_id"`
}

// Order is a placed order as listed in the order history.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	CustomerDetails CustomerDetails `json:"customer_details"`
	Items           []Item          `json:"items"`
	TotalAmount     Amount          `json:"total_amount"`
	ShippingMethod  ShippingMethod  `json:"shipping_method"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	Notes           string          `json:"notes,omitempty"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

type Store interface {
	Ping(ctx context.Context) error
	Create(ctx context.Context, o Order) error
	ListByUser(ctx context.Context, userID string) ([]Order, error)
}

// StockReserver takes stock for placed orders. Reserve returns ErrUnknownProduct
// or ErrOutOfStock (wrapped) when the item cannot be taken.
type StockReserver interface {
	Reserve(ctx context.Context, productID string, qty int) error
	Release(ctx context.Context, productID string, qty int) error
}
