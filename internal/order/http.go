package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"Storefront/pkg/kit"
)

// Server is the order backend used for local runs and tests. It validates the
// payload the way the commerce backend does, takes stock through Stock and
// records the order.
type Server struct {
	Store Store
	Stock StockReserver
	Log   *zap.Logger

	// Tokens verifies bearer tokens; nil reads them unverified.
	Tokens TokenVerifier
}

const (
	maxCreateBody = 1 << 20
)

// Routes serves POST and GET relative to the orders prefix.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(IdentifyUser(s.Tokens))

	r.Post("/", s.create)
	r.Get("/", s.list)

	return r
}

// fieldError is one entry of a 422 "detail" list.
type fieldError struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	req, err := decodeCreateRequest(w, r)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", "malformed JSON body")
		return
	}
	if errs := validate(req); len(errs) > 0 {
		kit.WriteError(w, r, http.StatusUnprocessableEntity, "validation failed", errs)
		return
	}

	reserved, err := s.reserve(r.Context(), req.Items)
	if err != nil {
		s.writeReserveError(w, r, err)
		return
	}

	o := Order{
		ID:              "ord_" + uuid.NewString(),
		UserID:          u.ID,
		CustomerDetails: req.CustomerDetails,
		Items:           req.Items,
		TotalAmount:     Amount{total(req.Items)},
		ShippingMethod:  req.ShippingMethod,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		Status:          StatusPending,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.Store.Create(r.Context(), o); err != nil {
		s.release(context.WithoutCancel(r.Context()), reserved)
		if isTimeoutErr(err) {
			kit.WriteError(w, r, http.StatusGatewayTimeout, "timeout", nil)
			return
		}
		s.logger().Error("store create order failed", zap.Error(err), zap.String("order_id", o.ID))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	kit.WriteJSON(w, http.StatusCreated, Confirmation{
		Success: true,
		Message: "Order placed.",
		OrderID: o.ID,
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	orders, err := s.Store.ListByUser(r.Context(), u.ID)
	if err != nil {
		s.logger().Error("store list orders failed", zap.Error(err), zap.String("user_id", u.ID))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	kit.WriteJSON(w, http.StatusOK, orders)
}

func decodeCreateRequest(w http.ResponseWriter, r *http.Request) (Request, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCreateBody)
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req Request
	if err := dec.Decode(&req); err != nil {
		return Request{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Request{}, errors.New("extra data after json object")
	}

	return req, nil
}

func validate(req Request) []fieldError {
	var errs []fieldError
	add := func(msg, typ string, loc ...any) {
		errs = append(errs, fieldError{Loc: append([]any{"body"}, loc...), Msg: msg, Type: typ})
	}

	cd := req.CustomerDetails
	for _, f := range []struct {
		name, value string
	}{
		{"name", cd.Name},
		{"phone", cd.Phone},
		{"address", cd.Address},
		{"email", cd.Email},
	} {
		if strings.TrimSpace(f.value) == "" {
			add("Field required", "missing", "customer_details", f.name)
		}
	}
	if cd.Email != "" {
		if _, err := mail.ParseAddress(cd.Email); err != nil {
			add("value is not a valid email address", "value_error", "customer_details", "email")
		}
	}

	if len(req.Items) == 0 {
		add("List should have at least 1 item", "too_short", "items")
	}
	seen := make(map[string]struct{}, len(req.Items))
	for i, it := range req.Items {
		pid := strings.TrimSpace(string(it.ProductID))
		if pid == "" {
			add("Field required", "missing", "items", i, "product_id")
		} else if _, dup := seen[pid]; dup {
			add("duplicate product_id", "value_error", "items", i, "product_id")
		}
		seen[pid] = struct{}{}
		if it.Quantity <= 0 {
			add("Input should be greater than 0", "greater_than", "items", i, "quantity")
		}
		if it.PriceAtPurchase.IsNegative() {
			add("Input should be greater than or equal to 0", "greater_than_equal", "items", i, "price_at_purchase")
		}
	}

	switch req.ShippingMethod {
	case ShippingStandard, ShippingExpress:
	default:
		add("Input should be 'standard' or 'express'", "enum", "shipping_method")
	}
	switch req.PaymentMethod {
	case PaymentCOD, PaymentCardMock:
	default:
		add("Input should be 'cod' or 'credit_card_mock'", "enum", "payment_method")
	}
	if req.Status != "" && req.Status != StatusPending {
		add("Input should be 'pending'", "enum", "status")
	}

	return errs
}

type reservation struct {
	productID string
	qty       int
}

// reserve takes stock for every item or for none of them.
func (s *Server) reserve(ctx context.Context, items []Item) ([]reservation, error) {
	if s.Stock == nil {
		return nil, nil
	}

	done := make([]reservation, 0, len(items))
	for _, it := range items {
		pid := strings.TrimSpace(string(it.ProductID))
		if err := s.Stock.Reserve(ctx, pid, it.Quantity); err != nil {
			s.release(context.WithoutCancel(ctx), done)
			return nil, fmt.Errorf("product %s: %w", pid, err)
		}
		done = append(done, reservation{productID: pid, qty: it.Quantity})
	}
	return done, nil
}

func (s *Server) release(ctx context.Context, done []reservation) {
	if s.Stock == nil {
		return
	}
	for _, rv := range done {
		if err := s.Stock.Release(ctx, rv.productID, rv.qty); err != nil {
			s.logger().Error("release stock failed", zap.Error(err), zap.String("product_id", rv.productID))
		}
	}
}

func (s *Server) writeReserveError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUnknownProduct):
		kit.WriteError(w, r, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, ErrOutOfStock):
		kit.WriteError(w, r, http.StatusBadRequest, "insufficient stock", err.Error())
	case isTimeoutErr(err):
		kit.WriteError(w, r, http.StatusGatewayTimeout, "timeout", nil)
	default:
		s.logger().Warn("reserve stock failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusServiceUnavailable, "inventory unavailable", nil)
	}
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func total(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.PriceAtPurchase.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

func isTimeoutErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
