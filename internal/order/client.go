package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Storefront/pkg/kit"
)

var (
	ErrRejected     = errors.New("order rejected")
	ErrUnauthorized = errors.New("order service requires login")
	ErrUnavailable  = errors.New("order service unavailable")
)

// IdempotencyHeader carries a fresh key per submission.
const IdempotencyHeader = "Idempotency-Key"

const (
	msgUnknownFailure    = "Order submission failed, please try again later."
	msgUnparsableInvalid = "The order was rejected as invalid, but the reason could not be read."
)

// RejectedError carries the backend's reason for refusing an order, already
// formatted for display.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string { return e.Message }

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

type Client struct {
	API *kit.APIClient
	Log *zap.Logger
}

func NewClient(api *kit.APIClient, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{API: api, Log: log}
}

// Submit places an order. Backend refusals come back as *RejectedError.
func (c *Client) Submit(ctx context.Context, req Request) (Confirmation, error) {
	if req.Status == "" {
		req.Status = StatusPending
	}

	hdr := http.Header{}
	hdr.Set(IdempotencyHeader, uuid.NewString())

	var conf Confirmation
	if err := c.API.DoWithHeaders(ctx, http.MethodPost, "/orders", hdr, req, &conf); err != nil {
		return Confirmation{}, c.describe("submit order", err)
	}
	return conf, nil
}

// List returns the order history of the logged-in user.
func (c *Client) List(ctx context.Context) ([]Order, error) {
	var out []Order
	if err := c.API.Do(ctx, http.MethodGet, "/orders", nil, &out); err != nil {
		return nil, c.describe("list orders", err)
	}
	return out, nil
}

func (c *Client) describe(op string, err error) error {
	var se *kit.StatusError
	if !errors.As(err, &se) {
		c.Log.Warn(op+" failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c.Log.Warn(op+" rejected", zap.Int("status", se.Status), zap.ByteString("body", se.Body))
	if se.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return &RejectedError{Status: se.Status, Message: RejectionMessage(se.Status, se.Body)}
}

// RejectionMessage turns an error response into a display message. A 422
// with a list of field errors becomes
// "invalid input: <field path>: <msg>; ...".
func RejectionMessage(status int, body []byte) string {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		var s string
		if json.Unmarshal(body, &s) == nil && s != "" {
			return s
		}
		if raw := strings.TrimSpace(string(body)); raw != "" && !json.Valid(body) {
			return raw
		}
		return msgUnknownFailure
	}

	detail, hasDetail := env["detail"]
	if status == http.StatusUnprocessableEntity && hasDetail {
		return validationMessage(detail)
	}

	for _, key := range []string{"detail", "message", "error"} {
		if msg := textOf(env[key]); msg != "" {
			return msg
		}
	}
	return msgUnknownFailure
}

func validationMessage(detail json.RawMessage) string {
	var list []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(detail, &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, d := range list {
			field := "unknown field"
			if len(d.Loc) > 1 {
				segs := make([]string, 0, len(d.Loc)-1)
				for _, l := range d.Loc[1:] {
					segs = append(segs, fmt.Sprint(l))
				}
				field = strings.Join(segs, " -> ")
			}
			parts = append(parts, field+": "+d.Msg)
		}
		return "invalid input: " + strings.Join(parts, "; ")
	}

	var s string
	if err := json.Unmarshal(detail, &s); err == nil {
		return s
	}
	return msgUnparsableInvalid
}

// textOf renders a JSON value as text: strings as-is, anything else as JSON.
func textOf(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
