package kit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RequestIDHeader = "X-Request-Id"

	maxErrorBody = 64 << 10
)

var (
	ErrUnavailable = errors.New("api unavailable")
	ErrBadResponse = errors.New("api bad response")
)

// StatusError is returned for any non-2xx answer. Body holds the (truncated)
// response so callers can pull backend error details out of it.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status=%d", e.Method, e.Path, e.Status)
}

// APIClient is the one configured client per backend: base URL, JSON headers,
// request ids and a bounded timeout. Credentials come from the transport.
type APIClient struct {
	BaseURL string
	HTTP    *http.Client
	Log     *zap.Logger
}

func NewAPIClient(baseURL string, timeout time.Duration, rt http.RoundTripper, log *zap.Logger) *APIClient {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	if rt == nil {
		rt = DefaultTransport()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &APIClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout, Transport: rt},
		Log:     log,
	}
}

func DefaultTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	}
}

// Do sends in as JSON (when non-nil) and decodes a 2xx body into out (when
// non-nil).
func (c *APIClient) Do(ctx context.Context, method, path string, in, out any) error {
	return c.DoWithHeaders(ctx, method, path, nil, in, out)
}

// DoWithHeaders is Do with extra request headers.
func (c *APIClient) DoWithHeaders(ctx context.Context, method, path string, hdr http.Header, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(RequestIDHeader, requestID(ctx))
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_, _ = io.Copy(io.Discard, resp.Body)

		switch resp.StatusCode {
		case http.StatusUnauthorized:
			c.Log.Warn("unauthorized", zap.String("method", method), zap.String("path", path))
		case http.StatusForbidden:
			c.Log.Warn("forbidden", zap.String("method", method), zap.String("path", path))
		}
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: raw}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrBadResponse, method, path, err)
	}
	return nil
}

func requestID(ctx context.Context) string {
	if id := chimw.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
