package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"Storefront/pkg/kit"
)

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

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	AccessToken string `json:"access_token"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (c *Client) Register(ctx context.Context, email, password string) error {
	err := c.API.Do(ctx, http.MethodPost, "/auth/register", credentials{
		Email:    normalizeEmail(email),
		Password: strings.TrimSpace(password),
	}, nil)
	if kit.StatusOf(err) == http.StatusConflict {
		return ErrEmailExists
	}
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var lr loginResp
	err := c.API.Do(ctx, http.MethodPost, "/auth/login", credentials{
		Email:    normalizeEmail(email),
		Password: strings.TrimSpace(password),
	}, &lr)
	switch status := kit.StatusOf(err); {
	case status == http.StatusUnauthorized, status == http.StatusBadRequest:
		return Session{}, ErrInvalidCredentials
	case err != nil:
		return Session{}, fmt.Errorf("login: %w", err)
	}
	if lr.AccessToken == "" {
		return Session{}, fmt.Errorf("login: %w", ErrMalformedToken)
	}
	return ParseSession(lr.AccessToken)
}

// Logout tells the backend the session is over. A failure is logged only: the
// caller drops the local session either way.
func (c *Client) Logout(ctx context.Context) {
	if err := c.API.Do(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
		c.Log.Warn("logout request failed", zap.Error(err))
	}
}
