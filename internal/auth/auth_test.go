package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"Storefront/internal/auth"
	"Storefront/internal/cartstore"
	"Storefront/pkg/kit"
)

func mintToken(t *testing.T, userID string, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	claims := auth.Claims{
		UserID: userID,
		Email:  userID + "@example.com",
		Role:   "user",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    "storefront-auth",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func newAuthTS(t *testing.T, token string) *httptest.Server {
	t.Helper()

	r := chi.NewRouter()
	r.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Email != "user@example.com" || req.Password != "password123" {
			kit.WriteError(w, r, http.StatusUnauthorized, "invalid credentials", nil)
			return
		}
		kit.WriteJSON(w, http.StatusOK, map[string]string{"access_token": token})
	})
	r.Post("/api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		kit.WriteError(w, r, http.StatusConflict, "email already exists", nil)
	})
	r.Post("/api/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func newClient(ts *httptest.Server) *auth.Client {
	api := kit.NewAPIClient(ts.URL+"/api", 2*time.Second, nil, zap.NewNop())
	return auth.NewClient(api, zap.NewNop())
}

func TestLogin_ParsesSession(t *testing.T) {
	tok := mintToken(t, "u_42", 15*time.Minute)
	c := newClient(newAuthTS(t, tok))

	sess, err := c.Login(context.Background(), "  User@Example.com ", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.Token != tok {
		t.Fatalf("token mismatch")
	}
	if sess.Claims.UserID != "u_42" {
		t.Fatalf("user_id=%q", sess.Claims.UserID)
	}
	if err := sess.Valid(time.Now()); err != nil {
		t.Fatalf("valid: %v", err)
	}
	if !sess.Expired(time.Now().Add(time.Hour)) {
		t.Fatalf("session should expire within the hour")
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	c := newClient(newAuthTS(t, "unused"))

	_, err := c.Login(context.Background(), "user@example.com", "wrong")
	if !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("err=%v want ErrInvalidCredentials", err)
	}
}

func TestRegister_Conflict(t *testing.T) {
	c := newClient(newAuthTS(t, "unused"))

	err := c.Register(context.Background(), "user@example.com", "password123")
	if !errors.Is(err, auth.ErrEmailExists) {
		t.Fatalf("err=%v want ErrEmailExists", err)
	}
}

func TestLogout_FailureIsSwallowed(t *testing.T) {
	c := newClient(newAuthTS(t, "unused"))
	c.Logout(context.Background())
}

func TestSession_Valid(t *testing.T) {
	if err := (auth.Session{}).Valid(time.Now()); !errors.Is(err, auth.ErrNoSession) {
		t.Fatalf("err=%v want ErrNoSession", err)
	}

	sess, err := auth.ParseSession(mintToken(t, "u_1", -time.Minute))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := sess.Valid(time.Now()); !errors.Is(err, auth.ErrSessionExpired) {
		t.Fatalf("err=%v want ErrSessionExpired", err)
	}

	if _, err := auth.ParseSession("not-a-jwt"); !errors.Is(err, auth.ErrMalformedToken) {
		t.Fatalf("err=%v want ErrMalformedToken", err)
	}
}

func TestTransport_AttachesBearer(t *testing.T) {
	var got []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(ts.Close)

	var h auth.Holder
	c := &http.Client{Transport: &auth.Transport{Source: &h}}

	do := func() {
		resp, err := c.Get(ts.URL)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		_ = resp.Body.Close()
	}

	do()
	h.Set("abc")
	do()
	h.Clear()
	do()

	want := []string{"", "Bearer abc", ""}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("request %d: Authorization=%q want=%q", i, got[i], want[i])
		}
	}
}

func TestTokenStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	blobs := cartstore.NewMemStore()
	s := auth.NewTokenStore(blobs)

	if _, err := s.Load(ctx); !errors.Is(err, auth.ErrNoSession) {
		t.Fatalf("err=%v want ErrNoSession", err)
	}

	sess, err := auth.ParseSession(mintToken(t, "u_7", time.Hour))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := s.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Claims.UserID != "u_7" {
		t.Fatalf("user_id=%q", loaded.Claims.UserID)
	}

	if err := blobs.Set(ctx, auth.TokenKey, []byte("garbage")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := s.Load(ctx); !errors.Is(err, auth.ErrNoSession) {
		t.Fatalf("err=%v want ErrNoSession", err)
	}
	if _, found, _ := blobs.Get(ctx, auth.TokenKey); found {
		t.Fatalf("garbage token should be deleted")
	}
}
