package order

import (
	"context"
	"net/http"
	"time"

	"Storefront/internal/auth"
	"Storefront/pkg/kit"
)

type ctxKey string

const userKey ctxKey = "user"

// GuestUser owns orders placed without a bearer token.
const GuestUser = "guest"

type User struct {
	ID   string
	Role string
}

func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier interface {
	Parse(token string) (auth.Claims, error)
}

// IdentifyUser attaches the caller to the request context. Requests without a
// bearer token act as GuestUser; a token that fails verification or has
// expired is rejected. With a nil verifier the claims are read without
// checking the signature.
func IdentifyUser(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := User{ID: GuestUser, Role: "guest"}

			if tok, ok := kit.BearerToken(r.Header.Get("Authorization")); ok {
				claims, err := readClaims(v, tok)
				if err != nil || claims.UserID == "" {
					kit.WriteError(w, r, http.StatusUnauthorized, "invalid token", nil)
					return
				}
				u = User{ID: claims.UserID, Role: claims.Role}
			}

			ctx := context.WithValue(r.Context(), userKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func readClaims(v TokenVerifier, tok string) (auth.Claims, error) {
	if v != nil {
		return v.Parse(tok)
	}
	sess, err := auth.ParseSession(tok)
	if err == nil {
		err = sess.Valid(time.Now())
	}
	return sess.Claims, err
}
