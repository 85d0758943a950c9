package auth

import (
	"context"

	"Storefront/internal/cartstore"
)

const TokenKey = "authToken"

// TokenStore keeps the access token next to the cart in the client's blob
// storage.
type TokenStore struct {
	Blobs cartstore.Blobs
	Key   string
}

func NewTokenStore(blobs cartstore.Blobs) *TokenStore {
	return &TokenStore{Blobs: blobs, Key: TokenKey}
}

// Load returns the stored session. A missing token yields ErrNoSession; an
// unreadable one is deleted and also yields ErrNoSession.
func (s *TokenStore) Load(ctx context.Context) (Session, error) {
	raw, found, err := s.Blobs.Get(ctx, s.Key)
	if err != nil {
		return Session{}, err
	}
	if !found || len(raw) == 0 {
		return Session{}, ErrNoSession
	}
	sess, err := ParseSession(string(raw))
	if err != nil {
		_ = s.Blobs.Delete(ctx, s.Key)
		return Session{}, ErrNoSession
	}
	return sess, nil
}

func (s *TokenStore) Save(ctx context.Context, sess Session) error {
	return s.Blobs.Set(ctx, s.Key, []byte(sess.Token))
}

func (s *TokenStore) Clear(ctx context.Context) error {
	return s.Blobs.Delete(ctx, s.Key)
}
