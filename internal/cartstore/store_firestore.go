package cartstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	firestoreValueField = "value"
	firestorePingDoc    = "_ping"
)

// FirestoreStore keeps each key as a document in one collection. Useful when
// the same installation id should follow a user across devices.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

func OpenFirestore(ctx context.Context, projectID, collection string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, errors.New("firestore project id required")
	}
	if collection == "" {
		collection = "storefront_client"
	}
	c, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &FirestoreStore{client: c, collection: collection}, nil
}

func (s *FirestoreStore) doc(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(key)
}

func (s *FirestoreStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		_, err := s.doc(firestorePingDoc).Get(ctx)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		return nil
	})
}

func (s *FirestoreStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var snap *firestore.DocumentSnapshot
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		var err error
		snap, err = s.doc(key).Get(ctx)
		return err
	})
	if status.Code(err) == codes.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	v, err := snap.DataAt(firestoreValueField)
	if err != nil {
		// a document without the field reads as an unparseable blob
		return []byte{}, true, nil
	}
	switch t := v.(type) {
	case []byte:
		return t, true, nil
	case string:
		return []byte(t), true, nil
	default:
		return []byte{}, true, nil
	}
}

func (s *FirestoreStore) Set(ctx context.Context, key string, val []byte) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.doc(key).Set(ctx, map[string]any{
			firestoreValueField: val,
			"updatedAt":         time.Now().UTC(),
		})
		return err
	})
}

func (s *FirestoreStore) Delete(ctx context.Context, key string) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.doc(key).Delete(ctx)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return err
	})
}

func (s *FirestoreStore) Close() error { return s.client.Close() }
