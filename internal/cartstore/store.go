package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"Storefront/internal/cart"
)

// DefaultKey is the storage key the cart lives under.
const DefaultKey = "shoppingCart"

var ErrCorrupt = errors.New("stored cart is corrupt")

// Blobs is raw durable key/value storage. Get reports found=false for a
// missing key rather than an error.
type Blobs interface {
	Get(ctx context.Context, key string) (val []byte, found bool, err error)
	Set(ctx context.Context, key string, val []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Persistent stores the serialized cart at a single key of a Blobs backend.
type Persistent struct {
	blobs Blobs
	key   string
	log   *zap.Logger
}

func New(blobs Blobs, key string, log *zap.Logger) *Persistent {
	if key == "" {
		key = DefaultKey
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Persistent{blobs: blobs, key: key, log: log}
}

func (p *Persistent) Key() string { return p.key }

// Load returns the stored cart. A missing blob gives an empty cart; a blob that
// does not decode is deleted and also gives an empty cart.
func (p *Persistent) Load(ctx context.Context) []cart.Line {
	raw, found, err := p.blobs.Get(ctx, p.key)
	if err != nil {
		p.log.Error("load cart failed", zap.String("key", p.key), zap.Error(err))
		return []cart.Line{}
	}
	if !found {
		return []cart.Line{}
	}

	lines, err := Decode(raw)
	if err != nil {
		p.log.Warn("discarding corrupted cart", zap.String("key", p.key), zap.Error(err))
		if derr := p.blobs.Delete(ctx, p.key); derr != nil {
			p.log.Error("delete corrupted cart failed", zap.String("key", p.key), zap.Error(derr))
		}
		return []cart.Line{}
	}
	return lines
}

// Save replaces the stored cart with lines.
func (p *Persistent) Save(ctx context.Context, lines []cart.Line) error {
	raw, err := Encode(lines)
	if err != nil {
		return err
	}
	if err := p.blobs.Set(ctx, p.key, raw); err != nil {
		return fmt.Errorf("save cart %q: %w", p.key, err)
	}
	return nil
}

func Encode(lines []cart.Line) ([]byte, error) {
	if lines == nil {
		lines = []cart.Line{}
	}
	return json.Marshal(lines)
}

// Decode parses a stored cart and checks it has the expected shape: a JSON
// array of lines, each with an id and a positive quantity, no id twice.
func Decode(raw []byte) ([]cart.Line, error) {
	var lines []cart.Line
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if lines == nil {
		return nil, fmt.Errorf("%w: not an array", ErrCorrupt)
	}

	seen := make(map[cart.ProductID]struct{}, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s has quantity %d", ErrCorrupt, l.ID, l.Quantity)
		}
		if _, dup := seen[l.ID]; dup {
			return nil, fmt.Errorf("%w: product %s listed twice", ErrCorrupt, l.ID)
		}
		seen[l.ID] = struct{}{}
	}
	return lines, nil
}
