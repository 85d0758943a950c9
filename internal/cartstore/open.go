package cartstore

import (
	"context"
	"fmt"
)

const (
	DriverMemory    = "memory"
	DriverSQLite    = "sqlite"
	DriverRedis     = "redis"
	DriverPostgres  = "postgres"
	DriverFirestore = "firestore"
)

type Options struct {
	Driver string
	// DSN is the sqlite file path, redis address, postgres URL or firestore
	// project id depending on Driver.
	DSN       string
	Namespace string
}

func Open(ctx context.Context, o Options) (Blobs, error) {
	switch o.Driver {
	case DriverMemory, "":
		return NewMemStore(), nil
	case DriverSQLite:
		return OpenSQLite(ctx, o.DSN)
	case DriverRedis:
		s, err := NewRedisStore(o.DSN, o.Namespace)
		if err != nil {
			return nil, err
		}
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return s, nil
	case DriverPostgres:
		return OpenPostgres(ctx, o.DSN)
	case DriverFirestore:
		return OpenFirestore(ctx, o.DSN, o.Namespace)
	default:
		return nil, fmt.Errorf("unknown store driver %q", o.Driver)
	}
}
