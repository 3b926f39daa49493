package cache

import (
	"context"
	"time"
)

// Distributed is the cross-process cache layer (Redis). Facet embeddings are
// keyed by content hash here so identical facet text is embedded once across
// all processes.
type Distributed interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
