// Package cache provides the cache service consumed by the risk engine and
// the cache-warm job. Values are stored with explicit TTLs.
package cache

import (
	"context"
	"time"
)

// Service is the narrow cache contract consumed by other modules.
type Service interface {
	// Get unmarshals the cached value for key into dest.
	// Returns false with no error on a miss.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
