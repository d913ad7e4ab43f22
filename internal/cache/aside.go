package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"libris/internal/middleware"
	"libris/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Aside loads key into dest, calling fetch to populate dest on a miss and
// storing the result for ttl. Redis failures degrade to calling fetch.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	family := keyFamily(key)
	if client == nil {
		return fetch()
	}

	raw, err := client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
			observability.CacheLookups.WithLabelValues(family, "hit").Inc()
			return nil
		}
		middleware.Logger.WarnContext(ctx, "dropping undecodable cache entry", "key", key)
		client.Del(ctx, key)
	case errors.Is(err, redis.Nil):
	default:
		observability.CacheLookups.WithLabelValues(family, "error").Inc()
		return fetch()
	}

	observability.CacheLookups.WithLabelValues(family, "miss").Inc()
	if err := fetch(); err != nil {
		return err
	}

	payload, err := json.Marshal(dest)
	if err != nil {
		return nil
	}
	if err := client.Set(ctx, key, payload, ttl).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
	return nil
}

func keyFamily(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
