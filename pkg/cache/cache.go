package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Service defines cache operations interface. Values are stored as JSON bytes
// so backends stay interchangeable; TTLs are owned by callers.
type Service interface {
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
}

// GetTyped retrieves a key and unmarshals its JSON value into T.
func GetTyped[T any](ctx context.Context, c Service, key string) (T, error) {
	var obj T
	raw, err := c.Get(ctx, key)
	if err != nil {
		return obj, err
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return obj, err
	}
	return obj, nil
}

// SetTyped marshals value to JSON and stores it under key.
func SetTyped[T any](ctx context.Context, c Service, key string, value T, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, raw, expiration)
}
