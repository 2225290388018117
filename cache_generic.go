// cache_generic.go: type-safe generic cache API
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// GenericCache provides a type-safe cache interface using Go generics.
// K must be comparable (can be used as map key).
// V can be any type.
//
// Example:
//
//	cache, err := xanthos.NewGenericCache[string, User](xanthos.Config{
//	    MaxSize:    10_000,
//	    DefaultTTL: time.Hour,
//	})
//	cache.Set("user:123", user)
//	if value, found := cache.Get("user:123"); found {
//	    fmt.Printf("User: %+v\n", value)
//	}
type GenericCache[K comparable, V any] struct {
	inner Cache
}

// NewGenericCache creates a new type-safe generic cache over New.
func NewGenericCache[K comparable, V any](cfg Config) (*GenericCache[K, V], error) {
	inner, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &GenericCache[K, V]{inner: inner}, nil
}

// Unwrap exposes the untyped cache for operations the typed facade does
// not cover (Start, Stop, ScanAndDelete).
func (c *GenericCache[K, V]) Unwrap() Cache {
	return c.inner
}

// Set stores a key-value pair with the cache's default TTL.
func (c *GenericCache[K, V]) Set(key K, value V) error {
	return c.inner.Set(keyToString(key), value)
}

// SetWithTTL stores a key-value pair with an explicit requested TTL.
func (c *GenericCache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) error {
	return c.inner.SetWithTTL(keyToString(key), value, ttl)
}

// Get retrieves a value from the cache.
// Returns the zero value of V when the key is absent or the stored value
// has a different dynamic type.
func (c *GenericCache[K, V]) Get(key K) (value V, found bool) {
	val, found := c.inner.Get(keyToString(key))
	if !found {
		var zero V
		return zero, false
	}

	typedValue, ok := val.(V)
	if !ok {
		var zero V
		return zero, false
	}
	return typedValue, true
}

// GetWithRefresh retrieves a value, fetching through fn on a miss and
// revalidating in the background near expiry.
func (c *GenericCache[K, V]) GetWithRefresh(ctx context.Context, key K, fn func(ctx context.Context) (V, error)) (V, error) {
	var fetch FetchFunc
	if fn != nil {
		fetch = func(fctx context.Context) (interface{}, error) {
			return fn(fctx)
		}
	}

	val, err := c.inner.GetWithRefresh(ctx, keyToString(key), fetch)
	if err != nil {
		var zero V
		return zero, err
	}
	typedValue, ok := val.(V)
	if !ok {
		var zero V
		return zero, fmt.Errorf("cached value for key %v has unexpected type %T", key, val)
	}
	return typedValue, nil
}

// Delete removes a key from the cache, reporting whether it was present.
func (c *GenericCache[K, V]) Delete(key K) bool {
	return c.inner.Delete(keyToString(key)) > 0
}

// Has checks if a key exists without retrieving it.
func (c *GenericCache[K, V]) Has(key K) bool {
	return c.inner.Has(keyToString(key))
}

// Len returns the current number of entries.
func (c *GenericCache[K, V]) Len() int {
	return c.inner.Len()
}

// Clear removes all entries from the cache.
func (c *GenericCache[K, V]) Clear() {
	c.inner.Clear()
}

// Stats returns current cache statistics.
func (c *GenericCache[K, V]) Stats() CacheStats {
	return c.inner.Stats()
}

// keyToString converts a key of any comparable type to string efficiently.
// Uses type switch to avoid allocations for common types (string, int, uint).
// Falls back to fmt.Sprintf for other types.
func keyToString[K comparable](key K) string {
	switch v := any(key).(type) {
	case string:
		// Zero allocation for string keys
		return v
	case int:
		return strconv.Itoa(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	default:
		// Fallback for uncommon key types (structs, arrays); allocates.
		return fmt.Sprintf("%v", key)
	}
}
