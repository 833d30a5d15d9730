// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cache holds fetch-through caches for immutable data.
package cache

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

var errInvalidSize = errors.New("cache size must be positive")

// LRUCache is a size-bounded fetch-through cache. Values never expire, so
// it must only hold data that cannot change for a given key, such as the
// plaintext behind an immutable ciphertext handle.
type LRUCache[K comparable, V any] struct {
	cache   *lru.Cache[K, V]
	sfGroup singleflight.Group
}

func NewLRUCache[K comparable, V any](size int) (*LRUCache[K, V], error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", errInvalidSize, size)
	}
	c, err := lru.New[K, V](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache[K, V]{cache: c}, nil
}

// Get returns the cached value for key, otherwise fetches it with fetchFunc.
// Concurrent fetches of the same key are deduplicated. If [invalidate] is
// true the value is dropped before fetching. Failed fetches are not cached.
func (c *LRUCache[K, V]) Get(key K, fetchFunc func(K) (V, error), invalidate bool) (V, error) {
	if invalidate {
		c.cache.Remove(key)
	} else if value, found := c.cache.Get(key); found {
		return value, nil
	}

	v, err, _ := c.sfGroup.Do(keyToString(key), func() (interface{}, error) {
		newValue, fetchErr := fetchFunc(key)
		if fetchErr != nil {
			return *new(V), fetchErr
		}
		c.cache.Add(key, newValue)
		return newValue, nil
	})
	if err != nil {
		return *new(V), err
	}
	return v.(V), nil
}

// Len returns the number of cached values
func (c *LRUCache[K, V]) Len() int {
	return c.cache.Len()
}

// keyToString is defined to allow for both fmt.Stringer and primitive string types.
func keyToString[K comparable](key K) string {
	if s, ok := any(key).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", key)
}
