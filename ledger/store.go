// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"fmt"
	"sync"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/host"
	"github.com/luxfi/confidential/ops"
)

// Store maps keys to encrypted values owned by one contract. Entries are
// created lazily as an encrypted zero and are never deleted.
type Store[K comparable, T confidential.Integer] struct {
	lock   sync.RWMutex
	values map[K]confidential.Value[T]
}

func NewStore[K comparable, T confidential.Integer]() *Store[K, T] {
	return &Store[K, T]{
		values: make(map[K]confidential.Value[T]),
	}
}

// Get returns the stored value without seeding or checking grants
func (s *Store[K, T]) Get(key K) (confidential.Value[T], bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	v, ok := s.values[key]
	return v, ok
}

// Len returns the number of entries ever written
func (s *Store[K, T]) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.values)
}

// Load returns the value at key. A missing entry is first seeded with an
// encrypted zero readable by readers, so arithmetic never sees a null value.
func (s *Store[K, T]) Load(c *host.Call, key K, readers ...common.Address) (confidential.Value[T], error) {
	if v, ok := s.Get(key); ok {
		return v, nil
	}
	zero, err := ops.Encrypt[T](c, ops.U(0))
	if err != nil {
		return confidential.Value[T]{}, fmt.Errorf("failed to seed entry: %w", err)
	}
	if err := s.Put(c, key, zero, readers...); err != nil {
		return confidential.Value[T]{}, err
	}
	return zero, nil
}

// Put writes v at key. The contract gets a persistent grant on v so it can
// keep computing on it in later operations, and so does every reader.
func (s *Store[K, T]) Put(c *host.Call, key K, v confidential.Value[T], readers ...common.Address) error {
	if v.IsNull() {
		return fmt.Errorf("%w: cannot store the null value", confidential.ErrUninitializedValue)
	}
	acl := c.ACL()
	h := v.Handle()
	if err := acl.Allow(c.Contract(), h, c.Contract()); err != nil {
		return err
	}
	for _, reader := range readers {
		if err := acl.Allow(c.Contract(), h, reader); err != nil {
			return err
		}
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	prev, existed := s.values[key]
	s.values[key] = v
	c.Journal().Append(func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		if existed {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
	})
	return nil
}
