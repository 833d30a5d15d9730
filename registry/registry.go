// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry stores encrypted values under public keys, one namespace
// per owner. Owners may share a value with other principals; a share cannot
// be withdrawn, but overwriting the key stores a fresh handle the sharee
// cannot read.
package registry

import (
	"fmt"
	"slices"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/host"
	"github.com/luxfi/confidential/ops"
)

type namespace struct {
	keys   []string
	values map[string]confidential.EUint64
}

type Registry struct {
	log log.Logger

	lock       sync.RWMutex
	namespaces map[common.Address]*namespace
}

func New(log log.Logger) *Registry {
	return &Registry{
		log:        log,
		namespaces: make(map[common.Address]*namespace),
	}
}

// Set stores value under key in the caller's namespace, replacing any
// previous value.
func (r *Registry) Set(c *host.Call, key string, value confidential.EUint64) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", confidential.ErrInvalidInput)
	}
	if err := ops.CheckSender(c, value.Handle()); err != nil {
		return err
	}
	owner := c.Caller()
	acl := c.ACL()
	if err := acl.Allow(c.Contract(), value.Handle(), c.Contract()); err != nil {
		return err
	}
	if err := acl.Allow(c.Contract(), value.Handle(), owner); err != nil {
		return err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	ns, found := r.namespaces[owner]
	if !found {
		ns = &namespace{values: make(map[string]confidential.EUint64)}
		r.namespaces[owner] = ns
	}
	prev, existed := ns.values[key]
	ns.values[key] = value
	if !existed {
		ns.keys = append(ns.keys, key)
	}
	c.Journal().Append(func() {
		r.lock.Lock()
		defer r.lock.Unlock()
		if existed {
			ns.values[key] = prev
			return
		}
		delete(ns.values, key)
		ns.keys = ns.keys[:len(ns.keys)-1]
		if !found {
			delete(r.namespaces, owner)
		}
	})
	return nil
}

// Get returns the value of key in the caller's namespace
func (r *Registry) Get(c *host.Call, key string) (confidential.EUint64, error) {
	return r.GetShared(c, c.Caller(), key)
}

// GetShared returns the value of key in owner's namespace. The caller must
// hold a grant on it.
func (r *Registry) GetShared(c *host.Call, owner common.Address, key string) (confidential.EUint64, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	v, err := r.lookup(owner, key)
	if err != nil {
		return confidential.EUint64{}, err
	}
	if !c.ACL().IsAllowed(v.Handle(), c.Caller()) {
		return confidential.EUint64{}, fmt.Errorf("%w: %s may not read %q of %s", confidential.ErrNotAuthorized, c.Caller(), key, owner)
	}
	return v, nil
}

// Share grants with a persistent capability on the caller's value of key
func (r *Registry) Share(c *host.Call, key string, with common.Address) error {
	if with == (common.Address{}) {
		return fmt.Errorf("%w: zero address", confidential.ErrInvalidInput)
	}
	r.lock.RLock()
	v, err := r.lookup(c.Caller(), key)
	r.lock.RUnlock()
	if err != nil {
		return err
	}
	if err := c.ACL().Allow(c.Contract(), v.Handle(), with); err != nil {
		return err
	}
	r.log.Debug("shared value",
		log.Stringer("owner", c.Caller()),
		log.String("key", key),
		log.Stringer("with", with),
	)
	return nil
}

// Delete removes key from the caller's namespace. Grants already issued on
// its value remain.
func (r *Registry) Delete(c *host.Call, key string) error {
	owner := c.Caller()

	r.lock.Lock()
	defer r.lock.Unlock()

	prev, err := r.lookup(owner, key)
	if err != nil {
		return err
	}
	ns := r.namespaces[owner]
	i := slices.Index(ns.keys, key)
	ns.keys = slices.Delete(ns.keys, i, i+1)
	delete(ns.values, key)
	c.Journal().Append(func() {
		r.lock.Lock()
		defer r.lock.Unlock()
		ns.keys = slices.Insert(ns.keys, i, key)
		ns.values[key] = prev
	})
	return nil
}

// Has reports whether owner stored a value under key
func (r *Registry) Has(owner common.Address, key string) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	_, err := r.lookup(owner, key)
	return err == nil
}

// KeyCount returns the number of keys in owner's namespace
func (r *Registry) KeyCount(owner common.Address) int {
	r.lock.RLock()
	defer r.lock.RUnlock()

	ns, ok := r.namespaces[owner]
	if !ok {
		return 0
	}
	return len(ns.keys)
}

// KeyAt returns the i-th key of owner's namespace in insertion order
func (r *Registry) KeyAt(owner common.Address, i int) (string, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	ns, ok := r.namespaces[owner]
	if !ok || i < 0 || i >= len(ns.keys) {
		return "", fmt.Errorf("%w: key %d of %s", confidential.ErrNotFound, i, owner)
	}
	return ns.keys[i], nil
}

// must be called with the lock held
func (r *Registry) lookup(owner common.Address, key string) (confidential.EUint64, error) {
	ns, ok := r.namespaces[owner]
	if !ok {
		return confidential.EUint64{}, fmt.Errorf("%w: %q of %s", confidential.ErrNotFound, key, owner)
	}
	v, ok := ns.values[key]
	if !ok {
		return confidential.EUint64{}, fmt.Errorf("%w: %q of %s", confidential.ErrNotFound, key, owner)
	}
	return v, nil
}
