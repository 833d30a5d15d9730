// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package acl records which principals may use or decrypt which ciphertext
// handles. Capabilities only ever propagate forward from an existing holder;
// there is no revocation. Access to a value is narrowed by computing a new
// handle and granting it selectively.
package acl

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"

	"github.com/luxfi/confidential"
)

// Scope of a capability grant
type Scope uint8

const (
	// Transient grants are dropped when the enclosing operation ends
	Transient Scope = iota
	// Persistent grants survive across operations
	Persistent
)

func (s Scope) String() string {
	switch s {
	case Transient:
		return "transient"
	case Persistent:
		return "persistent"
	default:
		return fmt.Sprintf("scope(%d)", uint8(s))
	}
}

// Journal receives undo actions for every mutation so that an aborted
// operation can be rolled back.
type Journal interface {
	Append(undo func())
}

// Registry is the capability registry
type Registry struct {
	log     log.Logger
	journal Journal

	lock       sync.RWMutex
	known      set.Set[confidential.Handle]
	public     set.Set[confidential.Handle]
	persistent map[confidential.Handle]set.Set[common.Address]
	transient  map[confidential.Handle]set.Set[common.Address]
	// creators is operation scoped: the contract that produced a handle may
	// hand out the first grants on it.
	creators map[confidential.Handle]common.Address
}

// New returns an empty registry. journal may be nil when rollback is not needed.
func New(log log.Logger, journal Journal) *Registry {
	return &Registry{
		log:        log,
		journal:    journal,
		known:      set.NewSet[confidential.Handle](0),
		public:     set.NewSet[confidential.Handle](0),
		persistent: make(map[confidential.Handle]set.Set[common.Address]),
		transient:  make(map[confidential.Handle]set.Set[common.Address]),
		creators:   make(map[confidential.Handle]common.Address),
	}
}

// Register records a handle freshly produced on behalf of creator. The
// handle starts with no capabilities.
func (r *Registry) Register(h confidential.Handle, creator common.Address) error {
	if h.IsZero() {
		return confidential.ErrUninitializedValue
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if r.known.Contains(h) {
		return fmt.Errorf("%w: handle %s", confidential.ErrAlreadyExists, h)
	}
	r.known.Add(h)
	r.creators[h] = creator
	r.record(func() {
		r.known.Remove(h)
		delete(r.creators, h)
	})
	return nil
}

// Allow grants principal a persistent capability on h
func (r *Registry) Allow(granter common.Address, h confidential.Handle, principal common.Address) error {
	return r.grant(granter, h, principal, Persistent)
}

// AllowTransient grants principal a capability on h for the current operation
func (r *Registry) AllowTransient(granter common.Address, h confidential.Handle, principal common.Address) error {
	return r.grant(granter, h, principal, Transient)
}

func (r *Registry) grant(granter common.Address, h confidential.Handle, principal common.Address, scope Scope) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.checkGranter(granter, h); err != nil {
		return err
	}

	grants := r.persistent
	if scope == Transient {
		grants = r.transient
	}
	holders, ok := grants[h]
	if !ok {
		holders = set.NewSet[common.Address](1)
	}
	if holders.Contains(principal) {
		return nil
	}
	holders.Add(principal)
	grants[h] = holders
	r.record(func() {
		holders := grants[h]
		holders.Remove(principal)
		if holders.Len() == 0 {
			delete(grants, h)
			return
		}
		grants[h] = holders
	})
	return nil
}

// MakePubliclyDecryptable marks h as decryptable by anyone. It cannot be undone
// by a later operation.
func (r *Registry) MakePubliclyDecryptable(granter common.Address, h confidential.Handle) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.checkGranter(granter, h); err != nil {
		return err
	}
	if r.public.Contains(h) {
		return nil
	}
	r.public.Add(h)
	r.record(func() {
		r.public.Remove(h)
	})
	return nil
}

// must be called with the lock held
func (r *Registry) checkGranter(granter common.Address, h confidential.Handle) error {
	if !r.isInitialized(h) {
		return fmt.Errorf("%w: handle %s", confidential.ErrUninitializedValue, h)
	}
	if !r.canUse(h, granter) {
		r.log.Debug("denying grant from non-holder",
			log.Stringer("handle", h),
			log.Stringer("granter", granter),
		)
		return fmt.Errorf("%w: %s holds no capability on %s", confidential.ErrNotAuthorized, granter, h)
	}
	return nil
}

// IsAllowed reports whether principal holds a persistent or transient grant
// on h. Missing grants are not an error so read paths can fail closed.
func (r *Registry) IsAllowed(h confidential.Handle, principal common.Address) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.isAllowed(h, principal)
}

func (r *Registry) isAllowed(h confidential.Handle, principal common.Address) bool {
	if p, ok := r.persistent[h]; ok && p.Contains(principal) {
		return true
	}
	t, ok := r.transient[h]
	return ok && t.Contains(principal)
}

// CanUse reports whether principal may compute on h: it either holds a grant
// or created h during the current operation.
func (r *Registry) CanUse(h confidential.Handle, principal common.Address) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.canUse(h, principal)
}

func (r *Registry) canUse(h confidential.Handle, principal common.Address) bool {
	if r.isAllowed(h, principal) {
		return true
	}
	creator, ok := r.creators[h]
	return ok && creator == principal
}

// IsInitialized reports whether h is a handle the registry has seen produced
func (r *Registry) IsInitialized(h confidential.Handle) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.isInitialized(h)
}

func (r *Registry) isInitialized(h confidential.Handle) bool {
	return !h.IsZero() && r.known.Contains(h)
}

// IsPubliclyDecryptable reports whether h was publicly disclosed
func (r *Registry) IsPubliclyDecryptable(h confidential.Handle) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.public.Contains(h)
}

// Grants returns the principals holding a grant of the given scope on h,
// sorted by address.
func (r *Registry) Grants(h confidential.Handle, scope Scope) []common.Address {
	r.lock.RLock()
	defer r.lock.RUnlock()

	grants := r.persistent
	if scope == Transient {
		grants = r.transient
	}
	holders := grants[h].List()
	sort.Slice(holders, func(i, j int) bool {
		return bytes.Compare(holders[i][:], holders[j][:]) < 0
	})
	return holders
}

// EndOperation drops all transient grants and creator marks. The host calls
// it once per operation, after commit or rollback.
func (r *Registry) EndOperation() {
	r.lock.Lock()
	defer r.lock.Unlock()

	clear(r.transient)
	clear(r.creators)
}

// record journals undo, which runs later under the lock
func (r *Registry) record(undo func()) {
	if r.journal == nil {
		return
	}
	r.journal.Append(func() {
		r.lock.Lock()
		defer r.lock.Unlock()
		undo()
	})
}
