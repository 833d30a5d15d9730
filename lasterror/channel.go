// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package lasterror keeps one encrypted status code per principal. Guarded
// operations report business outcomes here instead of reverting, so the
// outcome is only visible to the principal that decrypts its own status.
package lasterror

import (
	"fmt"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/host"
)

// Channel is the per-principal status store of one contract
type Channel struct {
	log log.Logger

	lock     sync.RWMutex
	statuses map[common.Address]confidential.EUint8
}

func NewChannel(log log.Logger) *Channel {
	return &Channel{
		log:      log,
		statuses: make(map[common.Address]confidential.EUint8),
	}
}

// Set overwrites the status of principal. The contract and principal are
// granted persistent access to the new status.
func (ch *Channel) Set(c *host.Call, principal common.Address, status confidential.EUint8) error {
	if status.IsNull() {
		return fmt.Errorf("%w: status for %s", confidential.ErrUninitializedValue, principal)
	}
	acl := c.ACL()
	h := status.Handle()
	if err := acl.Allow(c.Contract(), h, c.Contract()); err != nil {
		return err
	}
	if err := acl.Allow(c.Contract(), h, principal); err != nil {
		return err
	}

	ch.lock.Lock()
	defer ch.lock.Unlock()

	prev, existed := ch.statuses[principal]
	ch.statuses[principal] = status
	c.Journal().Append(func() {
		ch.lock.Lock()
		defer ch.lock.Unlock()
		if existed {
			ch.statuses[principal] = prev
		} else {
			delete(ch.statuses, principal)
		}
	})
	return nil
}

// Get returns the status of principal. Only a caller holding a grant on the
// status handle may read it, which the channel only issues to principal.
// A principal that was never written returns the null value.
func (ch *Channel) Get(c *host.Call, principal common.Address) (confidential.EUint8, error) {
	ch.lock.RLock()
	status, ok := ch.statuses[principal]
	ch.lock.RUnlock()

	if !ok {
		if c.Caller() != principal {
			return confidential.EUint8{}, fmt.Errorf("%w: %s may not read the status of %s", confidential.ErrNotAuthorized, c.Caller(), principal)
		}
		return confidential.EUint8{}, nil
	}
	if !c.ACL().IsAllowed(status.Handle(), c.Caller()) {
		ch.log.Debug("denying status read",
			log.Stringer("caller", c.Caller()),
			log.Stringer("principal", principal),
		)
		return confidential.EUint8{}, fmt.Errorf("%w: %s may not read the status of %s", confidential.ErrNotAuthorized, c.Caller(), principal)
	}
	return status, nil
}

// Has reports whether a status was ever written for principal
func (ch *Channel) Has(principal common.Address) bool {
	ch.lock.RLock()
	defer ch.lock.RUnlock()

	_, ok := ch.statuses[principal]
	return ok
}
