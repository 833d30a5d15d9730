// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vault holds encrypted deposits per user. Withdrawals are bounded by
// the user's balance and by an encrypted limit set by the vault owner; a
// withdrawal over either bound moves nothing.
package vault

import (
	"fmt"
	"math"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/branchless"
	"github.com/luxfi/confidential/host"
	"github.com/luxfi/confidential/lasterror"
	"github.com/luxfi/confidential/ledger"
	"github.com/luxfi/confidential/ops"
)

type Vault struct {
	log      log.Logger
	balances *ledger.Store[common.Address, confidential.Uint64]
	statuses *lasterror.Channel

	lock        sync.RWMutex
	owner       common.Address
	limit       confidential.EUint64
	deposits    uint64
	withdrawals uint64
}

func New(log log.Logger, owner common.Address) *Vault {
	return &Vault{
		log:      log,
		balances: ledger.NewStore[common.Address, confidential.Uint64](),
		statuses: lasterror.NewChannel(log),
		owner:    owner,
	}
}

func (v *Vault) Owner() common.Address {
	v.lock.RLock()
	defer v.lock.RUnlock()
	return v.owner
}

// DepositCount returns the public number of deposits
func (v *Vault) DepositCount() uint64 {
	v.lock.RLock()
	defer v.lock.RUnlock()
	return v.deposits
}

// WithdrawalCount returns the public number of withdrawals
func (v *Vault) WithdrawalCount() uint64 {
	v.lock.RLock()
	defer v.lock.RUnlock()
	return v.withdrawals
}

// Deposit adds amount to the caller's balance and returns the deposit index
func (v *Vault) Deposit(c *host.Call, amount confidential.EUint64) (uint64, error) {
	if err := ops.CheckSender(c, amount.Handle()); err != nil {
		return 0, err
	}
	user := c.Caller()
	balance, err := v.balances.Load(c, user, user)
	if err != nil {
		return 0, err
	}
	updated, err := branchless.Credit(c, balance, amount)
	if err != nil {
		return 0, err
	}
	if err := v.balances.Put(c, user, updated, user); err != nil {
		return 0, err
	}
	index, err := v.count(c, &v.deposits)
	if err != nil {
		return 0, err
	}
	v.log.Debug("deposited",
		log.Stringer("user", user),
		log.Uint64("index", index),
	)
	return index, nil
}

// Withdraw moves amount out of the caller's balance when it is covered by
// both the balance and the withdrawal limit. It returns the effective
// amount and the withdrawal index.
func (v *Vault) Withdraw(c *host.Call, amount confidential.EUint64) (confidential.EUint64, uint64, error) {
	if err := ops.CheckSender(c, amount.Handle()); err != nil {
		return confidential.EUint64{}, 0, err
	}
	user := c.Caller()
	balance, err := v.balances.Load(c, user, user)
	if err != nil {
		return confidential.EUint64{}, 0, err
	}
	limit, err := v.loadLimit(c)
	if err != nil {
		return confidential.EUint64{}, 0, err
	}

	sufficient, err := ops.Ge(c, balance, amount)
	if err != nil {
		return confidential.EUint64{}, 0, err
	}
	withinLimit, err := ops.Le(c, amount, limit)
	if err != nil {
		return confidential.EUint64{}, 0, err
	}
	g := branchless.New(c).
		Require(sufficient, lasterror.InsufficientBalance).
		Require(withinLimit, lasterror.LimitExceeded)

	updated, effective, err := branchless.Debit(g, balance, amount)
	if err != nil {
		return confidential.EUint64{}, 0, err
	}
	if err := v.balances.Put(c, user, updated, user); err != nil {
		return confidential.EUint64{}, 0, err
	}
	if err := c.ACL().Allow(c.Contract(), effective.Handle(), user); err != nil {
		return confidential.EUint64{}, 0, err
	}
	status, err := g.Status()
	if err != nil {
		return confidential.EUint64{}, 0, err
	}
	if err := v.statuses.Set(c, user, status); err != nil {
		return confidential.EUint64{}, 0, err
	}
	index, err := v.count(c, &v.withdrawals)
	if err != nil {
		return confidential.EUint64{}, 0, err
	}
	return effective, index, nil
}

// Balance returns the caller's balance
func (v *Vault) Balance(c *host.Call) (confidential.EUint64, error) {
	balance, ok := v.balances.Get(c.Caller())
	if !ok {
		return confidential.EUint64{}, nil
	}
	if !c.ACL().IsAllowed(balance.Handle(), c.Caller()) {
		return confidential.EUint64{}, fmt.Errorf("%w: balance of %s", confidential.ErrNotAuthorized, c.Caller())
	}
	return balance, nil
}

// LastError returns the encrypted outcome of the caller's last withdrawal
func (v *Vault) LastError(c *host.Call) (confidential.EUint8, error) {
	return v.statuses.Get(c, c.Caller())
}

// SetWithdrawalLimit replaces the encrypted per-withdrawal limit
func (v *Vault) SetWithdrawalLimit(c *host.Call, limit confidential.EUint64) error {
	if err := v.onlyOwner(c); err != nil {
		return err
	}
	if err := ops.CheckSender(c, limit.Handle()); err != nil {
		return err
	}
	if err := v.setLimit(c, limit); err != nil {
		return err
	}
	v.log.Info("withdrawal limit set", log.Stringer("limit", limit.Handle()))
	return nil
}

// WithdrawalLimit returns the encrypted limit. Only the owner may read it.
func (v *Vault) WithdrawalLimit(c *host.Call) (confidential.EUint64, error) {
	if err := v.onlyOwner(c); err != nil {
		return confidential.EUint64{}, err
	}
	return v.loadLimit(c)
}

// TransferOwnership hands the vault to newOwner, who is granted the
// current withdrawal limit
func (v *Vault) TransferOwnership(c *host.Call, newOwner common.Address) error {
	if err := v.onlyOwner(c); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return fmt.Errorf("%w: zero owner", confidential.ErrInvalidInput)
	}
	limit, err := v.loadLimit(c)
	if err != nil {
		return err
	}
	if err := c.ACL().Allow(c.Contract(), limit.Handle(), newOwner); err != nil {
		return err
	}

	v.lock.Lock()
	prev := v.owner
	v.owner = newOwner
	v.lock.Unlock()

	c.Journal().Append(func() {
		v.lock.Lock()
		defer v.lock.Unlock()
		v.owner = prev
	})
	v.log.Info("transferred vault ownership",
		log.Stringer("from", prev),
		log.Stringer("to", newOwner),
	)
	return nil
}

// loadLimit returns the limit, seeding it with the maximum euint64
func (v *Vault) loadLimit(c *host.Call) (confidential.EUint64, error) {
	v.lock.RLock()
	limit := v.limit
	v.lock.RUnlock()
	if !limit.IsNull() {
		return limit, nil
	}

	limit, err := ops.EncryptUint64(c, math.MaxUint64)
	if err != nil {
		return confidential.EUint64{}, err
	}
	return limit, v.setLimit(c, limit)
}

func (v *Vault) setLimit(c *host.Call, limit confidential.EUint64) error {
	if limit.IsNull() {
		return fmt.Errorf("%w: withdrawal limit", confidential.ErrUninitializedValue)
	}
	acl := c.ACL()
	if err := acl.Allow(c.Contract(), limit.Handle(), c.Contract()); err != nil {
		return err
	}
	if err := acl.Allow(c.Contract(), limit.Handle(), v.Owner()); err != nil {
		return err
	}

	v.lock.Lock()
	prev := v.limit
	v.limit = limit
	v.lock.Unlock()

	c.Journal().Append(func() {
		v.lock.Lock()
		defer v.lock.Unlock()
		v.limit = prev
	})
	return nil
}

// count increments a public counter and returns its new value
func (v *Vault) count(c *host.Call, counter *uint64) (uint64, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	next, err := confidential.AddUint64(*counter, 1)
	if err != nil {
		return 0, err
	}
	prev := *counter
	*counter = next
	c.Journal().Append(func() {
		v.lock.Lock()
		defer v.lock.Unlock()
		*counter = prev
	})
	return next, nil
}

func (v *Vault) onlyOwner(c *host.Call) error {
	if owner := v.Owner(); c.Caller() != owner {
		return fmt.Errorf("%w: %s", confidential.ErrNotOwner, c.Caller())
	}
	return nil
}
