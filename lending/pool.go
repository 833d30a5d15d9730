// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package lending runs an over-collateralized lending pool over encrypted
// positions. A user's debt may never exceed half of their collateral: a
// borrow or withdrawal that would break that bound moves nothing and
// records an encrypted status instead of reverting.
package lending

import (
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/branchless"
	"github.com/luxfi/confidential/host"
	"github.com/luxfi/confidential/lasterror"
	"github.com/luxfi/confidential/ledger"
	"github.com/luxfi/confidential/ops"
)

const (
	// CollateralRatio is how many units of collateral back one unit of debt
	CollateralRatio = 2
	// InterestDivisor sets the accrual rate: each accrual adds debt/10
	InterestDivisor = 10
)

type Pool struct {
	log        log.Logger
	owner      common.Address
	collateral *ledger.Store[common.Address, confidential.Uint64]
	debt       *ledger.Store[common.Address, confidential.Uint64]
	statuses   *lasterror.Channel
}

func New(log log.Logger, owner common.Address) *Pool {
	return &Pool{
		log:        log,
		owner:      owner,
		collateral: ledger.NewStore[common.Address, confidential.Uint64](),
		debt:       ledger.NewStore[common.Address, confidential.Uint64](),
		statuses:   lasterror.NewChannel(log),
	}
}

func (p *Pool) Owner() common.Address {
	return p.owner
}

// HasPosition reports whether who ever deposited collateral
func (p *Pool) HasPosition(who common.Address) bool {
	_, ok := p.collateral.Get(who)
	return ok
}

// Deposit adds amount to the caller's collateral
func (p *Pool) Deposit(c *host.Call, amount confidential.EUint64) error {
	if err := ops.CheckSender(c, amount.Handle()); err != nil {
		return err
	}
	user := c.Caller()
	collateral, err := p.collateral.Load(c, user, user)
	if err != nil {
		return err
	}
	updated, err := branchless.Credit(c, collateral, amount)
	if err != nil {
		return err
	}
	if err := p.collateral.Put(c, user, updated, user); err != nil {
		return err
	}
	p.log.Debug("deposited collateral", log.Stringer("user", user))
	return nil
}

// Borrow adds amount to the caller's debt if the new debt stays within
// collateral / CollateralRatio. It returns the effective amount borrowed.
func (p *Pool) Borrow(c *host.Call, amount confidential.EUint64) (confidential.EUint64, error) {
	if err := ops.CheckSender(c, amount.Handle()); err != nil {
		return confidential.EUint64{}, err
	}
	user := c.Caller()
	collateral, debt, err := p.position(c, user)
	if err != nil {
		return confidential.EUint64{}, err
	}

	requested, err := ops.Add(c, debt, amount)
	if err != nil {
		return confidential.EUint64{}, err
	}
	// a wrapped sum is smaller than the debt it started from
	fits, err := ops.Ge(c, requested, debt)
	if err != nil {
		return confidential.EUint64{}, err
	}
	capacity, err := ops.DivScalar(c, collateral, ops.U(CollateralRatio))
	if err != nil {
		return confidential.EUint64{}, err
	}
	covered, err := ops.Le(c, requested, capacity)
	if err != nil {
		return confidential.EUint64{}, err
	}
	g := branchless.New(c).
		Require(fits, lasterror.AmountTooLarge).
		Require(covered, lasterror.InsufficientCollateral)

	effective, err := branchless.Gate(g, amount)
	if err != nil {
		return confidential.EUint64{}, err
	}
	updated, err := branchless.Credit(c, debt, effective)
	if err != nil {
		return confidential.EUint64{}, err
	}
	if err := p.debt.Put(c, user, updated, user); err != nil {
		return confidential.EUint64{}, err
	}
	return effective, p.settle(c, g, user, effective)
}

// Repay lowers the caller's debt by amount, capped at the debt itself. It
// returns the effective amount repaid.
func (p *Pool) Repay(c *host.Call, amount confidential.EUint64) (confidential.EUint64, error) {
	if err := ops.CheckSender(c, amount.Handle()); err != nil {
		return confidential.EUint64{}, err
	}
	user := c.Caller()
	debt, err := p.debt.Load(c, user, user)
	if err != nil {
		return confidential.EUint64{}, err
	}
	repaid, err := ops.Min(c, amount, debt)
	if err != nil {
		return confidential.EUint64{}, err
	}
	updated, err := ops.Sub(c, debt, repaid)
	if err != nil {
		return confidential.EUint64{}, err
	}
	if err := p.debt.Put(c, user, updated, user); err != nil {
		return confidential.EUint64{}, err
	}
	if err := c.ACL().Allow(c.Contract(), repaid.Handle(), user); err != nil {
		return confidential.EUint64{}, err
	}
	return repaid, nil
}

// Withdraw moves amount out of the caller's collateral when it is covered
// by the collateral and the remainder still backs the debt. It returns the
// effective amount withdrawn.
func (p *Pool) Withdraw(c *host.Call, amount confidential.EUint64) (confidential.EUint64, error) {
	if err := ops.CheckSender(c, amount.Handle()); err != nil {
		return confidential.EUint64{}, err
	}
	user := c.Caller()
	collateral, debt, err := p.position(c, user)
	if err != nil {
		return confidential.EUint64{}, err
	}

	sufficient, err := ops.Ge(c, collateral, amount)
	if err != nil {
		return confidential.EUint64{}, err
	}
	remaining, err := ops.Sub(c, collateral, amount)
	if err != nil {
		return confidential.EUint64{}, err
	}
	capacity, err := ops.DivScalar(c, remaining, ops.U(CollateralRatio))
	if err != nil {
		return confidential.EUint64{}, err
	}
	backed, err := ops.Le(c, debt, capacity)
	if err != nil {
		return confidential.EUint64{}, err
	}
	g := branchless.New(c).
		Require(sufficient, lasterror.InsufficientBalance).
		Require(backed, lasterror.InsufficientCollateral)

	updated, effective, err := branchless.Debit(g, collateral, amount)
	if err != nil {
		return confidential.EUint64{}, err
	}
	if err := p.collateral.Put(c, user, updated, user); err != nil {
		return confidential.EUint64{}, err
	}
	return effective, p.settle(c, g, user, effective)
}

// AccrueInterest adds debt / InterestDivisor to the debt of user. An accrual
// that would wrap leaves the debt unchanged.
func (p *Pool) AccrueInterest(c *host.Call, user common.Address) error {
	if c.Caller() != p.owner {
		return fmt.Errorf("%w: %s", confidential.ErrNotOwner, c.Caller())
	}
	debt, err := p.debt.Load(c, user, user)
	if err != nil {
		return err
	}
	interest, err := ops.DivScalar(c, debt, ops.U(InterestDivisor))
	if err != nil {
		return err
	}
	accrued, err := ops.Add(c, debt, interest)
	if err != nil {
		return err
	}
	grew, err := ops.Ge(c, accrued, debt)
	if err != nil {
		return err
	}
	updated, err := ops.Select(c, grew, accrued, debt)
	if err != nil {
		return err
	}
	if err := p.debt.Put(c, user, updated, user); err != nil {
		return err
	}
	p.log.Info("accrued interest", log.Stringer("user", user))
	return nil
}

// Collateral returns the caller's collateral
func (p *Pool) Collateral(c *host.Call) (confidential.EUint64, error) {
	return p.read(c, p.collateral, "collateral")
}

// Debt returns the caller's debt
func (p *Pool) Debt(c *host.Call) (confidential.EUint64, error) {
	return p.read(c, p.debt, "debt")
}

// LastError returns the encrypted outcome of the caller's last borrow or
// withdrawal
func (p *Pool) LastError(c *host.Call) (confidential.EUint8, error) {
	return p.statuses.Get(c, c.Caller())
}

func (p *Pool) position(c *host.Call, user common.Address) (confidential.EUint64, confidential.EUint64, error) {
	collateral, err := p.collateral.Load(c, user, user)
	if err != nil {
		return confidential.EUint64{}, confidential.EUint64{}, err
	}
	debt, err := p.debt.Load(c, user, user)
	if err != nil {
		return confidential.EUint64{}, confidential.EUint64{}, err
	}
	return collateral, debt, nil
}

// settle grants the effective amount to user and records the guard status
func (p *Pool) settle(c *host.Call, g *branchless.Guard, user common.Address, effective confidential.EUint64) error {
	if err := c.ACL().Allow(c.Contract(), effective.Handle(), user); err != nil {
		return err
	}
	status, err := g.Status()
	if err != nil {
		return err
	}
	return p.statuses.Set(c, user, status)
}

func (p *Pool) read(c *host.Call, store *ledger.Store[common.Address, confidential.Uint64], what string) (confidential.EUint64, error) {
	v, ok := store.Get(c.Caller())
	if !ok {
		return confidential.EUint64{}, nil
	}
	if !c.ACL().IsAllowed(v.Handle(), c.Caller()) {
		return confidential.EUint64{}, fmt.Errorf("%w: %s of %s", confidential.ErrNotAuthorized, what, c.Caller())
	}
	return v, nil
}
