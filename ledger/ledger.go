// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger implements encrypted balances and allowances. Guarded
// operations never revert on a business condition: they move either the
// requested amount or nothing, and record the outcome in the caller's
// encrypted status.
package ledger

import (
	"fmt"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/branchless"
	"github.com/luxfi/confidential/host"
	"github.com/luxfi/confidential/lasterror"
	"github.com/luxfi/confidential/ops"
)

// DefaultMaxTransfer is the default public cap on a single transfer
const DefaultMaxTransfer uint64 = 1_000_000

// Allowance keys the amount Spender may move out of Owner's balance
type Allowance struct {
	Owner   common.Address
	Spender common.Address
}

// Option configures a Ledger
type Option func(*Ledger)

// WithMaxTransfer caps the amount of a single transfer or withdrawal. Zero
// disables the cap.
func WithMaxTransfer(max uint64) Option {
	return func(l *Ledger) {
		l.maxTransfer = max
	}
}

// WithRateLimit requires blocks blocks between two transfers from the same
// sender. Zero disables the limit.
func WithRateLimit(blocks uint64) Option {
	return func(l *Ledger) {
		l.rateLimitBlocks = blocks
	}
}

// Ledger is the encrypted balance book of one contract
type Ledger struct {
	log             log.Logger
	maxTransfer     uint64
	rateLimitBlocks uint64

	balances   *Store[common.Address, confidential.Uint64]
	allowances *Store[Allowance, confidential.Uint64]
	statuses   *lasterror.Channel

	lock         sync.Mutex
	lastTransfer map[common.Address]uint64
}

func New(log log.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		log:          log,
		maxTransfer:  DefaultMaxTransfer,
		balances:     NewStore[common.Address, confidential.Uint64](),
		allowances:   NewStore[Allowance, confidential.Uint64](),
		statuses:     lasterror.NewChannel(log),
		lastTransfer: make(map[common.Address]uint64),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MaxTransfer returns the public transfer cap
func (l *Ledger) MaxTransfer() uint64 {
	return l.maxTransfer
}

// Deposit credits amount to the caller, who must hold a grant on it.
// Deposits cannot fail on the ledger's terms.
func (l *Ledger) Deposit(c *host.Call, amount confidential.EUint64) error {
	if err := ops.CheckSender(c, amount.Handle()); err != nil {
		return err
	}
	if err := l.Credit(c, c.Caller(), amount); err != nil {
		return err
	}
	return l.setStatus(c, c.Caller(), lasterror.None)
}

// Credit unconditionally adds amount to the balance of to. amount must
// come from the contract itself, never from the caller.
func (l *Ledger) Credit(c *host.Call, to common.Address, amount confidential.EUint64) error {
	balance, err := l.balances.Load(c, to, to)
	if err != nil {
		return err
	}
	updated, err := branchless.Credit(c, balance, amount)
	if err != nil {
		return fmt.Errorf("failed to credit %s: %w", to, err)
	}
	return l.balances.Put(c, to, updated, to)
}

// Withdraw debits up to amount from the caller: the full amount when the
// balance covers it and it is within the transfer cap, zero otherwise. The
// effective amount is returned readable by the caller.
func (l *Ledger) Withdraw(c *host.Call, amount confidential.EUint64) (confidential.EUint64, error) {
	if err := ops.CheckSender(c, amount.Handle()); err != nil {
		return confidential.EUint64{}, err
	}
	from := c.Caller()
	balance, err := l.balances.Load(c, from, from)
	if err != nil {
		return confidential.EUint64{}, err
	}

	g, err := l.guardDebit(c, balance, amount)
	if err != nil {
		return confidential.EUint64{}, err
	}
	updated, effective, err := branchless.Debit(g, balance, amount)
	if err != nil {
		return confidential.EUint64{}, err
	}
	if err := l.balances.Put(c, from, updated, from); err != nil {
		return confidential.EUint64{}, err
	}
	if err := c.ACL().Allow(c.Contract(), effective.Handle(), c.Contract()); err != nil {
		return confidential.EUint64{}, err
	}
	if err := c.ACL().Allow(c.Contract(), effective.Handle(), from); err != nil {
		return confidential.EUint64{}, err
	}
	return effective, l.writeStatus(c, from, g)
}

// Transfer moves amount from the caller to to. It moves nothing when the
// balance is insufficient, the amount is over the cap, the sender is rate
// limited or to is the caller.
func (l *Ledger) Transfer(c *host.Call, to common.Address, amount confidential.EUint64) error {
	if err := ops.CheckSender(c, amount.Handle()); err != nil {
		return err
	}
	from := c.Caller()
	balance, err := l.balances.Load(c, from, from)
	if err != nil {
		return err
	}

	g, err := l.guardDebit(c, balance, amount)
	if err != nil {
		return err
	}
	if l.rateLimitBlocks > 0 {
		g.RequirePlain(l.checkRate(c, from), lasterror.RateLimited)
	}
	g.RequirePlain(to != from, lasterror.SelfOperationDisallowed)

	if err := l.move(c, g, from, to, balance, amount); err != nil {
		return err
	}
	return l.writeStatus(c, from, g)
}

// Approve sets the amount spender may transfer out of the caller's balance
func (l *Ledger) Approve(c *host.Call, spender common.Address, amount confidential.EUint64) error {
	if err := ops.CheckSender(c, amount.Handle()); err != nil {
		return err
	}
	owner := c.Caller()
	key := Allowance{Owner: owner, Spender: spender}
	if err := l.allowances.Put(c, key, amount, owner, spender); err != nil {
		return err
	}
	l.log.Debug("approved spender",
		log.Stringer("owner", owner),
		log.Stringer("spender", spender),
	)
	return l.setStatus(c, owner, lasterror.None)
}

// TransferFrom moves amount from owner to to on behalf of the caller. Both
// the balance and the allowance must cover it; the allowance is debited by
// the amount actually moved.
func (l *Ledger) TransferFrom(c *host.Call, owner, to common.Address, amount confidential.EUint64) error {
	if err := ops.CheckSender(c, amount.Handle()); err != nil {
		return err
	}
	spender := c.Caller()
	key := Allowance{Owner: owner, Spender: spender}

	balance, err := l.balances.Load(c, owner, owner)
	if err != nil {
		return err
	}
	allowance, err := l.allowances.Load(c, key, owner, spender)
	if err != nil {
		return err
	}

	sufficientBalance, err := ops.Ge(c, balance, amount)
	if err != nil {
		return err
	}
	sufficientAllowance, err := ops.Ge(c, allowance, amount)
	if err != nil {
		return err
	}
	g := branchless.New(c).
		Require(sufficientBalance, lasterror.InsufficientBalance).
		Require(sufficientAllowance, lasterror.InsufficientAllowance)

	effective, err := branchless.Gate(g, amount)
	if err != nil {
		return err
	}
	remaining, err := ops.Sub(c, allowance, effective)
	if err != nil {
		return err
	}
	if err := l.allowances.Put(c, key, remaining, owner, spender); err != nil {
		return err
	}
	if err := l.apply(c, owner, to, balance, effective); err != nil {
		return err
	}
	return l.writeStatus(c, spender, g)
}

// BalanceOf returns the balance of who. The caller must hold a grant on
// it. A principal with no entry has the null balance.
func (l *Ledger) BalanceOf(c *host.Call, who common.Address) (confidential.EUint64, error) {
	v, ok := l.balances.Get(who)
	return readable(c, v, ok, "balance of", who)
}

// Allowance returns the amount spender may move out of owner's balance
func (l *Ledger) Allowance(c *host.Call, owner, spender common.Address) (confidential.EUint64, error) {
	v, ok := l.allowances.Get(Allowance{Owner: owner, Spender: spender})
	return readable(c, v, ok, "allowance of", spender)
}

// LastError returns the encrypted status of who, readable only by who
func (l *Ledger) LastError(c *host.Call, who common.Address) (confidential.EUint8, error) {
	return l.statuses.Get(c, who)
}

// HasLastError reports whether a status was ever written for who
func (l *Ledger) HasLastError(who common.Address) bool {
	return l.statuses.Has(who)
}

// HasBalance reports whether who has a balance entry
func (l *Ledger) HasBalance(who common.Address) bool {
	_, ok := l.balances.Get(who)
	return ok
}

// Holders returns the number of balance entries
func (l *Ledger) Holders() int {
	return l.balances.Len()
}

// guardDebit starts a guard requiring balance to cover amount and, when
// capped, amount to be within the cap
func (l *Ledger) guardDebit(c *host.Call, balance, amount confidential.EUint64) (*branchless.Guard, error) {
	sufficient, err := ops.Ge(c, balance, amount)
	if err != nil {
		return nil, err
	}
	g := branchless.New(c).Require(sufficient, lasterror.InsufficientBalance)
	if l.maxTransfer > 0 {
		withinCap, err := ops.LeScalar(c, amount, ops.U(l.maxTransfer))
		if err != nil {
			return nil, err
		}
		g.Require(withinCap, lasterror.AmountTooLarge)
	}
	return g, g.Err()
}

// move debits the gated amount from from and credits it to to
func (l *Ledger) move(c *host.Call, g *branchless.Guard, from, to common.Address, balance, amount confidential.EUint64) error {
	effective, err := branchless.Gate(g, amount)
	if err != nil {
		return err
	}
	return l.apply(c, from, to, balance, effective)
}

// apply writes both sides of a transfer of an already gated amount. The
// credit is computed from the debited entry, so a transfer to the same
// account nets to zero.
func (l *Ledger) apply(c *host.Call, from, to common.Address, balance, effective confidential.EUint64) error {
	debited, err := ops.Sub(c, balance, effective)
	if err != nil {
		return err
	}
	if err := l.balances.Put(c, from, debited, from); err != nil {
		return err
	}
	return l.Credit(c, to, effective)
}

// checkRate reports whether from is outside its rate limit window and
// records the attempt. Block height and sender are public.
func (l *Ledger) checkRate(c *host.Call, from common.Address) bool {
	l.lock.Lock()
	defer l.lock.Unlock()

	last, seen := l.lastTransfer[from]
	if seen && c.Height() < last+l.rateLimitBlocks {
		return false
	}
	l.lastTransfer[from] = c.Height()
	c.Journal().Append(func() {
		l.lock.Lock()
		defer l.lock.Unlock()
		if seen {
			l.lastTransfer[from] = last
		} else {
			delete(l.lastTransfer, from)
		}
	})
	return true
}

func (l *Ledger) writeStatus(c *host.Call, principal common.Address, g *branchless.Guard) error {
	status, err := g.Status()
	if err != nil {
		return err
	}
	return l.statuses.Set(c, principal, status)
}

func (l *Ledger) setStatus(c *host.Call, principal common.Address, code lasterror.Code) error {
	status, err := lasterror.Encrypt(c, code)
	if err != nil {
		return err
	}
	return l.statuses.Set(c, principal, status)
}

func readable(c *host.Call, v confidential.EUint64, ok bool, what string, who common.Address) (confidential.EUint64, error) {
	if !ok {
		return confidential.EUint64{}, nil
	}
	if !c.ACL().IsAllowed(v.Handle(), c.Caller()) {
		return confidential.EUint64{}, fmt.Errorf("%w: %s may not read the %s %s", confidential.ErrNotAuthorized, c.Caller(), what, who)
	}
	return v, nil
}
