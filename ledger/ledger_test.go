// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"context"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/acl"
	"github.com/luxfi/confidential/crypto/fhe/mock"
	"github.com/luxfi/confidential/host"
	"github.com/luxfi/confidential/lasterror"
	"github.com/luxfi/confidential/ops"
)

var (
	alice    = common.HexToAddress("0x1000000000000000000000000000000000000001")
	bob      = common.HexToAddress("0x1000000000000000000000000000000000000002")
	carol    = common.HexToAddress("0x1000000000000000000000000000000000000003")
	contract = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

type harness struct {
	t      *testing.T
	env    *host.Env
	engine *mock.Engine
	ledger *Ledger
}

func newHarness(t *testing.T, opts ...Option) *harness {
	engine := mock.New(log.NewNoOpLogger(), [32]byte{9})
	return &harness{
		t:      t,
		env:    host.NewEnv(log.NewNoOpLogger(), engine),
		engine: engine,
		ledger: New(log.NewNoOpLogger(), opts...),
	}
}

func (h *harness) exec(caller common.Address, fn func(*host.Call) error) (host.Receipt, error) {
	return h.env.Execute(context.Background(), caller, contract, fn)
}

// input encrypts v client side for the caller of c and verifies it
func (h *harness) input(c *host.Call, v uint64) (confidential.EUint64, error) {
	inputs, err := h.engine.EncryptInput(contract, c.Caller()).Add64(v).Encrypt()
	if err != nil {
		return confidential.EUint64{}, err
	}
	return ops.FromExternal[confidential.Uint64](c, inputs[0])
}

func (h *harness) deposit(who common.Address, v uint64) {
	_, err := h.exec(who, func(c *host.Call) error {
		amount, err := h.input(c, v)
		if err != nil {
			return err
		}
		return h.ledger.Deposit(c, amount)
	})
	require.NoError(h.t, err)
}

func (h *harness) transfer(from, to common.Address, v uint64) host.Receipt {
	receipt, err := h.exec(from, func(c *host.Call) error {
		amount, err := h.input(c, v)
		if err != nil {
			return err
		}
		return h.ledger.Transfer(c, to, amount)
	})
	require.NoError(h.t, err)
	return receipt
}

func (h *harness) approve(owner, spender common.Address, v uint64) {
	_, err := h.exec(owner, func(c *host.Call) error {
		amount, err := h.input(c, v)
		if err != nil {
			return err
		}
		return h.ledger.Approve(c, spender, amount)
	})
	require.NoError(h.t, err)
}

func (h *harness) transferFrom(spender, owner, to common.Address, v uint64) {
	_, err := h.exec(spender, func(c *host.Call) error {
		amount, err := h.input(c, v)
		if err != nil {
			return err
		}
		return h.ledger.TransferFrom(c, owner, to, amount)
	})
	require.NoError(h.t, err)
}

func (h *harness) decrypt(handle confidential.Handle) uint64 {
	if handle.IsZero() {
		return 0
	}
	v, err := h.engine.Decrypt(handle)
	require.NoError(h.t, err)
	return v.Uint64()
}

func (h *harness) balance(who common.Address) uint64 {
	var v confidential.EUint64
	_, err := h.exec(who, func(c *host.Call) error {
		var err error
		v, err = h.ledger.BalanceOf(c, who)
		return err
	})
	require.NoError(h.t, err)
	return h.decrypt(v.Handle())
}

func (h *harness) allowance(owner, spender common.Address) uint64 {
	var v confidential.EUint64
	_, err := h.exec(owner, func(c *host.Call) error {
		var err error
		v, err = h.ledger.Allowance(c, owner, spender)
		return err
	})
	require.NoError(h.t, err)
	return h.decrypt(v.Handle())
}

func (h *harness) status(who common.Address) lasterror.Code {
	var v confidential.EUint8
	_, err := h.exec(who, func(c *host.Call) error {
		var err error
		v, err = h.ledger.LastError(c, who)
		return err
	})
	require.NoError(h.t, err)
	return lasterror.Code(h.decrypt(v.Handle()))
}

func TestDeposit(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	h.deposit(alice, 1000)
	require.Equal(uint64(1000), h.balance(alice))
	require.True(h.ledger.HasBalance(alice))
	require.False(h.ledger.HasBalance(bob))
}

func TestTransfer(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	h.deposit(alice, 1000)
	h.transfer(alice, bob, 300)

	require.Equal(uint64(700), h.balance(alice))
	require.Equal(uint64(300), h.balance(bob))
	require.Equal(lasterror.None, h.status(alice))
}

func TestTransferInsufficientBalance(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	h.deposit(alice, 100)
	h.transfer(alice, bob, 200)

	require.Equal(uint64(100), h.balance(alice))
	require.Zero(h.balance(bob))
	require.Equal(lasterror.InsufficientBalance, h.status(alice))
}

func TestTransferFromInsufficientAllowance(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	h.deposit(alice, 1000)
	h.approve(alice, bob, 100)
	h.transferFrom(bob, alice, bob, 200)

	require.Equal(uint64(1000), h.balance(alice))
	require.Zero(h.balance(bob))
	require.Equal(uint64(100), h.allowance(alice, bob))
	require.Equal(lasterror.InsufficientAllowance, h.status(bob))
}

func TestTransferFrom(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	h.deposit(alice, 1000)
	h.approve(alice, bob, 400)
	h.transferFrom(bob, alice, carol, 250)

	require.Equal(uint64(750), h.balance(alice))
	require.Equal(uint64(250), h.balance(carol))
	require.Equal(uint64(150), h.allowance(alice, bob))
	require.Equal(lasterror.None, h.status(bob))

	// the allowance covers it but the balance does not
	h.transferFrom(bob, alice, carol, 150)
	require.Equal(uint64(600), h.balance(alice))
	h.approve(alice, bob, 5000)
	h.transferFrom(bob, alice, carol, 700)
	require.Equal(uint64(600), h.balance(alice))
	require.Equal(uint64(5000), h.allowance(alice, bob))
	require.Equal(lasterror.InsufficientBalance, h.status(bob))
}

func TestTransferFromToOwner(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	h.deposit(alice, 1000)
	h.approve(alice, bob, 400)
	h.transferFrom(bob, alice, alice, 300)

	// debit and credit of the same entry net to zero
	require.Equal(uint64(1000), h.balance(alice))
	require.Equal(uint64(100), h.allowance(alice, bob))
}

func TestSequentialTransfers(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	h.deposit(alice, 1000)
	h.transfer(alice, bob, 200)
	h.transfer(alice, bob, 300)

	require.Equal(uint64(500), h.balance(alice))
	require.Equal(uint64(500), h.balance(bob))
}

func TestWithdrawUninitialized(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	var effective confidential.EUint64
	_, err := h.exec(carol, func(c *host.Call) error {
		amount, err := h.input(c, 50)
		if err != nil {
			return err
		}
		effective, err = h.ledger.Withdraw(c, amount)
		return err
	})
	require.NoError(err)
	require.Zero(h.decrypt(effective.Handle()))
	require.Zero(h.balance(carol))
	require.Equal(lasterror.InsufficientBalance, h.status(carol))
}

func TestWithdraw(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	h.deposit(alice, 1000)

	var effective confidential.EUint64
	_, err := h.exec(alice, func(c *host.Call) error {
		amount, err := h.input(c, 400)
		if err != nil {
			return err
		}
		effective, err = h.ledger.Withdraw(c, amount)
		return err
	})
	require.NoError(err)
	require.Equal(uint64(400), h.decrypt(effective.Handle()))
	require.Equal(uint64(600), h.balance(alice))
	require.True(h.env.ACL().IsAllowed(effective.Handle(), alice))
	require.Equal(lasterror.None, h.status(alice))
}

func TestTransferGuards(t *testing.T) {
	tests := []struct {
		name       string
		to         common.Address
		amount     uint64
		wantStatus lasterror.Code
	}{
		{
			name:       "self transfer",
			to:         alice,
			amount:     10,
			wantStatus: lasterror.SelfOperationDisallowed,
		},
		{
			name:       "over the cap",
			to:         bob,
			amount:     2_000,
			wantStatus: lasterror.AmountTooLarge,
		},
		{
			name:       "self transfer outranks the cap",
			to:         alice,
			amount:     2_000,
			wantStatus: lasterror.SelfOperationDisallowed,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			h := newHarness(t, WithMaxTransfer(1_500))
			h.deposit(alice, 5_000)
			h.transfer(alice, test.to, test.amount)

			require.Equal(uint64(5_000), h.balance(alice))
			require.Equal(test.wantStatus, h.status(alice))
		})
	}
}

func TestRateLimit(t *testing.T) {
	require := require.New(t)

	h := newHarness(t, WithRateLimit(10))
	h.deposit(alice, 1000)
	h.transfer(alice, bob, 100)
	h.transfer(alice, bob, 100)

	require.Equal(uint64(900), h.balance(alice))
	require.Equal(lasterror.RateLimited, h.status(alice))

	h.env.AdvanceBlocks(10)
	h.transfer(alice, bob, 100)
	require.Equal(uint64(800), h.balance(alice))
	require.Equal(lasterror.None, h.status(alice))
}

func TestUniformCost(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	h.deposit(alice, 1000)
	h.deposit(bob, 1)

	success := h.transfer(alice, bob, 300)
	failure := h.transfer(alice, bob, 5000)
	require.Equal(success, failure)
}

func TestConservation(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	h.deposit(alice, 1000)
	h.deposit(bob, 500)

	amounts := []uint64{1, 250, 900, 0, 749}
	for _, amount := range amounts {
		beforeAlice, beforeBob := h.balance(alice), h.balance(bob)
		h.transfer(alice, bob, amount)
		afterAlice, afterBob := h.balance(alice), h.balance(bob)

		require.Equal(beforeAlice+beforeBob, afterAlice+afterBob)
		if amount <= beforeAlice {
			require.Equal(beforeAlice-amount, afterAlice)
			require.Equal(lasterror.None, h.status(alice))
		} else {
			require.Equal(beforeAlice, afterAlice)
			require.Equal(lasterror.InsufficientBalance, h.status(alice))
		}
	}
}

func TestCapabilities(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	h.deposit(alice, 1000)
	old, ok := h.ledger.balances.Get(alice)
	require.True(ok)

	h.transfer(alice, bob, 100)
	updated, ok := h.ledger.balances.Get(alice)
	require.True(ok)
	require.NotEqual(old.Handle(), updated.Handle())

	registry := h.env.ACL()
	// grants on the old handle never shrink
	require.True(registry.IsAllowed(old.Handle(), alice))
	// the new handle only carries the grants the ledger issued on it
	require.Equal([]common.Address{alice, contract}, registry.Grants(updated.Handle(), acl.Persistent))
	require.False(registry.IsAllowed(updated.Handle(), bob))

	// read paths fail closed
	_, err := h.exec(bob, func(c *host.Call) error {
		_, err := h.ledger.BalanceOf(c, alice)
		return err
	})
	require.ErrorIs(err, confidential.ErrNotAuthorized)
}

func TestUninitializedAmount(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	h.deposit(alice, 1000)
	holders := h.ledger.Holders()
	before, _ := h.ledger.balances.Get(alice)

	_, err := h.exec(alice, func(c *host.Call) error {
		return h.ledger.Transfer(c, bob, confidential.EUint64{})
	})
	require.ErrorIs(err, confidential.ErrUninitializedValue)

	after, _ := h.ledger.balances.Get(alice)
	require.Equal(before, after)
	require.Equal(holders, h.ledger.Holders())
	require.False(h.ledger.HasBalance(bob))
	require.Equal(uint64(1000), h.balance(alice))
}

func TestLastErrorIsPrivate(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	h.deposit(alice, 1000)
	h.transfer(alice, bob, 10)
	require.True(h.ledger.HasLastError(alice))
	require.False(h.ledger.HasLastError(carol))

	_, err := h.exec(bob, func(c *host.Call) error {
		_, err := h.ledger.LastError(c, alice)
		return err
	})
	require.ErrorIs(err, confidential.ErrNotAuthorized)
}

func TestForeignAmountRejected(t *testing.T) {
	tests := []struct {
		name string
		op   func(l *Ledger, c *host.Call, amount confidential.EUint64) error
	}{
		{
			name: "deposit",
			op: func(l *Ledger, c *host.Call, amount confidential.EUint64) error {
				return l.Deposit(c, amount)
			},
		},
		{
			name: "withdraw",
			op: func(l *Ledger, c *host.Call, amount confidential.EUint64) error {
				_, err := l.Withdraw(c, amount)
				return err
			},
		},
		{
			name: "transfer",
			op: func(l *Ledger, c *host.Call, amount confidential.EUint64) error {
				return l.Transfer(c, carol, amount)
			},
		},
		{
			name: "approve",
			op: func(l *Ledger, c *host.Call, amount confidential.EUint64) error {
				return l.Approve(c, bob, amount)
			},
		},
		{
			name: "transfer from",
			op: func(l *Ledger, c *host.Call, amount confidential.EUint64) error {
				return l.TransferFrom(c, alice, bob, amount)
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			h := newHarness(t)
			h.deposit(alice, 1000)
			h.approve(alice, bob, 1000)
			aliceBalance, ok := h.ledger.balances.Get(alice)
			require.True(ok)

			_, err := h.exec(bob, func(c *host.Call) error {
				return test.op(h.ledger, c, aliceBalance)
			})
			require.ErrorIs(err, confidential.ErrNotAuthorized)

			require.False(h.env.ACL().IsAllowed(aliceBalance.Handle(), bob))
			require.False(h.ledger.HasBalance(bob))
			require.False(h.ledger.HasBalance(carol))
			require.False(h.ledger.HasLastError(bob))
			require.Equal(uint64(1000), h.balance(alice))
			require.Equal(uint64(1000), h.allowance(alice, bob))
		})
	}
}
