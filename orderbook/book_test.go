// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package orderbook

import (
	"context"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/crypto/fhe/mock"
	"github.com/luxfi/confidential/host"
	"github.com/luxfi/confidential/ops"
)

var (
	owner  = common.HexToAddress("0x1000000000000000000000000000000000000000")
	alice  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	bob    = common.HexToAddress("0x1000000000000000000000000000000000000002")
	carol  = common.HexToAddress("0x1000000000000000000000000000000000000003")
	bookID = common.HexToAddress("0x7000000000000000000000000000000000000007")
)

type harness struct {
	t      *testing.T
	env    *host.Env
	engine *mock.Engine
	book   *Book
}

func newHarness(t *testing.T) *harness {
	engine := mock.New(log.NewNoOpLogger(), [32]byte{37})
	return &harness{
		t:      t,
		env:    host.NewEnv(log.NewNoOpLogger(), engine),
		engine: engine,
		book:   New(log.NewNoOpLogger(), owner),
	}
}

func (h *harness) exec(caller common.Address, fn func(*host.Call) error) error {
	_, err := h.env.Execute(context.Background(), caller, bookID, fn)
	return err
}

func (h *harness) submit(who common.Address, side Side, price, amount uint64) uint64 {
	var id uint64
	require.NoError(h.t, h.exec(who, func(c *host.Call) error {
		inputs, err := h.engine.EncryptInput(bookID, who).Add64(price).Add64(amount).Encrypt()
		if err != nil {
			return err
		}
		p, err := ops.FromExternal[confidential.Uint64](c, inputs[0])
		if err != nil {
			return err
		}
		a, err := ops.FromExternal[confidential.Uint64](c, inputs[1])
		if err != nil {
			return err
		}
		if side == Buy {
			id, err = h.book.SubmitBuy(c, p, a)
		} else {
			id, err = h.book.SubmitSell(c, p, a)
		}
		return err
	}))
	return id
}

func (h *harness) match(caller common.Address, buy, sell uint64) error {
	return h.exec(caller, func(c *host.Call) error {
		return h.book.Match(c, buy, sell)
	})
}

func (h *harness) amount(who common.Address, id uint64) uint64 {
	var v confidential.EUint64
	require.NoError(h.t, h.exec(who, func(c *host.Call) error {
		var err error
		v, err = h.book.Amount(c, id)
		return err
	}))
	plain, err := h.engine.Decrypt(v.Handle())
	require.NoError(h.t, err)
	return plain.Uint64()
}

func TestSubmit(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	require.Zero(h.submit(alice, Buy, 120, 25))
	require.Equal(uint64(1), h.submit(bob, Sell, 110, 30))
	require.Equal(uint64(2), h.submit(carol, Buy, 115, 10))

	require.Equal(uint64(3), h.book.Count())
	require.Equal(uint64(3), h.book.ActiveCount())

	want := []Order{
		{ID: 0, Trader: alice, Side: Buy, Active: true},
		{ID: 1, Trader: bob, Side: Sell, Active: true},
		{ID: 2, Trader: carol, Side: Buy, Active: true},
	}
	for _, o := range want {
		got, err := h.book.Order(o.ID)
		require.NoError(err)
		require.Equal(o, got)
	}
	require.Equal(uint64(25), h.amount(alice, 0))

	_, err := h.book.Order(3)
	require.ErrorIs(err, confidential.ErrNotFound)
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name                  string
		buyPrice, buyAmount   uint64
		sellPrice, sellAmount uint64
		wantBuy, wantSell     uint64
	}{
		{"full fill", 150, 40, 100, 40, 0, 0},
		{"partial fill", 200, 100, 150, 60, 40, 0},
		{"equal prices cross", 100, 10, 100, 25, 0, 15},
		{"prices do not cross", 50, 40, 100, 40, 40, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			h := newHarness(t)
			buy := h.submit(alice, Buy, tt.buyPrice, tt.buyAmount)
			sell := h.submit(bob, Sell, tt.sellPrice, tt.sellAmount)
			require.NoError(h.match(owner, buy, sell))

			require.Equal(tt.wantBuy, h.amount(alice, buy))
			require.Equal(tt.wantSell, h.amount(bob, sell))
		})
	}
}

func TestMatchRules(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	buy := h.submit(alice, Buy, 100, 10)
	sell := h.submit(bob, Sell, 90, 10)

	require.ErrorIs(h.match(alice, buy, sell), confidential.ErrNotOwner)
	require.ErrorIs(h.match(owner, sell, buy), confidential.ErrInvalidInput)
	require.ErrorIs(h.match(owner, buy, 7), confidential.ErrNotFound)

	require.NoError(h.exec(bob, func(c *host.Call) error {
		return h.book.Cancel(c, sell)
	}))
	require.ErrorIs(h.match(owner, buy, sell), confidential.ErrClosed)
	require.Equal(uint64(10), h.amount(alice, buy))
}

func TestCancel(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	id := h.submit(alice, Buy, 100, 50)

	cancel := func(who common.Address) error {
		return h.exec(who, func(c *host.Call) error {
			return h.book.Cancel(c, id)
		})
	}
	require.ErrorIs(cancel(bob), confidential.ErrNotAuthorized)
	require.NoError(cancel(alice))
	require.ErrorIs(cancel(alice), confidential.ErrClosed)

	o, err := h.book.Order(id)
	require.NoError(err)
	require.False(o.Active)
	require.Zero(h.book.ActiveCount())
	require.Equal(uint64(1), h.book.Count())
}

func TestAmountIsPrivate(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	buy := h.submit(alice, Buy, 100, 10)
	sell := h.submit(bob, Sell, 90, 4)
	require.NoError(h.match(owner, buy, sell))

	for _, who := range []common.Address{bob, owner} {
		err := h.exec(who, func(c *host.Call) error {
			_, err := h.book.Amount(c, buy)
			return err
		})
		require.ErrorIs(err, confidential.ErrNotAuthorized)
	}
	require.Equal(uint64(6), h.amount(alice, buy))
}

func TestForeignOrderRejected(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	id := h.submit(alice, Buy, 100, 10)
	alicePrice := h.book.orders[id].price

	err := h.exec(bob, func(c *host.Call) error {
		inputs, err := h.engine.EncryptInput(bookID, bob).Add64(10).Encrypt()
		if err != nil {
			return err
		}
		amount, err := ops.FromExternal[confidential.Uint64](c, inputs[0])
		if err != nil {
			return err
		}
		_, err = h.book.SubmitSell(c, alicePrice, amount)
		return err
	})
	require.ErrorIs(err, confidential.ErrNotAuthorized)
	require.False(h.env.ACL().IsAllowed(alicePrice.Handle(), bob))
	require.Equal(uint64(1), h.book.Count())
}

func TestRevertedSubmit(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	err := h.exec(alice, func(c *host.Call) error {
		inputs, err := h.engine.EncryptInput(bookID, alice).Add64(1).Add64(2).Encrypt()
		if err != nil {
			return err
		}
		p, err := ops.FromExternal[confidential.Uint64](c, inputs[0])
		if err != nil {
			return err
		}
		a, err := ops.FromExternal[confidential.Uint64](c, inputs[1])
		if err != nil {
			return err
		}
		if _, err := h.book.SubmitBuy(c, p, a); err != nil {
			return err
		}
		return confidential.ErrInvalidInput
	})
	require.ErrorIs(err, confidential.ErrInvalidInput)
	require.Zero(h.book.Count())
	require.Zero(h.book.ActiveCount())
}
