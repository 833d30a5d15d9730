// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package orderbook keeps limit orders with encrypted prices and amounts.
// Matching a buy against a sell fills min(buy, sell) when the buy price
// covers the sell price and nothing otherwise, without revealing which.
package orderbook

import (
	"fmt"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/host"
	"github.com/luxfi/confidential/ops"
)

type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// Order is the public part of an order
type Order struct {
	ID     uint64
	Trader common.Address
	Side   Side
	Active bool
}

type order struct {
	info   Order
	price  confidential.EUint64
	amount confidential.EUint64
}

// Book is an order book matched by its owner
type Book struct {
	log   log.Logger
	owner common.Address

	lock   sync.RWMutex
	orders []*order
	active uint64
}

func New(log log.Logger, owner common.Address) *Book {
	return &Book{
		log:   log,
		owner: owner,
	}
}

// Count returns the number of orders ever submitted
func (b *Book) Count() uint64 {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return uint64(len(b.orders))
}

// ActiveCount returns the number of orders not cancelled
func (b *Book) ActiveCount() uint64 {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.active
}

// SubmitBuy places a buy order for amount at up to price
func (b *Book) SubmitBuy(c *host.Call, price, amount confidential.EUint64) (uint64, error) {
	return b.Submit(c, Buy, price, amount)
}

// SubmitSell places a sell order for amount at no less than price
func (b *Book) SubmitSell(c *host.Call, price, amount confidential.EUint64) (uint64, error) {
	return b.Submit(c, Sell, price, amount)
}

// Submit places an order and returns its id. Only the trader may read the
// price and remaining amount.
func (b *Book) Submit(c *host.Call, side Side, price, amount confidential.EUint64) (uint64, error) {
	if side != Buy && side != Sell {
		return 0, fmt.Errorf("%w: %s", confidential.ErrInvalidInput, side)
	}
	if err := ops.CheckSender(c, price.Handle(), amount.Handle()); err != nil {
		return 0, err
	}
	trader := c.Caller()
	if err := keep(c, trader, price, amount); err != nil {
		return 0, err
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	id := uint64(len(b.orders))
	b.orders = append(b.orders, &order{
		info: Order{
			ID:     id,
			Trader: trader,
			Side:   side,
			Active: true,
		},
		price:  price,
		amount: amount,
	})
	b.active++
	c.Journal().Append(func() {
		b.lock.Lock()
		defer b.lock.Unlock()
		b.orders = b.orders[:id]
		b.active--
	})
	b.log.Debug("submitted order",
		log.Uint64("id", id),
		log.Stringer("side", side),
		log.Stringer("trader", trader),
	)
	return id, nil
}

// Match fills buy against sell. Both orders must be active and on the right
// side. The fill is min of the remaining amounts if the buy price is at
// least the sell price, and zero otherwise.
func (b *Book) Match(c *host.Call, buyID, sellID uint64) error {
	if c.Caller() != b.owner {
		return fmt.Errorf("%w: %s", confidential.ErrNotOwner, c.Caller())
	}

	b.lock.RLock()
	buy, err := b.activeOrder(buyID, Buy)
	var sell *order
	if err == nil {
		sell, err = b.activeOrder(sellID, Sell)
	}
	var buyAmount, sellAmount confidential.EUint64
	if err == nil {
		buyAmount, sellAmount = buy.amount, sell.amount
	}
	b.lock.RUnlock()
	if err != nil {
		return err
	}

	crosses, err := ops.Ge(c, buy.price, sell.price)
	if err != nil {
		return err
	}
	fill, err := ops.Min(c, buyAmount, sellAmount)
	if err != nil {
		return err
	}
	zero, err := ops.EncryptUint64(c, 0)
	if err != nil {
		return err
	}
	effective, err := ops.Select(c, crosses, fill, zero)
	if err != nil {
		return err
	}
	buyLeft, err := ops.Sub(c, buyAmount, effective)
	if err != nil {
		return err
	}
	sellLeft, err := ops.Sub(c, sellAmount, effective)
	if err != nil {
		return err
	}
	if err := keep(c, buy.info.Trader, buyLeft); err != nil {
		return err
	}
	if err := keep(c, sell.info.Trader, sellLeft); err != nil {
		return err
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	buy.amount, sell.amount = buyLeft, sellLeft
	c.Journal().Append(func() {
		b.lock.Lock()
		defer b.lock.Unlock()
		buy.amount, sell.amount = buyAmount, sellAmount
	})
	b.log.Debug("matched orders",
		log.Uint64("buy", buyID),
		log.Uint64("sell", sellID),
	)
	return nil
}

// Cancel deactivates an order. Only its trader may cancel it.
func (b *Book) Cancel(c *host.Call, id uint64) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	o, err := b.get(id)
	if err != nil {
		return err
	}
	if o.info.Trader != c.Caller() {
		return fmt.Errorf("%w: order %d belongs to %s", confidential.ErrNotAuthorized, id, o.info.Trader)
	}
	if !o.info.Active {
		return fmt.Errorf("%w: order %d", confidential.ErrClosed, id)
	}
	o.info.Active = false
	b.active--
	c.Journal().Append(func() {
		b.lock.Lock()
		defer b.lock.Unlock()
		o.info.Active = true
		b.active++
	})
	return nil
}

// Order returns the public part of order id
func (b *Book) Order(id uint64) (Order, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	o, err := b.get(id)
	if err != nil {
		return Order{}, err
	}
	return o.info, nil
}

// Amount returns the remaining amount of order id. Only its trader may
// read it.
func (b *Book) Amount(c *host.Call, id uint64) (confidential.EUint64, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	o, err := b.get(id)
	if err != nil {
		return confidential.EUint64{}, err
	}
	if !c.ACL().IsAllowed(o.amount.Handle(), c.Caller()) {
		return confidential.EUint64{}, fmt.Errorf("%w: %s may not read order %d", confidential.ErrNotAuthorized, c.Caller(), id)
	}
	return o.amount, nil
}

// must be called with the lock held
func (b *Book) get(id uint64) (*order, error) {
	if id >= uint64(len(b.orders)) {
		return nil, fmt.Errorf("%w: order %d", confidential.ErrNotFound, id)
	}
	return b.orders[id], nil
}

// must be called with the lock held
func (b *Book) activeOrder(id uint64, side Side) (*order, error) {
	o, err := b.get(id)
	if err != nil {
		return nil, err
	}
	if !o.info.Active {
		return nil, fmt.Errorf("%w: order %d", confidential.ErrClosed, id)
	}
	if o.info.Side != side {
		return nil, fmt.Errorf("%w: order %d is a %s order", confidential.ErrInvalidInput, id, o.info.Side)
	}
	return o, nil
}

// keep grants the contract and trader persistent capabilities on values
func keep(c *host.Call, trader common.Address, values ...confidential.EUint64) error {
	acl := c.ACL()
	for _, v := range values {
		if err := acl.Allow(c.Contract(), v.Handle(), c.Contract()); err != nil {
			return err
		}
		if err := acl.Allow(c.Contract(), v.Handle(), trader); err != nil {
			return err
		}
	}
	return nil
}
