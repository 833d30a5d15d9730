// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package auction runs sealed-bid auctions over encrypted bids. The running
// maximum and its bidder are maintained with select, so no bid reveals
// whether it took the lead. Ending an auction publicly discloses only the
// winning bid and bidder.
package auction

import (
	"fmt"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/host"
	"github.com/luxfi/confidential/ops"
)

// Info is the public state of an auction
type Info struct {
	ID       uint64
	Item     string
	Deadline uint64
	Reserve  uint64
	Bidders  int
	Ended    bool
}

type auction struct {
	info    Info
	bidders set.Set[common.Address]
	bids    map[common.Address]confidential.EUint64

	highestBid    confidential.EUint64
	highestBidder confidential.EAddress
}

// House is a set of auctions created by one owner
type House struct {
	log   log.Logger
	owner common.Address

	lock     sync.RWMutex
	auctions []*auction
}

func NewHouse(log log.Logger, owner common.Address) *House {
	return &House{
		log:   log,
		owner: owner,
	}
}

// Count returns the number of auctions created
func (h *House) Count() uint64 {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return uint64(len(h.auctions))
}

// Create opens an auction for item that accepts bids for duration blocks.
// Bids below reserve never win.
func (h *House) Create(c *host.Call, item string, duration, reserve uint64) (uint64, error) {
	if c.Caller() != h.owner {
		return 0, fmt.Errorf("%w: %s", confidential.ErrNotOwner, c.Caller())
	}
	deadline, err := confidential.AddUint64(c.Height(), duration)
	if err != nil {
		return 0, err
	}
	highestBid, err := ops.EncryptUint64(c, 0)
	if err != nil {
		return 0, err
	}
	highestBidder, err := ops.EncryptAddress(c, common.Address{})
	if err != nil {
		return 0, err
	}
	if err := grant(c, highestBid.Handle(), highestBidder.Handle()); err != nil {
		return 0, err
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	id := uint64(len(h.auctions))
	h.auctions = append(h.auctions, &auction{
		info: Info{
			ID:       id,
			Item:     item,
			Deadline: deadline,
			Reserve:  reserve,
		},
		bidders:       set.NewSet[common.Address](0),
		bids:          make(map[common.Address]confidential.EUint64),
		highestBid:    highestBid,
		highestBidder: highestBidder,
	})
	c.Journal().Append(func() {
		h.lock.Lock()
		defer h.lock.Unlock()
		h.auctions = h.auctions[:id]
	})
	h.log.Info("created auction",
		log.Uint64("id", id),
		log.String("item", item),
		log.Uint64("deadline", deadline),
	)
	return id, nil
}

// Bid places the caller's only bid on auction id. A bid takes the lead when
// it meets the reserve and is strictly greater than the current highest
// bid, so an equal later bid never displaces an earlier one.
func (h *House) Bid(c *host.Call, id uint64, bid confidential.EUint64) error {
	if err := ops.CheckSender(c, bid.Handle()); err != nil {
		return err
	}
	bidder := c.Caller()

	h.lock.RLock()
	a, err := h.open(c, id)
	if err == nil && a.bidders.Contains(bidder) {
		err = fmt.Errorf("%w: %s already bid on auction %d", confidential.ErrAlreadyExists, bidder, id)
	}
	var highestBid confidential.EUint64
	var highestBidder confidential.EAddress
	if err == nil {
		highestBid, highestBidder = a.highestBid, a.highestBidder
	}
	h.lock.RUnlock()
	if err != nil {
		return err
	}

	meetsReserve, err := ops.GeScalar(c, bid, ops.U(a.info.Reserve))
	if err != nil {
		return err
	}
	higher, err := ops.Gt(c, bid, highestBid)
	if err != nil {
		return err
	}
	lead, err := ops.And(c, meetsReserve, higher)
	if err != nil {
		return err
	}
	newBid, err := ops.Select(c, lead, bid, highestBid)
	if err != nil {
		return err
	}
	self, err := ops.EncryptAddress(c, bidder)
	if err != nil {
		return err
	}
	newBidder, err := ops.Select(c, lead, self, highestBidder)
	if err != nil {
		return err
	}
	if err := grant(c, newBid.Handle(), newBidder.Handle()); err != nil {
		return err
	}
	if err := c.ACL().Allow(c.Contract(), bid.Handle(), c.Contract()); err != nil {
		return err
	}
	if err := c.ACL().Allow(c.Contract(), bid.Handle(), bidder); err != nil {
		return err
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	a.bidders.Add(bidder)
	a.bids[bidder] = bid
	a.info.Bidders++
	a.highestBid, a.highestBidder = newBid, newBidder
	c.Journal().Append(func() {
		h.lock.Lock()
		defer h.lock.Unlock()
		a.bidders.Remove(bidder)
		delete(a.bids, bidder)
		a.info.Bidders--
		a.highestBid, a.highestBidder = highestBid, highestBidder
	})
	return nil
}

// End closes auction id once its deadline has passed and makes the winning
// bid and bidder publicly decryptable.
func (h *House) End(c *host.Call, id uint64) (confidential.EUint64, confidential.EAddress, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	a, err := h.get(id)
	if err != nil {
		return confidential.EUint64{}, confidential.EAddress{}, err
	}
	if a.info.Ended {
		return confidential.EUint64{}, confidential.EAddress{}, fmt.Errorf("%w: auction %d already ended", confidential.ErrClosed, id)
	}
	if c.Height() < a.info.Deadline {
		return confidential.EUint64{}, confidential.EAddress{}, fmt.Errorf("%w: auction %d runs until %d", confidential.ErrInvalidInput, id, a.info.Deadline)
	}

	acl := c.ACL()
	if err := acl.MakePubliclyDecryptable(c.Contract(), a.highestBid.Handle()); err != nil {
		return confidential.EUint64{}, confidential.EAddress{}, err
	}
	if err := acl.MakePubliclyDecryptable(c.Contract(), a.highestBidder.Handle()); err != nil {
		return confidential.EUint64{}, confidential.EAddress{}, err
	}
	a.info.Ended = true
	c.Journal().Append(func() {
		h.lock.Lock()
		defer h.lock.Unlock()
		a.info.Ended = false
	})
	h.log.Info("ended auction",
		log.Uint64("id", id),
		log.Int("bidders", a.info.Bidders),
	)
	return a.highestBid, a.highestBidder, nil
}

// Info returns the public state of auction id
func (h *House) Info(id uint64) (Info, error) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	a, err := h.get(id)
	if err != nil {
		return Info{}, err
	}
	return a.info, nil
}

// HasBid reports whether who bid on auction id
func (h *House) HasBid(id uint64, who common.Address) bool {
	h.lock.RLock()
	defer h.lock.RUnlock()

	a, err := h.get(id)
	return err == nil && a.bidders.Contains(who)
}

// BidOf returns the caller's own bid on auction id
func (h *House) BidOf(c *host.Call, id uint64) (confidential.EUint64, error) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	a, err := h.get(id)
	if err != nil {
		return confidential.EUint64{}, err
	}
	bid, ok := a.bids[c.Caller()]
	if !ok {
		return confidential.EUint64{}, fmt.Errorf("%w: no bid from %s on auction %d", confidential.ErrNotFound, c.Caller(), id)
	}
	return bid, nil
}

// must be called with the lock held
func (h *House) get(id uint64) (*auction, error) {
	if id >= uint64(len(h.auctions)) {
		return nil, fmt.Errorf("%w: auction %d", confidential.ErrNotFound, id)
	}
	return h.auctions[id], nil
}

// must be called with the lock held
func (h *House) open(c *host.Call, id uint64) (*auction, error) {
	a, err := h.get(id)
	if err != nil {
		return nil, err
	}
	if a.info.Ended || c.Height() >= a.info.Deadline {
		return nil, fmt.Errorf("%w: auction %d is closed", confidential.ErrClosed, id)
	}
	return a, nil
}

// grant keeps the running maximum usable by the contract
func grant(c *host.Call, handles ...confidential.Handle) error {
	for _, handle := range handles {
		if err := c.ACL().Allow(c.Contract(), handle, c.Contract()); err != nil {
			return err
		}
	}
	return nil
}
