// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token is a confidential fungible token: encrypted balances and
// allowances with a public total supply minted by an owner.
package token

import (
	"fmt"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/host"
	"github.com/luxfi/confidential/ledger"
	"github.com/luxfi/confidential/ops"
)

const (
	DefaultDecimals     uint8 = 6
	DefaultMaxBatchSize       = 16
)

// Config holds the public metadata of a token
type Config struct {
	Name         string
	Symbol       string
	Decimals     uint8
	MaxBatchSize int
	Ledger       []ledger.Option
}

// Token is a confidential ERC20. Balances only enter the ledger through
// Mint, so the total supply backs every balance.
type Token struct {
	ledger *ledger.Ledger

	log          log.Logger
	name         string
	symbol       string
	decimals     uint8
	maxBatchSize int

	lock        sync.RWMutex
	owner       common.Address
	totalSupply uint64
}

func New(log log.Logger, owner common.Address, config Config) *Token {
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = DefaultMaxBatchSize
	}
	return &Token{
		ledger:       ledger.New(log, config.Ledger...),
		log:          log,
		name:         config.Name,
		symbol:       config.Symbol,
		decimals:     config.Decimals,
		maxBatchSize: config.MaxBatchSize,
		owner:        owner,
	}
}

func (t *Token) Name() string {
	return t.name
}

func (t *Token) Symbol() string {
	return t.symbol
}

func (t *Token) Decimals() uint8 {
	return t.decimals
}

func (t *Token) MaxBatchSize() int {
	return t.maxBatchSize
}

func (t *Token) Owner() common.Address {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.owner
}

// TotalSupply is public: minted amounts are plaintext
func (t *Token) TotalSupply() uint64 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.totalSupply
}

// Transfer moves amount from the caller to to
func (t *Token) Transfer(c *host.Call, to common.Address, amount confidential.EUint64) error {
	return t.ledger.Transfer(c, to, amount)
}

// Approve sets the amount spender may transfer out of the caller's balance
func (t *Token) Approve(c *host.Call, spender common.Address, amount confidential.EUint64) error {
	return t.ledger.Approve(c, spender, amount)
}

// TransferFrom moves amount from owner to to on behalf of the caller
func (t *Token) TransferFrom(c *host.Call, owner, to common.Address, amount confidential.EUint64) error {
	return t.ledger.TransferFrom(c, owner, to, amount)
}

func (t *Token) BalanceOf(c *host.Call, who common.Address) (confidential.EUint64, error) {
	return t.ledger.BalanceOf(c, who)
}

func (t *Token) Allowance(c *host.Call, owner, spender common.Address) (confidential.EUint64, error) {
	return t.ledger.Allowance(c, owner, spender)
}

func (t *Token) LastError(c *host.Call, who common.Address) (confidential.EUint8, error) {
	return t.ledger.LastError(c, who)
}

// HasBalance reports whether who ever received tokens
func (t *Token) HasBalance(who common.Address) bool {
	return t.ledger.HasBalance(who)
}

// MaxTransfer returns the public cap on a single transfer
func (t *Token) MaxTransfer() uint64 {
	return t.ledger.MaxTransfer()
}

// Mint credits a public amount to to. Only the owner may mint.
func (t *Token) Mint(c *host.Call, to common.Address, amount uint64) error {
	if err := t.onlyOwner(c); err != nil {
		return err
	}
	return t.mint(c, to, amount)
}

// BatchMint mints amounts[i] to recipients[i]. The batch is bounded by the
// public maximum batch size.
func (t *Token) BatchMint(c *host.Call, recipients []common.Address, amounts []uint64) error {
	if err := t.onlyOwner(c); err != nil {
		return err
	}
	if len(recipients) != len(amounts) {
		return fmt.Errorf("%w: %d recipients for %d amounts", confidential.ErrInvalidInput, len(recipients), len(amounts))
	}
	if len(recipients) > t.maxBatchSize {
		return fmt.Errorf("%w: %d exceeds %d", confidential.ErrBatchTooLarge, len(recipients), t.maxBatchSize)
	}
	for i, to := range recipients {
		if err := t.mint(c, to, amounts[i]); err != nil {
			return err
		}
	}
	return nil
}

// TransferOwnership hands the minting role to newOwner
func (t *Token) TransferOwnership(c *host.Call, newOwner common.Address) error {
	if err := t.onlyOwner(c); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return fmt.Errorf("%w: zero owner", confidential.ErrInvalidInput)
	}

	t.lock.Lock()
	prev := t.owner
	t.owner = newOwner
	t.lock.Unlock()

	c.Journal().Append(func() {
		t.lock.Lock()
		defer t.lock.Unlock()
		t.owner = prev
	})
	t.log.Info("transferred token ownership",
		log.String("symbol", t.symbol),
		log.Stringer("from", prev),
		log.Stringer("to", newOwner),
	)
	return nil
}

func (t *Token) mint(c *host.Call, to common.Address, amount uint64) error {
	t.lock.Lock()
	supply, err := confidential.AddUint64(t.totalSupply, amount)
	if err != nil {
		t.lock.Unlock()
		return fmt.Errorf("failed to mint %d: %w", amount, err)
	}
	prev := t.totalSupply
	t.totalSupply = supply
	t.lock.Unlock()

	c.Journal().Append(func() {
		t.lock.Lock()
		defer t.lock.Unlock()
		t.totalSupply = prev
	})

	encrypted, err := ops.EncryptUint64(c, amount)
	if err != nil {
		return err
	}
	if err := t.ledger.Credit(c, to, encrypted); err != nil {
		return err
	}
	t.log.Debug("minted",
		log.Stringer("to", to),
		log.Uint64("amount", amount),
	)
	return nil
}

func (t *Token) onlyOwner(c *host.Call) error {
	if owner := t.Owner(); c.Caller() != owner {
		return fmt.Errorf("%w: %s", confidential.ErrNotOwner, c.Caller())
	}
	return nil
}
