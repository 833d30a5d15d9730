// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package host models the execution environment that calls into the
// confidential core: caller identity, block height and atomic operations.
package host

import (
	"context"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/confidential/acl"
	"github.com/luxfi/confidential/crypto/fhe"
)

// Receipt describes the public cost of one operation
type Receipt struct {
	Ops  int
	Cost uint64
}

// Option configures an Env
type Option func(*Env)

// WithCosts prices FHE operations with table
func WithCosts(table fhe.CostTable) Option {
	return func(e *Env) {
		e.costs = table
	}
}

// WithMetrics reports every operation to m
func WithMetrics(m *Metrics) Option {
	return func(e *Env) {
		e.metrics = m
	}
}

// WithHeight sets the starting block height
func WithHeight(height uint64) Option {
	return func(e *Env) {
		e.height = height
	}
}

// Env owns the capability registry, the undo journal and the engine
// connection. Operations run one at a time, in submission order.
type Env struct {
	log     log.Logger
	engine  fhe.Engine
	acl     *acl.Registry
	journal *Journal
	costs   fhe.CostTable
	metrics *Metrics

	lock   sync.Mutex
	height uint64
}

// NewEnv returns an Env evaluating on engine
func NewEnv(log log.Logger, engine fhe.Engine, opts ...Option) *Env {
	journal := &Journal{}
	e := &Env{
		log:     log,
		engine:  engine,
		journal: journal,
		acl:     acl.New(log, journal),
		costs:   fhe.DefaultCosts(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ACL returns the capability registry
func (e *Env) ACL() *acl.Registry {
	return e.acl
}

// Engine returns the FHE engine
func (e *Env) Engine() fhe.Engine {
	return e.engine
}

// Height returns the current block height
func (e *Env) Height() uint64 {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.height
}

// AdvanceBlocks moves the block height forward by n
func (e *Env) AdvanceBlocks(n uint64) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.height += n
}

// Execute runs fn as one atomic operation issued by caller against the
// contract identity contract. If fn returns an error every journaled
// handle, capability and storage write it made is rolled back. Transient
// grants are dropped in both cases. fn must not call Execute.
func (e *Env) Execute(
	ctx context.Context,
	caller common.Address,
	contract common.Address,
	fn func(*Call) error,
) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	call := &Call{
		env:      e,
		caller:   caller,
		contract: contract,
		height:   e.height,
		meter:    fhe.NewMeter(e.costs),
	}

	snapshot := e.journal.Snapshot()
	err := fn(call)
	receipt := Receipt{
		Ops:  call.meter.Ops(),
		Cost: call.meter.Cost(),
	}
	if err != nil {
		e.journal.RevertToSnapshot(snapshot)
		e.metrics.observe(outcomeReverted, call.meter)
		e.log.Debug("operation reverted",
			log.Stringer("caller", caller),
			log.Stringer("contract", contract),
			log.Err(err),
		)
	} else {
		e.journal.Commit()
		e.metrics.observe(outcomeCommitted, call.meter)
	}
	e.acl.EndOperation()
	return receipt, err
}
