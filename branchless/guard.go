// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package branchless turns guarded state updates into single encrypted
// expressions. A Guard collects encrypted requirements into one predicate
// and one status code; updates gated by the predicate move either the full
// delta or zero, at identical cost.
//
// Requirements are applied in ascending priority. When several fail, the
// status of the last one wins.
package branchless

import (
	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/host"
	"github.com/luxfi/confidential/lasterror"
	"github.com/luxfi/confidential/ops"
)

// Guard accumulates requirements for one guarded update. The first error
// is sticky: every later call is a no-op returning it.
type Guard struct {
	c      *host.Call
	pred   confidential.EBool
	status confidential.EUint8
	err    error
}

// New starts a guard whose predicate is true and whose status is None
func New(c *host.Call) *Guard {
	g := &Guard{c: c}
	g.pred, g.err = ops.EncryptBool(c, true)
	if g.err != nil {
		return g
	}
	g.status, g.err = lasterror.Encrypt(c, lasterror.None)
	return g
}

// Require ANDs cond into the predicate and records code if cond is false
func (g *Guard) Require(cond confidential.EBool, code lasterror.Code) *Guard {
	if g.err != nil {
		return g
	}
	if g.pred, g.err = ops.And(g.c, g.pred, cond); g.err != nil {
		return g
	}
	failure, err := lasterror.Encrypt(g.c, code)
	if err != nil {
		g.err = err
		return g
	}
	g.status, g.err = ops.Select(g.c, cond, g.status, failure)
	return g
}

// RequirePlain adds a public condition. It is encrypted first so that the
// guard performs the same work whatever the condition's value.
func (g *Guard) RequirePlain(ok bool, code lasterror.Code) *Guard {
	if g.err != nil {
		return g
	}
	cond, err := ops.EncryptBool(g.c, ok)
	if err != nil {
		g.err = err
		return g
	}
	return g.Require(cond, code)
}

// Predicate returns the conjunction of every requirement
func (g *Guard) Predicate() (confidential.EBool, error) {
	return g.pred, g.err
}

// Status returns the encrypted outcome code
func (g *Guard) Status() (confidential.EUint8, error) {
	return g.status, g.err
}

// Err returns the first error hit while building the guard
func (g *Guard) Err() error {
	return g.err
}

// Gate returns delta when every requirement holds and an encrypted zero
// otherwise.
func Gate[T confidential.Integer](g *Guard, delta confidential.Value[T]) (confidential.Value[T], error) {
	if g.err != nil {
		return confidential.Value[T]{}, g.err
	}
	zero, err := ops.Encrypt[T](g.c, ops.U(0))
	if err != nil {
		g.err = err
		return confidential.Value[T]{}, err
	}
	effective, err := ops.Select(g.c, g.pred, delta, zero)
	if err != nil {
		g.err = err
	}
	return effective, err
}

// Debit gates delta and subtracts the effective amount from balance. It
// returns the new balance and the effective amount.
func Debit[T confidential.Integer](g *Guard, balance, delta confidential.Value[T]) (confidential.Value[T], confidential.Value[T], error) {
	effective, err := Gate(g, delta)
	if err != nil {
		return confidential.Value[T]{}, confidential.Value[T]{}, err
	}
	updated, err := ops.Sub(g.c, balance, effective)
	if err != nil {
		g.err = err
		return confidential.Value[T]{}, confidential.Value[T]{}, err
	}
	return updated, effective, nil
}

// Credit adds an already gated amount to balance
func Credit[T confidential.Integer](c *host.Call, balance, effective confidential.Value[T]) (confidential.Value[T], error) {
	return ops.Add(c, balance, effective)
}
