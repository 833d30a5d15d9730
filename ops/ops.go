// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ops exposes the homomorphic operations available to ledger code.
//
// Every operation checks that its operands are initialized and usable by
// the calling contract, charges the operation's cost meter, and returns a
// brand-new handle registered as created by the calling contract. The new
// handle carries no grants: callers decide who may see it.
package ops

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/crypto/fhe"
	"github.com/luxfi/confidential/host"
)

// use checks that the calling contract may compute on every handle
func use(c *host.Call, handles ...confidential.Handle) error {
	acl := c.ACL()
	for _, h := range handles {
		if !acl.IsInitialized(h) {
			return fmt.Errorf("%w: operand %s", confidential.ErrUninitializedValue, h)
		}
		if !acl.CanUse(h, c.Contract()) {
			return fmt.Errorf("%w: %s may not use %s", confidential.ErrNotAuthorized, c.Contract(), h)
		}
	}
	return nil
}

// CheckSender checks that the caller holds a grant on every handle it
// passed in. Handles supplied by a caller must pass it before a contract
// computes on, stores or forwards them.
func CheckSender(c *host.Call, handles ...confidential.Handle) error {
	acl := c.ACL()
	for _, h := range handles {
		if !acl.IsInitialized(h) {
			return fmt.Errorf("%w: argument %s", confidential.ErrUninitializedValue, h)
		}
		if !acl.IsAllowed(h, c.Caller()) {
			return fmt.Errorf("%w: %s holds no capability on %s", confidential.ErrNotAuthorized, c.Caller(), h)
		}
	}
	return nil
}

// produce types and registers a handle returned by the engine
func produce[T confidential.Scalar](c *host.Call, op fhe.Op, h confidential.Handle, err error) (confidential.Value[T], error) {
	if err != nil {
		return confidential.Value[T]{}, fmt.Errorf("failed to evaluate %s: %w", op, err)
	}
	v, err := confidential.Wrap[T](h)
	if err != nil {
		return confidential.Value[T]{}, err
	}
	if v.IsNull() {
		return confidential.Value[T]{}, fmt.Errorf("%w: %s produced the null handle", confidential.ErrUninitializedValue, op)
	}
	if err := c.ACL().Register(h, c.Contract()); err != nil {
		return confidential.Value[T]{}, err
	}
	return v, nil
}

func binary[T, R confidential.Scalar](c *host.Call, op fhe.Op, a confidential.Value[T], b confidential.Handle) (confidential.Value[R], error) {
	if err := use(c, a.Handle(), b); err != nil {
		return confidential.Value[R]{}, err
	}
	c.Meter().Charge(op, confidential.TypeOf[T](), false)
	h, err := c.Engine().Binary(op, a.Handle(), b)
	return produce[R](c, op, h, err)
}

func binaryScalar[T, R confidential.Scalar](c *host.Call, op fhe.Op, a confidential.Value[T], b *uint256.Int) (confidential.Value[R], error) {
	if b == nil {
		return confidential.Value[R]{}, fmt.Errorf("%w: nil scalar operand to %s", confidential.ErrInvalidInput, op)
	}
	if err := use(c, a.Handle()); err != nil {
		return confidential.Value[R]{}, err
	}
	c.Meter().Charge(op, confidential.TypeOf[T](), true)
	h, err := c.Engine().BinaryScalar(op, a.Handle(), b)
	return produce[R](c, op, h, err)
}

// U is shorthand for a public uint256 operand
func U(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}
