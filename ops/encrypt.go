// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package ops

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/crypto/fhe"
	"github.com/luxfi/confidential/host"
)

// Select returns a when cond decrypts to true and b otherwise. Both a and b
// have already been computed by the caller, so both are always paid for.
func Select[T confidential.Scalar](c *host.Call, cond confidential.EBool, a, b confidential.Value[T]) (confidential.Value[T], error) {
	if err := use(c, cond.Handle(), a.Handle(), b.Handle()); err != nil {
		return confidential.Value[T]{}, err
	}
	c.Meter().Charge(fhe.OpSelect, confidential.TypeOf[T](), false)
	h, err := c.Engine().Select(cond.Handle(), a.Handle(), b.Handle())
	return produce[T](c, fhe.OpSelect, h, err)
}

// Encrypt trivially encrypts a public value. The result is a ciphertext
// like any other and is indistinguishable from one produced by computation.
func Encrypt[T confidential.Integer](c *host.Call, v *uint256.Int) (confidential.Value[T], error) {
	if v == nil {
		return confidential.Value[T]{}, fmt.Errorf("%w: nil plaintext", confidential.ErrInvalidInput)
	}
	return trivial[T](c, v)
}

// EncryptUint64 trivially encrypts v as an euint64
func EncryptUint64(c *host.Call, v uint64) (confidential.EUint64, error) {
	return trivial[confidential.Uint64](c, uint256.NewInt(v))
}

func EncryptBool(c *host.Call, b bool) (confidential.EBool, error) {
	v := new(uint256.Int)
	if b {
		v.SetOne()
	}
	return trivial[confidential.Bool](c, v)
}

func EncryptAddress(c *host.Call, addr common.Address) (confidential.EAddress, error) {
	return trivial[confidential.Address](c, new(uint256.Int).SetBytes(addr.Bytes()))
}

func trivial[T confidential.Scalar](c *host.Call, v *uint256.Int) (confidential.Value[T], error) {
	t := confidential.TypeOf[T]()
	c.Meter().Charge(fhe.OpTrivial, t, true)
	h, err := c.Engine().Trivial(v, t)
	return produce[T](c, fhe.OpTrivial, h, err)
}

// Cast converts a to type To, truncating or zero-extending. Casting to ebool
// yields a != 0.
func Cast[From, To confidential.Bitwise](c *host.Call, a confidential.Value[From]) (confidential.Value[To], error) {
	if err := use(c, a.Handle()); err != nil {
		return confidential.Value[To]{}, err
	}
	to := confidential.TypeOf[To]()
	c.Meter().Charge(fhe.OpCast, to, true)
	h, err := c.Engine().Cast(a.Handle(), to)
	return produce[To](c, fhe.OpCast, h, err)
}

// FromExternal validates a client-encrypted input bound to the calling
// contract and the caller. The caller holds a transient grant on the
// returned value so it passes CheckSender for the rest of the operation; to
// keep it, the contract must grant itself.
func FromExternal[T confidential.Scalar](c *host.Call, in fhe.Input) (confidential.Value[T], error) {
	t := confidential.TypeOf[T]()
	c.Meter().Charge(fhe.OpVerify, t, false)
	h, err := c.Engine().VerifyInput(in, c.Contract(), c.Caller())
	if err != nil {
		return confidential.Value[T]{}, fmt.Errorf("%w: %w", confidential.ErrInvalidInput, err)
	}
	if got, ok := c.Engine().TypeOf(h); !ok || got != t {
		return confidential.Value[T]{}, fmt.Errorf("%w: input is %s, expected %s", confidential.ErrTypeMismatch, got, t)
	}
	v, err := produce[T](c, fhe.OpVerify, h, nil)
	if err != nil {
		return confidential.Value[T]{}, err
	}
	if err := c.ACL().AllowTransient(c.Contract(), h, c.Caller()); err != nil {
		return confidential.Value[T]{}, err
	}
	return v, nil
}

// Rand returns a fresh encrypted random value
func Rand[T confidential.Bitwise](c *host.Call) (confidential.Value[T], error) {
	t := confidential.TypeOf[T]()
	c.Meter().Charge(fhe.OpRand, t, false)
	h, err := c.Engine().Rand(t, nil)
	return produce[T](c, fhe.OpRand, h, err)
}

// RandBounded returns a fresh encrypted random value below upper, which
// must be a non-zero power of two.
func RandBounded[T confidential.Integer](c *host.Call, upper *uint256.Int) (confidential.Value[T], error) {
	if upper == nil || upper.IsZero() {
		return confidential.Value[T]{}, fmt.Errorf("%w: zero random bound", confidential.ErrInvalidInput)
	}
	minusOne := new(uint256.Int).Sub(upper, uint256.NewInt(1))
	if !new(uint256.Int).And(upper, minusOne).IsZero() {
		return confidential.Value[T]{}, fmt.Errorf("%w: random bound %s is not a power of two", confidential.ErrInvalidInput, upper)
	}
	t := confidential.TypeOf[T]()
	c.Meter().Charge(fhe.OpRand, t, true)
	h, err := c.Engine().Rand(t, upper)
	return produce[T](c, fhe.OpRand, h, err)
}
