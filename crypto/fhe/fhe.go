// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fhe defines the boundary to the external fully homomorphic
// encryption engine. The engine owns ciphertexts and evaluates operations
// on them; callers only ever see opaque handles.
package fhe

import (
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/confidential"
)

// Engine evaluates homomorphic operations over handles. Every successful
// call returns a handle that did not exist before; existing handles are
// never modified.
type Engine interface {
	// Trivial encrypts a public value
	Trivial(v *uint256.Int, t confidential.Type) (confidential.Handle, error)

	// Unary evaluates a one-operand operation (OpNot)
	Unary(op Op, a confidential.Handle) (confidential.Handle, error)

	// Binary evaluates op over two encrypted operands of the same type
	Binary(op Op, a, b confidential.Handle) (confidential.Handle, error)

	// BinaryScalar evaluates op with a public right-hand operand
	BinaryScalar(op Op, a confidential.Handle, b *uint256.Int) (confidential.Handle, error)

	// Select returns a when cond decrypts to true and b otherwise
	Select(cond, a, b confidential.Handle) (confidential.Handle, error)

	// Cast converts between integer types, truncating or zero-extending
	Cast(a confidential.Handle, to confidential.Type) (confidential.Handle, error)

	// Rand produces a fresh random value, below upperBound when it is non-nil
	Rand(t confidential.Type, upperBound *uint256.Int) (confidential.Handle, error)

	// VerifyInput checks an input ciphertext and its proof against the
	// (contract, user) pair it was bound to by the client.
	VerifyInput(in Input, contract, user common.Address) (confidential.Handle, error)

	// TypeOf returns the type of a handle the engine knows about
	TypeOf(h confidential.Handle) (confidential.Type, bool)
}

// Decrypter is the engine side of capability-gated disclosure. Only the
// gateway holds one; ledger code never decrypts.
type Decrypter interface {
	Decrypt(h confidential.Handle) (*uint256.Int, error)
}

// Input is a client-produced encrypted input. The core treats both fields
// as opaque and hands them to the engine for validation.
type Input struct {
	Ciphertext []byte
	Proof      []byte
}

var (
	// ErrInvalidCiphertext is returned when a ciphertext is malformed
	ErrInvalidCiphertext = errors.New("invalid ciphertext")

	// ErrIncompatibleCiphertexts is returned when ciphertexts can't be combined
	ErrIncompatibleCiphertexts = errors.New("incompatible ciphertexts")

	// ErrInvalidProof is returned when an input proof does not verify for
	// the contract and user it is presented with
	ErrInvalidProof = errors.New("invalid input proof")

	// ErrUnknownHandle is returned for handles the engine never produced
	ErrUnknownHandle = errors.New("unknown handle")

	// ErrUnsupportedOp is returned when op is not defined for the operand type
	ErrUnsupportedOp = errors.New("unsupported operation")
)
