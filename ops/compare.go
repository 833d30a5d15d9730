// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package ops

import (
	"github.com/holiman/uint256"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/crypto/fhe"
	"github.com/luxfi/confidential/host"
)

// Eq and Ne accept every encrypted type, including addresses.

func Eq[T confidential.Scalar](c *host.Call, a, b confidential.Value[T]) (confidential.EBool, error) {
	return binary[T, confidential.Bool](c, fhe.OpEq, a, b.Handle())
}

func Ne[T confidential.Scalar](c *host.Call, a, b confidential.Value[T]) (confidential.EBool, error) {
	return binary[T, confidential.Bool](c, fhe.OpNe, a, b.Handle())
}

func EqScalar[T confidential.Scalar](c *host.Call, a confidential.Value[T], b *uint256.Int) (confidential.EBool, error) {
	return binaryScalar[T, confidential.Bool](c, fhe.OpEq, a, b)
}

func NeScalar[T confidential.Scalar](c *host.Call, a confidential.Value[T], b *uint256.Int) (confidential.EBool, error) {
	return binaryScalar[T, confidential.Bool](c, fhe.OpNe, a, b)
}

func Lt[T confidential.Integer](c *host.Call, a, b confidential.Value[T]) (confidential.EBool, error) {
	return binary[T, confidential.Bool](c, fhe.OpLt, a, b.Handle())
}

func Le[T confidential.Integer](c *host.Call, a, b confidential.Value[T]) (confidential.EBool, error) {
	return binary[T, confidential.Bool](c, fhe.OpLe, a, b.Handle())
}

func Gt[T confidential.Integer](c *host.Call, a, b confidential.Value[T]) (confidential.EBool, error) {
	return binary[T, confidential.Bool](c, fhe.OpGt, a, b.Handle())
}

func Ge[T confidential.Integer](c *host.Call, a, b confidential.Value[T]) (confidential.EBool, error) {
	return binary[T, confidential.Bool](c, fhe.OpGe, a, b.Handle())
}

func LtScalar[T confidential.Integer](c *host.Call, a confidential.Value[T], b *uint256.Int) (confidential.EBool, error) {
	return binaryScalar[T, confidential.Bool](c, fhe.OpLt, a, b)
}

func LeScalar[T confidential.Integer](c *host.Call, a confidential.Value[T], b *uint256.Int) (confidential.EBool, error) {
	return binaryScalar[T, confidential.Bool](c, fhe.OpLe, a, b)
}

func GtScalar[T confidential.Integer](c *host.Call, a confidential.Value[T], b *uint256.Int) (confidential.EBool, error) {
	return binaryScalar[T, confidential.Bool](c, fhe.OpGt, a, b)
}

func GeScalar[T confidential.Integer](c *host.Call, a confidential.Value[T], b *uint256.Int) (confidential.EBool, error) {
	return binaryScalar[T, confidential.Bool](c, fhe.OpGe, a, b)
}
