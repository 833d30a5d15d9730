// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package ops

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/crypto/fhe"
	"github.com/luxfi/confidential/host"
)

// Add returns a + b, wrapping around on overflow
func Add[T confidential.Integer](c *host.Call, a, b confidential.Value[T]) (confidential.Value[T], error) {
	return binary[T, T](c, fhe.OpAdd, a, b.Handle())
}

// Sub returns a - b, wrapping around on underflow
func Sub[T confidential.Integer](c *host.Call, a, b confidential.Value[T]) (confidential.Value[T], error) {
	return binary[T, T](c, fhe.OpSub, a, b.Handle())
}

// Mul returns a * b, wrapping around on overflow
func Mul[T confidential.Integer](c *host.Call, a, b confidential.Value[T]) (confidential.Value[T], error) {
	return binary[T, T](c, fhe.OpMul, a, b.Handle())
}

func AddScalar[T confidential.Integer](c *host.Call, a confidential.Value[T], b *uint256.Int) (confidential.Value[T], error) {
	return binaryScalar[T, T](c, fhe.OpAdd, a, b)
}

func SubScalar[T confidential.Integer](c *host.Call, a confidential.Value[T], b *uint256.Int) (confidential.Value[T], error) {
	return binaryScalar[T, T](c, fhe.OpSub, a, b)
}

func MulScalar[T confidential.Integer](c *host.Call, a confidential.Value[T], b *uint256.Int) (confidential.Value[T], error) {
	return binaryScalar[T, T](c, fhe.OpMul, a, b)
}

// DivScalar returns a / b. Division is only defined for a public divisor.
func DivScalar[T confidential.Integer](c *host.Call, a confidential.Value[T], b *uint256.Int) (confidential.Value[T], error) {
	if b != nil && b.IsZero() {
		return confidential.Value[T]{}, fmt.Errorf("%w: %s", confidential.ErrDivisionByZero, fhe.OpDiv)
	}
	return binaryScalar[T, T](c, fhe.OpDiv, a, b)
}

// RemScalar returns a mod b for a public divisor b
func RemScalar[T confidential.Integer](c *host.Call, a confidential.Value[T], b *uint256.Int) (confidential.Value[T], error) {
	if b != nil && b.IsZero() {
		return confidential.Value[T]{}, fmt.Errorf("%w: %s", confidential.ErrDivisionByZero, fhe.OpRem)
	}
	return binaryScalar[T, T](c, fhe.OpRem, a, b)
}

func Min[T confidential.Integer](c *host.Call, a, b confidential.Value[T]) (confidential.Value[T], error) {
	return binary[T, T](c, fhe.OpMin, a, b.Handle())
}

func Max[T confidential.Integer](c *host.Call, a, b confidential.Value[T]) (confidential.Value[T], error) {
	return binary[T, T](c, fhe.OpMax, a, b.Handle())
}

func MinScalar[T confidential.Integer](c *host.Call, a confidential.Value[T], b *uint256.Int) (confidential.Value[T], error) {
	return binaryScalar[T, T](c, fhe.OpMin, a, b)
}

func MaxScalar[T confidential.Integer](c *host.Call, a confidential.Value[T], b *uint256.Int) (confidential.Value[T], error) {
	return binaryScalar[T, T](c, fhe.OpMax, a, b)
}
