// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package ops

import (
	"github.com/holiman/uint256"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/crypto/fhe"
	"github.com/luxfi/confidential/host"
)

func And[T confidential.Bitwise](c *host.Call, a, b confidential.Value[T]) (confidential.Value[T], error) {
	return binary[T, T](c, fhe.OpAnd, a, b.Handle())
}

func Or[T confidential.Bitwise](c *host.Call, a, b confidential.Value[T]) (confidential.Value[T], error) {
	return binary[T, T](c, fhe.OpOr, a, b.Handle())
}

func Xor[T confidential.Bitwise](c *host.Call, a, b confidential.Value[T]) (confidential.Value[T], error) {
	return binary[T, T](c, fhe.OpXor, a, b.Handle())
}

func Not[T confidential.Bitwise](c *host.Call, a confidential.Value[T]) (confidential.Value[T], error) {
	if err := use(c, a.Handle()); err != nil {
		return confidential.Value[T]{}, err
	}
	c.Meter().Charge(fhe.OpNot, confidential.TypeOf[T](), false)
	h, err := c.Engine().Unary(fhe.OpNot, a.Handle())
	return produce[T](c, fhe.OpNot, h, err)
}

// Shift and rotate amounts are taken modulo the bit width of T.

func Shl[T confidential.Integer](c *host.Call, a confidential.Value[T], n confidential.EUint8) (confidential.Value[T], error) {
	return binary[T, T](c, fhe.OpShl, a, n.Handle())
}

func Shr[T confidential.Integer](c *host.Call, a confidential.Value[T], n confidential.EUint8) (confidential.Value[T], error) {
	return binary[T, T](c, fhe.OpShr, a, n.Handle())
}

func Rotl[T confidential.Integer](c *host.Call, a confidential.Value[T], n confidential.EUint8) (confidential.Value[T], error) {
	return binary[T, T](c, fhe.OpRotl, a, n.Handle())
}

func Rotr[T confidential.Integer](c *host.Call, a confidential.Value[T], n confidential.EUint8) (confidential.Value[T], error) {
	return binary[T, T](c, fhe.OpRotr, a, n.Handle())
}

func ShlScalar[T confidential.Integer](c *host.Call, a confidential.Value[T], n uint8) (confidential.Value[T], error) {
	return binaryScalar[T, T](c, fhe.OpShl, a, uint256.NewInt(uint64(n)))
}

func ShrScalar[T confidential.Integer](c *host.Call, a confidential.Value[T], n uint8) (confidential.Value[T], error) {
	return binaryScalar[T, T](c, fhe.OpShr, a, uint256.NewInt(uint64(n)))
}

func RotlScalar[T confidential.Integer](c *host.Call, a confidential.Value[T], n uint8) (confidential.Value[T], error) {
	return binaryScalar[T, T](c, fhe.OpRotl, a, uint256.NewInt(uint64(n)))
}

func RotrScalar[T confidential.Integer](c *host.Call, a confidential.Value[T], n uint8) (confidential.Value[T], error) {
	return binaryScalar[T, T](c, fhe.OpRotr, a, uint256.NewInt(uint64(n)))
}
