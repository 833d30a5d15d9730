// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import "fmt"

// Op is a homomorphic operation
type Op uint8

const (
	OpTrivial Op = iota
	OpVerify
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpNot
	OpShl
	OpShr
	OpRotl
	OpRotr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpMin
	OpMax
	OpSelect
	OpCast
	OpRand
)

var opNames = [...]string{
	OpTrivial: "trivial",
	OpVerify:  "verify",
	OpAdd:     "add",
	OpSub:     "sub",
	OpMul:     "mul",
	OpDiv:     "div",
	OpRem:     "rem",
	OpAnd:     "and",
	OpOr:      "or",
	OpXor:     "xor",
	OpNot:     "not",
	OpShl:     "shl",
	OpShr:     "shr",
	OpRotl:    "rotl",
	OpRotr:    "rotr",
	OpEq:      "eq",
	OpNe:      "ne",
	OpLt:      "lt",
	OpLe:      "le",
	OpGt:      "gt",
	OpGe:      "ge",
	OpMin:     "min",
	OpMax:     "max",
	OpSelect:  "select",
	OpCast:    "cast",
	OpRand:    "rand",
}

func (op Op) String() string {
	if int(op) >= len(opNames) {
		return fmt.Sprintf("op(%d)", uint8(op))
	}
	return opNames[op]
}

// IsComparison reports whether op produces an encrypted boolean
func (op Op) IsComparison() bool {
	return op >= OpEq && op <= OpGe
}

// IsShift reports whether op is a shift or rotation
func (op Op) IsShift() bool {
	return op >= OpShl && op <= OpRotr
}
