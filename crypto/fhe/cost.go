// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"github.com/luxfi/confidential"
)

// Cost is the price of one operation at the base width
type Cost struct {
	Scalar    uint64
	NonScalar uint64
}

// CostTable prices operations. Scalar prices apply when the right-hand
// operand is public.
type CostTable map[Op]Cost

var typeScale = map[confidential.Type]uint64{
	confidential.TypeBool:    1,
	confidential.TypeUint8:   1,
	confidential.TypeUint16:  2,
	confidential.TypeUint32:  3,
	confidential.TypeUint64:  4,
	confidential.TypeUint128: 6,
	confidential.TypeUint256: 8,
	confidential.TypeAddress: 4,
}

// DefaultCosts returns the default cost table
func DefaultCosts() CostTable {
	return CostTable{
		OpTrivial: {Scalar: 1, NonScalar: 1},
		OpVerify:  {Scalar: 10, NonScalar: 10},
		OpAdd:     {Scalar: 12, NonScalar: 20},
		OpSub:     {Scalar: 12, NonScalar: 20},
		OpMul:     {Scalar: 30, NonScalar: 60},
		OpDiv:     {Scalar: 80, NonScalar: 80},
		OpRem:     {Scalar: 90, NonScalar: 90},
		OpAnd:     {Scalar: 6, NonScalar: 8},
		OpOr:      {Scalar: 6, NonScalar: 8},
		OpXor:     {Scalar: 6, NonScalar: 8},
		OpNot:     {Scalar: 4, NonScalar: 4},
		OpShl:     {Scalar: 8, NonScalar: 20},
		OpShr:     {Scalar: 8, NonScalar: 20},
		OpRotl:    {Scalar: 8, NonScalar: 20},
		OpRotr:    {Scalar: 8, NonScalar: 20},
		OpEq:      {Scalar: 10, NonScalar: 15},
		OpNe:      {Scalar: 10, NonScalar: 15},
		OpLt:      {Scalar: 12, NonScalar: 18},
		OpLe:      {Scalar: 12, NonScalar: 18},
		OpGt:      {Scalar: 12, NonScalar: 18},
		OpGe:      {Scalar: 12, NonScalar: 18},
		OpMin:     {Scalar: 25, NonScalar: 30},
		OpMax:     {Scalar: 25, NonScalar: 30},
		OpSelect:  {Scalar: 12, NonScalar: 12},
		OpCast:    {Scalar: 4, NonScalar: 4},
		OpRand:    {Scalar: 25, NonScalar: 25},
	}
}

// Of returns the price of op over operands of type t
func (c CostTable) Of(op Op, t confidential.Type, scalar bool) uint64 {
	cost := c[op]
	base := cost.NonScalar
	if scalar {
		base = cost.Scalar
	}
	scale, ok := typeScale[t]
	if !ok {
		scale = 1
	}
	return base * scale
}

// Meter accumulates the cost of the operations charged to one logical
// operation. It is not safe for concurrent use.
type Meter struct {
	table CostTable
	ops   int
	cost  uint64
	byOp  map[Op]int
}

// NewMeter returns a Meter pricing with table. A nil table uses DefaultCosts.
func NewMeter(table CostTable) *Meter {
	if table == nil {
		table = DefaultCosts()
	}
	return &Meter{
		table: table,
		byOp:  make(map[Op]int),
	}
}

// Charge records one operation and returns its price
func (m *Meter) Charge(op Op, t confidential.Type, scalar bool) uint64 {
	price := m.table.Of(op, t, scalar)
	m.ops++
	m.cost += price
	m.byOp[op]++
	return price
}

// Ops returns the number of operations charged
func (m *Meter) Ops() int {
	return m.ops
}

// Cost returns the accumulated price
func (m *Meter) Cost() uint64 {
	return m.cost
}

// Count returns how many times op was charged
func (m *Meter) Count(op Op) int {
	return m.byOp[op]
}

// Counts returns a copy of the per-op counters
func (m *Meter) Counts() map[Op]int {
	counts := make(map[Op]int, len(m.byOp))
	for op, n := range m.byOp {
		counts[op] = n
	}
	return counts
}
