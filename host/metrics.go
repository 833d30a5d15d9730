// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/confidential/crypto/fhe"
)

const (
	outcomeCommitted = "committed"
	outcomeReverted  = "reverted"
)

// Metrics counts operations and the FHE work they performed. Only public
// quantities are exported: an operation's cost does not depend on any
// encrypted predicate.
type Metrics struct {
	operations    *prometheus.CounterVec
	fheOperations *prometheus.CounterVec
	fheCost       prometheus.Counter
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "operations_total",
				Help: "Number of logical operations executed",
			},
			[]string{"outcome"},
		),
		fheOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fhe_operations_total",
				Help: "Number of homomorphic operations evaluated by committed and reverted operations",
			},
			[]string{"op"},
		),
		fheCost: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fhe_cost_total",
				Help: "Accumulated cost of homomorphic operations",
			},
		),
	}

	registerer.MustRegister(m.operations)
	registerer.MustRegister(m.fheOperations)
	registerer.MustRegister(m.fheCost)

	return &m
}

func (m *Metrics) observe(outcome string, meter *fhe.Meter) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(outcome).Inc()
	for op, n := range meter.Counts() {
		m.fheOperations.WithLabelValues(op.String()).Add(float64(n))
	}
	m.fheCost.Add(float64(meter.Cost()))
}
