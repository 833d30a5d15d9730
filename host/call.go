// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/confidential/acl"
	"github.com/luxfi/confidential/crypto/fhe"
)

// Call is the context of one operation in flight. It is only valid inside
// the function passed to Env.Execute.
type Call struct {
	env      *Env
	caller   common.Address
	contract common.Address
	height   uint64
	meter    *fhe.Meter
}

// Caller returns the principal that issued the operation
func (c *Call) Caller() common.Address {
	return c.caller
}

// Contract returns the identity the operation executes as
func (c *Call) Contract() common.Address {
	return c.contract
}

// Height returns the block height the operation executes at
func (c *Call) Height() uint64 {
	return c.height
}

// Engine returns the FHE engine
func (c *Call) Engine() fhe.Engine {
	return c.env.engine
}

// ACL returns the capability registry
func (c *Call) ACL() *acl.Registry {
	return c.env.acl
}

// Journal returns the undo journal storage writes must be recorded in
func (c *Call) Journal() *Journal {
	return c.env.journal
}

// Meter returns the cost meter of this operation
func (c *Call) Meter() *fhe.Meter {
	return c.meter
}

// Log returns the environment logger
func (c *Call) Log() log.Logger {
	return c.env.log
}
