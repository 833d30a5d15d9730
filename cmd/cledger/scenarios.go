// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/luxfi/confidential/lasterror"
)

func depositScenario(d *demo) error {
	if err := d.deposit(alice, 1000); err != nil {
		return err
	}
	return d.expectBalance(alice, 1000)
}

func transferScenario(d *demo) error {
	if err := d.deposit(alice, 1000); err != nil {
		return err
	}
	if err := d.transfer(alice, bob, 300); err != nil {
		return err
	}
	if err := d.expectBalance(alice, 700); err != nil {
		return err
	}
	if err := d.expectBalance(bob, 300); err != nil {
		return err
	}
	return d.expectStatus(alice, lasterror.None)
}

func insufficientBalanceScenario(d *demo) error {
	if err := d.deposit(alice, 100); err != nil {
		return err
	}
	if err := d.transfer(alice, bob, 200); err != nil {
		return err
	}
	if err := d.expectBalance(alice, 100); err != nil {
		return err
	}
	if err := d.expectBalance(bob, 0); err != nil {
		return err
	}
	return d.expectStatus(alice, lasterror.InsufficientBalance)
}

func insufficientAllowanceScenario(d *demo) error {
	if err := d.deposit(alice, 1000); err != nil {
		return err
	}
	if err := d.approve(alice, bob, 100); err != nil {
		return err
	}
	if err := d.transferFrom(bob, alice, bob, 200); err != nil {
		return err
	}
	if err := d.expectBalance(alice, 1000); err != nil {
		return err
	}
	allowance, err := d.allowance(alice, bob)
	if err != nil {
		return err
	}
	if allowance != 100 {
		return fmt.Errorf("allowance is %d, expected 100", allowance)
	}
	return d.expectStatus(bob, lasterror.InsufficientAllowance)
}

func sequentialScenario(d *demo) error {
	if err := d.deposit(alice, 1000); err != nil {
		return err
	}
	for _, amount := range []uint64{200, 300} {
		if err := d.transfer(alice, bob, amount); err != nil {
			return err
		}
	}
	if err := d.expectBalance(alice, 500); err != nil {
		return err
	}
	return d.expectBalance(bob, 500)
}

func freshWithdrawScenario(d *demo) error {
	effective, err := d.withdraw(carol, 50)
	if err != nil {
		return err
	}
	if effective != 0 {
		return fmt.Errorf("withdrew %d from an empty entry", effective)
	}
	if err := d.expectBalance(carol, 0); err != nil {
		return err
	}
	return d.expectStatus(carol, lasterror.InsufficientBalance)
}
