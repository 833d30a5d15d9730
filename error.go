// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package confidential

import "fmt"

// Error is a contract violation. Contract violations abort the whole
// operation; business-logic outcomes are never reported through Error.
type Error struct {
	Code    int32
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("confidential error %d: %s", e.Code, e.Message)
}

// Contract violation codes
const (
	CodeUninitializedValue int32 = iota + 1
	CodeNotAuthorized
	CodeBatchTooLarge
	CodeNotOwner
	CodeNotAdmin
	CodeTypeMismatch
	CodeDivisionByZero
	CodeOverflow
	CodeInvalidInput
	CodeAlreadyExists
	CodeNotFound
	CodeClosed
)

var (
	ErrUninitializedValue = &Error{Code: CodeUninitializedValue, Message: "uninitialized value"}
	ErrNotAuthorized      = &Error{Code: CodeNotAuthorized, Message: "not authorized"}
	ErrBatchTooLarge      = &Error{Code: CodeBatchTooLarge, Message: "batch too large"}
	ErrNotOwner           = &Error{Code: CodeNotOwner, Message: "caller is not the owner"}
	ErrNotAdmin           = &Error{Code: CodeNotAdmin, Message: "caller is not an admin"}
	ErrTypeMismatch       = &Error{Code: CodeTypeMismatch, Message: "type mismatch"}
	ErrDivisionByZero     = &Error{Code: CodeDivisionByZero, Message: "division by zero"}
	ErrOverflow           = &Error{Code: CodeOverflow, Message: "public counter overflow"}
	ErrInvalidInput       = &Error{Code: CodeInvalidInput, Message: "invalid input"}
	ErrAlreadyExists      = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrClosed             = &Error{Code: CodeClosed, Message: "closed"}
)
