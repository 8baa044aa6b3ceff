// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"fmt"

	"github.com/BoostyLabs/inscriber/ledger"
	"github.com/BoostyLabs/inscriber/ledger/amount"
)

type causerSign string

const (
	// CauserSource defines that the source address funds caused this error.
	CauserSource causerSign = "source"
	// CauserScript defines that the script-hash address funds caused this error.
	CauserScript causerSign = "script"
)

// InsufficientError is the error type to describe insufficient balance errors with details.
type InsufficientError struct {
	Need   uint64 // in base units.
	Have   uint64 // in base units.
	Causer causerSign
}

// NewInsufficientError is a constructor for InsufficientError.
func NewInsufficientError(need, have uint64) *InsufficientError {
	return &InsufficientError{need, have, ""}
}

// Error returns error description.
func (e *InsufficientError) Error() string {
	errMsg := fmt.Sprintf("insufficient funds: Need - %s, Have - %s", amount.String(e.Need), amount.String(e.Have))

	if e.Causer != "" {
		errMsg += " (" + string(e.Causer) + ")"
	}

	return errMsg
}

// Is implements comparator method for [errors] package.
func (e *InsufficientError) Is(target error) bool {
	if target == ledger.ErrInsufficientFunds {
		return true
	}

	other, ok := target.(*InsufficientError)

	return ok && other.Error() == e.Error()
}

// setCauser updates InsufficientError with provided causer.
func (e *InsufficientError) setCauser(causer causerSign) *InsufficientError {
	e.Causer = causer
	return e
}
