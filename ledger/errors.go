// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package ledger

import "errors"

// Error kinds shared by every layer. Lower layers wrap their failures with one of them.
var (
	// ErrEncoding defines that payload or script could not be encoded.
	ErrEncoding = errors.New("encoding error")
	// ErrInsufficientFunds defines that available funds do not cover required amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNoUTXOFound defines that there is nothing to spend at a required address.
	ErrNoUTXOFound = errors.New("no utxo found")
	// ErrConfirmationTimeout defines that submitted transaction was not observed in time.
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	// ErrTransactionBuild defines that transaction could not be constructed.
	ErrTransactionBuild = errors.New("transaction build failed")
	// ErrExternalService defines that ledger node or token service is unavailable.
	ErrExternalService = errors.New("external service unavailable")
)

// Kinds lists all error kinds in matching priority.
var Kinds = []error{
	ErrEncoding,
	ErrInsufficientFunds,
	ErrNoUTXOFound,
	ErrConfirmationTimeout,
	ErrTransactionBuild,
	ErrExternalService,
}

// KindOf returns the error kind err belongs to, or nil.
func KindOf(err error) error {
	for _, kind := range Kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}

	return nil
}
