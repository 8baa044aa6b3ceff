// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package ledger

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// Outpoint identifies an output by the transaction that created it and its index.
type Outpoint struct {
	TxID  string
	Index uint32 // output index in transaction outputs.
}

// String returns outpoint in "txid:index" form.
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID, o.Index)
}

// UTXO describes unspent transaction output data.
type UTXO struct {
	Outpoint Outpoint
	Amount   uint64 // in base units.
	Address  string // output recipient address.
	Script   []byte // ScriptPubKey, optional.
}

// OutpointRef describes a consumed output together with its owning address.
type OutpointRef struct {
	Outpoint Outpoint
	Address  string
}

// UTXOChange is a single ledger change notification.
type UTXOChange struct {
	Added   []UTXO
	Removed []OutpointRef
}

// Subscription delivers change notifications for the subscribed addresses.
type Subscription interface {
	// Changes returns notifications channel, closed when subscription ends.
	Changes() <-chan UTXOChange
	// Close ends subscription.
	Close() error
}

// Client defines ledger node operations used by the flows.
type Client interface {
	// UTXOsByAddress returns current unspent outputs of the address.
	UTXOsByAddress(ctx context.Context, address string) ([]UTXO, error)
	// Subscribe starts delivering change notifications for provided addresses.
	Subscribe(ctx context.Context, addresses []string) (Subscription, error)
	// Submit broadcasts signed transaction and returns its id.
	Submit(ctx context.Context, tx *wire.MsgTx) (string, error)
	// Close releases connection resources.
	Close() error
}

// Dialer opens a fresh Client connection.
type Dialer interface {
	Dial(ctx context.Context) (Client, error)
}
