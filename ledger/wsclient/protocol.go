// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package wsclient

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/BoostyLabs/inscriber/ledger"
)

// RPC method names.
const (
	MethodGetServerInfo           = "getServerInfo"
	MethodGetUTXOsByAddresses     = "getUtxosByAddresses"
	MethodSubscribeUTXOsChanged   = "subscribeUtxosChanged"
	MethodUnsubscribeUTXOsChanged = "unsubscribeUtxosChanged"
	MethodSubmitTransaction       = "submitTransaction"
	// NotificationUTXOsChanged is sent by node for subscribed addresses.
	NotificationUTXOsChanged = "utxosChangedNotification"
)

const jsonRPCVersion = "2.0"

// Message is a JSON-RPC 2.0 request, response or notification.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is an error returned by node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ServerInfo is a getServerInfo result.
type ServerInfo struct {
	ServerVersion string `json:"serverVersion"`
	NetworkID     string `json:"networkId"`
	IsSynced      bool   `json:"isSynced"`
}

// AddressesParams lists addresses of request.
type AddressesParams struct {
	Addresses []string `json:"addresses"`
}

// OutpointEntry is an outpoint on the wire.
type OutpointEntry struct {
	TransactionID string `json:"transactionId"`
	Index         uint32 `json:"index"`
}

// UTXOEntry is an output data on the wire.
type UTXOEntry struct {
	Amount          uint64 `json:"amount,string"`
	ScriptPublicKey string `json:"scriptPublicKey"`
}

// UTXOEntryByAddress is an unspent output with its owner.
type UTXOEntryByAddress struct {
	Address   string        `json:"address"`
	Outpoint  OutpointEntry `json:"outpoint"`
	UTXOEntry UTXOEntry     `json:"utxoEntry"`
}

// UTXOsResult is a getUtxosByAddresses result.
type UTXOsResult struct {
	Entries []UTXOEntryByAddress `json:"entries"`
}

// RemovedEntry is a consumed output with its owner.
type RemovedEntry struct {
	Address  string        `json:"address"`
	Outpoint OutpointEntry `json:"outpoint"`
}

// UTXOsChanged is a utxosChangedNotification params.
type UTXOsChanged struct {
	Added   []UTXOEntryByAddress `json:"added"`
	Removed []RemovedEntry       `json:"removed"`
}

// SubmitParams is a submitTransaction params.
type SubmitParams struct {
	Transaction string `json:"transaction"` // hex encoded serialized transaction.
}

// SubmitResult is a submitTransaction result.
type SubmitResult struct {
	TransactionID string `json:"transactionId"`
}

// toUTXO converts wire entry into ledger UTXO.
func (e UTXOEntryByAddress) toUTXO() (ledger.UTXO, error) {
	script, err := hex.DecodeString(e.UTXOEntry.ScriptPublicKey)
	if err != nil {
		return ledger.UTXO{}, fmt.Errorf("invalid script of %s:%d: %w", e.Outpoint.TransactionID, e.Outpoint.Index, err)
	}

	return ledger.UTXO{
		Outpoint: ledger.Outpoint{TxID: e.Outpoint.TransactionID, Index: e.Outpoint.Index},
		Amount:   e.UTXOEntry.Amount,
		Address:  e.Address,
		Script:   script,
	}, nil
}

// toChange converts notification into ledger change.
func (n UTXOsChanged) toChange() (ledger.UTXOChange, error) {
	change := ledger.UTXOChange{
		Added:   make([]ledger.UTXO, 0, len(n.Added)),
		Removed: make([]ledger.OutpointRef, 0, len(n.Removed)),
	}

	for _, entry := range n.Added {
		utxo, err := entry.toUTXO()
		if err != nil {
			return ledger.UTXOChange{}, err
		}

		change.Added = append(change.Added, utxo)
	}

	for _, entry := range n.Removed {
		change.Removed = append(change.Removed, ledger.OutpointRef{
			Outpoint: ledger.Outpoint{TxID: entry.Outpoint.TransactionID, Index: entry.Outpoint.Index},
			Address:  entry.Address,
		})
	}

	return change, nil
}

// filter returns part of change related to addresses.
func filter(change ledger.UTXOChange, addresses map[string]struct{}) (ledger.UTXOChange, bool) {
	var filtered ledger.UTXOChange
	for _, utxo := range change.Added {
		if _, ok := addresses[utxo.Address]; ok {
			filtered.Added = append(filtered.Added, utxo)
		}
	}

	for _, ref := range change.Removed {
		if _, ok := addresses[ref.Address]; ok {
			filtered.Removed = append(filtered.Removed, ref)
		}
	}

	return filtered, len(filtered.Added)+len(filtered.Removed) > 0
}
