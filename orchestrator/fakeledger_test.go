// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package orchestrator_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/inscriber/ledger"
)

// fakeLedger is an in-memory ledger verifying and applying submitted transactions.
type fakeLedger struct {
	t      *testing.T
	params *chaincfg.Params

	mu         sync.Mutex
	utxos      map[ledger.Outpoint]ledger.UTXO
	subs       map[*fakeSubscription]struct{}
	submitted  []*wire.MsgTx
	attempts   int
	failSubmit func(attempt int) error
	silent     bool // apply transactions without notifications.
	funded     int
	dials      int
	closes     int
}

// ensures that fakeLedger implements ledger.Dialer.
var _ ledger.Dialer = (*fakeLedger)(nil)

func newFakeLedger(t *testing.T, params *chaincfg.Params) *fakeLedger {
	return &fakeLedger{
		t:      t,
		params: params,
		utxos:  make(map[ledger.Outpoint]ledger.UTXO),
		subs:   make(map[*fakeSubscription]struct{}),
	}
}

func (l *fakeLedger) Dial(context.Context) (ledger.Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.dials++

	return &fakeClient{ledger: l}, nil
}

// fund creates utxos of amounts at address.
func (l *fakeLedger) fund(address string, amounts ...uint64) []ledger.UTXO {
	script := l.payToAddress(address)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.funded++
	txID := chainhash.HashH([]byte(fmt.Sprintf("funding-%d", l.funded))).String()

	utxos := make([]ledger.UTXO, 0, len(amounts))
	for idx, value := range amounts {
		utxo := ledger.UTXO{
			Outpoint: ledger.Outpoint{TxID: txID, Index: uint32(idx)},
			Amount:   value,
			Address:  address,
			Script:   script,
		}
		l.utxos[utxo.Outpoint] = utxo
		utxos = append(utxos, utxo)
	}

	return utxos
}

func (l *fakeLedger) payToAddress(address string) []byte {
	decoded, err := btcutil.DecodeAddress(address, l.params)
	require.NoError(l.t, err)

	script, err := txscript.PayToAddrScript(decoded)
	require.NoError(l.t, err)

	return script
}

// utxosOf returns utxos of address ordered by outpoint.
func (l *fakeLedger) utxosOf(address string) []ledger.UTXO {
	l.mu.Lock()
	defer l.mu.Unlock()

	var utxos []ledger.UTXO
	for _, utxo := range l.utxos {
		if utxo.Address == address {
			utxos = append(utxos, utxo)
		}
	}

	sort.Slice(utxos, func(i, j int) bool {
		if utxos[i].Outpoint.TxID != utxos[j].Outpoint.TxID {
			return utxos[i].Outpoint.TxID < utxos[j].Outpoint.TxID
		}
		return utxos[i].Outpoint.Index < utxos[j].Outpoint.Index
	})

	return utxos
}

func (l *fakeLedger) balance(address string) uint64 {
	var total uint64
	for _, utxo := range l.utxosOf(address) {
		total += utxo.Amount
	}

	return total
}

func (l *fakeLedger) transactions() []*wire.MsgTx {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]*wire.MsgTx(nil), l.submitted...)
}

func (l *fakeLedger) submitAttempts() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.attempts
}

func (l *fakeLedger) setFailSubmit(fail func(attempt int) error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.failSubmit = fail
}

func (l *fakeLedger) dialCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.dials
}

// released reports whether every dialed client and subscription is closed.
func (l *fakeLedger) released() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.dials == l.closes && len(l.subs) == 0
}

// submit verifies signatures and amounts of tx and applies it.
func (l *fakeLedger) submit(tx *wire.MsgTx) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.attempts++
	if l.failSubmit != nil {
		if err := l.failSubmit(l.attempts); err != nil {
			return "", err
		}
	}

	prevOuts := make(map[wire.OutPoint]*wire.TxOut, len(tx.TxIn))
	spent := make([]ledger.UTXO, 0, len(tx.TxIn))
	var inputAmount int64
	for _, txIn := range tx.TxIn {
		outpoint := ledger.Outpoint{TxID: txIn.PreviousOutPoint.Hash.String(), Index: txIn.PreviousOutPoint.Index}
		utxo, ok := l.utxos[outpoint]
		if !ok {
			return "", fmt.Errorf("%w: missing input %s", ledger.ErrTransactionBuild, outpoint)
		}

		prevOuts[txIn.PreviousOutPoint] = wire.NewTxOut(int64(utxo.Amount), utxo.Script)
		spent = append(spent, utxo)
		inputAmount += int64(utxo.Amount)
	}

	fetcher := txscript.NewMultiPrevOutFetcher(prevOuts)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	for idx, utxo := range spent {
		engine, err := txscript.NewEngine(utxo.Script, tx, idx, txscript.StandardVerifyFlags, nil, sigHashes, int64(utxo.Amount), fetcher)
		if err != nil {
			return "", fmt.Errorf("%w: input %d: %w", ledger.ErrTransactionBuild, idx, err)
		}
		if err = engine.Execute(); err != nil {
			return "", fmt.Errorf("%w: input %d: %w", ledger.ErrTransactionBuild, idx, err)
		}
	}

	var outputAmount int64
	for _, txOut := range tx.TxOut {
		outputAmount += txOut.Value
	}
	if outputAmount > inputAmount {
		return "", fmt.Errorf("%w: outputs %d exceed inputs %d", ledger.ErrTransactionBuild, outputAmount, inputAmount)
	}

	txID := tx.TxHash().String()
	var change ledger.UTXOChange
	for _, utxo := range spent {
		delete(l.utxos, utxo.Outpoint)
		change.Removed = append(change.Removed, ledger.OutpointRef{Outpoint: utxo.Outpoint, Address: utxo.Address})
	}
	for idx, txOut := range tx.TxOut {
		_, addrs, _, err := txscript.ExtractPkScriptAddrs(txOut.PkScript, l.params)
		require.NoError(l.t, err)
		require.Len(l.t, addrs, 1)

		utxo := ledger.UTXO{
			Outpoint: ledger.Outpoint{TxID: txID, Index: uint32(idx)},
			Amount:   uint64(txOut.Value),
			Address:  addrs[0].EncodeAddress(),
			Script:   txOut.PkScript,
		}
		l.utxos[utxo.Outpoint] = utxo
		change.Added = append(change.Added, utxo)
	}
	l.submitted = append(l.submitted, tx)

	if !l.silent {
		for sub := range l.subs {
			go sub.deliver(change)
		}
	}

	return txID, nil
}

type fakeClient struct {
	ledger    *fakeLedger
	closeOnce sync.Once
}

func (c *fakeClient) UTXOsByAddress(_ context.Context, address string) ([]ledger.UTXO, error) {
	return c.ledger.utxosOf(address), nil
}

func (c *fakeClient) Subscribe(_ context.Context, addresses []string) (ledger.Subscription, error) {
	sub := &fakeSubscription{
		ledger:    c.ledger,
		addresses: make(map[string]struct{}, len(addresses)),
		changes:   make(chan ledger.UTXOChange, 1024),
	}
	for _, address := range addresses {
		sub.addresses[address] = struct{}{}
	}

	c.ledger.mu.Lock()
	c.ledger.subs[sub] = struct{}{}
	c.ledger.mu.Unlock()

	return sub, nil
}

func (c *fakeClient) Submit(_ context.Context, tx *wire.MsgTx) (string, error) {
	return c.ledger.submit(tx)
}

func (c *fakeClient) Close() error {
	c.closeOnce.Do(func() {
		c.ledger.mu.Lock()
		c.ledger.closes++
		c.ledger.mu.Unlock()
	})

	return nil
}

type fakeSubscription struct {
	ledger    *fakeLedger
	addresses map[string]struct{}

	mu      sync.Mutex
	closed  bool
	changes chan ledger.UTXOChange
}

func (s *fakeSubscription) Changes() <-chan ledger.UTXOChange {
	return s.changes
}

func (s *fakeSubscription) Close() error {
	s.ledger.mu.Lock()
	delete(s.ledger.subs, s)
	s.ledger.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.changes)
	}

	return nil
}

// deliver sends part of change related to subscribed addresses.
func (s *fakeSubscription) deliver(change ledger.UTXOChange) {
	var filtered ledger.UTXOChange
	for _, utxo := range change.Added {
		if _, ok := s.addresses[utxo.Address]; ok {
			filtered.Added = append(filtered.Added, utxo)
		}
	}
	for _, ref := range change.Removed {
		if _, ok := s.addresses[ref.Address]; ok {
			filtered.Removed = append(filtered.Removed, ref)
		}
	}
	if len(filtered.Added)+len(filtered.Removed) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.changes <- filtered:
	default:
	}
}
