// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package tracker resolves submitted transactions against ledger change notifications.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/BoostyLabs/inscriber/ledger"
)

const (
	// DefaultTimeout defines single hop confirmation deadline.
	DefaultTimeout = 30 * time.Second
	// DefaultSettleDelay defines pause between observing a transaction and reporting it confirmed.
	DefaultSettleDelay = 2 * time.Second
)

// Option configures Tracker.
type Option func(*Tracker)

// WithSettleDelay sets pause between Observed and Confirmed states.
func WithSettleDelay(delay time.Duration) Option {
	return func(t *Tracker) { t.settleDelay = delay }
}

// WithLogger sets tracker logger.
func WithLogger(log zerolog.Logger) Option {
	return func(t *Tracker) { t.log = log }
}

// Tracker dispatches change notifications to watches by address.
// A Tracker belongs to a single flow invocation and holds no global state.
type Tracker struct {
	mu          sync.Mutex
	watches     map[string]map[*Watch]struct{} // by address.
	streamErr   error
	settleDelay time.Duration
	log         zerolog.Logger
}

// New is a constructor for Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		watches:     make(map[string]map[*Watch]struct{}),
		settleDelay: DefaultSettleDelay,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Run dispatches notifications from changes until ctx is done or changes is closed.
// Closed stream fails all pending and future waits.
func (t *Tracker) Run(ctx context.Context, changes <-chan ledger.UTXOChange) error {
	for {
		select {
		case change, ok := <-changes:
			if !ok {
				t.fail(fmt.Errorf("%w: notification stream closed", ledger.ErrExternalService))
				return nil
			}

			t.Dispatch(change)
		case <-ctx.Done():
			return nil
		}
	}
}

// Dispatch delivers change to watches of the affected addresses.
func (t *Tracker) Dispatch(change ledger.UTXOChange) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, utxo := range change.Added {
		for w := range t.watches[utxo.Address] {
			w.observeAdded(utxo.Outpoint.TxID)
		}
	}

	for _, ref := range change.Removed {
		for w := range t.watches[ref.Address] {
			w.observeRemoved(ref.Outpoint)
		}
	}
}

// Watch starts recording notifications for address. It should be called before
// submitting the transaction so that an early notification is not missed.
func (t *Tracker) Watch(address string) *Watch {
	w := newWatch(t, address)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.watches[address] == nil {
		t.watches[address] = make(map[*Watch]struct{})
	}
	t.watches[address][w] = struct{}{}

	return w
}

// Wait blocks until an output of txID appears at address, or timeout elapses.
func (t *Tracker) Wait(ctx context.Context, txID, address string, timeout time.Duration) error {
	w := t.Watch(address)
	defer w.Close()

	return w.Confirmed(ctx, txID, timeout)
}

// Watching returns number of active watches.
func (t *Tracker) Watching() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var count int
	for _, watches := range t.watches {
		count += len(watches)
	}

	return count
}

// remove stops dispatching to w.
func (t *Tracker) remove(w *Watch) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.watches[w.address], w)
	if len(t.watches[w.address]) == 0 {
		delete(t.watches, w.address)
	}
}

// fail records stream failure and wakes all watches.
func (t *Tracker) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.streamErr = err
	for _, watches := range t.watches {
		for w := range watches {
			w.wake()
		}
	}
}

// err returns stream failure, if any.
func (t *Tracker) err() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.streamErr
}
