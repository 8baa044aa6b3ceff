// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/BoostyLabs/inscriber/ledger"
)

// States of a watched transaction.
const (
	StateSubmitted = "submitted"
	StateObserved  = "observed"
	StateConfirmed = "confirmed"
	StateTimedOut  = "timed_out"
)

const (
	eventObserve = "observe"
	eventConfirm = "confirm"
	eventTimeout = "timeout"
)

// ErrResolved defines that watch has already been waited on.
var ErrResolved = errors.New("watch already resolved")

// Watch is a single-shot confirmation of one submitted transaction.
type Watch struct {
	tracker *Tracker
	address string
	machine *fsm.FSM

	mu      sync.Mutex
	added   map[string]struct{}          // ids of transactions with outputs at address.
	removed map[ledger.Outpoint]struct{} // spent outputs of address.
	notify  chan struct{}

	closeOnce sync.Once
}

// newWatch is a constructor for Watch.
func newWatch(t *Tracker, address string) *Watch {
	return &Watch{
		tracker: t,
		address: address,
		machine: fsm.NewFSM(
			StateSubmitted,
			fsm.Events{
				{Name: eventObserve, Src: []string{StateSubmitted}, Dst: StateObserved},
				{Name: eventConfirm, Src: []string{StateObserved}, Dst: StateConfirmed},
				{Name: eventTimeout, Src: []string{StateSubmitted}, Dst: StateTimedOut},
			},
			fsm.Callbacks{},
		),
		added:   make(map[string]struct{}),
		removed: make(map[ledger.Outpoint]struct{}),
		notify:  make(chan struct{}, 1),
	}
}

// Address returns watched address.
func (w *Watch) Address() string {
	return w.address
}

// State returns current watch state.
func (w *Watch) State() string {
	return w.machine.Current()
}

// Confirmed blocks until an output created by txID appears at the watched address.
func (w *Watch) Confirmed(ctx context.Context, txID string, timeout time.Duration) error {
	return w.wait(ctx, timeout, "transaction "+txID, func() bool {
		_, ok := w.added[txID]
		return ok
	})
}

// Spent blocks until outpoint of the watched address is reported as spent.
func (w *Watch) Spent(ctx context.Context, outpoint ledger.Outpoint, timeout time.Duration) error {
	return w.wait(ctx, timeout, "spend of "+outpoint.String(), func() bool {
		_, ok := w.removed[outpoint]
		return ok
	})
}

// Close stops receiving notifications.
func (w *Watch) Close() {
	w.closeOnce.Do(func() {
		w.tracker.remove(w)
	})
}

// wait suspends until match holds, timeout elapses, or ctx is done.
func (w *Watch) wait(ctx context.Context, timeout time.Duration, what string, match func() bool) error {
	if w.State() != StateSubmitted {
		return ErrResolved
	}

	// state transitions must happen even if ctx is cancelled meanwhile.
	fsmCtx := context.WithoutCancel(ctx)
	log := w.tracker.log.With().Str("address", w.address).Str("awaiting", what).Logger()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for !w.matches(match) {
		if err := w.tracker.err(); err != nil {
			return err
		}

		select {
		case <-w.notify:
		case <-timer.C:
			if err := w.machine.Event(fsmCtx, eventTimeout); err != nil {
				log.Debug().Err(err).Msg("timeout transition")
			}

			return fmt.Errorf("%w: %s at %s not observed in %s", ledger.ErrConfirmationTimeout, what, w.address, timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := w.machine.Event(fsmCtx, eventObserve); err != nil {
		log.Debug().Err(err).Msg("observe transition")
	}
	log.Debug().Msg("observed")

	if delay := w.tracker.settleDelay; delay > 0 {
		settle := time.NewTimer(delay)
		select {
		case <-settle.C:
		case <-ctx.Done():
			settle.Stop()
		}
	}

	if err := w.machine.Event(fsmCtx, eventConfirm); err != nil {
		log.Debug().Err(err).Msg("confirm transition")
	}

	return nil
}

// matches evaluates match under watch lock.
func (w *Watch) matches(match func() bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return match()
}

// observeAdded records output of txID at the watched address.
func (w *Watch) observeAdded(txID string) {
	w.mu.Lock()
	w.added[txID] = struct{}{}
	w.mu.Unlock()

	w.wake()
}

// observeRemoved records spent outpoint of the watched address.
func (w *Watch) observeRemoved(outpoint ledger.Outpoint) {
	w.mu.Lock()
	w.removed[outpoint] = struct{}{}
	w.mu.Unlock()

	w.wake()
}

// wake signals waiter without blocking.
func (w *Watch) wake() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}
