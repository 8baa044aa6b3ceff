// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package orchestrator

import (
	"github.com/BoostyLabs/inscriber/ledger"
	"github.com/BoostyLabs/inscriber/ledger/utxoset"
)

// ProcessingLedger tracks sweep progress within one run.
type ProcessingLedger struct {
	processed           map[ledger.Outpoint]struct{}
	consecutiveFailures int
	maxFailures         int
	failures            []SweepFailure
}

// NewProcessingLedger is a constructor for ProcessingLedger.
func NewProcessingLedger(maxFailures int) *ProcessingLedger {
	return &ProcessingLedger{
		processed:   make(map[ledger.Outpoint]struct{}),
		maxFailures: maxFailures,
	}
}

// MarkProcessed excludes outpoint from further processing.
func (l *ProcessingLedger) MarkProcessed(outpoint ledger.Outpoint) {
	l.processed[outpoint] = struct{}{}
}

// Processed reports whether outpoint has been processed.
func (l *ProcessingLedger) Processed(outpoint ledger.Outpoint) bool {
	_, ok := l.processed[outpoint]
	return ok
}

// Succeed resets consecutive failures.
func (l *ProcessingLedger) Succeed() {
	l.consecutiveFailures = 0
}

// Fail records failure and reports whether processing must stop.
func (l *ProcessingLedger) Fail(failure SweepFailure) bool {
	l.failures = append(l.failures, failure)
	l.consecutiveFailures++

	return l.Aborted()
}

// Aborted reports whether consecutive failures reached the limit.
func (l *ProcessingLedger) Aborted() bool {
	return l.maxFailures > 0 && l.consecutiveFailures >= l.maxFailures
}

// Failures returns recorded failures.
func (l *ProcessingLedger) Failures() []SweepFailure {
	return l.failures
}

// Pending returns utxos which are not processed yet.
func (l *ProcessingLedger) Pending(utxos []ledger.UTXO) []ledger.UTXO {
	return utxoset.Exclude(utxos, l.Processed)
}
