// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/BoostyLabs/inscriber/ledger/amount"
)

// Phase names a flow stage.
type Phase string

const (
	// PhasePrepare covers derivation, queries and planning, nothing is spent yet.
	PhasePrepare Phase = "prepare"
	// PhaseCommit covers funding of the script-hash address.
	PhaseCommit Phase = "commit"
	// PhaseReveal covers chained reveals.
	PhaseReveal Phase = "reveal"
	// PhaseFinalReveal covers the last reveal draining the script-hash address.
	PhaseFinalReveal Phase = "final_reveal"
	// PhaseSplit covers splitting reveals of large utxos.
	PhaseSplit Phase = "split"
	// PhaseDrain covers draining of small utxos.
	PhaseDrain Phase = "drain"
)

// FlowError describes failed flow with everything spent before the failure.
type FlowError struct {
	Kind                error // one of ledger error kinds, nil if unknown.
	Flow                Flow
	Phase               Phase
	Iteration           int
	IterationsCompleted int
	PlannedIterations   int
	FeesSpent           uint64 // in base units, irreversibly.
	Committed           uint64 // in base units, sent to script-hash address.
	Elapsed             time.Duration
	Err                 error
}

// Error returns error description.
func (e *FlowError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed at %s", e.Flow, e.Phase)
	if e.Iteration > 0 {
		fmt.Fprintf(&b, " iteration %d", e.Iteration)
	}
	fmt.Fprintf(&b, " (%d/%d completed, fees spent %s", e.IterationsCompleted, e.PlannedIterations, amount.String(e.FeesSpent))
	if e.Committed > 0 {
		fmt.Fprintf(&b, ", committed %s", amount.String(e.Committed))
	}
	fmt.Fprintf(&b, ", elapsed %s): %v", e.Elapsed.Round(time.Millisecond), e.Err)

	return b.String()
}

// Unwrap returns error kind and cause.
func (e *FlowError) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}

	return []error{e.Kind, e.Err}
}
