// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package orchestrator

import (
	"time"

	"github.com/BoostyLabs/inscriber/ledger"
)

// Flow names orchestrator operation.
type Flow string

const (
	FlowMint     Flow = "mint"
	FlowTransfer Flow = "transfer"
	FlowSweep    Flow = "sweep"
)

// StepKind names committed action.
type StepKind string

const (
	StepCommit         StepKind = "commit"
	StepReveal         StepKind = "reveal"
	StepFinalTransfer  StepKind = "final-transfer"
	StepSmallUTXODrain StepKind = "small-utxo-drain"
)

// StepResult describes one confirmed transaction.
type StepResult struct {
	Kind        StepKind
	TxID        string
	Iteration   int
	Spent       []ledger.Outpoint
	Fee         uint64
	PriorityFee uint64
	Remaining   int // steps left in the current chain.
}

// Summary holds data common for all flow results.
type Summary struct {
	RunID         string
	Flow          Flow
	SourceAddress string
	ScriptAddress string
	Iterations    int    // confirmed transactions.
	FeesSpent     uint64 // in base units.
	Elapsed       time.Duration
	Steps         []StepResult
}

// MintResult describes completed mint.
type MintResult struct {
	Summary
	Ticker            string
	PlannedIterations int
	CommitAmount      uint64
	AmountMinted      string // in token display units, empty if limit is unknown.
}

// TransferResult describes completed transfer.
type TransferResult struct {
	Summary
	Ticker     string
	To         string
	Amount     string // in token base units.
	CommitTxID string
	RevealTxID string
}

// SweepStatus describes address state after sweep.
type SweepStatus string

const (
	// SweepClean defines that script-hash address holds nothing.
	SweepClean SweepStatus = "clean"
	// SweepPartial defines that some utxos are left at script-hash address.
	SweepPartial SweepStatus = "partial"
	// SweepAborted defines that processing stopped after consecutive failures.
	SweepAborted SweepStatus = "aborted"
)

// SweepFailure describes utxo that could not be processed.
type SweepFailure struct {
	Outpoint ledger.Outpoint
	Phase    Phase
	Err      error
}

// SweepResult describes sweep of script-hash address.
type SweepResult struct {
	Summary
	Ticker      string
	Status      SweepStatus
	Failures    []SweepFailure
	Unattempted []ledger.UTXO
}

// MintEstimate describes mint costs without broadcasting.
type MintEstimate struct {
	Iterations      int
	PerIterationFee uint64
	CommitAmount    uint64
	CommitFee       uint64
	TotalCost       uint64 // commit amount and commit fee, all of it is spent.
}

// TransferEstimate describes transfer costs without broadcasting.
type TransferEstimate struct {
	CommitAmount uint64
	CommitFee    uint64
	RevealFee    uint64
	TotalCost    uint64 // handling amount returns to source.
}
