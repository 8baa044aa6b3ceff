// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/BoostyLabs/inscriber/ledger/amount"
	"github.com/BoostyLabs/inscriber/orchestrator"
)

type table struct {
	w *tabwriter.Writer
}

func newTable(w io.Writer) *table {
	return &table{w: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (t *table) row(name string, value any) {
	fmt.Fprintf(t.w, "%s:\t%v\n", name, value)
}

func (t *table) flush() {
	_ = t.w.Flush()
}

func printSummary(t *table, summary orchestrator.Summary) {
	t.row("run", summary.RunID)
	t.row("flow", summary.Flow)
	t.row("source address", summary.SourceAddress)
	t.row("script address", summary.ScriptAddress)
	t.row("transactions", summary.Iterations)
	t.row("fees spent", amount.String(summary.FeesSpent))
	t.row("elapsed", summary.Elapsed.Round(time.Millisecond))
}

func printSteps(w io.Writer, steps []orchestrator.StepResult) {
	if len(steps) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tKIND\tTXID\tFEE\tPRIORITY FEE")
	for _, step := range steps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			step.Iteration, step.Kind, step.TxID, amount.String(step.Fee), amount.String(step.PriorityFee))
	}
	_ = tw.Flush()
}

func printMint(w io.Writer, result *orchestrator.MintResult) {
	t := newTable(w)
	printSummary(t, result.Summary)
	t.row("ticker", result.Ticker)
	t.row("planned", result.PlannedIterations)
	t.row("commit amount", amount.String(result.CommitAmount))
	if result.AmountMinted != "" {
		t.row("minted", result.AmountMinted)
	}
	t.flush()

	printSteps(w, result.Steps)
}

func printTransfer(w io.Writer, result *orchestrator.TransferResult) {
	t := newTable(w)
	printSummary(t, result.Summary)
	t.row("ticker", result.Ticker)
	t.row("to", result.To)
	t.row("amount", result.Amount)
	t.row("commit", result.CommitTxID)
	t.row("reveal", result.RevealTxID)
	t.flush()
}

func printSweep(w io.Writer, result *orchestrator.SweepResult) {
	t := newTable(w)
	printSummary(t, result.Summary)
	t.row("ticker", result.Ticker)
	t.row("status", result.Status)
	for _, failure := range result.Failures {
		t.row("failed "+failure.Outpoint.String(), fmt.Sprintf("%s: %v", failure.Phase, failure.Err))
	}
	for _, utxo := range result.Unattempted {
		t.row("unattempted "+utxo.Outpoint.String(), amount.String(utxo.Amount))
	}
	t.flush()

	printSteps(w, result.Steps)
}

func printMintEstimate(w io.Writer, estimate *orchestrator.MintEstimate) {
	t := newTable(w)
	t.row("iterations", estimate.Iterations)
	t.row("reveal fee", amount.String(estimate.PerIterationFee))
	t.row("commit amount", amount.String(estimate.CommitAmount))
	t.row("commit fee", amount.String(estimate.CommitFee))
	t.row("total cost", amount.String(estimate.TotalCost))
	t.flush()
}

func printTransferEstimate(w io.Writer, estimate *orchestrator.TransferEstimate) {
	t := newTable(w)
	t.row("commit amount", amount.String(estimate.CommitAmount))
	t.row("commit fee", amount.String(estimate.CommitFee))
	t.row("reveal fee", amount.String(estimate.RevealFee))
	t.row("total cost", amount.String(estimate.TotalCost))
	t.flush()
}
