// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package fees computes fee policies on top of dry run transaction estimates.
package fees

import (
	"errors"
	"fmt"

	"github.com/BoostyLabs/inscriber/internal/numbers"
	"github.com/BoostyLabs/inscriber/ledger"
	"github.com/BoostyLabs/inscriber/ledger/txbuilder"
	"github.com/BoostyLabs/inscriber/ledger/utxoset"
)

// Estimator returns costs of a candidate transaction without broadcasting it.
type Estimator interface {
	Estimate(params txbuilder.Params) (txbuilder.Estimate, error)
}

// Drain describes transaction consuming whole inputs amount with no outputs.
type Drain struct {
	Amount      uint64 // inputs amount.
	Fee         uint64 // estimated network fee.
	PriorityFee uint64 // Amount - Fee.
}

// DrainPriorityFee returns priority fee making transaction spend the whole inputs amount,
// so that PriorityFee + Fee == Amount and no change is left.
func DrainPriorityFee(estimator Estimator, inputs []txbuilder.Input, changeAddress string) (Drain, error) {
	if len(inputs) == 0 {
		return Drain{}, ledger.ErrNoUTXOFound
	}

	total := utxoset.Total(inputUTXOs(inputs))
	estimate, err := estimator.Estimate(txbuilder.Params{
		PriorityInputs: inputs,
		ChangeAddress:  changeAddress,
	})
	if err != nil {
		return Drain{}, err
	}

	priorityFee, err := numbers.Sub(total, estimate.Fee)
	if err != nil || priorityFee == 0 {
		return Drain{}, fmt.Errorf("%w: fee %d covers whole amount %d", ledger.ErrInsufficientFunds, estimate.Fee, total)
	}

	return Drain{
		Amount:      total,
		Fee:         estimate.Fee,
		PriorityFee: priorityFee,
	}, nil
}

// Budget describes funding of sequential transactions.
type Budget struct {
	PerIteration uint64 // fee of one representative transaction.
	Iterations   uint64
	Fees         uint64 // PerIteration * Iterations.
}

// IterationBudget estimates representative transaction and returns fees for iterations of alike transactions.
func IterationBudget(estimator Estimator, representative txbuilder.Params, iterations uint64) (Budget, error) {
	if iterations == 0 {
		return Budget{}, errors.New("iterations must be positive")
	}

	estimate, err := estimator.Estimate(representative)
	if err != nil {
		return Budget{}, err
	}

	total, err := numbers.Mul(estimate.Fee, iterations)
	if err != nil {
		return Budget{}, fmt.Errorf("%w: fees for %d iterations: %w", ledger.ErrInsufficientFunds, iterations, err)
	}

	return Budget{PerIteration: estimate.Fee, Iterations: iterations, Fees: total}, nil
}

// CommitAmount returns commit output value covering budget fees, fixed protocol amount and buffer.
// Result is rounded up to a multiple of roundTo if it is not zero.
func CommitAmount(budget Budget, protocolAmount, buffer, roundTo uint64) (uint64, error) {
	total, err := numbers.Sum(budget.Fees, protocolAmount, buffer)
	if err != nil {
		return 0, fmt.Errorf("%w: commit amount: %w", ledger.ErrInsufficientFunds, err)
	}

	if roundTo > 1 {
		total, err = numbers.Mul(numbers.CeilDiv(total, roundTo), roundTo)
		if err != nil {
			return 0, fmt.Errorf("%w: commit amount: %w", ledger.ErrInsufficientFunds, err)
		}
	}

	return total, nil
}

// inputUTXOs returns utxos of inputs.
func inputUTXOs(inputs []txbuilder.Input) []ledger.UTXO {
	utxos := make([]ledger.UTXO, 0, len(inputs))
	for _, input := range inputs {
		utxos = append(utxos, input.UTXO)
	}

	return utxos
}
