// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/BoostyLabs/inscriber/internal/numbers"
	"github.com/BoostyLabs/inscriber/ledger"
	"github.com/BoostyLabs/inscriber/ledger/amount"
	"github.com/BoostyLabs/inscriber/ledger/fees"
	"github.com/BoostyLabs/inscriber/ledger/txbuilder"
	"github.com/BoostyLabs/inscriber/ledger/utxoset"
)

// MintParams describes mint request.
type MintParams struct {
	Ticker      string
	Iterations  uint64 // raised to configured minimum.
	PriorityFee uint64 // paid by commit transaction on top of its fee.
}

// mintPlan describes funding of a mint.
type mintPlan struct {
	iterations   uint64
	budget       fees.Budget
	commitAmount uint64
}

// Mint commits funds to the mint script-hash address, performs chained reveals on it
// and drains the rest with the final reveal.
//
//	commit:     source -> script (iterations*mintFee + iterations*revealFee + buffer), change -> source.
//	reveal i:   script -> script, paying mintFee, for i in [1, iterations).
//	final:      script -> nothing, all of it is paid as fee.
func (o *Orchestrator) Mint(ctx context.Context, key *btcec.PrivateKey, params MintParams) (*MintResult, error) {
	s, err := o.newSession(FlowMint, key, o.conf.Protocol.Mint(params.Ticker))
	if err != nil {
		return nil, err
	}
	defer s.close()

	plan, err := s.planMint(params.Iterations)
	if err != nil {
		return nil, s.fail(PhasePrepare, 0, err)
	}
	s.planned = int(plan.iterations) + 1

	if err = s.connect(ctx, true); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("ticker", params.Ticker).
		Uint64("iterations", plan.iterations).
		Uint64("reveal_fee", plan.budget.PerIteration).
		Uint64("commit_amount", plan.commitAmount).
		Str("commit_amount_display", amount.String(plan.commitAmount)).
		Msg("mint planned")

	sourceUTXOs, err := s.query(ctx, s.sourceAddress)
	if err != nil {
		return nil, s.fail(PhasePrepare, 0, err)
	}
	if len(sourceUTXOs) == 0 {
		return nil, s.fail(PhasePrepare, 0, fmt.Errorf("%w: source address %s is empty", ledger.ErrNoUTXOFound, s.sourceAddress))
	}

	commit, _, err := s.submit(ctx, step{
		kind:      StepCommit,
		phase:     PhaseCommit,
		remaining: int(plan.iterations),
		params:    s.commitParams(sourceUTXOs, plan.commitAmount, params.PriorityFee),
		watch:     s.scriptAddress,
		timeout:   o.conf.ConfirmationTimeout,
	})
	if commit.TxID != "" {
		s.committed = plan.commitAmount
	}
	if err != nil {
		return nil, s.fail(PhaseCommit, 0, err)
	}

	previous := commit.TxID
	for iteration := 1; iteration < int(plan.iterations); iteration++ {
		reveal, err := s.chainReveal(ctx, previous, iteration, int(plan.iterations)-iteration)
		if err != nil {
			return nil, s.fail(PhaseReveal, iteration, err)
		}

		previous = reveal.TxID
	}

	if err = s.finalReveal(ctx, int(plan.iterations)); err != nil {
		return nil, s.fail(PhaseFinalReveal, int(plan.iterations), err)
	}

	result := &MintResult{
		Summary:           s.summary(),
		Ticker:            params.Ticker,
		PlannedIterations: int(plan.iterations),
		CommitAmount:      plan.commitAmount,
		AmountMinted:      s.amountMinted(ctx, params.Ticker, plan.iterations),
	}
	s.finish("success")

	return result, nil
}

// EstimateMint returns mint costs without broadcasting anything.
func (o *Orchestrator) EstimateMint(ctx context.Context, key *btcec.PrivateKey, params MintParams) (*MintEstimate, error) {
	s, err := o.newSession(FlowMint, key, o.conf.Protocol.Mint(params.Ticker))
	if err != nil {
		return nil, err
	}
	defer s.close()

	plan, err := s.planMint(params.Iterations)
	if err != nil {
		return nil, s.fail(PhasePrepare, 0, err)
	}

	if err = s.connect(ctx, false); err != nil {
		return nil, err
	}

	sourceUTXOs, err := s.query(ctx, s.sourceAddress)
	if err != nil {
		return nil, s.fail(PhasePrepare, 0, err)
	}
	if len(sourceUTXOs) == 0 {
		return nil, s.fail(PhasePrepare, 0, fmt.Errorf("%w: source address %s is empty", ledger.ErrNoUTXOFound, s.sourceAddress))
	}

	commit, err := o.builder.Estimate(s.commitParams(sourceUTXOs, plan.commitAmount, params.PriorityFee))
	if err != nil {
		return nil, s.fail(PhasePrepare, 0, err)
	}

	total, err := numbers.Add(plan.commitAmount, commit.TotalFee())
	if err != nil {
		return nil, s.fail(PhasePrepare, 0, fmt.Errorf("%w: total cost: %w", ledger.ErrInsufficientFunds, err))
	}

	return &MintEstimate{
		Iterations:      int(plan.iterations),
		PerIterationFee: plan.budget.PerIteration,
		CommitAmount:    plan.commitAmount,
		CommitFee:       commit.TotalFee(),
		TotalCost:       total,
	}, nil
}

// planMint computes commit amount covering all reveals of iterations.
func (s *session) planMint(iterations uint64) (mintPlan, error) {
	conf := s.o.conf
	iterations = numbers.Max(iterations, conf.MinIterations)
	if iterations == 0 {
		return mintPlan{}, errors.New("iterations must be positive")
	}

	protocolAmount, err := numbers.Mul(conf.MintFee, iterations)
	if err != nil {
		return mintPlan{}, fmt.Errorf("%w: mint fees: %w", ledger.ErrInsufficientFunds, err)
	}

	value, err := numbers.Add(conf.MintFee, amount.BaseUnitsPerDisplayUnit)
	if err != nil {
		return mintPlan{}, fmt.Errorf("%w: mint fee: %w", ledger.ErrTransactionBuild, err)
	}

	budget, err := fees.IterationBudget(s.o.builder, s.revealParams(representative(value)), iterations)
	if err != nil {
		return mintPlan{}, err
	}

	commitAmount, err := fees.CommitAmount(budget, protocolAmount, conf.CommitBuffer, 1)
	if err != nil {
		return mintPlan{}, err
	}

	return mintPlan{iterations: iterations, budget: budget, commitAmount: commitAmount}, nil
}

// commitParams returns params of transaction funding script-hash address from source utxos.
func (s *session) commitParams(sourceUTXOs []ledger.UTXO, commitAmount, priorityFee uint64) txbuilder.Params {
	return txbuilder.Params{
		Inputs:        sourceInputs(sourceUTXOs),
		Outputs:       []txbuilder.Output{{Address: s.scriptAddress, Amount: commitAmount}},
		ChangeAddress: s.sourceAddress,
		PriorityFee:   priorityFee,
	}
}

// revealParams returns params of mint reveal spending utxo back to script-hash address.
func (s *session) revealParams(utxo ledger.UTXO) txbuilder.Params {
	return txbuilder.Params{
		PriorityInputs: []txbuilder.Input{s.scriptInput(utxo)},
		ChangeAddress:  s.scriptAddress,
		PriorityFee:    s.o.conf.MintFee,
	}
}

// chainReveal spends output of previous transaction at script-hash address back to it.
func (s *session) chainReveal(ctx context.Context, previous string, iteration, remaining int) (StepResult, error) {
	if err := s.pause(ctx); err != nil {
		return StepResult{}, err
	}

	utxos, err := s.query(ctx, s.scriptAddress)
	if err != nil {
		return StepResult{}, err
	}

	utxo, ok := utxoset.ByTxID(utxos, previous)
	if !ok {
		return StepResult{}, fmt.Errorf("%w: output of %s at %s", ledger.ErrNoUTXOFound, previous, s.scriptAddress)
	}

	params := s.revealParams(utxo)
	estimate, err := s.o.builder.Estimate(params)
	if err != nil {
		return StepResult{}, err
	}
	if estimate.Change == 0 {
		return StepResult{}, fmt.Errorf("%w: reveal of %s leaves nothing for the next iteration",
			ledger.ErrInsufficientFunds, utxo.Outpoint)
	}

	result, _, err := s.submit(ctx, step{
		kind:      StepReveal,
		phase:     PhaseReveal,
		iteration: iteration,
		remaining: remaining,
		params:    params,
		watch:     s.scriptAddress,
		timeout:   s.o.conf.ConfirmationTimeout,
	})

	return result, err
}

// finalReveal drains all utxos of script-hash address, paying everything as fee.
func (s *session) finalReveal(ctx context.Context, iteration int) error {
	if err := s.pause(ctx); err != nil {
		return err
	}

	utxos, err := s.query(ctx, s.scriptAddress)
	if err != nil {
		return err
	}
	if len(utxos) == 0 {
		return fmt.Errorf("%w: script address %s is empty", ledger.ErrNoUTXOFound, s.scriptAddress)
	}

	inputs := s.scriptInputs(utxos)
	drain, err := fees.DrainPriorityFee(s.o.builder, inputs, s.scriptAddress)
	if err != nil {
		return err
	}

	spent := utxos[0].Outpoint
	_, _, err = s.submit(ctx, step{
		kind:      StepFinalTransfer,
		phase:     PhaseFinalReveal,
		iteration: iteration,
		params: txbuilder.Params{
			PriorityInputs: inputs,
			ChangeAddress:  s.scriptAddress,
			PriorityFee:    drain.PriorityFee,
		},
		watch:   s.scriptAddress,
		spent:   &spent,
		timeout: s.o.conf.ConfirmationTimeout,
	})

	return err
}

// amountMinted returns minted token amount, empty if token limit is unknown.
func (s *session) amountMinted(ctx context.Context, ticker string, iterations uint64) string {
	if s.o.tokens == nil {
		return ""
	}

	limit, err := s.o.tokens.MintLimit(ctx, ticker)
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("could not get mint limit")
		return ""
	}

	minted, err := limit.Minted(iterations)
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("could not compute minted amount")
		return ""
	}

	return minted
}
