// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package orchestrator

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"

	"github.com/BoostyLabs/inscriber/internal/numbers"
	"github.com/BoostyLabs/inscriber/ledger"
	"github.com/BoostyLabs/inscriber/ledger/amount"
	"github.com/BoostyLabs/inscriber/ledger/inscriptions"
	"github.com/BoostyLabs/inscriber/ledger/txbuilder"
	"github.com/BoostyLabs/inscriber/ledger/utxoset"
)

// TransferParams describes token transfer request.
type TransferParams struct {
	To          string
	Amount      string // in token display units.
	Ticker      string
	PriorityFee uint64 // paid by commit transaction on top of its fee.
}

// transferPlan describes funding of a transfer.
type transferPlan struct {
	amount       string // in token base units.
	revealFee    uint64
	commitAmount uint64
}

// Transfer inscribes transfer of token amount to recipient.
//
//	commit: source -> script (handling + reveal fee), change -> source.
//	reveal: script (+ source if needed) -> source (handling), change -> source.
func (o *Orchestrator) Transfer(ctx context.Context, key *btcec.PrivateKey, params TransferParams) (*TransferResult, error) {
	s, plan, err := o.prepareTransfer(params, key)
	if err != nil {
		return nil, err
	}
	defer s.close()
	s.planned = 2

	if err = s.connect(ctx, true); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("ticker", params.Ticker).
		Str("to", params.To).
		Str("amount", params.Amount).
		Uint64("commit_amount", plan.commitAmount).
		Msg("transfer planned")

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
		remaining: 1,
		params:    s.commitParams(sourceUTXOs, plan.commitAmount, params.PriorityFee),
		watch:     s.scriptAddress,
		timeout:   o.conf.TransferTimeout,
	})
	if commit.TxID != "" {
		s.committed = plan.commitAmount
	}
	if err != nil {
		return nil, s.fail(PhaseCommit, 0, err)
	}

	reveal, err := s.transferReveal(ctx, commit.TxID)
	if err != nil {
		return nil, s.fail(PhaseReveal, 1, err)
	}

	result := &TransferResult{
		Summary:    s.summary(),
		Ticker:     params.Ticker,
		To:         params.To,
		Amount:     plan.amount,
		CommitTxID: commit.TxID,
		RevealTxID: reveal.TxID,
	}
	s.finish("success")

	return result, nil
}

// EstimateTransfer returns transfer costs without broadcasting anything.
func (o *Orchestrator) EstimateTransfer(ctx context.Context, key *btcec.PrivateKey, params TransferParams) (*TransferEstimate, error) {
	s, plan, err := o.prepareTransfer(params, key)
	if err != nil {
		return nil, err
	}
	defer s.close()

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

	total, err := numbers.Add(commit.TotalFee(), plan.revealFee)
	if err != nil {
		return nil, s.fail(PhasePrepare, 0, fmt.Errorf("%w: total cost: %w", ledger.ErrInsufficientFunds, err))
	}

	return &TransferEstimate{
		CommitAmount: plan.commitAmount,
		CommitFee:    commit.TotalFee(),
		RevealFee:    plan.revealFee,
		TotalCost:    total,
	}, nil
}

// prepareTransfer validates request, derives session and plans funding.
func (o *Orchestrator) prepareTransfer(params TransferParams, key *btcec.PrivateKey) (*session, transferPlan, error) {
	envelope, tokenAmount, err := o.transferEnvelope(params)
	if err != nil {
		return nil, transferPlan{}, &FlowError{
			Kind:  ledger.KindOf(err),
			Flow:  FlowTransfer,
			Phase: PhasePrepare,
			Err:   err,
		}
	}

	s, err := o.newSession(FlowTransfer, key, envelope)
	if err != nil {
		return nil, transferPlan{}, err
	}

	value, err := numbers.Add(o.conf.TransferHandlingAmount, amount.BaseUnitsPerDisplayUnit)
	if err != nil {
		s.close()
		return nil, transferPlan{}, s.fail(PhasePrepare, 0, fmt.Errorf("%w: handling amount: %w", ledger.ErrTransactionBuild, err))
	}

	estimate, err := o.builder.Estimate(s.transferRevealParams(representative(value), nil))
	if err != nil {
		s.close()
		return nil, transferPlan{}, s.fail(PhasePrepare, 0, err)
	}

	commitAmount, err := numbers.Add(o.conf.TransferHandlingAmount, estimate.Fee)
	if err != nil {
		s.close()
		return nil, transferPlan{}, s.fail(PhasePrepare, 0, fmt.Errorf("%w: commit amount: %w", ledger.ErrInsufficientFunds, err))
	}

	return s, transferPlan{amount: tokenAmount, revealFee: estimate.Fee, commitAmount: commitAmount}, nil
}

// transferEnvelope validates request and returns its envelope with token amount in base units.
func (o *Orchestrator) transferEnvelope(params TransferParams) (inscriptions.Envelope, string, error) {
	if params.Ticker == "" {
		return inscriptions.Envelope{}, "", fmt.Errorf("%w: empty ticker", ledger.ErrEncoding)
	}

	if _, err := btcutil.DecodeAddress(params.To, o.conf.NetworkParams); err != nil {
		return inscriptions.Envelope{}, "", fmt.Errorf("%w: recipient %q: %w", ledger.ErrEncoding, params.To, err)
	}

	tokenAmount, err := amount.Scale(params.Amount, o.conf.TokenDecimals)
	if err != nil {
		return inscriptions.Envelope{}, "", fmt.Errorf("%w: %w", ledger.ErrEncoding, err)
	}

	return o.conf.Protocol.Transfer(params.Ticker, tokenAmount, params.To), tokenAmount, nil
}

// transferRevealParams returns params of reveal returning handling amount to source.
func (s *session) transferRevealParams(utxo ledger.UTXO, pool []ledger.UTXO) txbuilder.Params {
	return txbuilder.Params{
		PriorityInputs: []txbuilder.Input{s.scriptInput(utxo)},
		Inputs:         sourceInputs(pool),
		Outputs:        []txbuilder.Output{{Address: s.sourceAddress, Amount: s.o.conf.TransferHandlingAmount}},
		ChangeAddress:  s.sourceAddress,
	}
}

// transferReveal spends commit output, topped up from source utxos when needed.
func (s *session) transferReveal(ctx context.Context, commitTxID string) (StepResult, error) {
	if err := s.pause(ctx); err != nil {
		return StepResult{}, err
	}

	scriptUTXOs, err := s.query(ctx, s.scriptAddress)
	if err != nil {
		return StepResult{}, err
	}

	utxo, ok := utxoset.ByTxID(scriptUTXOs, commitTxID)
	if !ok {
		return StepResult{}, fmt.Errorf("%w: commit output %s at %s", ledger.ErrNoUTXOFound, commitTxID, s.scriptAddress)
	}

	pool, err := s.query(ctx, s.sourceAddress)
	if err != nil {
		return StepResult{}, err
	}

	result, _, err := s.submit(ctx, step{
		kind:      StepReveal,
		phase:     PhaseReveal,
		iteration: 1,
		params:    s.transferRevealParams(utxo, pool),
		watch:     s.sourceAddress,
		timeout:   s.o.conf.TransferTimeout,
	})

	return result, err
}
