// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package orchestrator

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/BoostyLabs/inscriber/ledger"
	"github.com/BoostyLabs/inscriber/ledger/fees"
	"github.com/BoostyLabs/inscriber/ledger/txbuilder"
	"github.com/BoostyLabs/inscriber/ledger/utxoset"
)

// SweepParams describes sweep request.
type SweepParams struct {
	Ticker string
}

// Sweep spends leftovers of the mint script-hash address of ticker.
// Utxos above split threshold are split by chained reveals first, then every small utxo is drained.
// Live utxo set is re-queried before every transaction and processed outpoints are never retried.
func (o *Orchestrator) Sweep(ctx context.Context, key *btcec.PrivateKey, params SweepParams) (*SweepResult, error) {
	s, err := o.newSession(FlowSweep, key, o.conf.Protocol.Mint(params.Ticker))
	if err != nil {
		return nil, err
	}
	defer s.close()

	if err = s.connect(ctx, true); err != nil {
		return nil, err
	}

	utxos, err := s.query(ctx, s.scriptAddress)
	if err != nil {
		return nil, s.fail(PhasePrepare, 0, err)
	}

	result := &SweepResult{Ticker: params.Ticker}
	if len(utxos) == 0 {
		return s.sweepResult(result, SweepClean, nil), nil
	}

	buckets := utxoset.Classify(utxos, o.conf.SplitThreshold)
	s.planned = len(buckets.Small)
	for _, utxo := range buckets.Large {
		s.planned += int(o.conf.RequiredSplits(utxo.Amount)) + 1
	}

	s.log.Info().
		Int("large", len(buckets.Large)).
		Int("small", len(buckets.Small)).
		Uint64("total", utxoset.Total(utxos)).
		Msg("sweep planned")

	processing := NewProcessingLedger(o.conf.MaxConsecutiveFailures)
	phases := []struct {
		phase   Phase
		pick    func(utxoset.Buckets) []ledger.UTXO
		process func(context.Context, *ProcessingLedger, ledger.UTXO) error
	}{
		{PhaseSplit, func(b utxoset.Buckets) []ledger.UTXO { return b.Large }, s.split},
		{PhaseDrain, func(b utxoset.Buckets) []ledger.UTXO { return b.Small }, s.drainSmall},
	}

	for _, p := range phases {
		for !processing.Aborted() {
			if err = ctx.Err(); err != nil {
				return s.sweepResult(result, SweepPartial, processing.Pending(utxos)), s.fail(p.phase, 0, err)
			}

			if utxos, err = s.query(ctx, s.scriptAddress); err != nil {
				return s.sweepResult(result, SweepPartial, nil), s.fail(p.phase, 0, err)
			}

			candidates := p.pick(utxoset.Classify(processing.Pending(utxos), o.conf.SplitThreshold))
			if len(candidates) == 0 {
				break
			}

			utxo := candidates[0]
			err = p.process(ctx, processing, utxo)
			processing.MarkProcessed(utxo.Outpoint)
			if ctx.Err() != nil {
				return s.sweepResult(result, SweepPartial, processing.Pending(utxos)), s.fail(p.phase, 0, ctx.Err())
			}

			if err != nil {
				s.log.Warn().Err(err).Str("outpoint", utxo.Outpoint.String()).Str("phase", string(p.phase)).Msg("utxo not processed")
				if processing.Fail(SweepFailure{Outpoint: utxo.Outpoint, Phase: p.phase, Err: err}) {
					s.log.Error().Int("failures", o.conf.MaxConsecutiveFailures).Msg("sweep aborted")
				}

				continue
			}

			processing.Succeed()
		}
	}
	result.Failures = processing.Failures()

	if latest, err := s.query(ctx, s.scriptAddress); err != nil {
		s.log.Warn().Err(err).Msg("could not query final state")
	} else {
		utxos = latest
	}

	pending := processing.Pending(utxos)
	switch {
	case processing.Aborted():
		return s.sweepResult(result, SweepAborted, pending), nil
	case len(utxos) == 0:
		return s.sweepResult(result, SweepClean, nil), nil
	default:
		return s.sweepResult(result, SweepPartial, pending), nil
	}
}

// sweepResult completes result with status and session summary.
func (s *session) sweepResult(result *SweepResult, status SweepStatus, unattempted []ledger.UTXO) *SweepResult {
	result.Summary = s.summary()
	result.Status = status
	result.Unattempted = unattempted
	s.finish(string(status))

	return result
}

// split performs chained reveals of utxo until the rest is small enough to drain.
// The rest is left at script-hash address as a new utxo.
func (s *session) split(ctx context.Context, processing *ProcessingLedger, utxo ledger.UTXO) error {
	required := int(s.o.conf.RequiredSplits(utxo.Amount))
	current := utxo.Outpoint
	for iteration := 1; iteration <= required; iteration++ {
		live, err := s.revalidate(ctx, current)
		if err != nil {
			return err
		}

		params := s.revealParams(live)
		estimate, err := s.o.builder.Estimate(params)
		if err != nil {
			return err
		}

		var spent *ledger.Outpoint
		if estimate.Change == 0 {
			spent = &live.Outpoint
		}

		result, tx, err := s.submit(ctx, step{
			kind:      StepReveal,
			phase:     PhaseSplit,
			iteration: iteration,
			remaining: required - iteration,
			params:    params,
			watch:     s.scriptAddress,
			spent:     spent,
			timeout:   s.o.conf.ConfirmationTimeout,
		})
		if err != nil {
			return err
		}
		processing.MarkProcessed(live.Outpoint)

		if tx.ChangeIndex < 0 {
			return nil
		}
		current = ledger.Outpoint{TxID: result.TxID, Index: uint32(tx.ChangeIndex)}
	}

	return nil
}

// drainSmall spends whole utxo as fee.
func (s *session) drainSmall(ctx context.Context, _ *ProcessingLedger, utxo ledger.UTXO) error {
	live, err := s.revalidate(ctx, utxo.Outpoint)
	if err != nil {
		return err
	}

	inputs := []txbuilder.Input{s.scriptInput(live)}
	drain, err := fees.DrainPriorityFee(s.o.builder, inputs, s.scriptAddress)
	if err != nil {
		return err
	}

	_, _, err = s.submit(ctx, step{
		kind:      StepSmallUTXODrain,
		phase:     PhaseDrain,
		iteration: s.completed + 1,
		params: txbuilder.Params{
			PriorityInputs: inputs,
			ChangeAddress:  s.scriptAddress,
			PriorityFee:    drain.PriorityFee,
		},
		watch:   s.scriptAddress,
		spent:   &live.Outpoint,
		timeout: s.o.conf.ConfirmationTimeout,
	})

	return err
}

// revalidate re-queries script-hash address and returns outpoint's utxo if it is still unspent.
func (s *session) revalidate(ctx context.Context, outpoint ledger.Outpoint) (ledger.UTXO, error) {
	if err := s.pause(ctx); err != nil {
		return ledger.UTXO{}, err
	}

	utxos, err := s.query(ctx, s.scriptAddress)
	if err != nil {
		return ledger.UTXO{}, err
	}

	utxo, ok := utxoset.Find(utxos, outpoint)
	if !ok {
		return ledger.UTXO{}, fmt.Errorf("%w: %s is no longer unspent", ledger.ErrNoUTXOFound, outpoint)
	}

	return utxo, nil
}
