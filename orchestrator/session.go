// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/BoostyLabs/inscriber/internal/metrics"
	"github.com/BoostyLabs/inscriber/ledger"
	"github.com/BoostyLabs/inscriber/ledger/amount"
	"github.com/BoostyLabs/inscriber/ledger/inscriptions"
	"github.com/BoostyLabs/inscriber/ledger/tracker"
	"github.com/BoostyLabs/inscriber/ledger/txbuilder"
)

// session holds state of a single flow invocation.
type session struct {
	o       *Orchestrator
	flow    Flow
	key     *btcec.PrivateKey
	log     zerolog.Logger
	runID   string
	started time.Time

	sourceAddress string
	script        *inscriptions.Script
	scriptAddress string

	client  ledger.Client
	sub     ledger.Subscription
	tracker *tracker.Tracker
	group   *errgroup.Group
	cancel  context.CancelFunc

	planned   int
	completed int
	feesSpent uint64
	committed uint64
	steps     []StepResult
}

// newSession derives addresses of key and envelope.
func (o *Orchestrator) newSession(flow Flow, key *btcec.PrivateKey, envelope inscriptions.Envelope) (*session, error) {
	s := &session{
		o:       o,
		flow:    flow,
		key:     key,
		runID:   uuid.NewString(),
		started: time.Now(),
	}
	s.log = o.log.With().Str("run_id", s.runID).Str("flow", string(flow)).Logger()

	if key == nil {
		return s, s.fail(PhasePrepare, 0, fmt.Errorf("%w: private key is not set", ledger.ErrTransactionBuild))
	}

	var err error
	if s.sourceAddress, err = o.signer.SourceAddress(key); err != nil {
		return s, s.fail(PhasePrepare, 0, fmt.Errorf("%w: source address: %w", ledger.ErrEncoding, err))
	}

	if s.script, err = inscriptions.BuildRedeemScript(key.PubKey(), envelope, o.conf.KeyEncoding); err != nil {
		return s, s.fail(PhasePrepare, 0, err)
	}

	if err = o.signer.CanSpend(s.script.Bytes(), key); err != nil {
		return s, s.fail(PhasePrepare, 0, fmt.Errorf("%s key: %w", o.conf.KeyEncoding, err))
	}

	scriptAddress, err := s.script.Address(o.conf.NetworkParams)
	if err != nil {
		return s, s.fail(PhasePrepare, 0, err)
	}
	s.scriptAddress = scriptAddress.EncodeAddress()

	s.log = s.log.With().Str("source", s.sourceAddress).Str("script_address", s.scriptAddress).Logger()

	return s, nil
}

// connect dials ledger and, if watch is set, starts delivering notifications of both addresses to tracker.
func (s *session) connect(ctx context.Context, watch bool) error {
	client, err := s.o.dialer.Dial(ctx)
	if err != nil {
		return s.fail(PhasePrepare, 0, err)
	}
	s.client = client

	if !watch {
		return nil
	}

	sub, err := client.Subscribe(ctx, []string{s.sourceAddress, s.scriptAddress})
	if err != nil {
		return s.fail(PhasePrepare, 0, err)
	}
	s.sub = sub

	s.tracker = tracker.New(
		tracker.WithSettleDelay(s.o.conf.SettleDelay),
		tracker.WithLogger(s.log),
	)

	// notifications must keep flowing while a submitted transaction is awaited, even if ctx is cancelled.
	pumpCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.group, pumpCtx = errgroup.WithContext(pumpCtx)
	s.group.Go(func() error {
		return s.tracker.Run(pumpCtx, sub.Changes())
	})

	return nil
}

// close releases subscription and connection.
func (s *session) close() {
	if s.tracker != nil {
		if pending := s.tracker.Watching(); pending > 0 {
			s.log.Warn().Int("watches", pending).Msg("session closed with pending watches")
		}
	}

	if s.cancel != nil {
		s.cancel()
	}

	if s.sub != nil {
		if err := s.sub.Close(); err != nil {
			s.log.Debug().Err(err).Msg("could not close subscription")
		}
	}

	if s.group != nil {
		_ = s.group.Wait()
	}

	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.log.Debug().Err(err).Msg("could not close ledger client")
		}
	}
}

// step describes a transaction and the event confirming it.
type step struct {
	kind      StepKind
	phase     Phase
	iteration int
	remaining int
	params    txbuilder.Params
	watch     string           // address receiving the confirming notification.
	spent     *ledger.Outpoint // confirm by spend of the outpoint instead of new output.
	timeout   time.Duration
}

// submit builds, signs and submits transaction of st, then waits for its confirmation.
// Once submitted, the wait is not interrupted by ctx cancellation.
func (s *session) submit(ctx context.Context, st step) (StepResult, *txbuilder.Transaction, error) {
	tx, err := s.o.builder.Build(st.params)
	if err != nil {
		return StepResult{}, nil, err
	}

	if err = s.o.signer.Sign(tx, s.key); err != nil {
		return StepResult{}, nil, err
	}

	watch := s.tracker.Watch(st.watch)
	defer watch.Close()

	if err = ctx.Err(); err != nil {
		return StepResult{}, nil, err
	}

	ctx = context.WithoutCancel(ctx)
	txID, err := s.client.Submit(ctx, tx.Tx)
	if err != nil {
		return StepResult{}, nil, err
	}

	result := StepResult{
		Kind:        st.kind,
		TxID:        txID,
		Iteration:   st.iteration,
		Spent:       outpoints(tx.Inputs),
		Fee:         tx.Estimate.Fee,
		PriorityFee: tx.Estimate.PriorityFee,
		Remaining:   st.remaining,
	}

	total := tx.Estimate.TotalFee()
	s.feesSpent += total
	metrics.TransactionsSubmitted.WithLabelValues(string(s.flow), string(st.kind)).Inc()
	metrics.FeesSpent.WithLabelValues(string(s.flow)).Add(float64(total))
	s.log.Info().
		Str("step", string(st.kind)).
		Int("iteration", st.iteration).
		Str("tx_id", txID).
		Uint64("fee", tx.Estimate.Fee).
		Uint64("priority_fee", tx.Estimate.PriorityFee).
		Msg("transaction submitted")

	submitted := time.Now()
	if st.spent != nil {
		err = watch.Spent(ctx, *st.spent, st.timeout)
	} else {
		err = watch.Confirmed(ctx, txID, st.timeout)
	}
	if err != nil {
		return result, tx, err
	}

	metrics.ObserveConfirmation(string(s.flow), submitted)
	s.log.Debug().Str("tx_id", txID).Dur("after", time.Since(submitted)).Msg("transaction confirmed")

	s.completed++
	s.steps = append(s.steps, result)

	return result, tx, nil
}

// query returns current utxos of address.
func (s *session) query(ctx context.Context, address string) ([]ledger.UTXO, error) {
	utxos, err := s.client.UTXOsByAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", address, err)
	}

	return utxos, nil
}

// pause waits configured delay between sequential steps.
func (s *session) pause(ctx context.Context) error {
	if s.o.conf.StepDelay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(s.o.conf.StepDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// scriptInput returns input spending utxo of script-hash address.
func (s *session) scriptInput(utxo ledger.UTXO) txbuilder.Input {
	return txbuilder.Input{UTXO: utxo, RedeemScript: s.script.Bytes()}
}

// scriptInputs returns inputs spending utxos of script-hash address.
func (s *session) scriptInputs(utxos []ledger.UTXO) []txbuilder.Input {
	inputs := make([]txbuilder.Input, 0, len(utxos))
	for _, utxo := range utxos {
		inputs = append(inputs, s.scriptInput(utxo))
	}

	return inputs
}

// sourceInputs returns inputs spending utxos of source address.
func sourceInputs(utxos []ledger.UTXO) []txbuilder.Input {
	inputs := make([]txbuilder.Input, 0, len(utxos))
	for _, utxo := range utxos {
		inputs = append(inputs, txbuilder.Input{UTXO: utxo})
	}

	return inputs
}

// representative returns script-hash utxo placeholder used for fee planning.
func representative(value uint64) ledger.UTXO {
	return ledger.UTXO{
		Outpoint: ledger.Outpoint{TxID: placeholderTxID},
		Amount:   value,
	}
}

// placeholderTxID is a well formed id of a not yet existing transaction.
const placeholderTxID = "0000000000000000000000000000000000000000000000000000000000000000"

// summary returns common result data.
func (s *session) summary() Summary {
	return Summary{
		RunID:         s.runID,
		Flow:          s.flow,
		SourceAddress: s.sourceAddress,
		ScriptAddress: s.scriptAddress,
		Iterations:    s.completed,
		FeesSpent:     s.feesSpent,
		Elapsed:       time.Since(s.started),
		Steps:         s.steps,
	}
}

// fail wraps err with flow progress.
func (s *session) fail(phase Phase, iteration int, err error) *FlowError {
	var flowErr *FlowError
	if errors.As(err, &flowErr) {
		return flowErr
	}

	flowErr = &FlowError{
		Kind:                ledger.KindOf(err),
		Flow:                s.flow,
		Phase:               phase,
		Iteration:           iteration,
		IterationsCompleted: s.completed,
		PlannedIterations:   s.planned,
		FeesSpent:           s.feesSpent,
		Committed:           s.committed,
		Elapsed:             time.Since(s.started),
		Err:                 err,
	}

	metrics.FlowFailures.WithLabelValues(string(s.flow), string(phase)).Inc()
	s.log.Error().
		Err(err).
		Str("phase", string(phase)).
		Int("iteration", iteration).
		Int("completed", s.completed).
		Int("planned", s.planned).
		Uint64("fees_spent", s.feesSpent).
		Str("fees_spent_display", amount.String(s.feesSpent)).
		Uint64("committed", s.committed).
		Msg("flow failed")

	return flowErr
}

// finish records flow completion.
func (s *session) finish(status string) {
	metrics.ObserveFlow(string(s.flow), status, s.started)
	s.log.Info().
		Str("status", status).
		Int("iterations", s.completed).
		Uint64("fees_spent", s.feesSpent).
		Str("fees_spent_display", amount.String(s.feesSpent)).
		Dur("elapsed", time.Since(s.started)).
		Msg("flow finished")
}

// outpoints returns outpoints spent by inputs.
func outpoints(inputs []txbuilder.Input) []ledger.Outpoint {
	result := make([]ledger.Outpoint, 0, len(inputs))
	for _, input := range inputs {
		result = append(result, input.UTXO.Outpoint)
	}

	return result
}
