// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package fees_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/inscriber/ledger"
	"github.com/BoostyLabs/inscriber/ledger/fees"
	"github.com/BoostyLabs/inscriber/ledger/inscriptions"
	"github.com/BoostyLabs/inscriber/ledger/txbuilder"
)

type fixedEstimator struct {
	fee uint64
	err error
}

func (e fixedEstimator) Estimate(txbuilder.Params) (txbuilder.Estimate, error) {
	return txbuilder.Estimate{Fee: e.fee}, e.err
}

func TestDrainPriorityFee(t *testing.T) {
	inputs := []txbuilder.Input{{UTXO: ledger.UTXO{Amount: 1_5000_0000}}}

	t.Run("invariant", func(t *testing.T) {
		for _, fee := range []uint64{0, 1, 3000, 1_4999_9999} {
			drain, err := fees.DrainPriorityFee(fixedEstimator{fee: fee}, inputs, "")
			require.NoError(t, err)
			require.Equal(t, drain.Amount, drain.PriorityFee+drain.Fee)
			require.Equal(t, fee, drain.Fee)
		}
	})

	t.Run("fee covers amount", func(t *testing.T) {
		for _, fee := range []uint64{1_5000_0000, 2_0000_0000} {
			_, err := fees.DrainPriorityFee(fixedEstimator{fee: fee}, inputs, "")
			require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
		}
	})

	t.Run("estimator error", func(t *testing.T) {
		failure := errors.New("node is down")
		_, err := fees.DrainPriorityFee(fixedEstimator{err: failure}, inputs, "")
		require.ErrorIs(t, err, failure)
	})

	t.Run("no inputs", func(t *testing.T) {
		_, err := fees.DrainPriorityFee(fixedEstimator{}, nil, "")
		require.ErrorIs(t, err, ledger.ErrNoUTXOFound)
	})

	t.Run("with tx builder", func(t *testing.T) {
		privKey, err := btcec.NewPrivateKey()
		require.NoError(t, err)
		script, err := inscriptions.BuildRedeemScript(privKey.PubKey(), inscriptions.DefaultProtocol().Mint("DRAIN"), inscriptions.KeyCompressed)
		require.NoError(t, err)
		addr, err := script.Address(&chaincfg.RegressionNetParams)
		require.NoError(t, err)

		builder := txbuilder.NewTxBuilder(&chaincfg.RegressionNetParams)
		inputs := []txbuilder.Input{
			{UTXO: ledger.UTXO{Outpoint: ledger.Outpoint{TxID: fmt.Sprintf("%064x", 1)}, Amount: 9000_0000}, RedeemScript: script.Bytes()},
			{UTXO: ledger.UTXO{Outpoint: ledger.Outpoint{TxID: fmt.Sprintf("%064x", 2)}, Amount: 1234_5678}, RedeemScript: script.Bytes()},
		}

		drain, err := fees.DrainPriorityFee(builder, inputs, addr.EncodeAddress())
		require.NoError(t, err)
		require.EqualValues(t, 9000_0000+1234_5678, drain.Amount)

		tx, err := builder.Build(txbuilder.Params{PriorityInputs: inputs, ChangeAddress: addr.EncodeAddress(), PriorityFee: drain.PriorityFee})
		require.NoError(t, err)
		require.Empty(t, tx.Tx.TxOut)
		require.Equal(t, drain.Amount, tx.Estimate.Fee+tx.Estimate.PriorityFee)

		tiny := []txbuilder.Input{{UTXO: ledger.UTXO{Outpoint: ledger.Outpoint{TxID: fmt.Sprintf("%064x", 3)}, Amount: 10}, RedeemScript: script.Bytes()}}
		_, err = fees.DrainPriorityFee(builder, tiny, addr.EncodeAddress())
		require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	})
}

func TestIterationBudget(t *testing.T) {
	budget, err := fees.IterationBudget(fixedEstimator{fee: 2500}, txbuilder.Params{}, 20)
	require.NoError(t, err)
	require.EqualValues(t, 2500, budget.PerIteration)
	require.EqualValues(t, 20*2500, budget.Fees)

	_, err = fees.IterationBudget(fixedEstimator{fee: 2500}, txbuilder.Params{}, 0)
	require.Error(t, err)

	_, err = fees.IterationBudget(fixedEstimator{fee: math.MaxUint64}, txbuilder.Params{}, 2)
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	t.Run("commit amount", func(t *testing.T) {
		const (
			protocolAmount = 20 * 1_0000_0000
			buffer         = 1_0000
		)

		commit, err := fees.CommitAmount(budget, protocolAmount, buffer, 0)
		require.NoError(t, err)
		require.EqualValues(t, 20*2500+protocolAmount+buffer, commit)

		rounded, err := fees.CommitAmount(budget, protocolAmount, buffer, 1_0000)
		require.NoError(t, err)
		require.GreaterOrEqual(t, rounded, commit)
		require.Zero(t, rounded%1_0000)

		_, err = fees.CommitAmount(fees.Budget{Fees: math.MaxUint64}, 1, 0, 0)
		require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	})
}
