// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/inscriber/config"
	"github.com/BoostyLabs/inscriber/ledger/inscriptions"
	"github.com/BoostyLabs/inscriber/orchestrator"
)

func TestDefault(t *testing.T) {
	conf, err := config.Default().Orchestrator()
	require.NoError(t, err)

	defaults := orchestrator.DefaultConfig()
	require.Equal(t, defaults.MintFee, conf.MintFee)
	require.Equal(t, defaults.CommitBuffer, conf.CommitBuffer)
	require.Equal(t, defaults.TransferHandlingAmount, conf.TransferHandlingAmount)
	require.Equal(t, defaults.SplitThreshold, conf.SplitThreshold)
	require.Equal(t, uint64(200_100_000), conf.SplitThreshold)
	require.Equal(t, defaults.SplitReserve, conf.SplitReserve)
	require.Equal(t, defaults.SplitCost, conf.SplitCost)
	require.Equal(t, defaults.MaxConsecutiveFailures, conf.MaxConsecutiveFailures)
	require.Equal(t, defaults.MinIterations, conf.MinIterations)
	require.Equal(t, defaults.ConfirmationTimeout, conf.ConfirmationTimeout)
	require.Equal(t, defaults.TransferTimeout, conf.TransferTimeout)
	require.Equal(t, defaults.Protocol, conf.Protocol)
	require.Equal(t, &chaincfg.TestNet3Params, conf.NetworkParams)
}

func TestLoad(t *testing.T) {
	t.Run("overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
network: mainnet
ledger:
  endpoint: ws://node:17110
  requireSynced: false
protocol:
  keyEncoding: xonly
fees:
  mintFee: "1.5"
sweep:
  splitThreshold: "1.001"
confirmation:
  timeout: 45s
`), 0o600))

		loaded, err := config.Load(path)
		require.NoError(t, err)
		require.Equal(t, "ws://node:17110", loaded.Ledger.Endpoint)
		require.False(t, loaded.Ledger.RequireSynced)
		require.Equal(t, 10*time.Second, loaded.Ledger.DialTimeout)

		conf, err := loaded.Orchestrator()
		require.NoError(t, err)
		require.Equal(t, &chaincfg.MainNetParams, conf.NetworkParams)
		require.Equal(t, inscriptions.KeyXOnly, conf.KeyEncoding)
		require.Equal(t, uint64(150_000_000), conf.MintFee)
		require.Equal(t, uint64(100_100_000), conf.SplitThreshold)
		require.Equal(t, 45*time.Second, conf.ConfirmationTimeout)
		require.Equal(t, 120*time.Second, conf.TransferTimeout)
	})

	t.Run("empty path", func(t *testing.T) {
		loaded, err := config.Load("")
		require.NoError(t, err)
		require.Equal(t, config.Default(), loaded)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	conf := config.Default()
	conf.Network = "unknown"
	conf.Fees.MintFee = "one"
	conf.Fees.FeeRate = 0
	conf.Sweep.MaxConsecutiveFailures = 0

	err := conf.Validate()
	require.Error(t, err)
	require.ErrorContains(t, err, "unknown network")
	require.ErrorContains(t, err, "fees.mintFee")
	require.ErrorContains(t, err, "fees.feeRate")
	require.ErrorContains(t, err, "sweep.maxConsecutiveFailures")

	require.NoError(t, config.Default().Validate())
}
