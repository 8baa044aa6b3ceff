// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package orchestrator

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/BoostyLabs/inscriber/ledger/amount"
	"github.com/BoostyLabs/inscriber/ledger/inscriptions"
	"github.com/BoostyLabs/inscriber/ledger/tracker"
	"github.com/BoostyLabs/inscriber/ledger/txbuilder"
)

// Config defines flow policies, amounts are in base units.
type Config struct {
	NetworkParams *chaincfg.Params
	Protocol      inscriptions.Protocol
	KeyEncoding   inscriptions.KeyEncoding
	TokenDecimals int32 // token amount decimals in transfer payload.

	FeeRate                uint64
	DustThreshold          uint64
	MintFee                uint64 // priority fee of every mint reveal.
	CommitBuffer           uint64
	TransferHandlingAmount uint64 // returned to source by transfer reveal.

	MinIterations uint64

	SplitThreshold         uint64 // larger utxos are split before drain.
	SplitReserve           uint64
	SplitCost              uint64
	MaxConsecutiveFailures int

	ConfirmationTimeout time.Duration
	TransferTimeout     time.Duration
	SettleDelay         time.Duration
	StepDelay           time.Duration
}

// DefaultConfig returns testnet configuration with default policies.
func DefaultConfig() Config {
	return Config{
		NetworkParams:          &chaincfg.TestNet3Params,
		Protocol:               inscriptions.DefaultProtocol(),
		KeyEncoding:            inscriptions.KeyCompressed,
		TokenDecimals:          amount.Decimals,
		FeeRate:                txbuilder.DefaultFeeRate,
		DustThreshold:          txbuilder.DefaultDustThreshold,
		MintFee:                amount.BaseUnitsPerDisplayUnit,
		CommitBuffer:           10_000,
		TransferHandlingAmount: 30_000_000,
		MinIterations:          20,
		SplitThreshold:         200_100_000,
		SplitReserve:           amount.BaseUnitsPerDisplayUnit,
		SplitCost:              amount.BaseUnitsPerDisplayUnit,
		MaxConsecutiveFailures: 3,
		ConfirmationTimeout:    tracker.DefaultTimeout,
		TransferTimeout:        120 * time.Second,
		SettleDelay:            tracker.DefaultSettleDelay,
		StepDelay:              100 * time.Millisecond,
	}
}

// RequiredSplits returns count of splitting reveals needed before utxo of value can be drained.
func (c Config) RequiredSplits(value uint64) uint64 {
	if value <= c.SplitReserve || c.SplitCost == 0 {
		return 0
	}

	return (value - c.SplitReserve) / c.SplitCost
}
