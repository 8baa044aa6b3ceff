// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package orchestrator drives commit-reveal inscription flows: mint, transfer and sweep.
package orchestrator

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/BoostyLabs/inscriber/ledger"
	"github.com/BoostyLabs/inscriber/ledger/signer"
	"github.com/BoostyLabs/inscriber/ledger/tokeninfo"
	"github.com/BoostyLabs/inscriber/ledger/txbuilder"
)

// TokenLimits provides per-mint token caps.
type TokenLimits interface {
	MintLimit(ctx context.Context, ticker string) (tokeninfo.Limit, error)
}

// Option configures Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets orchestrator logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// Orchestrator runs flows. Every invocation dials its own ledger connection,
// so concurrent invocations never observe each other's notifications.
type Orchestrator struct {
	conf    Config
	dialer  ledger.Dialer
	tokens  TokenLimits
	builder *txbuilder.TxBuilder
	signer  *signer.Signer
	log     zerolog.Logger
}

// New is a constructor for Orchestrator. tokens may be nil.
func New(conf Config, dialer ledger.Dialer, tokens TokenLimits, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		conf:   conf,
		dialer: dialer,
		tokens: tokens,
		builder: txbuilder.NewTxBuilder(conf.NetworkParams,
			txbuilder.WithFeeRate(conf.FeeRate),
			txbuilder.WithDustThreshold(conf.DustThreshold),
		),
		signer: signer.NewSigner(conf.NetworkParams),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Config returns orchestrator configuration.
func (o *Orchestrator) Config() Config {
	return o.conf
}
