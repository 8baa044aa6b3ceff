// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package config loads inscriber configuration from yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BoostyLabs/inscriber/ledger"
	"github.com/BoostyLabs/inscriber/ledger/amount"
	"github.com/BoostyLabs/inscriber/ledger/inscriptions"
	"github.com/BoostyLabs/inscriber/ledger/tokeninfo"
	"github.com/BoostyLabs/inscriber/ledger/wsclient"
	"github.com/BoostyLabs/inscriber/orchestrator"
)

// Config is the full inscriber configuration.
type Config struct {
	Network      string           `yaml:"network"`
	Ledger       wsclient.Config  `yaml:"ledger"`
	TokenAPI     tokeninfo.Config `yaml:"tokenAPI"`
	Protocol     Protocol         `yaml:"protocol"`
	Fees         Fees             `yaml:"fees"`
	Mint         Mint             `yaml:"mint"`
	Sweep        Sweep            `yaml:"sweep"`
	Confirmation Confirmation     `yaml:"confirmation"`
	Log          Log              `yaml:"log"`
	Metrics      Metrics          `yaml:"metrics"`
}

// Protocol defines inscription envelope settings.
type Protocol struct {
	Tag         string `yaml:"tag"`
	Version     int64  `yaml:"version"`
	Standard    string `yaml:"standard"`
	Decimals    int32  `yaml:"decimals"` // token amount decimals in transfer payload.
	KeyEncoding string `yaml:"keyEncoding"`
}

// Fees defines fee policy, amounts are in display units.
type Fees struct {
	FeeRate                uint64 `yaml:"feeRate"`
	DustThreshold          uint64 `yaml:"dustThreshold"` // in base units.
	MintFee                string `yaml:"mintFee"`
	CommitBuffer           string `yaml:"commitBuffer"`
	TransferHandlingAmount string `yaml:"transferHandlingAmount"`
}

// Mint defines mint flow settings.
type Mint struct {
	MinIterations uint64 `yaml:"minIterations"`
}

// Sweep defines sweep flow settings, amounts are in display units.
type Sweep struct {
	SplitThreshold         string `yaml:"splitThreshold"`
	SplitReserve           string `yaml:"splitReserve"`
	SplitCost              string `yaml:"splitCost"`
	MaxConsecutiveFailures int    `yaml:"maxConsecutiveFailures"`
}

// Confirmation defines waiting settings.
type Confirmation struct {
	Timeout         time.Duration `yaml:"timeout"`
	TransferTimeout time.Duration `yaml:"transferTimeout"`
	SettleDelay     time.Duration `yaml:"settleDelay"`
	StepDelay       time.Duration `yaml:"stepDelay"`
}

// Log defines logging settings.
type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
	File  string `yaml:"file"`
}

// Metrics defines prometheus endpoint settings, disabled when Addr is empty.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// Default returns configuration with default values.
func Default() Config {
	defaults := orchestrator.DefaultConfig()

	return Config{
		Network: "testnet",
		Ledger: wsclient.Config{
			Endpoint:       "ws://127.0.0.1:17210",
			DialTimeout:    10 * time.Second,
			RequestTimeout: 30 * time.Second,
			RequireSynced:  true,
		},
		TokenAPI: tokeninfo.Config{
			BaseURL:  "https://tn10api.kasplex.org",
			Timeout:  tokeninfo.DefaultTimeout,
			CacheTTL: tokeninfo.DefaultCacheTTL,
		},
		Protocol: Protocol{
			Tag:         defaults.Protocol.Tag,
			Version:     defaults.Protocol.Version,
			Standard:    defaults.Protocol.Standard,
			Decimals:    defaults.TokenDecimals,
			KeyEncoding: defaults.KeyEncoding.String(),
		},
		Fees: Fees{
			FeeRate:                defaults.FeeRate,
			DustThreshold:          defaults.DustThreshold,
			MintFee:                amount.String(defaults.MintFee),
			CommitBuffer:           amount.String(defaults.CommitBuffer),
			TransferHandlingAmount: amount.String(defaults.TransferHandlingAmount),
		},
		Mint: Mint{MinIterations: defaults.MinIterations},
		Sweep: Sweep{
			SplitThreshold:         amount.String(defaults.SplitThreshold),
			SplitReserve:           amount.String(defaults.SplitReserve),
			SplitCost:              amount.String(defaults.SplitCost),
			MaxConsecutiveFailures: defaults.MaxConsecutiveFailures,
		},
		Confirmation: Confirmation{
			Timeout:         defaults.ConfirmationTimeout,
			TransferTimeout: defaults.TransferTimeout,
			SettleDelay:     defaults.SettleDelay,
			StepDelay:       defaults.StepDelay,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads yaml file at path over default values.
func Load(path string) (Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err = yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	return config, nil
}

// Validate checks configuration values.
func (c Config) Validate() error {
	_, err := c.Orchestrator()
	return err
}

// Orchestrator converts configuration into orchestrator settings.
func (c Config) Orchestrator() (orchestrator.Config, error) {
	var errs []error
	check := func(cond bool, msg string) {
		if !cond {
			errs = append(errs, errors.New(msg))
		}
	}
	parse := func(name, value string) uint64 {
		v, err := amount.ToBaseUnits(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		return v
	}

	networkParams, err := ledger.NetworkParams(c.Network)
	if err != nil {
		errs = append(errs, err)
	}

	keyEncoding, err := inscriptions.ParseKeyEncoding(c.Protocol.KeyEncoding)
	if err != nil {
		errs = append(errs, err)
	}

	conf := orchestrator.Config{
		NetworkParams: networkParams,
		Protocol: inscriptions.Protocol{
			Tag:      c.Protocol.Tag,
			Version:  c.Protocol.Version,
			Standard: c.Protocol.Standard,
		},
		KeyEncoding:            keyEncoding,
		TokenDecimals:          c.Protocol.Decimals,
		FeeRate:                c.Fees.FeeRate,
		DustThreshold:          c.Fees.DustThreshold,
		MintFee:                parse("fees.mintFee", c.Fees.MintFee),
		CommitBuffer:           parse("fees.commitBuffer", c.Fees.CommitBuffer),
		TransferHandlingAmount: parse("fees.transferHandlingAmount", c.Fees.TransferHandlingAmount),
		MinIterations:          c.Mint.MinIterations,
		SplitThreshold:         parse("sweep.splitThreshold", c.Sweep.SplitThreshold),
		SplitReserve:           parse("sweep.splitReserve", c.Sweep.SplitReserve),
		SplitCost:              parse("sweep.splitCost", c.Sweep.SplitCost),
		MaxConsecutiveFailures: c.Sweep.MaxConsecutiveFailures,
		ConfirmationTimeout:    c.Confirmation.Timeout,
		TransferTimeout:        c.Confirmation.TransferTimeout,
		SettleDelay:            c.Confirmation.SettleDelay,
		StepDelay:              c.Confirmation.StepDelay,
	}

	check(c.Ledger.Endpoint != "", "ledger.endpoint is empty")
	check(c.Protocol.Tag != "", "protocol.tag is empty")
	check(c.Protocol.Standard != "", "protocol.standard is empty")
	check(c.Protocol.Decimals >= 0 && c.Protocol.Decimals <= 18, "protocol.decimals must be in [0, 18]")
	check(c.Fees.FeeRate > 0, "fees.feeRate must be positive")
	check(c.Sweep.MaxConsecutiveFailures > 0, "sweep.maxConsecutiveFailures must be positive")
	check(c.Confirmation.Timeout > 0, "confirmation.timeout must be positive")
	check(c.Confirmation.TransferTimeout > 0, "confirmation.transferTimeout must be positive")
	check(c.Confirmation.SettleDelay >= 0, "confirmation.settleDelay is negative")
	check(c.Confirmation.StepDelay >= 0, "confirmation.stepDelay is negative")
	check(conf.SplitCost > 0, "sweep.splitCost must be positive")

	if len(errs) > 0 {
		return orchestrator.Config{}, fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}

	return conf, nil
}
