// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/spf13/cobra"

	"github.com/BoostyLabs/inscriber/config"
	"github.com/BoostyLabs/inscriber/internal/logger"
	"github.com/BoostyLabs/inscriber/internal/metrics"
	"github.com/BoostyLabs/inscriber/ledger/signer"
	"github.com/BoostyLabs/inscriber/ledger/tokeninfo"
	"github.com/BoostyLabs/inscriber/ledger/wsclient"
	"github.com/BoostyLabs/inscriber/orchestrator"
)

// keyEnv names environment variable holding hex encoded private key.
const keyEnv = "INSCRIBER_PRIVATE_KEY"

// GlobalFlags holds flags shared by all commands.
type GlobalFlags struct {
	ConfigPath  string
	Network     string
	Endpoint    string
	LogLevel    string
	LogJSON     bool
	MetricsAddr string
	Key         string
}

var (
	globalFlags GlobalFlags
	conf        config.Config
	logCloser   io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "inscriber",
	Short:         "Commit-reveal inscription client",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		conf, err = config.Load(globalFlags.ConfigPath)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("network") {
			conf.Network = globalFlags.Network
		}
		if flags.Changed("endpoint") {
			conf.Ledger.Endpoint = globalFlags.Endpoint
		}
		if flags.Changed("log-level") {
			conf.Log.Level = globalFlags.LogLevel
		}
		if flags.Changed("log-json") {
			conf.Log.JSON = globalFlags.LogJSON
		}
		if flags.Changed("metrics-addr") {
			conf.Metrics.Addr = globalFlags.MetricsAddr
		}

		if err = conf.Validate(); err != nil {
			return err
		}

		logCloser, err = logger.Init(conf.Log.Level, conf.Log.JSON, conf.Log.File)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser == nil {
			return nil
		}

		return logCloser.Close()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&globalFlags.ConfigPath, "config", "c", "", "path to yaml config")
	flags.StringVar(&globalFlags.Network, "network", "", "network profile: mainnet, testnet, regtest, simnet")
	flags.StringVar(&globalFlags.Endpoint, "endpoint", "", "ledger node websocket endpoint")
	flags.StringVar(&globalFlags.LogLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.BoolVar(&globalFlags.LogJSON, "log-json", false, "write logs as json")
	flags.StringVar(&globalFlags.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on address")
	flags.StringVar(&globalFlags.Key, "key", "", "hex encoded private key, "+keyEnv+" is used when empty")

	rootCmd.AddCommand(mintCmd)
	rootCmd.AddCommand(transferCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(addressCmd)
	rootCmd.AddCommand(decodeCmd)
}

// privateKey returns signing key from flag or environment.
func privateKey() (*btcec.PrivateKey, error) {
	hexKey := globalFlags.Key
	if hexKey == "" {
		hexKey = os.Getenv(keyEnv)
	}
	if hexKey == "" {
		return nil, errors.New("private key is required, set --key or " + keyEnv)
	}

	return signer.ParsePrivateKey(hexKey)
}

// newOrchestrator builds orchestrator from loaded config and starts metrics endpoint when configured.
func newOrchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	orchestratorConfig, err := conf.Orchestrator()
	if err != nil {
		return nil, err
	}

	if conf.Metrics.Addr != "" {
		go func() {
			if err := metrics.ListenAndServe(ctx, conf.Metrics.Addr); err != nil {
				logger.Logger.Error().Err(err).Str("addr", conf.Metrics.Addr).Msg("metrics server stopped")
			}
		}()
	}

	dialer := wsclient.NewDialer(conf.Ledger, logger.Ledger)
	tokens := tokeninfo.New(conf.TokenAPI)

	return orchestrator.New(orchestratorConfig, dialer, tokens, orchestrator.WithLogger(logger.Orchestrator)), nil
}
