// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BoostyLabs/inscriber/ledger/inscriptions"
	"github.com/BoostyLabs/inscriber/ledger/signer"
)

var addressTicker string

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print source address and mint script-hash address of ticker",
	RunE: func(cmd *cobra.Command, args []string) error {
		orchestratorConfig, err := conf.Orchestrator()
		if err != nil {
			return err
		}

		key, err := privateKey()
		if err != nil {
			return err
		}

		source, err := signer.NewSigner(orchestratorConfig.NetworkParams).SourceAddress(key)
		if err != nil {
			return err
		}

		t := newTable(cmd.OutOrStdout())
		t.row("source address", source)
		if addressTicker != "" {
			envelope := orchestratorConfig.Protocol.Mint(addressTicker)
			script, err := inscriptions.BuildRedeemScript(key.PubKey(), envelope, orchestratorConfig.KeyEncoding)
			if err != nil {
				return err
			}

			scriptAddress, err := script.Address(orchestratorConfig.NetworkParams)
			if err != nil {
				return err
			}

			t.row("script address", scriptAddress.EncodeAddress())
			t.row("redeem script", hex.EncodeToString(script.Bytes()))
		}
		t.flush()

		return nil
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode <unlocking-script-hex>",
	Short: "Decode inscription from reveal unlocking script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := hex.DecodeString(strings.TrimSpace(args[0]))
		if err != nil {
			return fmt.Errorf("decode hex: %w", err)
		}

		signature, parsed, err := inscriptions.ParseUnlockingScript(raw)
		if err != nil {
			return err
		}

		t := newTable(cmd.OutOrStdout())
		t.row("signature", hex.EncodeToString(signature))
		t.row("public key", hex.EncodeToString(parsed.PublicKey))
		t.row("tag", parsed.Tag)
		t.row("version", parsed.Version)
		t.row("payload", string(parsed.Payload))
		t.flush()

		return nil
	},
}

func init() {
	addressCmd.Flags().StringVarP(&addressTicker, "ticker", "t", "", "token ticker of mint script-hash address")
}
