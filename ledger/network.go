// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package ledger

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
)

// NetworkParams returns chain parameters by network profile name.
func NetworkParams(name string) (*chaincfg.Params, error) {
	switch strings.ToLower(name) {
	case "mainnet", "main":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3", "testnet-10":
		return &chaincfg.TestNet3Params, nil
	case "regtest", "devnet":
		return &chaincfg.RegressionNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", name)
	}
}
