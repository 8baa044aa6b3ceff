// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Command inscriber mints, transfers and sweeps inscribed tokens with commit-reveal transactions.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
