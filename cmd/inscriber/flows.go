// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BoostyLabs/inscriber/ledger/amount"
	"github.com/BoostyLabs/inscriber/orchestrator"
)

// flowFlags holds flags of flow commands.
type flowFlags struct {
	Ticker      string
	Iterations  uint64
	PriorityFee string
	To          string
	Amount      string
}

var flowArgs flowFlags

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint token with chained reveals",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFlow(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) error {
			params, err := mintParams()
			if err != nil {
				return err
			}

			key, err := privateKey()
			if err != nil {
				return err
			}

			result, err := o.Mint(ctx, key, params)
			if err != nil {
				return err
			}

			printMint(cmd.OutOrStdout(), result)
			return nil
		})
	},
}

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Transfer token amount to recipient",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFlow(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) error {
			params, err := transferParams()
			if err != nil {
				return err
			}

			key, err := privateKey()
			if err != nil {
				return err
			}

			result, err := o.Transfer(ctx, key, params)
			if err != nil {
				return err
			}

			printTransfer(cmd.OutOrStdout(), result)
			return nil
		})
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Spend leftovers of the mint script-hash address",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFlow(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) error {
			key, err := privateKey()
			if err != nil {
				return err
			}

			result, err := o.Sweep(ctx, key, orchestrator.SweepParams{Ticker: flowArgs.Ticker})
			if result != nil {
				printSweep(cmd.OutOrStdout(), result)
			}

			return err
		})
	},
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate flow costs without broadcasting",
}

var estimateMintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Estimate mint costs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFlow(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) error {
			params, err := mintParams()
			if err != nil {
				return err
			}

			key, err := privateKey()
			if err != nil {
				return err
			}

			estimate, err := o.EstimateMint(ctx, key, params)
			if err != nil {
				return err
			}

			printMintEstimate(cmd.OutOrStdout(), estimate)
			return nil
		})
	},
}

var estimateTransferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Estimate transfer costs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFlow(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) error {
			params, err := transferParams()
			if err != nil {
				return err
			}

			key, err := privateKey()
			if err != nil {
				return err
			}

			estimate, err := o.EstimateTransfer(ctx, key, params)
			if err != nil {
				return err
			}

			printTransferEstimate(cmd.OutOrStdout(), estimate)
			return nil
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{mintCmd, estimateMintCmd} {
		cmd.Flags().StringVarP(&flowArgs.Ticker, "ticker", "t", "", "token ticker")
		cmd.Flags().Uint64VarP(&flowArgs.Iterations, "iterations", "n", 0, "mint iterations, raised to configured minimum")
		cmd.Flags().StringVar(&flowArgs.PriorityFee, "priority-fee", "0", "commit priority fee in display units")
		_ = cmd.MarkFlagRequired("ticker")
	}

	for _, cmd := range []*cobra.Command{transferCmd, estimateTransferCmd} {
		cmd.Flags().StringVarP(&flowArgs.Ticker, "ticker", "t", "", "token ticker")
		cmd.Flags().StringVar(&flowArgs.To, "to", "", "recipient address")
		cmd.Flags().StringVar(&flowArgs.Amount, "amount", "", "token amount in display units")
		cmd.Flags().StringVar(&flowArgs.PriorityFee, "priority-fee", "0", "commit priority fee in display units")
		_ = cmd.MarkFlagRequired("ticker")
		_ = cmd.MarkFlagRequired("to")
		_ = cmd.MarkFlagRequired("amount")
	}

	sweepCmd.Flags().StringVarP(&flowArgs.Ticker, "ticker", "t", "", "token ticker")
	_ = sweepCmd.MarkFlagRequired("ticker")

	estimateCmd.AddCommand(estimateMintCmd)
	estimateCmd.AddCommand(estimateTransferCmd)
}

// runFlow runs fn with orchestrator until it returns or process is interrupted.
func runFlow(cmd *cobra.Command, fn func(ctx context.Context, o *orchestrator.Orchestrator) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o, err := newOrchestrator(ctx)
	if err != nil {
		return err
	}

	return fn(ctx, o)
}

func mintParams() (orchestrator.MintParams, error) {
	priorityFee, err := amount.ToBaseUnits(flowArgs.PriorityFee)
	if err != nil {
		return orchestrator.MintParams{}, fmt.Errorf("priority fee: %w", err)
	}

	return orchestrator.MintParams{
		Ticker:      flowArgs.Ticker,
		Iterations:  flowArgs.Iterations,
		PriorityFee: priorityFee,
	}, nil
}

func transferParams() (orchestrator.TransferParams, error) {
	priorityFee, err := amount.ToBaseUnits(flowArgs.PriorityFee)
	if err != nil {
		return orchestrator.TransferParams{}, fmt.Errorf("priority fee: %w", err)
	}

	return orchestrator.TransferParams{
		To:          flowArgs.To,
		Amount:      flowArgs.Amount,
		Ticker:      flowArgs.Ticker,
		PriorityFee: priorityFee,
	}, nil
}
