package main

import (
	"context"

	"github.com/spf13/cobra"

	"settlement-engine/internal/models"
)

var failReason string

var listCmd = &cobra.Command{
	Use:   "list <account-id>",
	Short: "List an account's payout requests, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(func(ctx context.Context, rt *runtime, args []string) error {
		reqs, err := rt.payouts.ListRequests(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(rootCmd, reqs)
	}),
}

var balanceCmd = &cobra.Command{
	Use:   "balance <account-id>",
	Short: "Show earned, reserved, paid-out and available amounts",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(func(ctx context.Context, rt *runtime, args []string) error {
		sum, err := rt.ledger.Summary(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(rootCmd, map[string]string{
			"accountId":   sum.AccountID,
			"totalEarned": sum.TotalEarned.String(),
			"reserved":    sum.Reserved.String(),
			"paidOut":     sum.PaidOut.String(),
			"available":   sum.Available.String(),
		})
	}),
}

var requestCmd = &cobra.Command{
	Use:   "request <account-id> <amount>",
	Short: "Create a payout request, e.g. request acct-1 25.00",
	Args:  cobra.ExactArgs(2),
	RunE: withRuntime(func(ctx context.Context, rt *runtime, args []string) error {
		req, err := rt.payouts.RequestPayout(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(rootCmd, req)
	}),
}

var startCmd = &cobra.Command{
	Use:   "start <payout-id>",
	Short: "Move a pending request to processing",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(func(ctx context.Context, rt *runtime, args []string) error {
		return printResult(rt.payouts.StartProcessing(ctx, args[0], actor))
	}),
}

var completeCmd = &cobra.Command{
	Use:   "complete <payout-id> [transfer-id]",
	Short: "Mark a processing request completed",
	Args:  cobra.RangeArgs(1, 2),
	RunE: withRuntime(func(ctx context.Context, rt *runtime, args []string) error {
		transferID := ""
		if len(args) == 2 {
			transferID = args[1]
		}
		return printResult(rt.payouts.Complete(ctx, args[0], transferID, actor))
	}),
}

var failCmd = &cobra.Command{
	Use:   "fail <payout-id>",
	Short: "Mark a request failed, releasing its reservation",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(func(ctx context.Context, rt *runtime, args []string) error {
		return printResult(rt.payouts.Fail(ctx, args[0], failReason, actor))
	}),
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <payout-id>",
	Short: "Cancel a pending request",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(func(ctx context.Context, rt *runtime, args []string) error {
		return printResult(rt.payouts.Cancel(ctx, args[0], failReason, actor))
	}),
}

func printResult(req *models.PayoutRequest, err error) error {
	if err != nil {
		return err
	}
	return printJSON(rootCmd, req)
}

func init() {
	failCmd.Flags().StringVar(&failReason, "reason", "", "Failure reason stored on the request")
	cancelCmd.Flags().StringVar(&failReason, "reason", "", "Cancellation reason stored on the request")

	rootCmd.AddCommand(listCmd, balanceCmd, requestCmd, startCmd, completeCmd, failCmd, cancelCmd)
}
