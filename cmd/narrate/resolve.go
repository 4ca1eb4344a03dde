package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Veraticus/narration-resolver/internal/engine"
	"github.com/Veraticus/narration-resolver/internal/model"
	"github.com/spf13/cobra"
)

// envelopeError is printed in place of results when the batch argument is
// not a JSON array of strings.
type envelopeError struct {
	Error             string `json:"error"`
	PredictedCategory string `json:"predicted_category"`
}

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <narration | JSON array>",
		Short: "Resolve one narration or a JSON array of narrations",
		Long: `Resolve prints one JSON object for a single narration. An argument that
starts with '[' is read as a JSON array of narrations and answered with a
JSON array of the same length, in the same order.

The exit code is 1 when any narration failed for a reason other than being
empty, or when the array cannot be parsed.

Examples:
  narrate resolve "UPI-ZOMATO-ZOMATO@HDFCBANK"
  narrate resolve '["NEFT CR-ACME TECHNOLOGIES", "ACH D- ZERODHA"]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			return runResolve(cmd.Context(), cmd.OutOrStdout(), a, args[0])
		},
	}
	return cmd
}

func runResolve(ctx context.Context, w io.Writer, a *app, arg string) error {
	arg = strings.TrimSpace(arg)

	if !engine.IsBatchArgument(arg) {
		result := a.resolver.Resolve(ctx, arg)
		if err := writeJSON(w, engine.NewResult(result)); err != nil {
			return err
		}
		return failureErr(result)
	}

	narrations, err := engine.ParseBatchEnvelope(arg)
	if err != nil {
		if werr := writeJSON(w, envelopeError{Error: err.Error(), PredictedCategory: model.DefaultCategory}); werr != nil {
			return werr
		}
		return errResolutionFailed
	}

	results := a.resolver.ResolveBatch(ctx, narrations, a.batchOptions())
	if err := writeJSON(w, engine.NewResults(results)); err != nil {
		return err
	}
	return failureErr(results...)
}

func failureErr(results ...model.ResolutionResult) error {
	if engine.HasFailure(results...) {
		return errResolutionFailed
	}
	return nil
}

// writeJSON prints v as a single line.
func writeJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
