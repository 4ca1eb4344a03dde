package main

import (
	"context"
	"fmt"
	"io"

	"github.com/Veraticus/narration-resolver/internal/cli"
	"github.com/Veraticus/narration-resolver/internal/model"
	"github.com/spf13/cobra"
)

func correctCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correct <narration> <category>",
		Short: "Record the correct category for a narration",
		Long: `Record a user correction. Later runs resolve narrations with the same
normalized text to this category before consulting keywords or the model.

Categories use "Top / Sub" form, for example "Dining / Food Delivery".
Recording the same narration and category again refreshes its timestamp.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user-id")
			transactionID, _ := cmd.Flags().GetString("transaction-id")

			a, err := loadApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			meta := model.CorrectionMeta{UserID: userID, TransactionID: transactionID}
			return runCorrect(cmd.Context(), cmd.OutOrStdout(), a, args[0], args[1], meta)
		},
	}

	cmd.Flags().String("user-id", "", "user that made the correction")
	cmd.Flags().String("transaction-id", "", "transaction the correction came from")

	return cmd
}

func runCorrect(ctx context.Context, w io.Writer, a *app, narration, category string, meta model.CorrectionMeta) error {
	if err := a.corrections.Upsert(ctx, narration, category, meta); err != nil {
		return err
	}

	// The store logs a warning for categories outside the taxonomy.
	_, err := fmt.Fprintln(w, cli.FormatSuccess(fmt.Sprintf("%q → %s", narration, category)))
	return err
}
