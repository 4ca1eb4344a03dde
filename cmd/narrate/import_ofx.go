package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/narration-resolver/internal/cli"
	"github.com/Veraticus/narration-resolver/internal/engine"
	"github.com/Veraticus/narration-resolver/internal/model"
	"github.com/Veraticus/narration-resolver/internal/ofx"
	"github.com/spf13/cobra"
)

// importedTransaction is one statement line with its resolution.
type importedTransaction struct {
	TransactionID string  `json:"transaction_id"`
	Date          string  `json:"date"`
	AccountID     string  `json:"account_id"`
	Type          string  `json:"type"`
	engine.Result
	Amount float64 `json:"amount"`
}

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-ofx <files...>",
		Short: "Resolve every transaction in OFX/QFX statements",
		Long: `Read OFX or QFX statements exported from your bank and resolve the
narration of every transaction. Transactions repeated across files are
resolved once. Results are printed as a JSON array in statement order.

Examples:
  narrate import-ofx ~/Downloads/hdfc_mar_2024.ofx
  narrate import-ofx ~/Downloads/*.qfx > resolved.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			noProgress, _ := cmd.Flags().GetBool("no-progress")

			files, err := expandFiles(args)
			if err != nil {
				return err
			}

			a, err := loadApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
			ctx := interrupts.HandleInterrupts(cmd.Context(), "No results were written.")
			defer interrupts.Stop()

			var progress io.Writer
			if !noProgress {
				progress = cmd.ErrOrStderr()
			}
			return runImportOFX(ctx, cmd.OutOrStdout(), progress, a, files)
		},
	}

	cmd.Flags().Bool("no-progress", false, "do not draw a progress bar")

	return cmd
}

// expandFiles resolves glob patterns; arguments without matches are kept
// when they name an existing file.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) > 0 {
			files = append(files, matches...)
			continue
		}
		if _, err := os.Stat(pattern); err == nil {
			files = append(files, pattern)
		} else {
			slog.Warn("No files found matching pattern", "pattern", pattern)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no statement files found")
	}
	return files, nil
}

func runImportOFX(ctx context.Context, w, progress io.Writer, a *app, files []string) error {
	transactions, err := readStatements(ctx, files)
	if err != nil {
		return err
	}

	opts := a.batchOptions()
	var bar *cli.Progress
	if progress != nil && len(transactions) > 0 {
		bar = cli.NewProgress(progress, len(transactions), "Resolving narrations...")
		opts.Progress = bar.Update
	}

	results := a.resolver.ResolveBatch(ctx, ofx.Narrations(transactions), opts)
	if bar != nil {
		bar.Finish()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	out := make([]importedTransaction, len(transactions))
	for i, tx := range transactions {
		out[i] = importedTransaction{
			TransactionID: tx.ID,
			Date:          tx.Date.Format("2006-01-02"),
			AccountID:     tx.AccountID,
			Type:          tx.Type,
			Amount:        tx.Amount,
			Result:        engine.NewResult(results[i]),
		}
	}
	if err := writeJSON(w, out); err != nil {
		return err
	}
	return failureErr(results...)
}

// readStatements parses every file, skipping unreadable ones, and drops
// transactions already seen in an earlier file.
func readStatements(ctx context.Context, files []string) ([]model.Transaction, error) {
	parser := ofx.NewParser()
	seen := make(map[string]bool)
	var all []model.Transaction

	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			slog.Error("Failed to open statement", "file", path, "error", err)
			continue
		}

		transactions, err := parser.Parse(ctx, f)
		_ = f.Close()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Error("Failed to parse statement", "file", path, "error", err)
			continue
		}

		added := 0
		for _, tx := range transactions {
			if seen[tx.Hash] {
				continue
			}
			seen[tx.Hash] = true
			all = append(all, tx)
			added++
		}

		slog.Info("Read statement",
			"file", filepath.Base(path),
			"transactions", len(transactions),
			"duplicates", len(transactions)-added)
	}

	return all, nil
}
