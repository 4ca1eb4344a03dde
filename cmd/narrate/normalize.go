package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/narration-resolver/internal/normalize"
	"github.com/Veraticus/narration-resolver/internal/taxonomy"
	"github.com/spf13/cobra"
)

func normalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize <narration>",
		Short: "Print the normalized form of a narration",
		Long: `Print the text the resolver matches against. Person-to-person transfers
keep the counterparty name unless --no-p2p is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			noP2P, _ := cmd.Flags().GetBool("no-p2p")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tax, err := taxonomy.Load(cfg.Taxonomy.Path)
			if err != nil {
				slog.Warn("Taxonomy unusable, using default noise words", "error", err)
			}

			return runNormalize(cmd.OutOrStdout(), normalize.New(tax.NoiseWords), args[0], !noP2P)
		},
	}

	cmd.Flags().Bool("no-p2p", false, "normalize transfers like merchant payments")

	return cmd
}

func runNormalize(w io.Writer, n *normalize.Normalizer, narration string, preserveP2P bool) error {
	_, err := fmt.Fprintln(w, n.Normalize(narration, preserveP2P))
	return err
}
