package main

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/Veraticus/narration-resolver/internal/cli"
	"github.com/Veraticus/narration-resolver/internal/model"
	"github.com/Veraticus/narration-resolver/internal/taxonomy"
	"github.com/spf13/cobra"
)

func taxonomyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "taxonomy",
		Aliases: []string{"categories"},
		Short:   "List categories and their keyword counts",
		Long: `List the categories from categories.yml. With --json, print a sorted
array of every top-level name and "Top / Sub" path.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tax, err := taxonomy.Load(cfg.Taxonomy.Path)
			if err != nil {
				slog.Warn("Taxonomy unusable", "error", err)
			}

			return runTaxonomy(cmd.OutOrStdout(), tax, asJSON)
		},
	}

	cmd.Flags().Bool("json", false, "print category names as a JSON array")

	return cmd
}

func runTaxonomy(w io.Writer, tax *taxonomy.Taxonomy, asJSON bool) error {
	if asJSON {
		return writeJSON(w, categoryNames(tax))
	}
	_, err := fmt.Fprintln(w, cli.RenderCategories("Categories", categoryRows(tax)))
	return err
}

// categoryNames lists top-level names and "Top / Sub" paths, sorted.
func categoryNames(tax *taxonomy.Taxonomy) []string {
	seen := make(map[string]bool)
	names := []string{}
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	for _, cat := range tax.Categories {
		top := strings.TrimSpace(cat.Name)
		add(top)
		for _, sub := range cat.Subcategories {
			if name := strings.TrimSpace(sub.Name); name != "" {
				add(model.CategoryPath{Top: top, Sub: name}.String())
			}
		}
	}

	sort.Strings(names)
	return names
}

func categoryRows(tax *taxonomy.Taxonomy) []cli.CategoryRow {
	rows := make([]cli.CategoryRow, 0, len(tax.Categories))
	for _, cat := range tax.Categories {
		top := strings.TrimSpace(cat.Name)
		row := cli.CategoryRow{Name: top}

		if len(cat.Subcategories) == 0 {
			row.Keywords = tax.KeywordCount(top)
		}
		for _, sub := range cat.Subcategories {
			name := strings.TrimSpace(sub.Name)
			if name == "" {
				continue
			}
			count := tax.KeywordCount(model.CategoryPath{Top: top, Sub: name}.String())
			row.Children = append(row.Children, cli.CategoryRow{Name: name, Keywords: count})
			row.Keywords += count
		}
		rows = append(rows, row)
	}
	return rows
}
