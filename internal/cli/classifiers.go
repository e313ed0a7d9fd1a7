package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veritas/internal/pipeline"
)

var checkClassifiers bool

// classifiersCmd represents the classifiers command
var classifiersCmd = &cobra.Command{
	Use:   "classifiers",
	Short: "List the configured classifier ensemble",
	Long: `List every configured classifier with its kind, vote weight and whether it
draws from the shared rate limit. Classifiers that are disabled or lack
credentials are shown with the reason they were skipped.

With --check, each active classifier's backend is checked.`,
	RunE: runClassifiers,
}

func init() {
	rootCmd.AddCommand(classifiersCmd)
	classifiersCmd.Flags().BoolVar(&checkClassifiers, "check", false, "check each active classifier backend")
}

func runClassifiers(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	built, err := pipeline.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}

	active := make(map[string]bool, len(built.Ensemble.Adapters))
	for _, a := range built.Ensemble.Adapters {
		active[a.Name()] = true
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-20s %-18s %6s  %-12s %s\n", "NAME", "KIND", "WEIGHT", "RATE LIMIT", "STATUS")
	for _, cc := range cfg.Classifiers {
		limited := "no"
		if cc.RateLimited {
			limited = "shared"
		}

		status := "active"
		if !active[cc.Name] {
			status = "skipped: " + built.Ensemble.Skipped[cc.Name]
		}
		fmt.Fprintf(out, "%-20s %-18s %6d  %-12s %s\n", cc.Name, cc.Kind, cc.Weight, limited, status)
	}

	if !checkClassifiers {
		return nil
	}

	fmt.Fprintln(out)
	failed := 0
	for _, a := range built.Ensemble.Adapters {
		if err := a.Check(ctx); err != nil {
			failed++
			fmt.Fprintf(out, "✗ %s: %v\n", a.Name(), err)
			continue
		}
		fmt.Fprintf(out, "✓ %s\n", a.Name())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d classifiers failed the check", failed, len(built.Ensemble.Adapters))
	}
	return nil
}
