package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagSeedForce bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write the baseline model artifact",
	Long: "Builds the mean-of-target baseline from the reference dataset and saves it, " +
		"so predictions have a persisted model before the first training run.",
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().BoolVar(&flagSeedForce, "force", false, "Overwrite an existing artifact")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	stack, err := openStack(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	store := stack.Backend.Artifacts
	if store.Exists(ctx) && !flagSeedForce {
		fmt.Fprintf(cmd.OutOrStdout(), "artifact already present at %s (use --force to overwrite)\n", store.Location())
		return nil
	}

	a, err := stack.Baseline.Build()
	if err != nil {
		return fmt.Errorf("build baseline: %w", err)
	}
	if err := store.Save(ctx, a); err != nil {
		return fmt.Errorf("save baseline: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "baseline model saved to %s (%d features)\n", store.Location(), len(a.FeatureColumns))
	return nil
}
