package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"previsioni/internal/core"
	"previsioni/internal/features"
)

var (
	flagPredictUser     string
	flagPredictFeatures map[string]string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict next month's expense",
	Long: "Predicts from --feature overrides, or from the user's history when none are given. " +
		"Columns that are not supplied take their reference mean.",
	Example: "  forecastctl predict --user 42\n  forecastctl predict --feature last_month_expense=480",
	Args:    cobra.NoArgs,
	RunE:    runPredict,
}

func init() {
	predictCmd.Flags().StringVarP(&flagPredictUser, "user", "u", "", "User whose history provides the inputs")
	predictCmd.Flags().StringToStringVarP(&flagPredictFeatures, "feature", "f", nil, "Input column override as name=value")
}

func parseFeatures(raw map[string]string) (core.Features, error) {
	in := make(core.Features, len(raw))
	for name, v := range raw {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %q is not a number", name, v)
		}
		in[name] = core.Float(f)
	}
	return in, nil
}

func runPredict(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	in, err := parseFeatures(flagPredictFeatures)
	if err != nil {
		return err
	}

	stack, err := openStack(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	basedOn := "request_features"
	if len(in) == 0 {
		basedOn = "reference_means"
		if flagPredictUser != "" {
			records, err := stack.Backend.Source.ListTransactions(ctx, flagPredictUser)
			if err != nil {
				return fmt.Errorf("list transactions: %w", err)
			}
			switch latest, err := features.LatestInputs(records); {
			case err == nil:
				in, basedOn = latest, "user_history"
			case !errors.Is(err, features.ErrEmpty):
				return err
			}
		}
	}

	value, source := stack.Predictor.PredictWithSource(ctx, in)
	fmt.Fprintf(cmd.OutOrStdout(), "predicted_next_month_expense: %.2f\nbased_on: %s\nmodel: %s\n", value, basedOn, source)
	return nil
}
