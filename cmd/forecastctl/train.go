package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	flagTrainUser  string
	flagTrainQueue bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the model from the configured transaction source",
	Args:  cobra.NoArgs,
	RunE:  runTrain,
}

func init() {
	trainCmd.Flags().StringVarP(&flagTrainUser, "user", "u", "", "Train on one user's transactions (default: all users)")
	trainCmd.Flags().BoolVar(&flagTrainQueue, "queue", false, "Publish a retrain request to the worker instead of training here")
}

func runTrain(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	stack, err := openStack(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	if flagTrainQueue {
		if err := stack.Training.RequestRetrain(ctx, flagTrainUser, "cli"); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "retrain request queued")
		return nil
	}

	res, err := stack.Training.Retrain(ctx, flagTrainUser)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "status: %s\nmode:   %s\nrows:   %d\n", res.Status, res.Mode, res.Rows)
	if res.Reason != "" {
		fmt.Fprintf(out, "reason: %s\n", res.Reason)
	}
	return nil
}
