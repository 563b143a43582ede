package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cmunell/featurespace"
)

// PredictResult is the output of the predict command.
type PredictResult struct {
	Model       string                    `json:"model"`
	Predictions []featurespace.Prediction `json:"predictions"`
	// Accuracy is set when the dataset is labeled.
	Accuracy *float64 `json:"accuracy,omitempty"`
}

func newPredictCmd(g *globals) *cobra.Command {
	var dataPath, name string
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Classify a dataset with a stored model",
		Long: `Load the model stored under --name and classify every example of a
TSV dataset. Labeled examples are scored for accuracy.

Example:
  featurespace predict --data test.tsv --name spam`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := g.pipeline(cmd)
			if err != nil {
				return err
			}
			ds, err := readDataset(dataPath)
			if err != nil {
				return err
			}
			t, err := p.Load(cmd.Context(), name)
			if err != nil {
				return err
			}
			preds, err := p.Predict(cmd.Context(), t, ds)
			if err != nil {
				return fmt.Errorf("predicting: %w", err)
			}

			res := PredictResult{Model: name, Predictions: preds}
			if ds.Labels().Len() > 0 {
				acc := t.Accuracy(ds)
				res.Accuracy = &acc
			}
			if g.human {
				for _, pr := range preds {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%.4f\n", pr.ID, pr.Label, pr.Posteriors[pr.Label])
				}
				if res.Accuracy != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "accuracy: %.4f\n", *res.Accuracy)
				}
				return nil
			}
			return outputJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "TSV data to classify (- for stdin)")
	cmd.Flags().StringVarP(&name, "name", "n", "model", "Name of the stored model")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}
