package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// TrainResult is the output of the train command.
type TrainResult struct {
	Name     string   `json:"name"`
	Labels   []string `json:"labels"`
	Examples int      `json:"examples"`
	Features int      `json:"features"`
	Accuracy float64  `json:"accuracy"`
	Duration string   `json:"duration"`
}

func newTrainCmd(g *globals) *cobra.Command {
	var dataPath, name string
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model and store it",
		Long: `Fit the configured feature space on a TSV dataset, train a model and
save it under --name in the configured storage.

Example:
  featurespace train --data train.tsv --name spam`,
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

			start := time.Now()
			t, err := p.Train(cmd.Context(), ds)
			if err != nil {
				return fmt.Errorf("training: %w", err)
			}
			if err := p.Save(cmd.Context(), name, t); err != nil {
				return err
			}

			res := TrainResult{
				Name:     name,
				Labels:   labelStrings(t.Labels()),
				Examples: ds.Len(),
				Accuracy: t.Accuracy(ds),
				Duration: time.Since(start).Round(time.Millisecond).String(),
			}
			if t.Binary != nil {
				res.Features = t.Binary.FeatureSet().Size()
			} else {
				for _, l := range t.Labels() {
					m, _ := t.Multi.Model(l)
					res.Features = max(res.Features, m.FeatureSet().Size())
				}
			}
			if g.human {
				fmt.Fprintf(cmd.OutOrStdout(), "Trained %s on %d examples (%s)\n", res.Name, res.Examples, res.Duration)
				fmt.Fprintf(cmd.OutOrStdout(), "  labels:   %s\n", strings.Join(res.Labels, ", "))
				fmt.Fprintf(cmd.OutOrStdout(), "  features: %d\n", res.Features)
				fmt.Fprintf(cmd.OutOrStdout(), "  accuracy: %.4f\n", res.Accuracy)
				return nil
			}
			return outputJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "TSV training data (- for stdin)")
	cmd.Flags().StringVarP(&name, "name", "n", "model", "Name to store the model under")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}
