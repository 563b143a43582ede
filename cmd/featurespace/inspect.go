package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newInspectCmd(g *globals) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "inspect <name>",
		Short: "Describe a stored model",
		Long: `Show the sections, feature-space size, derived features and strongest
weights of a stored model.

Example:
  featurespace inspect spam --top 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.pipeline(cmd)
			if err != nil {
				return err
			}
			s, err := p.Inspect(cmd.Context(), args[0], top)
			if err != nil {
				return err
			}
			if !g.human {
				return outputJSON(cmd.OutOrStdout(), s)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s (%s, %d bytes)\n", s.Name, s.Codec, s.Bytes)
			fmt.Fprintf(w, "  sections: %s\n", strings.Join(s.Sections, ", "))
			for _, ls := range s.Labels {
				fmt.Fprintf(w, "  %s: %d features, %d derived from %d expanded, bias %.4f\n",
					ls.Label, ls.Features, ls.Derived, ls.Expanded, ls.Bias)
				for _, wt := range ls.Top {
					fmt.Fprintf(w, "    %+.4f  %s\n", wt.Value, wt.Name)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "Number of strongest weights to show per label (0 for all)")
	return cmd
}

func newListCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := g.pipeline(cmd)
			if err != nil {
				return err
			}
			names, err := p.List(cmd.Context())
			if err != nil {
				return err
			}
			if g.human {
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			}
			if names == nil {
				names = []string{}
			}
			return outputJSON(cmd.OutOrStdout(), names)
		},
	}
}
