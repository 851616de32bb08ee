package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fleveque/stylelab/internal/recommend"
)

func recommendCmd(c *cli) *cobra.Command {
	var params recommend.Params

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Rank styles by historical performance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := c.app.Engine.GetRecommendations(cmd.Context(), params)
			if err != nil {
				return err
			}
			if done, err := c.printJSON(recs); done {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(c.out, "No analytics recorded yet.")
				return nil
			}

			w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STYLE\tCONFIDENCE\tGUIDANCE\tREASON")
			for _, r := range recs {
				fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%s\n", r.StyleID, r.Confidence, r.SuggestedGuidance, r.Reason)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&params.BaseStyle, "base", "", "Style the recommendation should pair with")
	cmd.Flags().StringVar(&params.Prompt, "prompt", "", "Prompt the styles will be used with")
	cmd.Flags().StringVar(&params.PreferredCategory, "category", "", "Preferred style category")
	return cmd
}

func analyticsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "analytics STYLE",
		Short: "Show usage analytics for a style",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ok, err := c.app.Analytics.GetStyleAnalytics(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if done, err := c.printJSON(a); done {
				return err
			}
			if !ok {
				fmt.Fprintf(c.out, "No analytics recorded for %s yet.\n", args[0])
				return nil
			}

			heading.Fprintln(c.out, c.app.Registry.Name(a.StyleID))
			fmt.Fprintf(c.out, "  generations      %d\n", a.UsageCount)
			fmt.Fprintf(c.out, "  avg quality      %.2f\n", a.AverageQualityScore)
			fmt.Fprintf(c.out, "  success rate     %.1f%%\n", a.Performance.SuccessRate)
			fmt.Fprintf(c.out, "  avg time         %.2fs\n", a.Performance.GenerationSpeed)
			fmt.Fprintf(c.out, "  avg guidance     %.2f\n", a.Performance.AverageGuidance)

			if len(a.PopularCombinations) > 0 {
				heading.Fprintln(c.out, "Combinations")
				for _, combo := range a.PopularCombinations {
					fmt.Fprintf(c.out, "  %s + %s  used %d times, avg %.2f\n",
						combo.Styles[0], combo.Styles[1], combo.Count, combo.AverageScore)
				}
			}
			return nil
		},
	}
}

func popularCmd(c *cli) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "popular",
		Short: "List the most used style pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			combos, err := c.app.Analytics.GetPopularCombinations(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if done, err := c.printJSON(combos); done {
				return err
			}

			w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STYLES\tCOUNT\tAVG SCORE")
			for _, combo := range combos {
				fmt.Fprintf(w, "%s + %s\t%d\t%.2f\n", combo.Styles[0], combo.Styles[1], combo.Count, combo.AverageScore)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 5, "Number of pairs to show")
	return cmd
}

func optimalCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "optimal [STYLE...]",
		Short: "Suggest guidance (and a mix ratio for pairs) from history",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.app.Engine.GetOptimalParameters(cmd.Context(), args)
			if err != nil {
				return err
			}
			if done, err := c.printJSON(p); done {
				return err
			}

			fmt.Fprintf(c.out, "guidance  %.2f\n", p.Guidance)
			if p.Ratio != nil {
				fmt.Fprintf(c.out, "ratio     %.2f\n", *p.Ratio)
			}
			fmt.Fprintf(c.out, "reason    %s\n", p.Reason)
			return nil
		},
	}
}
