package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func stylesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "styles",
		Short: "List the style presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := c.app.Registry.All()
			if done, err := c.printJSON(presets); done {
				return err
			}

			w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tGUIDANCE\tMIXABLE")
			for _, p := range presets {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%t\n",
					p.ID, p.Name, p.Category, p.TechnicalParams.Guidance, p.MixCompatible)
			}
			return w.Flush()
		},
	}
}

func combineCmd(c *cli) *cobra.Command {
	var weights string

	cmd := &cobra.Command{
		Use:   "combine STYLE [STYLE]",
		Short: "Merge one or two presets into a single configuration",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := parseWeights(weights)
			if err != nil {
				return err
			}

			result, err := c.app.Studio.Combine(args, w)
			if err != nil {
				return err
			}
			if done, err := c.printJSON(result); done {
				return err
			}

			heading.Fprintln(c.out, "Prompt")
			fmt.Fprintln(c.out, "  "+result.Prompt)
			heading.Fprintln(c.out, "Negative prompt")
			fmt.Fprintln(c.out, "  "+result.NegativePrompt)
			heading.Fprintln(c.out, "Parameters")
			fmt.Fprintf(c.out, "  guidance %.2f, base model %s\n", result.Guidance, result.BaseModel)
			return nil
		},
	}

	cmd.Flags().StringVar(&weights, "weights", "", "Comma-separated weights, e.g. 0.7,0.3")
	return cmd
}

// parseWeights turns "0.7,0.3" into a slice. Empty input means nil, which
// selects the default equal split.
func parseWeights(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}
