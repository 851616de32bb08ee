package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fleveque/stylelab/internal/generation"
	"github.com/fleveque/stylelab/internal/model"
)

func generateCmd(c *cli) *cobra.Command {
	var (
		params   model.GenerationParams
		seed     int64
		strength float64
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render a batch of images (Ctrl+C stops after the current image)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("seed") {
				params.Seed = &seed
			}
			if cmd.Flags().Changed("strength") {
				params.StyleStrength = &strength
			}
			return runGenerate(cmd.Context(), c, params)
		},
	}

	f := cmd.Flags()
	f.StringVar(&params.Model, "model", model.BaseModelSDXL, "Model id (see GET /api/v1/models)")
	f.StringVarP(&params.Prompt, "prompt", "p", "", "Prompt")
	f.StringVar(&params.NegativePrompt, "negative", "", "Negative prompt")
	f.Float64VarP(&params.Guidance, "guidance", "g", 7.5, "Guidance scale, 1-20")
	f.Int64Var(&seed, "seed", 0, "Seed; unit i uses seed+i")
	f.IntVarP(&params.BatchSize, "batch", "n", 1, "Images to render")
	f.StringSliceVarP(&params.SelectedStyles, "style", "s", nil, "Style id; repeat for a pair")
	f.Float64SliceVar(&params.StyleWeights, "weights", nil, "Weights of the selected styles")
	f.Float64Var(&strength, "strength", 1, "How strongly style guidance overrides --guidance, 0-1")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func runGenerate(ctx context.Context, c *cli, params model.GenerationParams) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b := generation.NewBatch()
	b.OnProgress = func(p float64) {
		fmt.Fprintf(os.Stderr, "\rprogress %3.0f%%", p)
	}
	b.OnUnit = func(rep generation.UnitReport) {
		if rep.Err != nil && !rep.Cancelled {
			fmt.Fprintf(os.Stderr, "\nunit %d failed: %v\n", rep.Unit.Index+1, rep.Err)
		}
	}

	// First Ctrl+C interrupts between units; a second one aborts the call
	// in flight.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; !ok {
			return
		}
		fmt.Fprintln(os.Stderr, "\ninterrupting after the current image...")
		b.Interrupt()
		if _, ok := <-sigCh; ok {
			cancel()
		}
	}()

	out, err := c.app.Studio.Generate(ctx, b, params)
	fmt.Fprintln(os.Stderr)

	var batchErr *generation.BatchFailedError
	if errors.As(err, &batchErr) {
		out.Results = batchErr.Results
	} else if err != nil {
		return err
	}

	if done, jerr := c.printJSON(out); done {
		if jerr != nil {
			return jerr
		}
		return err
	}

	for _, r := range out.Results {
		fmt.Fprintf(c.out, "%s  seed=%d  %s\n", r.ID, r.Seed, r.URL)
	}

	switch out.State {
	case generation.StateCompleted:
		color.New(color.FgGreen).Fprintf(c.out, "completed %d image(s)\n", len(out.Results))
	case generation.StateInterrupted:
		color.New(color.FgYellow).Fprintf(c.out, "interrupted after %d image(s)\n", len(out.Results))
	default:
		color.New(color.FgRed).Fprintf(c.out, "failed after %d image(s)\n", len(out.Results))
	}
	return err
}
