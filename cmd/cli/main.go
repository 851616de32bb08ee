// Package main provides the stylelab CLI. It wires the same components as
// the server and calls them directly, without HTTP.
//
// Run with: go run ./cmd/cli styles
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleveque/stylelab/internal/app"
	"github.com/fleveque/stylelab/internal/config"
	"github.com/fleveque/stylelab/internal/logging"
)

func main() {
	if err := rootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries state shared by every subcommand. The app is built lazily
// in PersistentPreRunE so --help works without a database.
type cli struct {
	configPath string
	verbose    bool
	jsonOut    bool

	out    io.Writer
	logger *zap.Logger
	app    *app.App
}

var heading = color.New(color.FgCyan, color.Bold)

func rootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:           "stylelab",
		Short:         "Style presets, analytics and image generation from the terminal",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.teardown()
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv("STYLELAB_CONFIG_PATH"), "Path to config.yaml")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log at debug level")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "Print results as JSON")

	root.AddCommand(
		stylesCmd(c),
		combineCmd(c),
		recommendCmd(c),
		analyticsCmd(c),
		popularCmd(c),
		optimalCmd(c),
		generateCmd(c),
	)
	return root
}

func (c *cli) setup(ctx context.Context) error {
	_ = godotenv.Load()

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// The CLI talks to the user on stdout; logs stay quiet unless asked.
	logCfg := cfg.Log
	logCfg.Level = "warn"
	if c.verbose {
		logCfg.Level = "debug"
	}
	c.logger, err = logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	c.app, err = app.New(ctx, cfg, c.logger)
	if err != nil {
		return fmt.Errorf("wiring components: %w", err)
	}
	return nil
}

func (c *cli) teardown() error {
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	if c.app != nil {
		return c.app.Close()
	}
	return nil
}

// printJSON writes v indented. It returns true when --json was given so
// callers can skip their table output.
func (c *cli) printJSON(v any) (bool, error) {
	if !c.jsonOut {
		return false, nil
	}
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}
