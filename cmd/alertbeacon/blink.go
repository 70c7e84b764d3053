package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alertbeacon/alertbeacon/internal/config"
	"github.com/alertbeacon/alertbeacon/internal/indicator"
	"github.com/alertbeacon/alertbeacon/internal/pattern"
	"github.com/alertbeacon/alertbeacon/internal/types"
)

func blinkCmd(envFile *string) *cobra.Command {
	var (
		severity string
		forever  bool
	)

	cmd := &cobra.Command{
		Use:   "blink",
		Short: "Blink the configured indicator to check the wiring",
		Long: `blink drives the configured indicator directly, without starting the
HTTP server. By default it runs the manual blink (1s on, 1s off, twice).
--severity runs that severity's alert pattern instead; --forever repeats
until interrupted. The indicator is always left off.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlink(cmd.Context(), *envFile, severity, forever)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&severity, "severity", "s", "", "run the pattern for this severity")
	fs.BoolVar(&forever, "forever", false, "repeat until interrupted")
	return cmd
}

func runBlink(parent context.Context, envFile, severity string, forever bool) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := newLogger(cfg, os.Stdout, nil)

	p := pattern.ManualBlink
	if severity != "" {
		table := pattern.NewTable()
		if err := config.ApplyPatterns(cfg.Patterns.File, table); err != nil {
			return fmt.Errorf("loading pattern file: %w", err)
		}
		p = table.Lookup(types.ParseSeverity(severity))
	}

	driver := indicator.Open(indicatorOptions(cfg), logger)
	if info := driver.Info(); !info.Available {
		driver.Close()
		return fmt.Errorf("indicator %s unavailable: %s", info.Type, info.Detail)
	}

	engine := pattern.NewEngine(driver, nil, logger)
	defer engine.Close()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("pattern", p.Name).
		Dur("on", p.On).
		Dur("off", p.Off).
		Int("repeat", p.Repeat).
		Bool("forever", forever).
		Msg("Blinking indicator")

	blinkLoop(ctx, engine, p, forever)
	return nil
}

// blinkLoop runs p until it finishes, or until ctx ends when forever is set.
func blinkLoop(ctx context.Context, engine *pattern.Engine, p pattern.Pattern, forever bool) {
	for {
		engine.Run("cli", p)
		if err := engine.Wait(ctx); err != nil {
			return
		}
		if !forever {
			return
		}
		if p.Repeat <= 0 {
			// Nothing blinks; hold the final level.
			<-ctx.Done()
			return
		}
	}
}
