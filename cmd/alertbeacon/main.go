package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/alertbeacon/alertbeacon/internal/config"
	"github.com/alertbeacon/alertbeacon/internal/indicator"
	"github.com/alertbeacon/alertbeacon/internal/version"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "alertbeacon:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "alertbeacon",
		Short:         "Blink a light when Grafana alerts fire",
		Long:          `alertbeacon receives alert webhooks and drives a GPIO LED or smart bulb with a severity-specific blink pattern, holding it on until the alert resolves.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile)
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", os.Getenv("ENV_FILE"), "optional .env file; environment variables take precedence")

	cmd.AddCommand(
		serveCmd(&envFile),
		blinkCmd(&envFile),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "alertbeacon", version.Get().String())
		},
	}
}

// newLogger builds the root logger. JSON (or console) output goes to out
// and every line is also kept in extra, if set.
func newLogger(cfg *config.Config, out io.Writer, extra io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	primary := out
	if cfg.LogFormat == "console" {
		primary = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	var w io.Writer = primary
	if extra != nil {
		w = zerolog.MultiLevelWriter(primary, extra)
	}

	info := version.Get()
	return zerolog.New(w).With().
		Timestamp().
		Str("version", info.Version).
		Str("commit", info.Commit).
		Logger()
}

func indicatorOptions(cfg *config.Config) indicator.Options {
	mqtt := cfg.Indicator.MQTT
	return indicator.Options{
		Type: cfg.Indicator.LightbulbType,
		Chip: cfg.Indicator.GPIOChip,
		Pin:  cfg.Indicator.GPIOPin,
		MQTT: indicator.MQTTOptions{
			Broker:     mqtt.Broker,
			Topic:      mqtt.Topic,
			ClientID:   mqtt.ClientID,
			Username:   mqtt.Username,
			Password:   mqtt.Password,
			PayloadOn:  mqtt.PayloadOn,
			PayloadOff: mqtt.PayloadOff,
		},
	}
}
