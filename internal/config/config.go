// Package config loads alertbeacon settings from the environment and an
// optional .env file, and the severity pattern table from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from envFile (if it exists) and the process
// environment; environment variables win. An empty envFile means
// DefaultEnvFile.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if _, err := os.Stat(envFile); err == nil {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", envFile, err)
		}
	}
	v.AutomaticEnv()

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", DefaultPort)
	v.SetDefault("debug", false)
	v.SetDefault("log_format", DefaultLogFormat)
	v.SetDefault("webhook_secret", "")
	v.SetDefault("lightbulb_type", DefaultLightbulbType)
	v.SetDefault("gpio_chip", DefaultGPIOChip)
	v.SetDefault("gpio_pin", DefaultGPIOPin)
	v.SetDefault("patterns_file", "")
	v.SetDefault("remind_interval", "0s")
	v.SetDefault("flap_threshold", DefaultFlapThreshold)
	v.SetDefault("flap_window", DefaultFlapWindow.String())
	v.SetDefault("apprise_api_url", "")
	v.SetDefault("apprise_urls", "")
	v.SetDefault("mqtt_broker", "")
	v.SetDefault("mqtt_topic", "")
	v.SetDefault("mqtt_client_id", "")
	v.SetDefault("mqtt_username", "")
	v.SetDefault("mqtt_password", "")
	v.SetDefault("mqtt_payload_on", DefaultMQTTPayloadOn)
	v.SetDefault("mqtt_payload_off", DefaultMQTTPayloadOff)
	v.SetDefault("shutdown_timeout", DefaultShutdownTimeout.String())
}

func fromViper(v *viper.Viper) (*Config, error) {
	port, err := intOption(v, "port")
	if err != nil {
		return nil, err
	}
	pin, err := intOption(v, "gpio_pin")
	if err != nil {
		return nil, err
	}
	flapThreshold, err := intOption(v, "flap_threshold")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:          port,
		Debug:         v.GetBool("debug"),
		LogFormat:     strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
		WebhookSecret: v.GetString("webhook_secret"),
		Indicator: IndicatorConfig{
			LightbulbType: strings.ToLower(strings.TrimSpace(v.GetString("lightbulb_type"))),
			GPIOChip:      v.GetString("gpio_chip"),
			GPIOPin:       pin,
			MQTT: MQTTConfig{
				Broker:     v.GetString("mqtt_broker"),
				Topic:      v.GetString("mqtt_topic"),
				ClientID:   v.GetString("mqtt_client_id"),
				Username:   v.GetString("mqtt_username"),
				Password:   v.GetString("mqtt_password"),
				PayloadOn:  v.GetString("mqtt_payload_on"),
				PayloadOff: v.GetString("mqtt_payload_off"),
			},
		},
		Patterns: PatternsConfig{File: v.GetString("patterns_file")},
		Alerts: AlertBehavior{
			RemindInterval: v.GetDuration("remind_interval"),
			FlapThreshold:  flapThreshold,
			FlapWindow:     v.GetDuration("flap_window"),
		},
		Apprise: AppriseConfig{
			APIURL: strings.TrimRight(v.GetString("apprise_api_url"), "/"),
			URLs:   splitList(v.GetString("apprise_urls")),
		},
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
	}
	return cfg, nil
}

// intOption parses an integer option strictly. viper's GetInt turns
// garbage into 0.
func intOption(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", strings.ToUpper(key), raw)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ValidateConfig checks structural constraints. An unknown lightbulb type
// is not an error; the indicator falls back to the no-op driver.
func ValidateConfig(cfg *Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("PORT %d is out of range [1, 65535]", cfg.Port)
	}
	if cfg.Indicator.GPIOPin < 0 {
		return fmt.Errorf("GPIO_PIN must not be negative, got %d", cfg.Indicator.GPIOPin)
	}
	switch cfg.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT %q unknown: want json|console", cfg.LogFormat)
	}
	if cfg.Alerts.RemindInterval < 0 {
		return errors.New("REMIND_INTERVAL must not be negative")
	}
	if cfg.Alerts.FlapThreshold < 0 || cfg.Alerts.FlapWindow < 0 {
		return errors.New("FLAP_THRESHOLD and FLAP_WINDOW must not be negative")
	}
	if cfg.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
