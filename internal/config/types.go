package config

import "time"

// Defaults for options not present in the environment.
const (
	DefaultPort            = 5000
	DefaultGPIOPin         = 18
	DefaultGPIOChip        = "gpiochip0"
	DefaultLightbulbType   = "raspberry_pi"
	DefaultLogFormat       = "json"
	DefaultEnvFile         = ".env"
	DefaultFlapThreshold   = 5
	DefaultFlapWindow      = 10 * time.Minute
	DefaultShutdownTimeout = 5 * time.Second
	DefaultMQTTPayloadOn   = "ON"
	DefaultMQTTPayloadOff  = "OFF"
)

// Config is the complete alertbeacon configuration.
type Config struct {
	Port          int
	Debug         bool
	LogFormat     string
	WebhookSecret string

	Indicator IndicatorConfig
	Patterns  PatternsConfig
	Alerts    AlertBehavior
	Apprise   AppriseConfig

	ShutdownTimeout time.Duration
}

// IndicatorConfig selects the output driver.
type IndicatorConfig struct {
	LightbulbType string
	GPIOChip      string
	GPIOPin       int
	MQTT          MQTTConfig
}

// MQTTConfig configures the smart-bulb driver.
type MQTTConfig struct {
	Broker     string
	Topic      string
	ClientID   string
	Username   string
	Password   string
	PayloadOn  string
	PayloadOff string
}

// PatternsConfig points at an optional severity table override file.
type PatternsConfig struct {
	File string
}

// AlertBehavior tunes the tracker.
type AlertBehavior struct {
	RemindInterval time.Duration
	FlapThreshold  int
	FlapWindow     time.Duration
}

// AppriseConfig configures the outbound notification mirror.
type AppriseConfig struct {
	APIURL string
	URLs   []string
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + itoa(c.Port)
}
