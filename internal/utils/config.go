package utils

import (
	"time"

	"github.com/mowthos/mowthos-gateway/pkg/file"
)

// Config represents the structure of the configuration file. Durations are
// given as whole seconds in the YAML and scaled at wiring time.
type Config struct {
	Server struct {
		Address         string        `yaml:"address"`          // HTTP listen address
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Grace period for in-flight requests (in seconds)
	} `yaml:"server"`

	Cloud struct {
		LoginURL      string        `yaml:"login_url"`      // Base URL of the HTTP login endpoint
		GatewayURL    string        `yaml:"gateway_url"`    // Base URL of the cloud gateway API
		AppKey        string        `yaml:"app_key"`        // Application key issued by the device cloud
		CourtesyDelay time.Duration `yaml:"courtesy_delay"` // Delay before the first login attempt (in seconds)
		SettleDelay   time.Duration `yaml:"settle_delay"`   // Delay after each handshake step (in milliseconds)
	} `yaml:"cloud"`

	Retry struct {
		MaxRetries   int           `yaml:"max_retries"`   // Attempts per handshake/bootstrap step
		InitialDelay time.Duration `yaml:"initial_delay"` // Initial backoff delay (in seconds)
		MaxDelay     time.Duration `yaml:"max_delay"`     // Backoff delay cap (in seconds)
	} `yaml:"retry"`

	Transport struct {
		ReadyTimeout    time.Duration `yaml:"ready_timeout"`    // Readiness polling window (in seconds)
		PollInterval    time.Duration `yaml:"poll_interval"`    // Readiness polling interval (in seconds)
		ResponseTimeout time.Duration `yaml:"response_timeout"` // Per-command ack timeout (in seconds)
		QOS             int           `yaml:"qos"`              // MQTT QoS level for command messages
	} `yaml:"transport"`

	Bootstrap struct {
		PacingDelay time.Duration `yaml:"pacing_delay"` // Delay between bootstrap steps (in seconds)
	} `yaml:"bootstrap"`

	Dispatch struct {
		MaxAttempts int `yaml:"max_attempts"` // Full execute() attempts including the post-recovery retry
	} `yaml:"dispatch"`
}

// LoadConfig loads the YAML configuration from the specified file.
// It returns a pointer to the Config struct and an error if loading fails.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	err := fileClient.ReadYamlFile(filename, &config)
	if err != nil {
		return nil, err
	}

	return &config, nil
}
