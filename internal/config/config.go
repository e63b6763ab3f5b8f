// Package config holds gateway configuration: environment variables
// first, optionally overlaid by a TOML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults for the Rpleth listener.
const (
	DefaultPort        = 4242
	DefaultPollTimeout = 500 * time.Millisecond
	DefaultBufferSize  = 512
)

// Config holds all configuration for the gateway.
type Config struct {
	GatewayID   string
	ListenPort  int
	PollTimeout time.Duration
	BufferSize  int

	// Optional device names resolved against the hardware registry.
	GreenLedName string
	BuzzerName   string

	RedisURL string
	NATSURL  string
}

// Load reads configuration from environment variables, falling back
// to defaults.
func Load() *Config {
	return &Config{
		GatewayID:    getEnv("GATEWAY_ID", "acs-gw-01"),
		ListenPort:   getEnvAsInt("GATEWAY_PORT", DefaultPort),
		PollTimeout:  time.Duration(getEnvAsInt("GATEWAY_POLL_TIMEOUT_MS", int(DefaultPollTimeout/time.Millisecond))) * time.Millisecond,
		BufferSize:   getEnvAsInt("GATEWAY_BUFFER_SIZE", DefaultBufferSize),
		GreenLedName: getEnv("GATEWAY_GREEN_LED", ""),
		BuzzerName:   getEnv("GATEWAY_BUZZER", ""),
		RedisURL:     getEnv("REDIS_URL", "localhost:6379"),
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
	}
}

// fileConfig is the TOML key mapping.
type fileConfig struct {
	GatewayID     string `toml:"gateway_id"`
	Port          int    `toml:"port"`
	PollTimeoutMS int    `toml:"poll_timeout_ms"`
	BufferSize    int    `toml:"buffer_size"`
	GreenLed      string `toml:"green_led"`
	Buzzer        string `toml:"buzzer"`
	RedisURL      string `toml:"redis_url"`
	NATSURL       string `toml:"nats_url"`
}

// ApplyFile overlays settings from a TOML file onto c. Keys absent
// from the file leave the current value untouched.
func (c *Config) ApplyFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load gateway config %q: %w", path, err)
	}

	if meta.IsDefined("gateway_id") {
		c.GatewayID = raw.GatewayID
	}
	if meta.IsDefined("port") {
		c.ListenPort = raw.Port
	}
	if meta.IsDefined("poll_timeout_ms") {
		c.PollTimeout = time.Duration(raw.PollTimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("buffer_size") {
		c.BufferSize = raw.BufferSize
	}
	if meta.IsDefined("green_led") {
		c.GreenLedName = raw.GreenLed
	}
	if meta.IsDefined("buzzer") {
		c.BuzzerName = raw.Buzzer
	}
	if meta.IsDefined("redis_url") {
		c.RedisURL = raw.RedisURL
	}
	if meta.IsDefined("nats_url") {
		c.NATSURL = raw.NATSURL
	}
	return c.validate()
}

func (c *Config) validate() error {
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return fmt.Errorf("gateway config: port %d out of range", c.ListenPort)
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("gateway config: poll timeout must be positive")
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("gateway config: buffer size must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
