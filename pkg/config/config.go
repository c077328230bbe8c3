package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the bench configuration.
type Config struct {
	Instrument InstrumentConfig `yaml:"instrument"`
	Acquire    AcquireConfig    `yaml:"acquire"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Sim        SimConfig        `yaml:"sim"`
}

// InstrumentConfig describes how to reach the multimeter.
type InstrumentConfig struct {
	// Resource is the VISA-style resource locator, e.g. "GPIB0::16",
	// "TCPIP0::192.168.1.40::5025::SOCKET" or "ASRL::/dev/ttyUSB1::9600".
	Resource string `yaml:"resource"`
	// GPIBAdapter is the serial port of the GPIB-USB adapter; only used
	// for GPIB resources.
	GPIBAdapter string `yaml:"gpib_adapter"`
	// BaudRate overrides the serial baud rate when non-zero.
	BaudRate int `yaml:"baud_rate"`
	// Timeout bounds each command/reply round trip.
	Timeout time.Duration `yaml:"timeout"`
}

// AcquireConfig contains reading acquisition parameters.
type AcquireConfig struct {
	Interval       time.Duration `yaml:"interval"`        // Polling interval
	AverageSamples int           `yaml:"average_samples"` // Moving-average window (0 = disabled)
	Downsample     int           `yaml:"downsample"`      // Keep every Nth point (0/1 = keep all)
	BufferSize     int           `yaml:"buffer_size"`     // Point channel buffer
}

// MQTTConfig contains optional reading-publisher settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // e.g. "tcp://localhost:1883"; empty disables publishing
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// SimConfig contains simulated-instrument configuration.
type SimConfig struct {
	Noise float64 `yaml:"noise"` // Peak reading noise in function units
	Seed  int64   `yaml:"seed"`  // Noise generator seed
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Instrument: InstrumentConfig{
			Resource:    "GPIB0::16",
			GPIBAdapter: "/dev/ttyUSB0",
			Timeout:     5 * time.Second,
		},
		Acquire: AcquireConfig{
			Interval:   time.Second,
			BufferSize: 100,
		},
		MQTT: MQTTConfig{
			Topic:    "bench/dmm/reading",
			ClientID: "godmm",
		},
		Sim: SimConfig{
			Noise: 2e-6,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Instrument.Resource == "" {
		c.Instrument.Resource = def.Instrument.Resource
	}
	if c.Instrument.GPIBAdapter == "" {
		c.Instrument.GPIBAdapter = def.Instrument.GPIBAdapter
	}
	if c.Instrument.Timeout == 0 {
		c.Instrument.Timeout = def.Instrument.Timeout
	}

	if c.Acquire.Interval == 0 {
		c.Acquire.Interval = def.Acquire.Interval
	}
	if c.Acquire.BufferSize == 0 {
		c.Acquire.BufferSize = def.Acquire.BufferSize
	}

	if c.MQTT.Topic == "" {
		c.MQTT.Topic = def.MQTT.Topic
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}

	if c.Sim.Noise == 0 {
		c.Sim.Noise = def.Sim.Noise
	}
}
