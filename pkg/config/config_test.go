package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "GPIB0::16", cfg.Instrument.Resource)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Instrument.GPIBAdapter)
	assert.Equal(t, 5*time.Second, cfg.Instrument.Timeout)
	assert.Equal(t, time.Second, cfg.Acquire.Interval)
	assert.Equal(t, 100, cfg.Acquire.BufferSize)
	assert.Equal(t, "bench/dmm/reading", cfg.MQTT.Topic)
	assert.Equal(t, "godmm", cfg.MQTT.ClientID)
	assert.Empty(t, cfg.MQTT.Broker)
	assert.Equal(t, 2e-6, cfg.Sim.Noise)
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "GPIB0::16", cfg.Instrument.Resource)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
instrument:
  resource: "TCPIP0::192.168.1.40::5025::SOCKET"
  gpib_adapter: "/dev/ttyUSB2"
  baud_rate: 115200
  timeout: 2s

acquire:
  interval: 500ms
  average_samples: 8
  downsample: 2
  buffer_size: 50

mqtt:
  broker: "tcp://localhost:1883"
  topic: "lab/bench1/dmm"
  client_id: "bench1"

sim:
  noise: 0.001
  seed: 42
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "TCPIP0::192.168.1.40::5025::SOCKET", cfg.Instrument.Resource)
	assert.Equal(t, "/dev/ttyUSB2", cfg.Instrument.GPIBAdapter)
	assert.Equal(t, 115200, cfg.Instrument.BaudRate)
	assert.Equal(t, 2*time.Second, cfg.Instrument.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Acquire.Interval)
	assert.Equal(t, 8, cfg.Acquire.AverageSamples)
	assert.Equal(t, 2, cfg.Acquire.Downsample)
	assert.Equal(t, 50, cfg.Acquire.BufferSize)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "lab/bench1/dmm", cfg.MQTT.Topic)
	assert.Equal(t, "bench1", cfg.MQTT.ClientID)
	assert.Equal(t, 0.001, cfg.Sim.Noise)
	assert.Equal(t, int64(42), cfg.Sim.Seed)
}

func TestLoad_PartialYAMLGetsDefaults(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("instrument:\n  resource: \"ASRL::/dev/ttyUSB1::9600\"\n")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)

	assert.Equal(t, "ASRL::/dev/ttyUSB1::9600", cfg.Instrument.Resource)
	// Everything else falls back to defaults.
	assert.Equal(t, 5*time.Second, cfg.Instrument.Timeout)
	assert.Equal(t, time.Second, cfg.Acquire.Interval)
	assert.Equal(t, 100, cfg.Acquire.BufferSize)
	assert.Equal(t, "godmm", cfg.MQTT.ClientID)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("instrument: [not a mapping")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	_, err = Load(tmpfile.Name())
	assert.Error(t, err)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.Instrument.Resource = "GPIB0::22"
	cfg.Acquire.AverageSamples = 4
	cfg.MQTT.Broker = "tcp://broker:1883"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
