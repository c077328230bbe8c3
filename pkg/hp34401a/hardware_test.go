package hp34401a

import (
	"os"
	"strings"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/godmm/pkg/scpi"
)

// openHardware connects to a real instrument when DMM_RESOURCE is set
// (directly or via a .env file) and skips otherwise. DMM_GPIB_ADAPTER
// names the GPIB-USB adapter port for GPIB resources.
func openHardware(t *testing.T) *Device {
	t.Helper()
	_ = godotenv.Load()

	resource, ok := os.LookupEnv("DMM_RESOURCE")
	if !ok {
		t.Skip("DMM_RESOURCE not set, skipping hardware test")
	}

	dev, err := OpenResource(resource, &scpi.Options{
		GPIBAdapter: os.Getenv("DMM_GPIB_ADAPTER"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })

	require.NoError(t, dev.Reset())
	_, err = dev.CheckErrors()
	require.NoError(t, err)
	return dev
}

func TestHardware_Identification(t *testing.T) {
	dev := openHardware(t)

	id, err := dev.ID()
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(id), "34401a")
}

func TestHardware_FunctionRoundTrip(t *testing.T) {
	dev := openHardware(t)

	for _, f := range Functions {
		require.NoError(t, dev.SetFunction(f))
		assertNoDeviceErrors(t, dev)

		got, err := dev.Function()
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
}

func TestHardware_EndToEndScenario(t *testing.T) {
	dev := openHardware(t)

	require.NoError(t, dev.SetFunction(DCVolts))
	require.NoError(t, dev.SetRange(Span(1)))
	require.NoError(t, dev.SetResolution(0.0001))
	assertNoDeviceErrors(t, dev)

	got, err := dev.Resolution()
	require.NoError(t, err)
	assert.Equal(t, 0.0001, got)

	_, err = dev.Reading()
	require.NoError(t, err)
}

func TestHardware_Terminals(t *testing.T) {
	dev := openHardware(t)

	terminals, err := dev.Terminals()
	require.NoError(t, err)
	assert.Contains(t, []Terminals{TerminalsFront, TerminalsRear}, terminals)
	assertNoDeviceErrors(t, dev)
}
