package hp34401a

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/godmm/pkg/scpi"
)

func TestSim_RangeSnapsToNextSupported(t *testing.T) {
	tests := []struct {
		name     string
		function Function
		request  float64
		want     float64
	}{
		{"between DCV ranges", DCVolts, 5, 10},
		{"exact DCV range", DCVolts, 1, 1},
		{"tiny DCV value", DCVolts, 0.001, 0.1},
		{"between resistance ranges", Resistance2W, 1, 100},
		{"between DCI ranges", DCCurrent, 0.5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, _ := newResetDevice(t)
			require.NoError(t, dev.SetFunction(tt.function))
			require.NoError(t, dev.SetRange(Span(tt.request)))
			assertNoDeviceErrors(t, dev)

			got, err := dev.Range()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSim_RangeAboveMaxClampsAndQueuesError(t *testing.T) {
	dev, _ := newResetDevice(t)
	require.NoError(t, dev.SetFunction(DCVolts))
	require.NoError(t, dev.SetRange(Span(5000)))

	errs, err := dev.CheckErrors()
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, -222, errs[0].Code)

	got, err := dev.Range()
	require.NoError(t, err)
	assert.Equal(t, 1000.0, got)
}

func TestSim_UnknownCommandQueuesUndefinedHeader(t *testing.T) {
	sim := NewSim(nil)
	require.NoError(t, sim.Write("NOT:A:COMMAND 42"))

	reply, err := sim.Query("SYST:ERR?")
	require.NoError(t, err)
	assert.Equal(t, `-113,"Undefined header"`, reply)
}

func TestSim_UnknownQueryTimesOut(t *testing.T) {
	sim := NewSim(nil)
	_, err := sim.Query("NOT:A:QUERY?")
	assert.ErrorIs(t, err, scpi.ErrReadTimeout)
}

func TestSim_ErrorQueueOverflow(t *testing.T) {
	sim := NewSim(nil)
	dev := New(sim)
	for i := 0; i < errorQueueDepth+5; i++ {
		require.NoError(t, sim.Write("BOGUS"))
	}

	errs, err := dev.CheckErrors()
	require.NoError(t, err)
	require.Len(t, errs, errorQueueDepth)
	assert.Equal(t, -350, errs[errorQueueDepth-1].Code)
	assert.Equal(t, "Queue overflow", errs[errorQueueDepth-1].Message)
}

func TestSim_ResetClearsState(t *testing.T) {
	dev, _ := newResetDevice(t)
	require.NoError(t, dev.SetFunction(Frequency))
	require.NoError(t, dev.SetDisplayEnabled(false))
	require.NoError(t, dev.SetDetectorBandwidth(200))

	require.NoError(t, dev.Reset())

	f, err := dev.Function()
	require.NoError(t, err)
	assert.Equal(t, DCVolts, f)

	display, err := dev.DisplayEnabled()
	require.NoError(t, err)
	assert.True(t, display)

	bw, err := dev.DetectorBandwidth()
	require.NoError(t, err)
	assert.Equal(t, 20.0, bw)
	assertNoDeviceErrors(t, dev)
}

func TestSim_ReadingNoiseIsBounded(t *testing.T) {
	sim := NewSim(&SimConfig{Noise: 1e-3, Seed: 1})
	dev := New(sim)
	require.NoError(t, dev.Reset())
	require.NoError(t, dev.SetFunction(DCVolts))

	for i := 0; i < 100; i++ {
		v, err := dev.Reading()
		require.NoError(t, err)
		assert.InDelta(t, 0, v, 1e-3)
	}
}

func TestSim_OpenInputReadsOverload(t *testing.T) {
	dev, _ := newResetDevice(t)
	require.NoError(t, dev.SetFunction(Resistance2W))

	v, err := dev.Reading()
	require.NoError(t, err)
	assert.Equal(t, 9.9e37, v)
}

// TestSim_ServeTCP drives the simulator through the real TCP transport,
// exercising the whole resource-to-reply path without hardware.
func TestSim_ServeTCP(t *testing.T) {
	sim := NewSim(nil)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	go sim.Serve(l)

	host, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	resource := "TCPIP0::" + host + "::" + port + "::SOCKET"

	dev, err := OpenResource(resource, nil)
	require.NoError(t, err)
	defer dev.Close()

	require.NoError(t, dev.Reset())

	id, err := dev.ID()
	require.NoError(t, err)
	assert.Contains(t, id, "34401A")

	require.NoError(t, dev.SetFunction(ACVolts))
	assertNoDeviceErrors(t, dev)

	f, err := dev.Function()
	require.NoError(t, err)
	assert.Equal(t, ACVolts, f)
}
