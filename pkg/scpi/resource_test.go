package scpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResource(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Resource
		wantErr bool
	}{
		{
			name: "gpib with board",
			in:   "GPIB0::16",
			want: Resource{Kind: ResourceGPIB, Board: 0, Address: 16},
		},
		{
			name: "gpib without board",
			in:   "GPIB::5::INSTR",
			want: Resource{Kind: ResourceGPIB, Board: 0, Address: 5},
		},
		{
			name: "gpib board 1",
			in:   "GPIB1::22",
			want: Resource{Kind: ResourceGPIB, Board: 1, Address: 22},
		},
		{
			name: "tcpip default port",
			in:   "TCPIP0::192.168.1.40::SOCKET",
			want: Resource{Kind: ResourceTCP, Host: "192.168.1.40", Port: DefaultTCPPort},
		},
		{
			name: "tcpip explicit port",
			in:   "TCPIP0::dmm.lab.local::5555::SOCKET",
			want: Resource{Kind: ResourceTCP, Host: "dmm.lab.local", Port: 5555},
		},
		{
			name: "tcpip bare",
			in:   "TCPIP::10.0.0.2",
			want: Resource{Kind: ResourceTCP, Host: "10.0.0.2", Port: DefaultTCPPort},
		},
		{
			name: "serial default baud",
			in:   "ASRL::/dev/ttyUSB1",
			want: Resource{Kind: ResourceSerial, Path: "/dev/ttyUSB1", Baud: DefaultBaudRate},
		},
		{
			name: "serial explicit baud",
			in:   "ASRL::/dev/ttyUSB1::115200",
			want: Resource{Kind: ResourceSerial, Path: "/dev/ttyUSB1", Baud: 115200},
		},
		{
			name: "serial windows port",
			in:   "ASRL::COM3::9600::INSTR",
			want: Resource{Kind: ResourceSerial, Path: "COM3", Baud: 9600},
		},
		{
			name:    "empty string",
			in:      "",
			wantErr: true,
		},
		{
			name:    "single field",
			in:      "GPIB0",
			wantErr: true,
		},
		{
			name:    "unknown scheme",
			in:      "USB0::0x0957::0x0607::INSTR",
			wantErr: true,
		},
		{
			name:    "gpib bad address",
			in:      "GPIB0::forty",
			wantErr: true,
		},
		{
			name:    "gpib address out of bounds",
			in:      "GPIB0::31",
			wantErr: true,
		},
		{
			name:    "tcpip vxi11 not supported",
			in:      "TCPIP0::10.0.0.2::INSTR",
			wantErr: true,
		},
		{
			name:    "tcpip bad port",
			in:      "TCPIP0::10.0.0.2::notaport::SOCKET",
			wantErr: true,
		},
		{
			name:    "serial bad baud",
			in:      "ASRL::/dev/ttyUSB0::fast",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResource(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestOpen_GPIBNeedsAdapter(t *testing.T) {
	_, err := Open("GPIB0::16", nil)
	assert.Error(t, err)
	assert.ErrorContains(t, err, "adapter")
}
