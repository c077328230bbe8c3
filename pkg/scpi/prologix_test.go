package scpi

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakePort is an in-memory serial.Port. Writes are recorded; reads drain a
// scripted reply buffer, returning zero bytes when it runs dry, which is
// how the real driver signals a read timeout.
type fakePort struct {
	mu      sync.Mutex
	written bytes.Buffer
	replies bytes.Buffer
	closed  bool
}

var _ serial.Port = (*fakePort)(nil)

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.replies.Len() == 0 {
		// Zero bytes without an error is the driver's timeout signal.
		return 0, nil
	}
	return p.replies.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) SetMode(mode *serial.Mode) error      { return nil }
func (p *fakePort) SetReadTimeout(t time.Duration) error { return nil }
func (p *fakePort) ResetInputBuffer() error              { return nil }
func (p *fakePort) ResetOutputBuffer() error             { return nil }
func (p *fakePort) SetDTR(dtr bool) error                { return nil }
func (p *fakePort) SetRTS(rts bool) error                { return nil }
func (p *fakePort) Break(d time.Duration) error          { return nil }
func (p *fakePort) Drain() error                         { return nil }

func (p *fakePort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return nil, nil
}

func (p *fakePort) writtenLines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := strings.TrimRight(p.written.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func (p *fakePort) script(reply string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies.WriteString(reply)
}

func newFakePrologix(t *testing.T, addr int) (*prologixSession, *fakePort) {
	t.Helper()
	port := &fakePort{}
	s := &prologixSession{
		serialSession: &serialSession{port: port, path: "fake", timeout: 100 * time.Millisecond},
		address:       addr,
	}
	require.NoError(t, s.setup())
	return s, port
}

func TestPrologix_SetupConfiguresAdapter(t *testing.T) {
	_, port := newFakePrologix(t, 16)

	assert.Equal(t, []string{
		"++mode 1",
		"++auto 0",
		"++eoi 1",
		"++addr 16",
		"++read_tmo_ms 100",
	}, port.writtenLines())
}

func TestPrologix_QueryIssuesExplicitRead(t *testing.T) {
	s, port := newFakePrologix(t, 16)
	port.written.Reset()
	port.script("+1.00000000E+01\r\n")

	reply, err := s.Query("VOLT:RANG?")
	require.NoError(t, err)
	assert.Equal(t, "+1.00000000E+01", reply)
	assert.Equal(t, []string{"VOLT:RANG?", "++read eoi"}, port.writtenLines())
}

func TestPrologix_WriteDoesNotRead(t *testing.T) {
	s, port := newFakePrologix(t, 16)
	port.written.Reset()

	require.NoError(t, s.Write("*RST"))
	assert.Equal(t, []string{"*RST"}, port.writtenLines())
}

func TestPrologix_QueryTimeout(t *testing.T) {
	s, _ := newFakePrologix(t, 16)

	_, err := s.Query("READ?")
	assert.ErrorIs(t, err, ErrReadTimeout)
}

func TestSerialSession_ReassemblesSplitReplies(t *testing.T) {
	port := &fakePort{}
	s := &serialSession{port: port, path: "fake", timeout: 100 * time.Millisecond}
	port.script("+1.000")
	port.script("00000E-01\r\n+0,\"No error\"\r\n")

	reply, err := s.Query("VOLT:RANG?")
	require.NoError(t, err)
	assert.Equal(t, "+1.00000000E-01", reply)

	// The second line stays buffered for the next exchange.
	reply, err = s.Query("SYST:ERR?")
	require.NoError(t, err)
	assert.Equal(t, `+0,"No error"`, reply)
}
