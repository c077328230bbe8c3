package scpi

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// prologixBaudRate is what Prologix-style GPIB-USB adapters enumerate at.
// The adapter is a USB CDC device, the value is nominal.
const prologixBaudRate = 115200

// prologixSession talks SCPI to a GPIB device through a Prologix-style
// GPIB-USB adapter in controller mode. The adapter itself is configured
// with ++ commands; everything else is forwarded to the addressed device.
type prologixSession struct {
	*serialSession
	address int
}

var _ Session = (*prologixSession)(nil)

// OpenPrologix opens a session to GPIB primary address addr through the
// adapter on the given serial port.
func OpenPrologix(adapterPath string, addr int, opts *Options) (Session, error) {
	port, err := serial.Open(adapterPath, &serial.Mode{BaudRate: prologixBaudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIB adapter %s: %w", adapterPath, err)
	}

	inner := &serialSession{
		port:    port,
		path:    adapterPath,
		timeout: opts.timeout(),
	}
	if err := port.SetReadTimeout(inner.timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", adapterPath, err)
	}

	s := &prologixSession{serialSession: inner, address: addr}
	if err := s.setup(); err != nil {
		port.Close()
		return nil, err
	}
	return s, nil
}

// setup puts the adapter in controller mode, addressed at the device, with
// read-after-write disabled so replies are pulled explicitly via ++read.
func (s *prologixSession) setup() error {
	readTmo := s.timeout / time.Millisecond
	if readTmo > 3000 {
		// The adapter caps its internal read timeout at 3 s; the session
		// timeout still bounds the overall exchange on our side.
		readTmo = 3000
	}
	for _, cmd := range []string{
		"++mode 1",
		"++auto 0",
		"++eoi 1",
		fmt.Sprintf("++addr %d", s.address),
		fmt.Sprintf("++read_tmo_ms %d", readTmo),
	} {
		if err := s.serialSession.Write(cmd); err != nil {
			return fmt.Errorf("failed to configure GPIB adapter: %w", err)
		}
	}
	return nil
}

func (s *prologixSession) Query(cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(cmd); err != nil {
		return "", err
	}
	if err := s.write("++read eoi"); err != nil {
		return "", err
	}
	line, err := s.readLine()
	if err != nil {
		return "", fmt.Errorf("failed to read reply to %q: %w", cmd, err)
	}
	return line, nil
}
