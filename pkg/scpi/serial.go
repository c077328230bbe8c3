package scpi

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// serialSession talks SCPI over a directly attached serial port (ASRL).
type serialSession struct {
	port    serial.Port
	path    string
	mu      sync.Mutex
	pending bytes.Buffer
	timeout time.Duration
}

var _ Session = (*serialSession)(nil)

// OpenSerial opens an ASRL session on the given port path.
func OpenSerial(path string, baud int, opts *Options) (Session, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}

	port, err := serial.Open(path, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}

	s := &serialSession{
		port:    port,
		path:    path,
		timeout: opts.timeout(),
	}
	if err := port.SetReadTimeout(s.timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", path, err)
	}
	return s, nil
}

func (s *serialSession) Write(cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(cmd)
}

func (s *serialSession) Query(cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(cmd); err != nil {
		return "", err
	}
	line, err := s.readLine()
	if err != nil {
		return "", fmt.Errorf("failed to read reply to %q: %w", cmd, err)
	}
	return line, nil
}

func (s *serialSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}

func (s *serialSession) write(cmd string) error {
	if _, err := s.port.Write([]byte(cmd + "\n")); err != nil {
		return fmt.Errorf("failed to send %q on %s: %w", cmd, s.path, err)
	}
	return nil
}

// readLine assembles one \n-terminated reply. The port read timeout makes
// Read return zero bytes when the instrument stays silent; bytes past the
// terminator are kept for the next exchange.
func (s *serialSession) readLine() (string, error) {
	var line bytes.Buffer
	buf := make([]byte, 128)

	for {
		if b := s.pending.Bytes(); len(b) > 0 {
			if i := bytes.IndexByte(b, '\n'); i >= 0 {
				line.Write(b[:i])
				s.pending.Next(i + 1)
				return strings.TrimRight(line.String(), "\r"), nil
			}
			line.Write(b)
			s.pending.Reset()
		}

		n, err := s.port.Read(buf)
		if err != nil {
			return "", err
		}
		if n == 0 {
			return "", fmt.Errorf("%w after %s", ErrReadTimeout, s.timeout)
		}
		s.pending.Write(buf[:n])
	}
}
