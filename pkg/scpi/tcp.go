package scpi

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// tcpSession talks SCPI over a raw TCP socket (port 5025 style).
type tcpSession struct {
	conn    net.Conn
	r       *bufio.Reader
	mu      sync.Mutex
	timeout time.Duration
}

var _ Session = (*tcpSession)(nil)

// OpenTCP dials a raw-socket SCPI session.
func OpenTCP(host string, port int, opts *Options) (Session, error) {
	timeout := opts.timeout()
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	return &tcpSession{
		conn:    conn,
		r:       bufio.NewReader(conn),
		timeout: timeout,
	}, nil
}

func (s *tcpSession) Write(cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(cmd)
}

func (s *tcpSession) Query(cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(cmd); err != nil {
		return "", err
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
		return "", fmt.Errorf("failed to set read deadline: %w", err)
	}
	line, err := s.r.ReadString('\n')
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("%w waiting for reply to %q", ErrReadTimeout, cmd)
		}
		return "", fmt.Errorf("failed to read reply to %q: %w", cmd, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (s *tcpSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

func (s *tcpSession) write(cmd string) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if _, err := s.conn.Write([]byte(cmd + "\n")); err != nil {
		return fmt.Errorf("failed to send %q: %w", cmd, err)
	}
	return nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
