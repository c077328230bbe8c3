package scpi

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultTimeout bounds a single command/reply round trip.
	DefaultTimeout = 5 * time.Second
	// DefaultBaudRate is used for ASRL resources that do not specify one.
	DefaultBaudRate = 9600
	// DefaultTCPPort is the conventional raw-socket SCPI port.
	DefaultTCPPort = 5025
)

// ErrReadTimeout is returned when the instrument does not produce a full
// reply line within the session timeout.
var ErrReadTimeout = errors.New("read timeout")

// Session is a synchronous command/query channel to one addressed
// instrument. Exactly one exchange is outstanding at a time; implementations
// serialize concurrent callers internally.
type Session interface {
	// Write sends a command that produces no reply.
	Write(cmd string) error
	// Query sends a command and reads back one reply line, with the line
	// terminator stripped.
	Query(cmd string) (string, error)
	Close() error
}

// Options tune how a resource is opened.
type Options struct {
	// Timeout bounds each write and each reply read. Zero means DefaultTimeout.
	Timeout time.Duration
	// BaudRate overrides the baud rate for ASRL resources. Zero keeps the
	// rate from the resource string (or DefaultBaudRate).
	BaudRate int
	// GPIBAdapter is the serial port of the Prologix-style GPIB-USB adapter
	// used for GPIB resources (e.g. "/dev/ttyUSB0"). Required for GPIB.
	GPIBAdapter string
}

func (o *Options) timeout() time.Duration {
	if o == nil || o.Timeout == 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

// Open parses a resource locator and opens a session over the matching
// transport. See ParseResource for the accepted grammar.
func Open(resource string, opts *Options) (Session, error) {
	res, err := ParseResource(resource)
	if err != nil {
		return nil, err
	}

	switch res.Kind {
	case ResourceTCP:
		return OpenTCP(res.Host, res.Port, opts)
	case ResourceSerial:
		baud := res.Baud
		if opts != nil && opts.BaudRate != 0 {
			baud = opts.BaudRate
		}
		return OpenSerial(res.Path, baud, opts)
	case ResourceGPIB:
		if opts == nil || opts.GPIBAdapter == "" {
			return nil, fmt.Errorf("resource %q needs a GPIB adapter port", resource)
		}
		return OpenPrologix(opts.GPIBAdapter, res.Address, opts)
	default:
		return nil, fmt.Errorf("unsupported resource %q", resource)
	}
}
