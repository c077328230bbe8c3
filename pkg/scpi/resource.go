package scpi

import (
	"fmt"
	"strconv"
	"strings"
)

// ResourceKind identifies the transport behind a resource locator.
type ResourceKind int

const (
	ResourceTCP ResourceKind = iota
	ResourceSerial
	ResourceGPIB
)

// Resource is a parsed VISA-style resource locator.
type Resource struct {
	Kind ResourceKind

	// TCP
	Host string
	Port int

	// Serial
	Path string
	Baud int

	// GPIB
	Board   int
	Address int
}

// ParseResource parses a VISA-flavored resource locator string.
//
// Accepted forms:
//
//	TCPIP[board]::<host>[::<port>][::SOCKET]
//	ASRL::<path>[::<baud>][::INSTR]
//	GPIB[board]::<pad>[::INSTR]
//
// Example: "GPIB0::16" addresses primary address 16 on GPIB board 0.
func ParseResource(s string) (Resource, error) {
	parts := strings.Split(strings.TrimSpace(s), "::")
	if len(parts) < 2 {
		return Resource{}, fmt.Errorf("invalid resource %q: expected at least two ::-separated fields", s)
	}

	head := strings.ToUpper(parts[0])
	rest := parts[1:]
	// A trailing INSTR or SOCKET suffix is descriptive only.
	suffix := ""
	if last := strings.ToUpper(rest[len(rest)-1]); last == "INSTR" || last == "SOCKET" {
		suffix = last
		rest = rest[:len(rest)-1]
	}

	switch {
	case strings.HasPrefix(head, "TCPIP"):
		if suffix == "INSTR" {
			return Resource{}, fmt.Errorf("invalid resource %q: VXI-11 (INSTR) is not supported, use a raw SOCKET resource", s)
		}
		if len(rest) < 1 || len(rest) > 2 {
			return Resource{}, fmt.Errorf("invalid TCPIP resource %q", s)
		}
		r := Resource{Kind: ResourceTCP, Host: rest[0], Port: DefaultTCPPort}
		if r.Host == "" {
			return Resource{}, fmt.Errorf("invalid TCPIP resource %q: empty host", s)
		}
		if len(rest) == 2 {
			port, err := strconv.Atoi(rest[1])
			if err != nil || port <= 0 || port > 65535 {
				return Resource{}, fmt.Errorf("invalid TCPIP resource %q: bad port %q", s, rest[1])
			}
			r.Port = port
		}
		return r, nil

	case head == "ASRL":
		if len(rest) < 1 || len(rest) > 2 {
			return Resource{}, fmt.Errorf("invalid ASRL resource %q", s)
		}
		r := Resource{Kind: ResourceSerial, Path: rest[0], Baud: DefaultBaudRate}
		if r.Path == "" {
			return Resource{}, fmt.Errorf("invalid ASRL resource %q: empty port path", s)
		}
		if len(rest) == 2 {
			baud, err := strconv.Atoi(rest[1])
			if err != nil || baud <= 0 {
				return Resource{}, fmt.Errorf("invalid ASRL resource %q: bad baud rate %q", s, rest[1])
			}
			r.Baud = baud
		}
		return r, nil

	case strings.HasPrefix(head, "GPIB"):
		board := 0
		if b := head[len("GPIB"):]; b != "" {
			n, err := strconv.Atoi(b)
			if err != nil {
				return Resource{}, fmt.Errorf("invalid GPIB resource %q: bad board %q", s, b)
			}
			board = n
		}
		if len(rest) != 1 {
			return Resource{}, fmt.Errorf("invalid GPIB resource %q", s)
		}
		pad, err := strconv.Atoi(rest[0])
		if err != nil || pad < 0 || pad > 30 {
			return Resource{}, fmt.Errorf("invalid GPIB resource %q: bad primary address %q", s, rest[0])
		}
		return Resource{Kind: ResourceGPIB, Board: board, Address: pad}, nil

	default:
		return Resource{}, fmt.Errorf("unsupported resource %q", s)
	}
}
