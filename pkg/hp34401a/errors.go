package hp34401a

import (
	"fmt"
	"strconv"
	"strings"
)

// DeviceError is one entry drained from the instrument's error queue.
// The instrument validates commands asynchronously: a malformed or
// unsupported setting is accepted on the wire and only shows up here.
type DeviceError struct {
	Code    int
	Message string
}

func (e DeviceError) Error() string {
	return fmt.Sprintf("%d,%q", e.Code, e.Message)
}

// errorQueueDepth is how many entries the firmware queue holds before it
// overflows; used to bound the drain loop against a misbehaving link.
const errorQueueDepth = 20

// parseDeviceError parses a SYST:ERR? reply of the form
// `-113,"Undefined header"`.
func parseDeviceError(reply string) (DeviceError, error) {
	code, msg, ok := strings.Cut(strings.TrimSpace(reply), ",")
	if !ok {
		return DeviceError{}, fmt.Errorf("malformed error reply %q", reply)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(code), "+"))
	if err != nil {
		return DeviceError{}, fmt.Errorf("malformed error code in reply %q: %w", reply, err)
	}
	return DeviceError{Code: n, Message: strings.Trim(strings.TrimSpace(msg), `"`)}, nil
}
