package hp34401a

import (
	"fmt"
	"strings"
)

// Function is a measurement function of the multimeter. Exactly one is
// active at a time.
type Function string

const (
	DCVolts      Function = "DCV"
	DCVoltsRatio Function = "DCV_RATIO"
	ACVolts      Function = "ACV"
	DCCurrent    Function = "DCI"
	ACCurrent    Function = "ACI"
	Resistance2W Function = "R2W"
	Resistance4W Function = "R4W"
	Frequency    Function = "FREQ"
	Period       Function = "PERIOD"
	Continuity   Function = "CONTINUITY"
	Diode        Function = "DIODE"
)

// Functions lists every measurement function the instrument supports.
var Functions = []Function{
	DCVolts, DCVoltsRatio, ACVolts, DCCurrent, ACCurrent,
	Resistance2W, Resistance4W, Frequency, Period, Continuity, Diode,
}

// functionCommands maps a function to its SCPI subsystem name, as sent in
// FUNC "<name>" and used as the prefix of per-function settings.
var functionCommands = map[Function]string{
	DCVolts:      "VOLT",
	DCVoltsRatio: "VOLT:RAT",
	ACVolts:      "VOLT:AC",
	DCCurrent:    "CURR",
	ACCurrent:    "CURR:AC",
	Resistance2W: "RES",
	Resistance4W: "FRES",
	Frequency:    "FREQ",
	Period:       "PER",
	Continuity:   "CONT",
	Diode:        "DIOD",
}

// rangePrefixes maps a function to the subsystem its manual range lives
// under. Frequency and period measurements range through the AC voltage
// input path, an instrument quirk. Functions without ranging are absent.
var rangePrefixes = map[Function]string{
	DCVolts:      "VOLT",
	ACVolts:      "VOLT:AC",
	DCCurrent:    "CURR",
	ACCurrent:    "CURR:AC",
	Resistance2W: "RES",
	Resistance4W: "FRES",
	Frequency:    "FREQ:VOLT",
	Period:       "PER:VOLT",
}

// SupportsRange reports whether the function has a manual range setting.
func (f Function) SupportsRange() bool {
	_, ok := rangePrefixes[f]
	return ok
}

func (f Function) command() (string, error) {
	cmd, ok := functionCommands[f]
	if !ok {
		return "", fmt.Errorf("unknown function %q", string(f))
	}
	return cmd, nil
}

// functionFromReply maps a FUNC? reply (e.g. `"VOLT"` or `"VOLT:DC"`) back
// to a Function.
func functionFromReply(reply string) (Function, error) {
	name := strings.Trim(strings.TrimSpace(reply), `"`)
	// The instrument reports DC subsystems with an explicit :DC suffix.
	name = strings.TrimSuffix(name, ":DC")
	for f, cmd := range functionCommands {
		if cmd == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown function in reply %q", reply)
}

// Terminals identifies which input connectors are selected by the
// front-panel switch.
type Terminals string

const (
	TerminalsFront Terminals = "FRONT"
	TerminalsRear  Terminals = "REAR"
)

func terminalsFromReply(reply string) (Terminals, error) {
	switch strings.TrimSpace(reply) {
	case "FRON", "FRONT":
		return TerminalsFront, nil
	case "REAR":
		return TerminalsRear, nil
	default:
		return "", fmt.Errorf("unknown terminals in reply %q", reply)
	}
}
