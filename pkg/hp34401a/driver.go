package hp34401a

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/itohio/godmm/pkg/scpi"
)

// Device drives an HP/Agilent 34401A 6.5-digit multimeter over a SCPI
// session. The device carries no cached state: every accessor is a fresh
// round trip, so readings and settings always reflect the instrument.
//
// The instrument defers validation of settings to its error queue. Setters
// succeed locally as long as the command was delivered; call CheckErrors
// after a mutating sequence to observe rejected settings.
type Device struct {
	sess scpi.Session
}

// New wraps an open SCPI session.
func New(sess scpi.Session) *Device {
	return &Device{sess: sess}
}

// OpenResource opens the instrument at the given resource locator
// (e.g. "GPIB0::16") and wraps it in a Device.
func OpenResource(resource string, opts *scpi.Options) (*Device, error) {
	sess, err := scpi.Open(resource, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", resource, err)
	}
	return New(sess), nil
}

// Close closes the underlying session.
func (d *Device) Close() error {
	return d.sess.Close()
}

// Session exposes the underlying session for raw commands.
func (d *Device) Session() scpi.Session {
	return d.sess
}

// ID returns the *IDN? identification string.
func (d *Device) ID() (string, error) {
	return d.sess.Query("*IDN?")
}

// Reset restores the instrument's power-on defaults. Idempotent; clears
// the active function, manual ranges and pending errors.
func (d *Device) Reset() error {
	return d.sess.Write("*RST")
}

// Clear clears the status registers and the error queue without touching
// measurement settings.
func (d *Device) Clear() error {
	return d.sess.Write("*CLS")
}

// CheckErrors drains the instrument error queue and returns the drained
// entries in queue order. An empty slice is the expected result after any
// well-formed operation. The returned error covers the transport only;
// device-reported errors are the slice.
func (d *Device) CheckErrors() ([]DeviceError, error) {
	var errs []DeviceError
	for i := 0; i <= errorQueueDepth; i++ {
		reply, err := d.sess.Query("SYST:ERR?")
		if err != nil {
			return errs, err
		}
		devErr, err := parseDeviceError(reply)
		if err != nil {
			return errs, err
		}
		if devErr.Code == 0 {
			return errs, nil
		}
		errs = append(errs, devErr)
	}
	return errs, fmt.Errorf("error queue did not drain after %d entries", errorQueueDepth)
}

// Function returns the active measurement function.
func (d *Device) Function() (Function, error) {
	reply, err := d.sess.Query("FUNC?")
	if err != nil {
		return "", err
	}
	return functionFromReply(reply)
}

// SetFunction selects the measurement function. An unsupported selection
// is reported through the error queue, not locally.
func (d *Device) SetFunction(f Function) error {
	cmd, err := f.command()
	if err != nil {
		return err
	}
	return d.sess.Write(fmt.Sprintf("FUNC %q", cmd))
}

// RangeValue is a manual range: a full-scale numeric value or one of the
// MinRange/MaxRange sentinels.
type RangeValue struct {
	value float64
	token string
}

// Span is a manual range at the given full-scale value.
func Span(v float64) RangeValue {
	return RangeValue{value: v}
}

// MinRange and MaxRange select the smallest and largest range the active
// function supports; reading the range back resolves them to numbers.
var (
	MinRange = RangeValue{token: "MIN"}
	MaxRange = RangeValue{token: "MAX"}
)

func (r RangeValue) arg() string {
	if r.token != "" {
		return r.token
	}
	return formatFloat(r.value)
}

// Range returns the active manual range (full-scale value) of the current
// function. With auto-ranging on, this is the range the instrument chose.
func (d *Device) Range() (float64, error) {
	pfx, err := d.rangePrefix()
	if err != nil {
		return 0, err
	}
	return d.queryFloat(pfx + ":RANG?")
}

// SetRange sets a manual range for the current function and, as a side
// effect in the instrument, disables auto-ranging. A value between ranges
// selects the lowest range that accommodates it.
func (d *Device) SetRange(r RangeValue) error {
	pfx, err := d.rangePrefix()
	if err != nil {
		return err
	}
	return d.sess.Write(fmt.Sprintf("%s:RANG %s", pfx, r.arg()))
}

// AutoRangeEnabled reports whether the current function auto-ranges.
func (d *Device) AutoRangeEnabled() (bool, error) {
	pfx, err := d.rangePrefix()
	if err != nil {
		return false, err
	}
	return d.queryBool(pfx + ":RANG:AUTO?")
}

// SetAutoRangeEnabled enables or disables auto-ranging for the current
// function.
func (d *Device) SetAutoRangeEnabled(enabled bool) error {
	pfx, err := d.rangePrefix()
	if err != nil {
		return err
	}
	return d.sess.Write(fmt.Sprintf("%s:RANG:AUTO %s", pfx, formatBool(enabled)))
}

// Reading triggers a measurement in the active function and returns the
// result. Blocks for up to the configured integration time; a function
// must be selected first.
func (d *Device) Reading() (float64, error) {
	return d.queryFloat("READ?")
}

// Resolution returns the measurement resolution of the current function,
// in the function's units.
func (d *Device) Resolution() (float64, error) {
	cmd, err := d.functionCommand()
	if err != nil {
		return 0, err
	}
	return d.queryFloat(cmd + ":RES?")
}

// SetResolution sets the measurement resolution for the current function.
// Values the function does not support land in the error queue.
func (d *Device) SetResolution(v float64) error {
	cmd, err := d.functionCommand()
	if err != nil {
		return err
	}
	return d.sess.Write(fmt.Sprintf("%s:RES %s", cmd, formatFloat(v)))
}

// NPLC returns the integration time of the current function in power-line
// cycles.
func (d *Device) NPLC() (float64, error) {
	cmd, err := d.functionCommand()
	if err != nil {
		return 0, err
	}
	return d.queryFloat(cmd + ":NPLC?")
}

// SetNPLC sets the integration time in power-line cycles (0.02 to 100).
// Only the DC and resistance functions integrate; elsewhere the command
// lands in the error queue.
func (d *Device) SetNPLC(v float64) error {
	cmd, err := d.functionCommand()
	if err != nil {
		return err
	}
	return d.sess.Write(fmt.Sprintf("%s:NPLC %s", cmd, formatFloat(v)))
}

// GateTime returns the aperture of the frequency or period counter in
// seconds.
func (d *Device) GateTime() (float64, error) {
	cmd, err := d.functionCommand()
	if err != nil {
		return 0, err
	}
	return d.queryFloat(cmd + ":APER?")
}

// SetGateTime sets the counter aperture (0.01, 0.1 or 1 s). Meaningful for
// FREQ and PERIOD only.
func (d *Device) SetGateTime(v float64) error {
	cmd, err := d.functionCommand()
	if err != nil {
		return err
	}
	return d.sess.Write(fmt.Sprintf("%s:APER %s", cmd, formatFloat(v)))
}

// DetectorBandwidth returns the lowest expected input frequency in Hz
// (3, 20 or 200).
func (d *Device) DetectorBandwidth() (float64, error) {
	return d.queryFloat("DET:BAND?")
}

// SetDetectorBandwidth sets the AC detector bandwidth in Hz.
func (d *Device) SetDetectorBandwidth(v float64) error {
	return d.sess.Write(fmt.Sprintf("DET:BAND %s", formatFloat(v)))
}

// AutozeroEnabled reports whether the instrument re-zeros before every
// reading.
func (d *Device) AutozeroEnabled() (bool, error) {
	return d.queryBool("ZERO:AUTO?")
}

// SetAutozeroEnabled enables or disables automatic zeroing.
func (d *Device) SetAutozeroEnabled(enabled bool) error {
	return d.sess.Write("ZERO:AUTO " + formatBool(enabled))
}

// TriggerSingleAutozero issues one immediate zero measurement. The
// instrument disables automatic zeroing afterwards; that is how the
// hardware behaves, not a driver choice.
func (d *Device) TriggerSingleAutozero() error {
	return d.sess.Write("ZERO:AUTO ONCE")
}

// DisplayEnabled reports whether the front-panel display is on.
func (d *Device) DisplayEnabled() (bool, error) {
	return d.queryBool("DISP?")
}

// SetDisplayEnabled turns the front-panel display on or off.
func (d *Device) SetDisplayEnabled(enabled bool) error {
	return d.sess.Write("DISP " + formatBool(enabled))
}

// DisplayedText returns the text shown on the front-panel display, empty
// when no text is displayed.
func (d *Device) DisplayedText() (string, error) {
	reply, err := d.sess.Query("DISP:TEXT?")
	if err != nil {
		return "", err
	}
	return strings.Trim(reply, `"`), nil
}

// SetDisplayedText shows a message (up to 12 characters) on the display.
func (d *Device) SetDisplayedText(text string) error {
	return d.sess.Write(fmt.Sprintf("DISP:TEXT %q", text))
}

// ClearDisplayedText removes a displayed message.
func (d *Device) ClearDisplayedText() error {
	return d.sess.Write("DISP:TEXT:CLE")
}

// AutoInputImpedanceEnabled reports whether the DC voltage input impedance
// follows the range (>10 GΩ on the low ranges) instead of a fixed 10 MΩ.
func (d *Device) AutoInputImpedanceEnabled() (bool, error) {
	return d.queryBool("INP:IMP:AUTO?")
}

// SetAutoInputImpedanceEnabled enables or disables automatic input
// impedance selection.
func (d *Device) SetAutoInputImpedanceEnabled(enabled bool) error {
	return d.sess.Write("INP:IMP:AUTO " + formatBool(enabled))
}

// Terminals reports which input terminals the front-panel switch selects.
func (d *Device) Terminals() (Terminals, error) {
	reply, err := d.sess.Query("ROUT:TERM?")
	if err != nil {
		return "", err
	}
	return terminalsFromReply(reply)
}

// Beep sounds a single beep.
func (d *Device) Beep() error {
	return d.sess.Write("SYST:BEEP")
}

// TriggerDelay returns the delay between trigger and measurement in
// seconds.
func (d *Device) TriggerDelay() (float64, error) {
	return d.queryFloat("TRIG:DEL?")
}

// SetTriggerDelay sets the trigger delay (0 to 3600 s) and disables the
// automatic delay.
func (d *Device) SetTriggerDelay(v float64) error {
	return d.sess.Write(fmt.Sprintf("TRIG:DEL %s", formatFloat(v)))
}

// AutoTriggerDelayEnabled reports whether the trigger delay is chosen by
// the instrument from function, range and integration time.
func (d *Device) AutoTriggerDelayEnabled() (bool, error) {
	return d.queryBool("TRIG:DEL:AUTO?")
}

// SetAutoTriggerDelayEnabled enables or disables the automatic trigger
// delay.
func (d *Device) SetAutoTriggerDelayEnabled(enabled bool) error {
	return d.sess.Write("TRIG:DEL:AUTO " + formatBool(enabled))
}

// SampleCount returns the number of readings taken per trigger.
func (d *Device) SampleCount() (int, error) {
	return d.queryInt("SAMP:COUN?")
}

// SetSampleCount sets the number of readings per trigger (1 to 50000).
func (d *Device) SetSampleCount(n int) error {
	return d.sess.Write(fmt.Sprintf("SAMP:COUN %d", n))
}

// TriggerCount returns the number of triggers accepted before returning to
// idle.
func (d *Device) TriggerCount() (int, error) {
	return d.queryInt("TRIG:COUN?")
}

// SetTriggerCount sets the number of triggers accepted before returning to
// idle (1 to 50000).
func (d *Device) SetTriggerCount(n int) error {
	return d.sess.Write(fmt.Sprintf("TRIG:COUN %d", n))
}

// Init arms the trigger system; readings go to internal memory until the
// trigger and sample counts are exhausted.
func (d *Device) Init() error {
	return d.sess.Write("INIT")
}

// Fetch returns the readings stored in internal memory by Init.
func (d *Device) Fetch() ([]float64, error) {
	reply, err := d.sess.Query("FETC?")
	if err != nil {
		return nil, err
	}
	fields := strings.Split(strings.TrimSpace(reply), ",")
	readings := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("malformed reading %q in FETC? reply: %w", f, err)
		}
		readings = append(readings, v)
	}
	return readings, nil
}

// StoredReadingsCount returns how many readings internal memory holds.
func (d *Device) StoredReadingsCount() (int, error) {
	return d.queryInt("DATA:POIN?")
}

// Remote places the instrument in remote mode. Required before sending
// commands over RS-232.
func (d *Device) Remote() error {
	return d.sess.Write("SYST:REM")
}

// Local returns the instrument to front-panel control.
func (d *Device) Local() error {
	return d.sess.Write("SYST:LOC")
}

// rangePrefix resolves the range subsystem of the active function, which
// costs one round trip.
func (d *Device) rangePrefix() (string, error) {
	f, err := d.Function()
	if err != nil {
		return "", err
	}
	pfx, ok := rangePrefixes[f]
	if !ok {
		return "", fmt.Errorf("function %s does not support ranging", f)
	}
	return pfx, nil
}

// functionCommand resolves the subsystem name of the active function.
func (d *Device) functionCommand() (string, error) {
	f, err := d.Function()
	if err != nil {
		return "", err
	}
	return f.command()
}

func (d *Device) queryFloat(cmd string) (float64, error) {
	reply, err := d.sess.Query(cmd)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(reply), 64)
	if err != nil {
		return 0, fmt.Errorf("malformed reply %q to %q: %w", reply, cmd, err)
	}
	return v, nil
}

func (d *Device) queryInt(cmd string) (int, error) {
	// Counts come back in float notation, e.g. "+1.00000000E+00".
	v, err := d.queryFloat(cmd)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func (d *Device) queryBool(cmd string) (bool, error) {
	reply, err := d.sess.Query(cmd)
	if err != nil {
		return false, err
	}
	switch strings.TrimPrefix(strings.TrimSpace(reply), "+") {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, fmt.Errorf("malformed boolean reply %q to %q", reply, cmd)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'G', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
