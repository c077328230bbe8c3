package hp34401a

import (
	"bufio"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/itohio/godmm/pkg/scpi"
)

const (
	// simIDN is the identification string the simulator reports.
	simIDN = "HEWLETT-PACKARD,34401A,0,11-5-2"
	// simMemoryDepth is how many readings internal memory holds.
	simMemoryDepth = 512
	// overloadReading is what the instrument reports on an open input.
	overloadReading = 9.9e37
)

// simRanges lists the supported full-scale ranges per function, smallest
// first. Frequency and period range through the AC voltage input.
var simRanges = map[Function][]float64{
	DCVolts:      {0.1, 1, 10, 100, 1000},
	ACVolts:      {0.1, 1, 10, 100, 750},
	DCCurrent:    {0.01, 0.1, 1, 3},
	ACCurrent:    {1, 3},
	Resistance2W: {100, 1e3, 10e3, 100e3, 1e6, 10e6, 100e6},
	Resistance4W: {100, 1e3, 10e3, 100e3, 1e6, 10e6, 100e6},
	Frequency:    {0.1, 1, 10, 100, 750},
	Period:       {0.1, 1, 10, 100, 750},
}

// simBaseReadings is what an otherwise idle bench produces per function.
// Open resistance, continuity and diode inputs read as overload.
var simBaseReadings = map[Function]float64{
	DCVolts:      0,
	DCVoltsRatio: 0,
	ACVolts:      0.0005,
	DCCurrent:    0,
	ACCurrent:    0.0002,
	Resistance2W: overloadReading,
	Resistance4W: overloadReading,
	Frequency:    0,
	Period:       0,
	Continuity:   overloadReading,
	Diode:        overloadReading,
}

var simNPLCValues = []float64{0.02, 0.2, 1, 10, 100}
var simApertures = []float64{0.01, 0.1, 1}
var simDetectorBandwidths = []float64{3, 20, 200}

// simFuncState is the per-function measurement configuration.
type simFuncState struct {
	rangeVal  float64
	autoRange bool
	res       float64
	nplc      float64
	aper      float64
}

// SimConfig tunes the simulated instrument.
type SimConfig struct {
	// Noise is the peak amplitude added to near-zero readings.
	Noise float64
	// Seed seeds the noise generator; 0 keeps readings deterministic runs apart.
	Seed int64
}

// Sim is an in-memory model of the 34401A firmware, answering the same
// command set the real instrument does. It implements scpi.Session
// directly for in-process use and can serve the raw-socket protocol via
// Serve, so the TCP transport can be exercised end to end.
//
// Validation follows the instrument's model: a malformed or unsupported
// command is accepted on the wire and recorded in the error queue; only
// queries produce output.
type Sim struct {
	mu sync.Mutex

	function    Function
	state       map[Function]*simFuncState
	detBand     float64
	autozero    bool
	display     bool
	displayText string
	autoImp     bool
	terminals   Terminals

	trigDelay     float64
	autoTrigDelay bool
	sampleCount   int
	triggerCount  int
	stored        []float64

	errq []DeviceError
	rng  *rand.Rand
	cfg  SimConfig
}

var _ scpi.Session = (*Sim)(nil)

// NewSim creates a simulated instrument in its power-on state.
func NewSim(cfg *SimConfig) *Sim {
	c := SimConfig{Noise: 2e-6}
	if cfg != nil {
		c = *cfg
		if c.Noise == 0 {
			c.Noise = 2e-6
		}
	}
	s := &Sim{
		terminals: TerminalsFront,
		rng:       rand.New(rand.NewSource(c.Seed)),
		cfg:       c,
	}
	s.reset()
	return s
}

// SetTerminals moves the simulated front/rear switch. The real switch is
// physical and has no SCPI command, so tests reach in directly.
func (s *Sim) SetTerminals(t Terminals) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminals = t
}

// Write executes a command, discarding any output it would produce.
func (s *Sim) Write(cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle(cmd)
	return nil
}

// Query executes a command and returns its reply. A command that produces
// no output behaves like the real bus: the caller sees a timeout.
func (s *Sim) Query(cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reply, ok := s.handle(cmd)
	if !ok {
		return "", fmt.Errorf("%w waiting for reply to %q", scpi.ErrReadTimeout, cmd)
	}
	return reply, nil
}

// Close is a no-op for the in-memory instrument.
func (s *Sim) Close() error {
	return nil
}

// Serve answers the raw-socket SCPI protocol on l until the listener is
// closed. Each connection gets the usual one-command-per-line exchange.
func (s *Sim) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		go s.serveConn(conn)
	}
}

func (s *Sim) serveConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.mu.Lock()
		reply, ok := s.handle(line)
		s.mu.Unlock()
		if !ok {
			continue
		}
		if _, err := conn.Write([]byte(reply + "\n")); err != nil {
			return
		}
	}
}

// reset restores power-on defaults and, per the driver's contract for
// *RST, clears pending errors.
func (s *Sim) reset() {
	s.function = DCVolts
	s.state = make(map[Function]*simFuncState)
	for f, ranges := range simRanges {
		def := ranges[len(ranges)/2]
		s.state[f] = &simFuncState{
			rangeVal:  def,
			autoRange: true,
			res:       1e-5 * def,
			nplc:      10,
			aper:      0.1,
		}
	}
	s.detBand = 20
	s.autozero = true
	s.display = true
	s.displayText = ""
	s.autoImp = false
	s.trigDelay = 0
	s.autoTrigDelay = true
	s.sampleCount = 1
	s.triggerCount = 1
	s.stored = nil
	s.errq = nil
}

// handle executes one command line. The second return is false when the
// command produces no output.
func (s *Sim) handle(cmd string) (string, bool) {
	cmd = strings.TrimSpace(cmd)
	head, args, _ := strings.Cut(cmd, " ")
	head = strings.ToUpper(head)
	args = strings.TrimSpace(args)

	if name, ok := strings.CutSuffix(head, "?"); ok {
		if args != "" {
			s.pushError(-113, "Undefined header")
			return "", false
		}
		return s.handleQuery(name)
	}
	s.handleWrite(head, args)
	return "", false
}

func (s *Sim) handleQuery(name string) (string, bool) {
	switch name {
	case "*IDN":
		return simIDN, true
	case "SYST:ERR":
		if len(s.errq) == 0 {
			return `+0,"No error"`, true
		}
		e := s.errq[0]
		s.errq = s.errq[1:]
		return fmt.Sprintf("%d,%q", e.Code, e.Message), true
	case "SYST:VERS":
		return "1993.0", true
	case "FUNC":
		return fmt.Sprintf("%q", functionCommands[s.function]), true
	case "ROUT:TERM":
		if s.terminals == TerminalsRear {
			return "REAR", true
		}
		return "FRON", true
	case "DET:BAND":
		return simFloat(s.detBand), true
	case "ZERO:AUTO":
		return simBool(s.autozero), true
	case "DISP":
		return simBool(s.display), true
	case "DISP:TEXT":
		return fmt.Sprintf("%q", s.displayText), true
	case "INP:IMP:AUTO":
		return simBool(s.autoImp), true
	case "READ":
		return simFloat(s.reading()), true
	case "TRIG:DEL":
		return simFloat(s.trigDelay), true
	case "TRIG:DEL:AUTO":
		return simBool(s.autoTrigDelay), true
	case "TRIG:COUN":
		return simFloat(float64(s.triggerCount)), true
	case "SAMP:COUN":
		return simFloat(float64(s.sampleCount)), true
	case "DATA:POIN":
		return simFloat(float64(len(s.stored))), true
	case "FETC":
		if len(s.stored) == 0 {
			s.pushError(-230, "Data corrupt or stale")
			return "", false
		}
		parts := make([]string, len(s.stored))
		for i, v := range s.stored {
			parts[i] = simFloat(v)
		}
		return strings.Join(parts, ","), true
	}

	if pfx, ok := strings.CutSuffix(name, ":RANG:AUTO"); ok {
		if st := s.rangeState(pfx); st != nil {
			return simBool(st.autoRange), true
		}
	} else if pfx, ok := strings.CutSuffix(name, ":RANG"); ok {
		if st := s.rangeState(pfx); st != nil {
			return simFloat(st.rangeVal), true
		}
	} else if pfx, ok := strings.CutSuffix(name, ":RES"); ok {
		if st := s.resolutionState(pfx); st != nil {
			return simFloat(st.res), true
		}
	} else if pfx, ok := strings.CutSuffix(name, ":NPLC"); ok {
		if st := s.nplcState(pfx); st != nil {
			return simFloat(st.nplc), true
		}
	} else if pfx, ok := strings.CutSuffix(name, ":APER"); ok {
		if st := s.apertureState(pfx); st != nil {
			return simFloat(st.aper), true
		}
	}

	s.pushError(-113, "Undefined header")
	return "", false
}

func (s *Sim) handleWrite(head, args string) {
	switch head {
	case "*RST":
		s.reset()
		return
	case "*CLS":
		s.errq = nil
		return
	case "SYST:BEEP", "SYST:REM", "SYST:LOC":
		return
	case "INIT":
		s.storeReadings()
		return
	case "FUNC":
		s.setFunction(args)
		return
	case "DET:BAND":
		if v, ok := s.parseChoice(args, simDetectorBandwidths); ok {
			s.detBand = v
		}
		return
	case "ZERO:AUTO":
		if strings.EqualFold(args, "ONCE") {
			// A single zero measurement leaves automatic zeroing off.
			s.autozero = false
			return
		}
		s.setBool(args, &s.autozero)
		return
	case "DISP":
		s.setBool(args, &s.display)
		return
	case "DISP:TEXT":
		if text, err := strconv.Unquote(args); err == nil && len(text) <= 12 {
			s.displayText = text
		} else {
			s.pushError(-224, "Illegal parameter value")
		}
		return
	case "DISP:TEXT:CLE":
		s.displayText = ""
		return
	case "INP:IMP:AUTO":
		s.setBool(args, &s.autoImp)
		return
	case "TRIG:DEL":
		if v, ok := s.parseNumber(args, 0, 3600); ok {
			s.trigDelay = v
			s.autoTrigDelay = false
		}
		return
	case "TRIG:DEL:AUTO":
		s.setBool(args, &s.autoTrigDelay)
		return
	case "TRIG:COUN":
		if v, ok := s.parseNumber(args, 1, 50000); ok {
			s.triggerCount = int(v)
		}
		return
	case "SAMP:COUN":
		if v, ok := s.parseNumber(args, 1, 50000); ok {
			s.sampleCount = int(v)
		}
		return
	}

	if pfx, ok := strings.CutSuffix(head, ":RANG:AUTO"); ok {
		if st := s.rangeState(pfx); st != nil {
			s.setBool(args, &st.autoRange)
			return
		}
	} else if pfx, ok := strings.CutSuffix(head, ":RANG"); ok {
		if st := s.rangeState(pfx); st != nil {
			s.setRange(rangeFunction(pfx), st, args)
			return
		}
	} else if pfx, ok := strings.CutSuffix(head, ":RES"); ok {
		if st := s.resolutionState(pfx); st != nil {
			s.setResolution(st, args)
			return
		}
	} else if pfx, ok := strings.CutSuffix(head, ":NPLC"); ok {
		if st := s.nplcState(pfx); st != nil {
			if v, ok := s.parseChoice(args, simNPLCValues); ok {
				st.nplc = v
			}
			return
		}
	} else if pfx, ok := strings.CutSuffix(head, ":APER"); ok {
		if st := s.apertureState(pfx); st != nil {
			if v, ok := s.parseChoice(args, simApertures); ok {
				st.aper = v
			}
			return
		}
	}

	s.pushError(-113, "Undefined header")
}

func (s *Sim) setFunction(args string) {
	name, err := strconv.Unquote(args)
	if err != nil {
		name = args
	}
	f, err := functionFromReply(name)
	if err != nil {
		s.pushError(-224, "Illegal parameter value")
		return
	}
	s.function = f
}

// setRange snaps a manual range request to the lowest supported range that
// accommodates it and disables auto-ranging, as the instrument does.
func (s *Sim) setRange(f Function, st *simFuncState, args string) {
	ranges := simRanges[f]
	var v float64
	switch strings.ToUpper(args) {
	case "MIN", "MINIMUM":
		v = ranges[0]
	case "MAX", "MAXIMUM":
		v = ranges[len(ranges)-1]
	default:
		parsed, err := strconv.ParseFloat(args, 64)
		if err != nil {
			s.pushError(-224, "Illegal parameter value")
			return
		}
		v = ranges[len(ranges)-1]
		if parsed > v {
			s.pushError(-222, "Data out of range")
		} else {
			for _, r := range ranges {
				if parsed <= r {
					v = r
					break
				}
			}
		}
	}
	st.rangeVal = v
	st.autoRange = false
}

func (s *Sim) setResolution(st *simFuncState, args string) {
	lo, hi := 1e-7*st.rangeVal, 1e-3*st.rangeVal
	var v float64
	switch strings.ToUpper(args) {
	case "MIN", "MINIMUM":
		v = lo
	case "MAX", "MAXIMUM":
		v = hi
	default:
		parsed, err := strconv.ParseFloat(args, 64)
		if err != nil || parsed < lo || parsed > hi {
			s.pushError(-224, "Illegal parameter value")
			return
		}
		v = parsed
	}
	st.res = v
}

func (s *Sim) setBool(args string, dst *bool) {
	switch strings.ToUpper(args) {
	case "1", "ON":
		*dst = true
	case "0", "OFF":
		*dst = false
	default:
		s.pushError(-224, "Illegal parameter value")
	}
}

// parseChoice accepts one of the listed discrete values, or MIN/MAX.
func (s *Sim) parseChoice(args string, values []float64) (float64, bool) {
	switch strings.ToUpper(args) {
	case "MIN", "MINIMUM":
		return values[0], true
	case "MAX", "MAXIMUM":
		return values[len(values)-1], true
	}
	v, err := strconv.ParseFloat(args, 64)
	if err != nil {
		s.pushError(-224, "Illegal parameter value")
		return 0, false
	}
	for _, c := range values {
		if v == c {
			return v, true
		}
	}
	s.pushError(-224, "Illegal parameter value")
	return 0, false
}

func (s *Sim) parseNumber(args string, lo, hi float64) (float64, bool) {
	switch strings.ToUpper(args) {
	case "MIN", "MINIMUM":
		return lo, true
	case "MAX", "MAXIMUM":
		return hi, true
	}
	v, err := strconv.ParseFloat(args, 64)
	if err != nil {
		s.pushError(-224, "Illegal parameter value")
		return 0, false
	}
	if v < lo || v > hi {
		s.pushError(-222, "Data out of range")
		return 0, false
	}
	return v, true
}

func (s *Sim) reading() float64 {
	base := simBaseReadings[s.function]
	if base >= overloadReading {
		return base
	}
	return base + (s.rng.Float64()*2-1)*s.cfg.Noise
}

func (s *Sim) storeReadings() {
	n := s.sampleCount * s.triggerCount
	if n > simMemoryDepth {
		s.pushError(-531, "Insufficient memory")
		return
	}
	s.stored = make([]float64, n)
	for i := range s.stored {
		s.stored[i] = s.reading()
	}
}

// pushError appends to the error queue, collapsing into a queue overflow
// entry when the firmware depth is exceeded.
func (s *Sim) pushError(code int, msg string) {
	if len(s.errq) >= errorQueueDepth {
		s.errq[errorQueueDepth-1] = DeviceError{Code: -350, Message: "Queue overflow"}
		return
	}
	s.errq = append(s.errq, DeviceError{Code: code, Message: msg})
}

func (s *Sim) rangeState(subsystem string) *simFuncState {
	if f := rangeFunction(subsystem); f != "" {
		return s.state[f]
	}
	return nil
}

func rangeFunction(subsystem string) Function {
	for f, pfx := range rangePrefixes {
		if pfx == subsystem {
			return f
		}
	}
	return ""
}

// resolutionState accepts the subsystems that take a :RES setting; the
// counter functions do not.
func (s *Sim) resolutionState(subsystem string) *simFuncState {
	for f, cmd := range functionCommands {
		if cmd == subsystem {
			switch f {
			case DCVolts, ACVolts, DCCurrent, ACCurrent, Resistance2W, Resistance4W:
				return s.state[f]
			}
		}
	}
	return nil
}

// nplcState accepts the subsystems that integrate: DC volts, DC current
// and the resistance functions.
func (s *Sim) nplcState(subsystem string) *simFuncState {
	switch subsystem {
	case "VOLT":
		return s.state[DCVolts]
	case "CURR":
		return s.state[DCCurrent]
	case "RES":
		return s.state[Resistance2W]
	case "FRES":
		return s.state[Resistance4W]
	}
	return nil
}

func (s *Sim) apertureState(subsystem string) *simFuncState {
	switch subsystem {
	case "FREQ":
		return s.state[Frequency]
	case "PER":
		return s.state[Period]
	}
	return nil
}

// simFloat renders a value the way the instrument does.
func simFloat(v float64) string {
	return fmt.Sprintf("%+.8E", v)
}

func simBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
