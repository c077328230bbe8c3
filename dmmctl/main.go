package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/alexflint/go-arg"
	"github.com/itohio/godmm/pkg/config"
	"github.com/itohio/godmm/pkg/hp34401a"
	"github.com/itohio/godmm/pkg/scpi"
)

type idnCmd struct{}

type resetCmd struct{}

type errorsCmd struct{}

type getCmd struct {
	Property string `arg:"positional,required" help:"function|range|autorange|resolution|nplc|gatetime|bandwidth|autozero|display|impedance|terminals"`
}

type setCmd struct {
	Property string `arg:"positional,required" help:"property name, see 'get'"`
	Value    string `arg:"positional,required" help:"value to set (numbers, on/off, MIN/MAX for range)"`
}

type measureCmd struct {
	Function   string  `arg:"-f,--function" default:"DCV" help:"measurement function (DCV, ACV, DCI, ACI, R2W, R4W, FREQ, PERIOD, CONTINUITY, DIODE)"`
	Range      string  `arg:"--range" help:"manual range (number, MIN or MAX); empty keeps auto-range"`
	Resolution float64 `arg:"--resolution" help:"measurement resolution in function units"`
}

type monitorCmd struct {
	Function string `arg:"-f,--function" default:"DCV" help:"measurement function"`
	Count    int    `arg:"-n,--count" help:"stop after this many points (0 = run until interrupted)"`
	Output   string `arg:"-o,--output" help:"CSV output file (default stdout)"`
	Broker   string `arg:"--broker" help:"MQTT broker override, e.g. tcp://localhost:1883"`
	Topic    string `arg:"--topic" help:"MQTT topic override"`
}

var args struct {
	Config   string `arg:"-c,--config" default:"config.yaml" help:"configuration file path"`
	Resource string `arg:"-r,--resource" help:"resource locator override (e.g. GPIB0::16)"`
	Mock     bool   `arg:"--mock" help:"use the simulated instrument instead of hardware"`

	IDN     *idnCmd     `arg:"subcommand:idn" help:"print the identification string"`
	Reset   *resetCmd   `arg:"subcommand:reset" help:"reset the instrument to power-on defaults"`
	Errors  *errorsCmd  `arg:"subcommand:errors" help:"drain and print the instrument error queue"`
	Get     *getCmd     `arg:"subcommand:get" help:"query one instrument property"`
	Set     *setCmd     `arg:"subcommand:set" help:"set one instrument property"`
	Measure *measureCmd `arg:"subcommand:measure" help:"configure and take a single measurement"`
	Monitor *monitorCmd `arg:"subcommand:monitor" help:"poll readings into CSV, optionally publishing to MQTT"`
}

func main() {
	p := arg.MustParse(&args)

	cfg, err := config.Load(args.Config)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if args.Resource != "" {
		cfg.Instrument.Resource = args.Resource
	}

	dev, err := openDevice(cfg)
	if err != nil {
		log.Fatalf("Failed to open instrument: %v", err)
	}
	defer dev.Close()

	switch {
	case args.IDN != nil:
		id, err := dev.ID()
		if err != nil {
			log.Fatalf("Failed to identify instrument: %v", err)
		}
		fmt.Println(id)
	case args.Reset != nil:
		if err := dev.Reset(); err != nil {
			log.Fatalf("Failed to reset instrument: %v", err)
		}
	case args.Errors != nil:
		errs, err := dev.CheckErrors()
		if err != nil {
			log.Fatalf("Failed to drain error queue: %v", err)
		}
		for _, e := range errs {
			fmt.Println(e)
		}
	case args.Get != nil:
		if err := runGet(dev, args.Get); err != nil {
			log.Fatalf("Failed to query %s: %v", args.Get.Property, err)
		}
	case args.Set != nil:
		if err := runSet(dev, args.Set); err != nil {
			log.Fatalf("Failed to set %s: %v", args.Set.Property, err)
		}
	case args.Measure != nil:
		if err := runMeasure(dev, args.Measure); err != nil {
			log.Fatalf("Measurement failed: %v", err)
		}
	case args.Monitor != nil:
		if err := runMonitor(dev, cfg, args.Monitor); err != nil {
			log.Fatalf("Monitor failed: %v", err)
		}
	default:
		p.WriteHelp(log.Writer())
	}
}

// openDevice opens either the configured resource or the in-process
// simulator. RS-232 attached instruments need an explicit switch to
// remote mode before they accept commands.
func openDevice(cfg *config.Config) (*hp34401a.Device, error) {
	if args.Mock {
		sim := hp34401a.NewSim(&hp34401a.SimConfig{
			Noise: cfg.Sim.Noise,
			Seed:  cfg.Sim.Seed,
		})
		return hp34401a.New(sim), nil
	}

	res, err := scpi.ParseResource(cfg.Instrument.Resource)
	if err != nil {
		return nil, err
	}
	dev, err := hp34401a.OpenResource(cfg.Instrument.Resource, &scpi.Options{
		Timeout:     cfg.Instrument.Timeout,
		BaudRate:    cfg.Instrument.BaudRate,
		GPIBAdapter: cfg.Instrument.GPIBAdapter,
	})
	if err != nil {
		return nil, err
	}
	if res.Kind == scpi.ResourceSerial {
		if err := dev.Remote(); err != nil {
			dev.Close()
			return nil, fmt.Errorf("failed to enter remote mode: %w", err)
		}
	}
	return dev, nil
}

// reportDeviceErrors drains the error queue after a mutating sequence and
// surfaces anything the instrument rejected.
func reportDeviceErrors(dev *hp34401a.Device) error {
	errs, err := dev.CheckErrors()
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("instrument reported: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func runMeasure(dev *hp34401a.Device, cmd *measureCmd) error {
	if err := dev.SetFunction(hp34401a.Function(strings.ToUpper(cmd.Function))); err != nil {
		return err
	}
	if cmd.Range != "" {
		r, err := parseRange(cmd.Range)
		if err != nil {
			return err
		}
		if err := dev.SetRange(r); err != nil {
			return err
		}
	}
	if cmd.Resolution != 0 {
		if err := dev.SetResolution(cmd.Resolution); err != nil {
			return err
		}
	}
	if err := reportDeviceErrors(dev); err != nil {
		return err
	}

	v, err := dev.Reading()
	if err != nil {
		return err
	}
	fmt.Printf("%G\n", v)
	return nil
}

func parseRange(s string) (hp34401a.RangeValue, error) {
	switch strings.ToUpper(s) {
	case "MIN":
		return hp34401a.MinRange, nil
	case "MAX":
		return hp34401a.MaxRange, nil
	}
	var v float64
	if _, err := fmt.Sscanf(s, "%g", &v); err != nil {
		return hp34401a.RangeValue{}, fmt.Errorf("invalid range %q", s)
	}
	return hp34401a.Span(v), nil
}
