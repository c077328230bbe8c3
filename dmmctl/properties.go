package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/itohio/godmm/pkg/hp34401a"
)

// runGet prints one instrument property. Every query is a fresh round
// trip; nothing is cached in the driver.
func runGet(dev *hp34401a.Device, cmd *getCmd) error {
	switch strings.ToLower(cmd.Property) {
	case "function":
		f, err := dev.Function()
		if err != nil {
			return err
		}
		fmt.Println(string(f))
	case "range":
		v, err := dev.Range()
		if err != nil {
			return err
		}
		fmt.Printf("%G\n", v)
	case "autorange":
		return printBool(dev.AutoRangeEnabled())
	case "resolution":
		return printFloat(dev.Resolution())
	case "nplc":
		return printFloat(dev.NPLC())
	case "gatetime":
		return printFloat(dev.GateTime())
	case "bandwidth":
		return printFloat(dev.DetectorBandwidth())
	case "autozero":
		return printBool(dev.AutozeroEnabled())
	case "display":
		return printBool(dev.DisplayEnabled())
	case "impedance":
		return printBool(dev.AutoInputImpedanceEnabled())
	case "terminals":
		t, err := dev.Terminals()
		if err != nil {
			return err
		}
		fmt.Println(string(t))
	default:
		return fmt.Errorf("unknown property %q", cmd.Property)
	}
	return nil
}

// runSet writes one instrument property, then drains the error queue so
// a rejected setting fails the command instead of lingering.
func runSet(dev *hp34401a.Device, cmd *setCmd) error {
	var err error
	switch strings.ToLower(cmd.Property) {
	case "function":
		err = dev.SetFunction(hp34401a.Function(strings.ToUpper(cmd.Value)))
	case "range":
		var r hp34401a.RangeValue
		if r, err = parseRange(cmd.Value); err == nil {
			err = dev.SetRange(r)
		}
	case "autorange":
		err = setBoolProp(cmd.Value, dev.SetAutoRangeEnabled)
	case "resolution":
		err = setFloatProp(cmd.Value, dev.SetResolution)
	case "nplc":
		err = setFloatProp(cmd.Value, dev.SetNPLC)
	case "gatetime":
		err = setFloatProp(cmd.Value, dev.SetGateTime)
	case "bandwidth":
		err = setFloatProp(cmd.Value, dev.SetDetectorBandwidth)
	case "autozero":
		err = setBoolProp(cmd.Value, dev.SetAutozeroEnabled)
	case "display":
		err = setBoolProp(cmd.Value, dev.SetDisplayEnabled)
	case "impedance":
		err = setBoolProp(cmd.Value, dev.SetAutoInputImpedanceEnabled)
	default:
		return fmt.Errorf("unknown property %q", cmd.Property)
	}
	if err != nil {
		return err
	}
	return reportDeviceErrors(dev)
}

func setFloatProp(value string, set func(float64) error) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", value)
	}
	return set(v)
}

func setBoolProp(value string, set func(bool) error) error {
	switch strings.ToLower(value) {
	case "1", "on", "true":
		return set(true)
	case "0", "off", "false":
		return set(false)
	default:
		return fmt.Errorf("invalid boolean %q", value)
	}
}

func printFloat(v float64, err error) error {
	if err != nil {
		return err
	}
	fmt.Printf("%G\n", v)
	return nil
}

func printBool(v bool, err error) error {
	if err != nil {
		return err
	}
	if v {
		fmt.Println("on")
	} else {
		fmt.Println("off")
	}
	return nil
}
