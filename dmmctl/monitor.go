package main

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/itohio/godmm/pkg/acquire"
	"github.com/itohio/godmm/pkg/config"
	"github.com/itohio/godmm/pkg/hp34401a"
)

// runMonitor polls readings at the configured interval and writes them as
// CSV, optionally publishing each point to an MQTT topic. Runs until the
// point count is reached or the process is interrupted.
func runMonitor(dev *hp34401a.Device, cfg *config.Config, cmd *monitorCmd) error {
	if err := dev.SetFunction(hp34401a.Function(strings.ToUpper(cmd.Function))); err != nil {
		return err
	}
	if err := reportDeviceErrors(dev); err != nil {
		return err
	}

	out := os.Stdout
	if cmd.Output != "" {
		f, err := os.Create(cmd.Output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	w := csv.NewWriter(out)
	defer w.Flush()
	if err := w.Write([]string{"timestamp", "value"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	publish, disconnect, err := newPublisher(cfg, cmd)
	if err != nil {
		return err
	}
	defer disconnect()

	poller := acquire.NewPoller(dev, cfg.Acquire.Interval, cfg.Acquire.BufferSize)
	defer poller.Stop()

	points := poller.Start()
	if n := cfg.Acquire.AverageSamples; n > 1 {
		points = acquire.NewAveraging(n, cfg.Acquire.BufferSize)(points)
	}
	if n := cfg.Acquire.Downsample; n > 1 {
		points = acquire.NewDecimate(n, cfg.Acquire.BufferSize)(points)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	count := 0
	for {
		select {
		case <-interrupt:
			return nil
		case pt, ok := <-points:
			if !ok {
				return nil
			}
			record := []string{
				pt.Timestamp.Format(time.RFC3339Nano),
				strconv.FormatFloat(pt.Value, 'G', -1, 64),
			}
			if err := w.Write(record); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
			w.Flush()
			publish(pt)

			count++
			if cmd.Count > 0 && count >= cmd.Count {
				return nil
			}
		}
	}
}

// newPublisher connects to the MQTT broker when one is configured and
// returns a per-point publish function. Without a broker both returned
// functions are no-ops.
func newPublisher(cfg *config.Config, cmd *monitorCmd) (func(acquire.Point), func(), error) {
	broker := cfg.MQTT.Broker
	if cmd.Broker != "" {
		broker = cmd.Broker
	}
	if broker == "" {
		return func(acquire.Point) {}, func() {}, nil
	}
	topic := cfg.MQTT.Topic
	if cmd.Topic != "" {
		topic = cmd.Topic
	}

	mqttOpts := mqtt.NewClientOptions()
	mqttOpts.AddBroker(broker)
	mqttOpts.SetClientID(cfg.MQTT.ClientID)

	client := mqtt.NewClient(mqttOpts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", broker, token.Error())
	}

	publish := func(pt acquire.Point) {
		payload := fmt.Sprintf(`{"timestamp":%q,"value":%s}`,
			pt.Timestamp.Format(time.RFC3339Nano),
			strconv.FormatFloat(pt.Value, 'G', -1, 64))
		t := client.Publish(topic, 0, false, payload)
		go func() {
			if t.Wait() && t.Error() != nil {
				log.Printf("Failed to publish point: %v", t.Error())
			}
		}()
	}
	disconnect := func() { client.Disconnect(250) }
	return publish, disconnect, nil
}
