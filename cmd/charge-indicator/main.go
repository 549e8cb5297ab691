//go:build !tinygo

// Command charge-indicator lights an LED while both status lines of a
// charge-controller chip are asserted, and publishes LED changes to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/charge-indicator/internal/config"
	"github.com/sweeney/charge-indicator/internal/discovery"
	"github.com/sweeney/charge-indicator/internal/gpio"
	"github.com/sweeney/charge-indicator/internal/indicator"
	"github.com/sweeney/charge-indicator/internal/logic"
	"github.com/sweeney/charge-indicator/internal/mqtt"
	"github.com/sweeney/charge-indicator/internal/status"
	"github.com/sweeney/charge-indicator/internal/web"
)

// sampleBuffer is the capacity of the channel drivers report evaluations on.
// Evaluations beyond it are dropped and counted by the driver.
const sampleBuffer = 64

// tickInterval paces heartbeat checks and connection status refresh.
const tickInterval = 10 * time.Second

// verbose logs every evaluation, not just LED transitions.
var verbose bool

func main() {
	configPath := flag.String("config", "/etc/charge-indicator.yaml", "Path to YAML device config")
	backend := flag.String("backend", "", "GPIO backend override (cdev, periph)")
	broker := flag.String("broker", "", "MQTT broker address override")
	httpAddr := flag.String("http", "", `HTTP status address override ("off" disables)`)
	heartbeat := flag.Duration("heartbeat", 0, "Heartbeat interval override (0 to disable)")
	payload := flag.String("payload", "", "Payload format override (json, cbor)")
	printState := flag.Bool("print-state", false, "Print current state and exit")
	flag.BoolVar(&verbose, "v", false, "Log every evaluation")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["backend"] {
		cfg.Backend = *backend
	}
	if set["broker"] {
		cfg.Broker = *broker
	}
	if set["http"] {
		cfg.HTTP = *httpAddr
		if cfg.HTTP == "off" {
			cfg.HTTP = ""
		}
	}
	if set["heartbeat"] {
		cfg.Heartbeat = *heartbeat
	}
	if set["payload"] {
		cfg.Payload = *payload
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func newProvider(backend string) (gpio.Provider, error) {
	switch backend {
	case config.BackendCdev:
		return gpio.NewCdevProvider(), nil
	case config.BackendPeriph:
		return gpio.NewPeriphProvider(), nil
	default:
		return nil, fmt.Errorf("unknown gpio backend %q", backend)
	}
}

// initDevices brings up every configured device. Devices that fail are
// returned in failed and do not stop the others.
func initDevices(provider gpio.Provider, devices []config.Device, samples chan<- logic.Sample) ([]*indicator.Driver, map[string]error) {
	var drivers []*indicator.Driver
	failed := make(map[string]error)
	for _, dev := range devices {
		d, err := indicator.Init(indicator.Config{
			Name:  dev.Name,
			LED:   provider.Pin(dev.LED.Line()),
			Stat1: provider.Pin(dev.Stat1.Line()),
			Stat2: provider.Pin(dev.Stat2.Line()),
		}, indicator.WithNotify(samples))
		if err != nil {
			log.Printf("init failed: %v", err)
			failed[dev.Name] = err
			continue
		}
		drivers = append(drivers, d)
	}
	return drivers, failed
}

func run(cfg *config.Config, printState bool) error {
	provider, err := newProvider(cfg.Backend)
	if err != nil {
		return err
	}
	defer provider.Close()

	samples := make(chan logic.Sample, sampleBuffer)
	drivers, failed := initDevices(provider, cfg.Devices, samples)
	if len(drivers) == 0 {
		errs := make([]error, 0, len(failed))
		for _, err := range failed {
			errs = append(errs, err)
		}
		return fmt.Errorf("no indicator initialized: %w", errors.Join(errs...))
	}

	if printState {
		printStates(os.Stdout, drivers)
		return nil
	}

	format := mqtt.Format(cfg.Payload)
	publisher, err := mqtt.NewRealPublisher(cfg.Broker, format)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Backend:     cfg.Backend,
		Payload:     cfg.Payload,
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.Broker,
		HTTPPort:    cfg.HTTP,
	})
	for name, err := range failed {
		tracker.SetFailed(name, err)
	}
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetMQTTConnected(publisher.IsConnected())

	// Publish startup event with full status snapshot
	startupEvent := mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     "STARTUP",
		Retained:  true,
		Body:      status.StatusEvent(tracker.Snapshot(), "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP)

		if cfg.MDNS {
			adv := discovery.NewAdvertiser(nil)
			if err := advertise(adv, cfg.HTTP, drivers); err != nil {
				log.Printf("mdns: %v", err)
			} else {
				defer adv.Stop()
			}
		}
	}

	log.Printf("started: devices=%d backend=%s broker=%s heartbeat=%v payload=%s",
		len(drivers), cfg.Backend, cfg.Broker, cfg.Heartbeat, cfg.Payload)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(samples, drivers, publisher, publisher, tracker, cfg.Heartbeat, time.Now, ticker.C, sigCh)
}

func advertise(adv *discovery.Advertiser, httpAddr string, drivers []*indicator.Driver) error {
	port, err := discovery.PortFromAddr(httpAddr)
	if err != nil {
		return err
	}
	host, err := os.Hostname()
	if err != nil {
		host = "charge-indicator"
	}
	names := make([]string, len(drivers))
	for i, d := range drivers {
		names[i] = d.Name()
	}
	return adv.Advertise(discovery.Info{Instance: host, Port: port, Path: "/", Devices: names})
}

func runLoop(samples <-chan logic.Sample, drivers []*indicator.Driver, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	names := make([]string, len(drivers))
	for i, d := range drivers {
		names[i] = d.Name()
	}
	detector := logic.NewDetector(now(), names...)

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				event.Body = status.StatusEvent(tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case s := <-samples:
			t := now()
			if s.Failed {
				log.Printf("indicator: %s: failed to read STAT pins, LED unchanged", s.Device)
			} else if verbose {
				log.Printf("indicator: %s", formatSample(s))
			}

			for _, event := range detector.Process(s, t) {
				if event.Type != logic.EventReadFailure {
					log.Printf("event: %s %s (STAT1=%s STAT2=%s)", event.Device, event.Type, event.Stat1, event.Stat2)
				}
				if err := publisher.Publish(event); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
			}

			// Update status tracker for HTTP consumers
			if tracker != nil {
				tracker.Update(detector.Snapshot(), detector.IsBaselined())
			}

		case <-tick:
			t := now()
			if tracker != nil && mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}

			hbData := detector.CheckHeartbeat(t, heartbeat)
			if hbData == nil {
				continue
			}
			log.Printf("heartbeat: uptime=%v evaluations=%d led_on=%d led_off=%d read_failures=%d",
				hbData.Uptime, hbData.Counts.Evaluations, hbData.Counts.LEDOn, hbData.Counts.LEDOff, hbData.Counts.ReadFailures)
			for _, d := range drivers {
				if st := d.Stats(); st.WriteFailures > 0 || st.Dropped > 0 {
					log.Printf("heartbeat: %s write_failures=%d dropped_samples=%d", d.Name(), st.WriteFailures, st.Dropped)
				}
			}

			hbEvent := mqtt.SystemEvent{
				Timestamp: hbData.Timestamp,
				Event:     "HEARTBEAT",
			}
			if tracker != nil {
				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				tracker.Update(detector.Snapshot(), detector.IsBaselined())
				hbEvent.Body = status.StatusEvent(tracker.Snapshot(), "HEARTBEAT", "")
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}
	}
}

// printStates writes each driver's last evaluation, one line per device.
func printStates(w io.Writer, drivers []*indicator.Driver) {
	for _, d := range drivers {
		s, ok := d.Last()
		if !ok {
			s = logic.Sample{Device: d.Name(), Failed: true}
		}
		fmt.Fprintln(w, formatSample(s))
	}
}

// formatSample renders a sample the way the driver's diagnostics read.
func formatSample(s logic.Sample) string {
	if s.Failed {
		return fmt.Sprintf("%s: read failure", s.Device)
	}
	return fmt.Sprintf("%s: STAT1=%d STAT2=%d -> LED=%d", s.Device,
		gpio.Level(s.Stat1).Int(), gpio.Level(s.Stat2).Int(), gpio.Level(s.LED).Int())
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
