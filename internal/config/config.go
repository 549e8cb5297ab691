// Package config loads the daemon's YAML device list.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/charge-indicator/internal/gpio"
)

// Backends and payload formats accepted in the config file.
const (
	BackendCdev   = "cdev"
	BackendPeriph = "periph"

	PayloadJSON = "json"
	PayloadCBOR = "cbor"
)

// DefaultChip is used for lines that give an offset without a chip.
const DefaultChip = "gpiochip0"

// Config is the daemon configuration.
type Config struct {
	Backend   string        `yaml:"backend"`
	Broker    string        `yaml:"broker"`
	HTTP      string        `yaml:"http"`
	Heartbeat time.Duration `yaml:"heartbeat"`
	Payload   string        `yaml:"payload"`
	MDNS      bool          `yaml:"mdns"`
	Devices   []Device      `yaml:"devices"`
}

// Device is one indicator: an LED and the two status lines that drive it.
type Device struct {
	Name  string    `yaml:"name"`
	LED   PinConfig `yaml:"led"`
	Stat1 PinConfig `yaml:"stat1"`
	Stat2 PinConfig `yaml:"stat2"`
}

// PinConfig locates a line. cdev uses chip+offset, periph uses name.
type PinConfig struct {
	Chip      string `yaml:"chip"`
	Offset    *int   `yaml:"offset"`
	Name      string `yaml:"name"`
	ActiveLow bool   `yaml:"active_low"`
	Pull      string `yaml:"pull"`
}

// Default returns the configuration used for fields the file leaves out.
func Default() Config {
	return Config{
		Backend:   BackendCdev,
		Broker:    "tcp://localhost:1883",
		HTTP:      ":8080",
		Heartbeat: 15 * time.Minute,
		Payload:   PayloadJSON,
	}
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML config data. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config and returns every problem found.
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendCdev, BackendPeriph:
	default:
		errs = append(errs, fmt.Errorf("backend: unknown value %q", c.Backend))
	}
	switch c.Payload {
	case PayloadJSON, PayloadCBOR:
	default:
		errs = append(errs, fmt.Errorf("payload: unknown value %q", c.Payload))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("heartbeat: must not be negative"))
	}

	if len(c.Devices) == 0 {
		errs = append(errs, errors.New("devices: at least one device is required"))
	}

	names := make(map[string]bool)
	for i, d := range c.Devices {
		field := fmt.Sprintf("devices[%d]", i)
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name: required", field))
		} else if names[d.Name] {
			errs = append(errs, fmt.Errorf("%s.name: duplicate %q", field, d.Name))
		}
		names[d.Name] = true

		used := make(map[string]string)
		for _, p := range []struct {
			key string
			pin PinConfig
		}{{"led", d.LED}, {"stat1", d.Stat1}, {"stat2", d.Stat2}} {
			if err := p.pin.validate(c.Backend); err != nil {
				errs = append(errs, fmt.Errorf("%s.%s: %w", field, p.key, err))
				continue
			}
			k := p.pin.key(c.Backend)
			if other, ok := used[k]; ok {
				errs = append(errs, fmt.Errorf("%s.%s: line %s already used by %s", field, p.key, k, other))
			}
			used[k] = p.key
		}
	}

	return errors.Join(errs...)
}

func (p PinConfig) validate(backend string) error {
	if backend == BackendPeriph && p.Name == "" {
		return errors.New("name required for periph backend")
	}
	if p.Name == "" && p.Offset == nil {
		return errors.New("offset or name required")
	}
	if backend == BackendCdev && p.Offset == nil {
		return errors.New("offset required for cdev backend")
	}
	if p.Offset != nil && *p.Offset < 0 {
		return fmt.Errorf("offset %d out of range", *p.Offset)
	}
	if _, err := parsePull(p.Pull); err != nil {
		return err
	}
	return nil
}

// key identifies the physical line the backend will open.
func (p PinConfig) key(backend string) string {
	if backend == BackendPeriph {
		return p.Name
	}
	chip := p.Chip
	if chip == "" {
		chip = DefaultChip
	}
	return fmt.Sprintf("%s:%d", chip, *p.Offset)
}

func parsePull(s string) (gpio.Pull, error) {
	switch s {
	case "", "none":
		return gpio.PullNone, nil
	case "up":
		return gpio.PullUp, nil
	case "down":
		return gpio.PullDown, nil
	default:
		return gpio.PullNone, fmt.Errorf("pull: unknown value %q", s)
	}
}

// Line converts a validated PinConfig to a gpio.Line.
func (p PinConfig) Line() gpio.Line {
	l := gpio.Line{Chip: p.Chip, Name: p.Name, ActiveLow: p.ActiveLow}
	if l.Chip == "" {
		l.Chip = DefaultChip
	}
	if p.Offset != nil {
		l.Offset = *p.Offset
	}
	l.Pull, _ = parsePull(p.Pull)
	return l
}
