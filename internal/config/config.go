// Package config loads the daemon configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/leandrodaf/zynmixer/internal/oscbridge"
	"github.com/leandrodaf/zynmixer/internal/surface"
	"github.com/leandrodaf/zynmixer/sdk/contracts"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Surface input sources.
const (
	SourceNone   = "none"
	SourceJACK   = "jack"
	SourceDevice = "device"
)

// DefaultAddressTemplate builds OSC addresses from .Bus, .Strip and .Symbol.
const DefaultAddressTemplate = oscbridge.DefaultAddress

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Mixers  []MixerConfig `yaml:"mixers"`
	OSC     OSCConfig     `yaml:"osc"`
	Surface SurfaceConfig `yaml:"surface"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type MixerConfig struct {
	Name        string     `yaml:"name"`
	Bus         string     `yaml:"bus"`
	MaxChannels int        `yaml:"max_channels"`
	MaxSends    int        `yaml:"max_sends"`
	DPMDecay    float64    `yaml:"dpm_decay"`
	Strips      int        `yaml:"strips"` // channel strips created at startup
	Sends       int        `yaml:"sends"`  // sends created at startup
	Metering    bool       `yaml:"metering"`
	JACK        JACKConfig `yaml:"jack"`
}

type JACKConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ClientName  string `yaml:"client_name"`
	StartServer bool   `yaml:"start_server"`
	MIDIInput   bool   `yaml:"midi_input"`
	LockMemory  bool   `yaml:"lock_memory"`
}

type OSCConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Port            int           `yaml:"port"`
	MaxClients      int           `yaml:"max_clients"`
	Clients         []string      `yaml:"clients"`
	MeterInterval   time.Duration `yaml:"meter_interval"`
	AddressTemplate string        `yaml:"address_template"`
}

type SurfaceConfig struct {
	Source string         `yaml:"source"`
	Device int            `yaml:"device"`
	Buffer int            `yaml:"buffer"`
	Rules  []surface.Rule `yaml:"rules"`
}

// Default returns the configuration used when no file is given: a channel
// mixer and a bus mixer on JACK, OSC feedback on port 1370.
func Default() *Config {
	cfg := &Config{
		Log: LogConfig{Level: "info"},
		Mixers: []MixerConfig{
			{Name: "zynmixer_chans", Bus: "channel", JACK: JACKConfig{Enabled: true, MIDIInput: true}},
			{Name: "zynmixer_buses", Bus: "main", JACK: JACKConfig{Enabled: true}},
		},
		OSC: OSCConfig{
			Enabled:         true,
			Port:            oscbridge.DefaultPort,
			MaxClients:      oscbridge.DefaultMaxClients,
			MeterInterval:   oscbridge.DefaultMeterInterval,
			AddressTemplate: DefaultAddressTemplate,
		},
		Surface: SurfaceConfig{Source: SourceNone, Buffer: surface.DefaultBuffer},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates a YAML file. Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Mixers {
		m := &c.Mixers[i]
		if m.MaxChannels == 0 {
			m.MaxChannels = contracts.DefaultMaxChannels
		}
		if m.MaxSends == 0 {
			m.MaxSends = m.MaxChannels
		}
		if m.DPMDecay == 0 {
			m.DPMDecay = contracts.DefaultDPMDecay
		}
		if m.JACK.ClientName == "" {
			m.JACK.ClientName = m.Name
		}
	}
	if c.OSC.AddressTemplate == "" {
		c.OSC.AddressTemplate = DefaultAddressTemplate
	}
	if c.Surface.Source == "" {
		c.Surface.Source = SourceNone
	}
	if c.Surface.Buffer == 0 {
		c.Surface.Buffer = surface.DefaultBuffer
	}
}

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var err error
	fail := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}

	if _, lerr := contracts.ParseLogLevel(c.Log.Level); lerr != nil {
		fail("log: %v", lerr)
	}

	if len(c.Mixers) == 0 {
		fail("mixers: at least one mixer is required")
	}
	names := map[string]bool{}
	buses := map[contracts.BusKind]bool{}
	for i, m := range c.Mixers {
		if m.Name == "" {
			fail("mixers[%d]: name is required", i)
		} else if names[m.Name] {
			fail("mixers[%d]: duplicate name %q", i, m.Name)
		}
		names[m.Name] = true

		bus, ok := contracts.ParseBusKind(m.Bus)
		if !ok {
			fail("mixers[%d]: unknown bus %q", i, m.Bus)
		} else if buses[bus] {
			fail("mixers[%d]: second %s mixer", i, bus)
		}
		buses[bus] = true

		if m.MaxChannels < 1 {
			fail("mixers[%d]: max_channels %d must be positive", i, m.MaxChannels)
		}
		if m.MaxSends < 0 {
			fail("mixers[%d]: max_sends %d is negative", i, m.MaxSends)
		}
		if m.DPMDecay <= 0 || m.DPMDecay >= 1 {
			fail("mixers[%d]: dpm_decay %v outside (0,1)", i, m.DPMDecay)
		}
		if m.Strips < 0 || m.Strips >= m.MaxChannels {
			fail("mixers[%d]: strips %d does not fit max_channels %d", i, m.Strips, m.MaxChannels)
		}
		if m.Sends < 0 || m.Sends > m.MaxSends {
			fail("mixers[%d]: sends %d does not fit max_sends %d", i, m.Sends, m.MaxSends)
		}
	}

	if c.OSC.Enabled {
		if c.OSC.Port < 1 || c.OSC.Port > 65535 {
			fail("osc: port %d out of range", c.OSC.Port)
		}
		if c.OSC.MaxClients < 1 {
			fail("osc: max_clients must be positive")
		}
		if len(c.OSC.Clients) > c.OSC.MaxClients {
			fail("osc: %d clients configured, max_clients is %d", len(c.OSC.Clients), c.OSC.MaxClients)
		}
		if c.OSC.MeterInterval <= 0 {
			fail("osc: meter_interval must be positive")
		}
		if _, terr := template.New("address").Funcs(sprig.TxtFuncMap()).Parse(c.OSC.AddressTemplate); terr != nil {
			fail("osc: address_template: %v", terr)
		}
	}

	switch c.Surface.Source {
	case SourceNone, SourceJACK, SourceDevice:
	default:
		fail("surface: unknown source %q", c.Surface.Source)
	}
	if c.Surface.Source == SourceJACK && !c.jackMIDIInput() {
		fail("surface: source jack needs a mixer with jack.midi_input enabled")
	}
	for _, r := range c.Surface.Rules {
		if rerr := r.Validate(); rerr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: surface: %v", ErrInvalidConfig, rerr))
		}
	}
	return err
}

func (c *Config) jackMIDIInput() bool {
	for _, m := range c.Mixers {
		if m.JACK.Enabled && m.JACK.MIDIInput {
			return true
		}
	}
	return false
}
