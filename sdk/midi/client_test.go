package midi

import (
	"errors"
	"runtime"
	"testing"

	"github.com/leandrodaf/zynmixer/internal/logger"
	"github.com/leandrodaf/zynmixer/sdk/contracts"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewClientUnsupportedOS(t *testing.T) {
	opts := applyDefaultOptions()
	if _, err := newClientFor("plan9", &opts); !errors.Is(err, ErrUnsupportedOS) {
		t.Errorf("error = %v, want ErrUnsupportedOS", err)
	}
}

func TestApplyDefaultOptions(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	log := logger.NewWithCore(core)

	opts := applyDefaultOptions(contracts.WithLogger(log))
	if opts.Logger != log {
		t.Error("supplied logger replaced")
	}
	if opts.CoreMIDIConfig.ClientName != DefaultClientName {
		t.Errorf("ClientName = %q", opts.CoreMIDIConfig.ClientName)
	}
	if !opts.MIDIEventFilter.Allows(0xB0) || opts.MIDIEventFilter.Allows(0xE0) {
		t.Error("default filter should pass controllers and reject pitch bend")
	}

	custom := applyDefaultOptions(
		contracts.WithLogger(log),
		contracts.WithCoreMIDIConfig(contracts.CoreMIDIConfig{ClientName: "desk"}),
		contracts.WithMIDIEventFilter(contracts.MIDIEventFilter{Commands: []contracts.MIDICommand{contracts.NoteOn}}),
	)
	if custom.CoreMIDIConfig.ClientName != "desk" || custom.MIDIEventFilter.Allows(0xB0) {
		t.Error("explicit options overridden by defaults")
	}
}

func TestDummyClientsOffPlatform(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	opts := applyDefaultOptions(contracts.WithLogger(logger.NewWithCore(core)))

	for goos := range clientInitializers {
		if goos == runtime.GOOS {
			continue
		}
		client, err := newClientFor(goos, &opts)
		if err != nil {
			t.Fatalf("%s: %v", goos, err)
		}
		if _, err := client.ListDevices(); err == nil {
			t.Errorf("%s dummy ListDevices returned no error", goos)
		}
		if err := client.SelectDevice(0); err == nil {
			t.Errorf("%s dummy SelectDevice returned no error", goos)
		}
		client.StartCapture(make(chan contracts.MIDI, 1))
		if err := client.Stop(); err != nil {
			t.Errorf("%s dummy Stop: %v", goos, err)
		}
	}
	if logs.FilterLevelExact(zapcore.WarnLevel).Len() == 0 {
		t.Error("dummy clients did not warn")
	}
}
