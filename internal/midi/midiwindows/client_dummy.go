//go:build !windows

package midiwindows

import (
	"errors"

	"github.com/leandrodaf/zynmixer/sdk/contracts"
)

// ErrMIDIUnavailable is returned by every device call off Windows.
var ErrMIDIUnavailable = errors.New("winmm MIDI is not available on this platform")

type noDevices struct {
	logger contracts.Logger
}

// NewMIDIClient returns a client whose device calls fail with ErrMIDIUnavailable.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	return &noDevices{logger: options.Logger}, nil
}

func (n *noDevices) ListDevices() ([]contracts.DeviceInfo, error) { return nil, ErrMIDIUnavailable }

func (n *noDevices) SelectDevice(deviceID int) error {
	n.logger.Warn("winmm device requested off Windows", n.logger.Field().Int("deviceID", deviceID))
	return ErrMIDIUnavailable
}

func (n *noDevices) StartCapture(chan contracts.MIDI) {}

func (n *noDevices) Stop() error { return nil }
