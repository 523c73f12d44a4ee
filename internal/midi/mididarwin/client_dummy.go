//go:build !darwin

package mididarwin

import (
	"errors"

	"github.com/leandrodaf/zynmixer/sdk/contracts"
)

// ErrMIDIUnavailable is returned by every device call off macOS.
var ErrMIDIUnavailable = errors.New("CoreMIDI is not available on this platform")

// unavailable stands in for the CoreMIDI client so that callers can build
// and select a surface source on any system.
type unavailable struct {
	log contracts.Logger
}

func NewMIDIClient(options *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	options.Logger.Debug("CoreMIDI unavailable, device input disabled")
	return unavailable{log: options.Logger}, nil
}

func (u unavailable) ListDevices() ([]contracts.DeviceInfo, error) {
	return nil, ErrMIDIUnavailable
}

func (u unavailable) SelectDevice(id int) error {
	u.log.Warn("cannot select a CoreMIDI source here", u.log.Field().Int("device", id))
	return ErrMIDIUnavailable
}

// StartCapture never delivers anything.
func (u unavailable) StartCapture(chan contracts.MIDI) {}

func (u unavailable) Stop() error { return nil }
