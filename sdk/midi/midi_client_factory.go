package midi

import (
	"github.com/leandrodaf/zynmixer/sdk/contracts"
)

// NewMIDIClient creates a MIDI input client for the current operating system.
// Events it captures can drive a control surface.
func NewMIDIClient(opts ...contracts.Option) (contracts.ClientMIDI, error) {
	options := applyDefaultOptions(opts...)

	client, err := NewClient(&options)
	if err != nil {
		return nil, err
	}

	return client, nil
}
