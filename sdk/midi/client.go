package midi

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/leandrodaf/zynmixer/internal/midi/mididarwin"
	"github.com/leandrodaf/zynmixer/internal/midi/midiwindows"
	"github.com/leandrodaf/zynmixer/sdk/contracts"
)

// ErrUnsupportedOS is returned when the operating system has no device MIDI client.
// On Linux, control input arrives through the JACK host instead.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// clientInitializers maps OS names to corresponding MIDI client initializers.
var clientInitializers = map[string]func(*contracts.ClientOptions) (contracts.ClientMIDI, error){
	"darwin":  mididarwin.NewMIDIClient,
	"windows": midiwindows.NewMIDIClient,
}

// NewClient initializes a MIDI client based on the current operating system.
func NewClient(opts *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	return newClientFor(runtime.GOOS, opts)
}

func newClientFor(goos string, opts *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	if initializer, exists := clientInitializers[goos]; exists {
		return initializer(opts)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, goos)
}
