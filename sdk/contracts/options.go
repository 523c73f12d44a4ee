package contracts

// MIDICommand represents the types of MIDI commands for event filtering.
type MIDICommand byte

const (
	// NoteOff is the MIDI command for a Note Off event (0x80).
	NoteOff MIDICommand = 0x80
	// NoteOn is the MIDI command for a Note On event (0x90).
	NoteOn MIDICommand = 0x90
	// ControlChange is the MIDI command for a Control Change event (0xB0).
	ControlChange MIDICommand = 0xB0
)

// MIDIEventFilter allows users to specify which MIDI commands to capture.
type MIDIEventFilter struct {
	Commands []MIDICommand // List of MIDI commands to filter.
}

// Allows reports whether the filter lets the given status byte through.
// A nil filter allows everything.
func (f *MIDIEventFilter) Allows(status byte) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Commands {
		if status&0xF0 == byte(c) {
			return true
		}
	}
	return false
}

// CoreMIDIConfig holds configuration for CoreMIDI.
type CoreMIDIConfig struct {
	ClientName string // Name of the MIDI client.
}

// ClientOptions holds the configuration shared by the SDK factories.
type ClientOptions struct {
	Logger          Logger           // Logger for logging events and errors.
	LogLevel        LogLevel         // Level of logging to use.
	LogFilePath     string           // File path for logging if file logging is enabled.
	MIDIEventFilter *MIDIEventFilter // Optional filter for MIDI events to capture.
	CoreMIDIConfig  *CoreMIDIConfig  // Configuration specific to CoreMIDI.

	Name        string  // Mixer instance name.
	BusKind     BusKind // Which bus family the mixer instance serves.
	MaxChannels int     // Strip capacity, main bus included.
	MaxSends    int     // Send capacity.
	DPMDecay    float64 // Peak meter release factor applied every damping period.
}

// Option is a function that modifies ClientOptions.
type Option func(*ClientOptions)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(opts *ClientOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ClientOptions) {
		opts.LogLevel = level
	}
}

// WithLogFile sends log output to the given file.
func WithLogFile(path string) Option {
	return func(opts *ClientOptions) {
		opts.LogFilePath = path
	}
}

// WithMIDIEventFilter sets the MIDI event filter for the MIDI client.
func WithMIDIEventFilter(filter MIDIEventFilter) Option {
	return func(opts *ClientOptions) {
		opts.MIDIEventFilter = &filter
	}
}

// WithCoreMIDIConfig sets the CoreMIDI configuration for the MIDI client.
func WithCoreMIDIConfig(config CoreMIDIConfig) Option {
	return func(opts *ClientOptions) {
		opts.CoreMIDIConfig = &config
	}
}

// WithName names the mixer instance.
func WithName(name string) Option {
	return func(opts *ClientOptions) {
		opts.Name = name
	}
}

// WithBusKind selects whether the mixer serves channel strips or mix buses.
func WithBusKind(kind BusKind) Option {
	return func(opts *ClientOptions) {
		opts.BusKind = kind
	}
}

// WithMaxChannels sets the strip capacity, main bus included.
func WithMaxChannels(n int) Option {
	return func(opts *ClientOptions) {
		opts.MaxChannels = n
	}
}

// WithMaxSends sets the send capacity.
func WithMaxSends(n int) Option {
	return func(opts *ClientOptions) {
		opts.MaxSends = n
	}
}

// WithDPMDecay sets the peak meter release factor, in (0,1).
func WithDPMDecay(decay float64) Option {
	return func(opts *ClientOptions) {
		opts.DPMDecay = decay
	}
}
