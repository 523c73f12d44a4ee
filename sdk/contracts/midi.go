package contracts

// MIDI is a short (three byte) MIDI channel message captured from an input device.
type MIDI struct {
	Timestamp uint64 // Timestamp indicates the time the event occurred, in nanoseconds.
	Status    byte   // Status holds the command in the high nibble and the channel in the low nibble.
	Data1     byte   // Data1 is the note or controller number (0-127).
	Data2     byte   // Data2 is the velocity or controller value (0-127).
}

// Command returns the status byte without its channel nibble.
func (m MIDI) Command() MIDICommand {
	return MIDICommand(m.Status & 0xF0)
}

// Channel returns the zero based MIDI channel.
func (m MIDI) Channel() uint8 {
	return m.Status & 0x0F
}

// Bytes returns the raw message.
func (m MIDI) Bytes() []byte {
	return []byte{m.Status, m.Data1, m.Data2}
}

// DeviceInfo describes an input port offered by the platform MIDI client.
type DeviceInfo struct {
	Name         string
	Manufacturer string
	EntityName   string // owning entity on CoreMIDI, empty on winmm
}

// MIDISource delivers captured MIDI messages to a channel until stopped.
type MIDISource interface {
	StartCapture(eventChannel chan MIDI) // Starts capturing MIDI events and sends them to the specified channel.
	Stop() error                         // Stops capturing and releases resources.
}

// ClientMIDI defines an interface for MIDI input device operations.
type ClientMIDI interface {
	MIDISource
	ListDevices() ([]DeviceInfo, error) // Lists all available MIDI devices.
	SelectDevice(deviceID int) error    // Selects a MIDI device by its ID for communication.
}
