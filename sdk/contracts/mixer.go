package contracts

import "errors"

// Failure is returned by allocating calls when no index is available.
const Failure = -1

const (
	// DefaultMaxChannels is the strip capacity, main bus included.
	DefaultMaxChannels = 32
	// DefaultLevel is the fader position of a fresh strip.
	DefaultLevel = 0.8
	// DefaultReturnLevel is the gain applied to a fresh send bus.
	DefaultReturnLevel = 1.0
	// DefaultDPMDecay is the peak meter release factor.
	DefaultDPMDecay = 0.9
	// DPMFloor is the level reported by idle or silent meters, in dBFS.
	DPMFloor = -200.0
	// MainStrip is the index of the main mix bus.
	MainStrip = 0
)

// ErrUnknownControl is returned when a control symbol cannot be parsed.
var ErrUnknownControl = errors.New("unknown control symbol")

// SendMode selects where a send taps its strip.
type SendMode uint8

const (
	PostFader SendMode = iota
	PreFader
)

// Valid reports whether m is a known send mode.
func (m SendMode) Valid() bool {
	return m == PostFader || m == PreFader
}

func (m SendMode) String() string {
	switch m {
	case PostFader:
		return "post"
	case PreFader:
		return "pre"
	}
	return "invalid"
}

// Leg selects one side of a stereo strip.
type Leg uint8

const (
	LegA Leg = iota
	LegB
)

// BusKind tags which mixer instance produced a notification.
type BusKind uint8

const (
	// ChannelBus is the mixer serving processing chains.
	ChannelBus BusKind = iota
	// MainBus is the mixer serving mix buses.
	MainBus
)

func (k BusKind) String() string {
	if k == MainBus {
		return "main"
	}
	return "channel"
}

// ParseBusKind accepts "channel" or "main" (or the empty string for channel).
func ParseBusKind(s string) (BusKind, bool) {
	switch s {
	case "", "channel", "channels":
		return ChannelBus, true
	case "main", "mixbus":
		return MainBus, true
	}
	return ChannelBus, false
}

// DPMState is one strip's meter reading, levels in dBFS.
type DPMState struct {
	PeakA float32
	PeakB float32
	HoldA float32
	HoldB float32
	Mono  bool
}

// IdleDPMState is what a strip without active metering reports.
var IdleDPMState = DPMState{PeakA: DPMFloor, PeakB: DPMFloor, HoldA: DPMFloor, HoldB: DPMFloor}

// Notification describes one committed parameter write.
type Notification struct {
	Bus     BusKind
	Strip   int
	Control Control
	Value   float64
}

// Symbol returns the control symbol of the notification.
func (n Notification) Symbol() string {
	return n.Control.Symbol()
}

// Subscription receives notifications until closed.
type Subscription interface {
	ID() string
	C() <-chan Notification
	// Dropped counts notifications discarded because the buffer was full.
	Dropped() uint64
	Close()
}

// TopologyObserver is told about strips and sends as they come and go.
// Calls happen on the control thread, outside the mixer's locks.
type TopologyObserver interface {
	StripAdded(strip int)
	StripRemoved(strip int)
	SendAdded(send int)
	SendRemoved(send int)
}

// Mixer is the control API of a mixer engine. Calls with a handle that is not
// currently allocated read as the parameter default and write nothing.
type Mixer interface {
	ID() string
	Name() string
	Bus() BusKind

	MaxChannels() int
	MaxSends() int
	AddStrip() int
	RemoveStrip(strip int) bool
	IsStrip(strip int) bool
	StripCount() int
	Strips() []int
	AddSend() int
	RemoveSend(send int) bool
	IsSend(send int) bool
	SendCount() int
	Sends() []int

	SetLevel(strip int, level float64)
	Level(strip int) float64
	SetBalance(strip int, balance float64)
	Balance(strip int) float64
	SetMute(strip int, mute bool)
	Mute(strip int) bool
	ToggleMute(strip int)
	SetSolo(strip int, solo bool)
	Solo(strip int) bool
	ToggleSolo(strip int)
	GlobalSolo() bool
	SetMono(strip int, mono bool)
	Mono(strip int) bool
	ToggleMono(strip int)
	SetPhase(strip int, phase bool)
	Phase(strip int) bool
	TogglePhase(strip int)
	SetMS(strip int, ms bool)
	MS(strip int) bool
	ToggleMS(strip int)
	SetNormalise(strip int, normalise bool)
	Normalise(strip int) bool

	SetSend(strip, send int, level float64)
	Send(strip, send int) float64
	SetSendMode(strip, send int, mode SendMode)
	SendMode(strip, send int) SendMode
	SetReturnLevel(send int, level float64)
	ReturnLevel(send int) float64

	SetControl(strip int, c Control, value float64)
	ControlValue(strip int, c Control) float64

	EnableDPM(start, end int, enable bool)
	DPM(strip int, leg Leg) float32
	DPMHold(strip int, leg Leg) float32
	DPMStates(start, end int) []DPMState

	Reset()
	Subscribe(buffer int) Subscription
	Close() error
}
