//go:build windows
// +build windows

package midiwindows

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/leandrodaf/zynmixer/sdk/contracts"
	"golang.org/x/sys/windows"
)

type hMIDIIn windows.Handle

const (
	callbackFunction = 0x00030000
	midiIOStatus     = 0x00000020
)

const (
	mimOpen      = 0x3C1
	mimClose     = 0x3C2
	mimData      = 0x3C3
	mimError     = 0x3C5
	mimLongError = 0x3C6
	mimMoreData  = 0x3CC
)

var (
	ErrNoMIDIDevices     = errors.New("no MIDI devices found")
	ErrInvalidMIDIDevice = errors.New("invalid MIDI device")
	ErrNotConnected      = errors.New("no MIDI device selected")
)

type midiInCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	dwSupport      uint32
}

var (
	winmm                = windows.NewLazySystemDLL("winmm.dll")
	procMidiInGetNumDevs = winmm.NewProc("midiInGetNumDevs")
	procMidiInGetDevCaps = winmm.NewProc("midiInGetDevCapsW")
	procMidiInOpen       = winmm.NewProc("midiInOpen")
	procMidiInStart      = winmm.NewProc("midiInStart")
	procMidiInStop       = winmm.NewProc("midiInStop")
	procMidiInClose      = winmm.NewProc("midiInClose")
)

// Callbacks are a scarce resource on Windows, so one trampoline serves every
// client and finds it through the instance id winmm hands back.
var (
	callbackOnce sync.Once
	callbackPtr  uintptr
	instances    sync.Map // uintptr -> *ClientMid
	nextInstance atomic.Uintptr
)

// ClientMid reads control surface messages from a winmm input device.
type ClientMid struct {
	logger       contracts.Logger
	filter       *contracts.MIDIEventFilter
	eventChannel atomic.Pointer[chan contracts.MIDI]
	instance     uintptr

	mu     sync.Mutex
	handle hMIDIIn
	open   bool
}

// NewMIDIClient creates a winmm input client.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	callbackOnce.Do(func() { callbackPtr = windows.NewCallback(midiInCallback) })

	m := &ClientMid{
		logger:   options.Logger,
		filter:   options.MIDIEventFilter,
		instance: nextInstance.Add(1),
	}
	instances.Store(m.instance, m)
	options.Logger.Info("winmm MIDI client created")
	return m, nil
}

// ListDevices lists the winmm input devices.
func (m *ClientMid) ListDevices() ([]contracts.DeviceInfo, error) {
	r0, _, _ := procMidiInGetNumDevs.Call()
	numDevices := uint32(r0)
	if numDevices == 0 {
		m.logger.Warn(ErrNoMIDIDevices.Error())
		return nil, ErrNoMIDIDevices
	}

	devices := make([]contracts.DeviceInfo, 0, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		var caps midiInCaps
		r1, _, _ := procMidiInGetDevCaps.Call(uintptr(i), uintptr(unsafe.Pointer(&caps)), unsafe.Sizeof(caps))
		if r1 != 0 {
			m.logger.Warn("failed to query MIDI device", m.logger.Field().Int("deviceID", int(i)))
			continue
		}
		name := windows.UTF16ToString(caps.szPname[:])
		devices = append(devices, contracts.DeviceInfo{
			Name:         name,
			EntityName:   name,
			Manufacturer: fmt.Sprintf("MID: %d PID: %d", caps.wMid, caps.wPid),
		})
	}
	return devices, nil
}

// SelectDevice opens a device, closing any previously opened one.
func (m *ClientMid) SelectDevice(deviceID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if deviceID < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMIDIDevice, deviceID)
	}
	if m.open {
		if err := m.closeLocked(); err != nil {
			return fmt.Errorf("failed to close previous MIDI device: %w", err)
		}
	}

	r1, _, err := procMidiInOpen.Call(
		uintptr(unsafe.Pointer(&m.handle)),
		uintptr(deviceID),
		callbackPtr,
		m.instance,
		uintptr(callbackFunction|midiIOStatus),
	)
	if r1 != 0 {
		return fmt.Errorf("%w: %d: %v", ErrInvalidMIDIDevice, deviceID, err)
	}
	m.open = true
	m.logger.Info("MIDI device connected", m.logger.Field().Int("deviceID", deviceID))
	return nil
}

// StartCapture starts the device and delivers events to eventChannel.
func (m *ClientMid) StartCapture(eventChannel chan contracts.MIDI) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open || m.handle == 0 {
		m.logger.Error(ErrNotConnected.Error())
		return
	}
	m.eventChannel.Store(&eventChannel)
	if r1, _, err := procMidiInStart.Call(uintptr(m.handle)); r1 != 0 {
		m.logger.Error("failed to start MIDI capture", m.logger.Field().Error("error", err))
		return
	}
	m.logger.Info("MIDI capture started")
}

func midiInCallback(hMidiIn uintptr, wMsg uint32, dwInstance uintptr, dwParam1 uintptr, dwParam2 uintptr) uintptr {
	v, ok := instances.Load(dwInstance)
	if !ok {
		return 0
	}
	m := v.(*ClientMid)

	switch wMsg {
	case mimOpen, mimClose, mimMoreData:
	case mimData:
		m.deliver(contracts.MIDI{
			Timestamp: uint64(time.Now().UnixNano()),
			Status:    byte(dwParam1),
			Data1:     byte(dwParam1 >> 8),
			Data2:     byte(dwParam1 >> 16),
		})
	case mimError, mimLongError:
		m.logger.Warn("invalid MIDI message received", m.logger.Field().Uint64("msg", uint64(wMsg)))
	}
	return 0
}

func (m *ClientMid) deliver(ev contracts.MIDI) {
	if !m.filter.Allows(ev.Status) {
		return
	}
	ch := m.eventChannel.Load()
	if ch == nil {
		return
	}
	select {
	case *ch <- ev:
	default:
		m.logger.Warn("event buffer full; dropping MIDI event")
	}
}

// Stop stops capture and closes the device.
func (m *ClientMid) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return nil
	}
	if err := m.closeLocked(); err != nil {
		return fmt.Errorf("failed to stop MIDI capture: %w", err)
	}
	m.logger.Info("MIDI capture stopped")
	return nil
}

func (m *ClientMid) closeLocked() error {
	m.eventChannel.Store(nil)
	if r1, _, err := procMidiInStop.Call(uintptr(m.handle)); r1 != 0 {
		return err
	}
	if r1, _, err := procMidiInClose.Call(uintptr(m.handle)); r1 != 0 {
		return err
	}
	m.open = false
	m.handle = 0
	return nil
}
