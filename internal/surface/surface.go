// Package surface maps MIDI controllers and notes from a control surface onto
// mixer controls.
package surface

import (
	"context"
	"fmt"

	"github.com/leandrodaf/zynmixer/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"go.uber.org/multierr"
)

// DefaultBuffer is the capture channel size used by Run when none is given.
const DefaultBuffer = 64

// Surface applies incoming MIDI messages to mixers according to its rules.
type Surface struct {
	logger   contracts.Logger
	mixers   map[contracts.BusKind]contracts.Mixer
	bindings []binding
}

// New compiles rules against the given mixers. Rules that target a mixer
// which was not supplied are rejected.
func New(logger contracts.Logger, rules []Rule, mixers ...contracts.Mixer) (*Surface, error) {
	s := &Surface{
		logger: logger,
		mixers: make(map[contracts.BusKind]contracts.Mixer, len(mixers)),
	}
	for _, m := range mixers {
		s.mixers[m.Bus()] = m
	}

	var errs error
	for _, r := range rules {
		b, err := compile(r)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if _, ok := s.mixers[b.bus]; !ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s: no %s mixer", ErrInvalidRule, r.label(), b.bus))
			continue
		}
		s.bindings = append(s.bindings, b)
	}
	if errs != nil {
		return nil, errs
	}
	logger.Info("control surface ready", logger.Field().Int("rules", len(s.bindings)))
	return s, nil
}

// HandleEvent applies a captured event. It reports whether any rule matched.
func (s *Surface) HandleEvent(ev contracts.MIDI) bool {
	return s.Handle(midi.Message(ev.Bytes()))
}

// Handle applies a raw MIDI message. It reports whether any rule matched.
func (s *Surface) Handle(msg midi.Message) bool {
	var channel, number, value uint8
	note, pressed := false, false

	switch {
	case msg.GetControlChange(&channel, &number, &value):
		pressed = value >= 64
	case msg.GetNoteOn(&channel, &number, &value):
		note, pressed = true, value > 0
	case msg.GetNoteOff(&channel, &number, &value):
		note, value = true, 0
	default:
		return false
	}

	matched := false
	for _, b := range s.bindings {
		if !b.matches(note, channel, number) {
			continue
		}
		matched = true
		s.apply(b, value, pressed)
	}
	return matched
}

func (s *Surface) apply(b binding, value uint8, pressed bool) {
	m := s.mixers[b.bus]
	switch {
	case b.toggle:
		if !pressed {
			return
		}
		m.SetControl(b.rule.Strip, b.control, 1-m.ControlValue(b.rule.Strip, b.control))
	case b.note && !b.control.Param.Boolean():
		// Notes only carry a level while held.
		if !pressed {
			return
		}
		m.SetControl(b.rule.Strip, b.control, scale(b.control, value))
	case b.note:
		m.SetControl(b.rule.Strip, b.control, boolValue(pressed))
	default:
		m.SetControl(b.rule.Strip, b.control, scale(b.control, value))
	}
	s.logger.Debug("control surface event applied",
		s.logger.Field().String("rule", b.rule.label()),
		s.logger.Field().Uint8("value", value))
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// Run captures events from src and applies them until ctx is done, then
// stops the source.
func (s *Surface) Run(ctx context.Context, src contracts.MIDISource, buffer int) error {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	events := make(chan contracts.MIDI, buffer)
	src.StartCapture(events)
	for {
		select {
		case <-ctx.Done():
			return src.Stop()
		case ev := <-events:
			if !s.HandleEvent(ev) {
				s.logger.Debug("unmapped MIDI event",
					s.logger.Field().Uint8("status", ev.Status),
					s.logger.Field().Uint8("data1", ev.Data1))
			}
		}
	}
}
