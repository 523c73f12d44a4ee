package surface

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/zynmixer/internal/engine"
	"github.com/leandrodaf/zynmixer/internal/logger"
	"github.com/leandrodaf/zynmixer/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newMixers(t *testing.T) (contracts.Logger, *engine.Engine, *engine.Engine) {
	t.Helper()
	core, _ := observer.New(zapcore.DebugLevel)
	log := logger.NewWithCore(core)
	chans, err := engine.New(engine.Config{Name: "chans", MaxChannels: 4, MaxSends: 2, Logger: log})
	if err != nil {
		t.Fatal(err)
	}
	buses, err := engine.New(engine.Config{Name: "buses", Bus: contracts.MainBus, MaxChannels: 4, MaxSends: 2, Logger: log})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = chans.Close()
		_ = buses.Close()
	})
	return log, chans, buses
}

func TestNewRejectsInvalidRules(t *testing.T) {
	log, chans, _ := newMixers(t)
	rules := []Rule{
		{Type: "pitch", Number: 1, Control: "level"},
		{Type: "cc", Number: 200, Control: "volume"},
		{Type: "cc", Number: 1, Control: "level", Action: "toggle"},
		{Type: "note", Number: 1, Control: "mute", Mixer: "main"},
	}
	_, err := New(log, rules, chans)
	if !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("error = %v, want ErrInvalidRule", err)
	}
	// type; number and control; toggle on a level; missing main mixer
	if got := len(multierr.Errors(err)); got != 5 {
		t.Errorf("got %d errors, want 5: %v", got, err)
	}
}

func TestControlChangeScaling(t *testing.T) {
	log, chans, _ := newMixers(t)
	s1 := chans.AddStrip()
	k := chans.AddSend()
	surf, err := New(log, []Rule{
		{Type: "cc", Number: 7, Strip: s1, Control: "level"},
		{Type: "cc", Number: 10, Strip: s1, Control: "balance"},
		{Type: "cc", Number: 20, Strip: s1, Control: "mono"},
		{Type: "cc", Number: 21, Strip: s1, Control: "send_00"},
	}, chans)
	if err != nil {
		t.Fatal(err)
	}
	if k != 0 {
		t.Fatalf("AddSend() = %d", k)
	}

	tests := []struct {
		cc, value uint8
		read      func() float64
		want      float64
	}{
		{7, 127, func() float64 { return chans.Level(s1) }, 1},
		{7, 0, func() float64 { return chans.Level(s1) }, 0},
		{10, 64, func() float64 { return chans.Balance(s1) }, 0},
		{10, 127, func() float64 { return chans.Balance(s1) }, 1},
		{10, 0, func() float64 { return chans.Balance(s1) }, -1},
		{20, 100, func() float64 { return boolValue(chans.Mono(s1)) }, 1},
		{20, 10, func() float64 { return boolValue(chans.Mono(s1)) }, 0},
		{21, 127, func() float64 { return chans.Send(s1, k) }, 1},
	}
	for _, tt := range tests {
		if !surf.Handle(midi.ControlChange(0, tt.cc, tt.value)) {
			t.Fatalf("cc %d not matched", tt.cc)
		}
		if got := tt.read(); got != tt.want {
			t.Errorf("cc %d value %d: got %v, want %v", tt.cc, tt.value, got, tt.want)
		}
	}
}

func TestToggleRules(t *testing.T) {
	log, chans, buses := newMixers(t)
	s1 := chans.AddStrip()
	surf, err := New(log, []Rule{
		{Type: "note", Number: 60, Strip: s1, Control: "mute", Action: "toggle"},
		{Type: "cc", Number: 30, Mixer: "main", Strip: 0, Control: "solo", Action: "toggle"},
	}, chans, buses)
	if err != nil {
		t.Fatal(err)
	}

	surf.Handle(midi.NoteOn(0, 60, 100))
	if !chans.Mute(s1) {
		t.Fatal("note on did not toggle mute")
	}
	surf.Handle(midi.NoteOff(0, 60))
	if !chans.Mute(s1) {
		t.Error("note off toggled mute")
	}
	surf.Handle(midi.NoteOn(0, 60, 1))
	if chans.Mute(s1) {
		t.Error("second note on did not toggle mute back")
	}

	surf.Handle(midi.ControlChange(3, 30, 127))
	surf.Handle(midi.ControlChange(3, 30, 0))
	if !buses.Solo(0) {
		t.Error("cc button did not toggle main solo on the main mixer")
	}
	if chans.Solo(0) {
		t.Error("rule leaked into the channel mixer")
	}
}

func TestNoteSetIsMomentary(t *testing.T) {
	log, chans, _ := newMixers(t)
	s1 := chans.AddStrip()
	surf, err := New(log, []Rule{{Type: "note", Number: 36, Strip: s1, Control: "phase"}}, chans)
	if err != nil {
		t.Fatal(err)
	}
	surf.Handle(midi.NoteOn(0, 36, 90))
	if !chans.Phase(s1) {
		t.Error("held note did not set phase")
	}
	surf.Handle(midi.NoteOff(0, 36))
	if chans.Phase(s1) {
		t.Error("released note did not clear phase")
	}
}

func TestChannelFilter(t *testing.T) {
	log, chans, _ := newMixers(t)
	s1 := chans.AddStrip()
	surf, err := New(log, []Rule{{Type: "cc", Channel: 2, Number: 7, Strip: s1, Control: "level"}}, chans)
	if err != nil {
		t.Fatal(err)
	}
	if surf.Handle(midi.ControlChange(0, 7, 0)) {
		t.Error("rule for channel 2 matched channel 1")
	}
	if !surf.Handle(midi.ControlChange(1, 7, 0)) || chans.Level(s1) != 0 {
		t.Error("rule for channel 2 did not match channel 2")
	}
	if surf.Handle(midi.ProgramChange(1, 7)) {
		t.Error("program change matched a cc rule")
	}
}

type fakeSource struct {
	mu      sync.Mutex
	ch      chan contracts.MIDI
	stopped bool
}

func (f *fakeSource) StartCapture(ch chan contracts.MIDI) {
	f.mu.Lock()
	f.ch = ch
	f.mu.Unlock()
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSource) channel() chan contracts.MIDI {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ch
}

func TestRunAppliesCapturedEvents(t *testing.T) {
	log, chans, _ := newMixers(t)
	s1 := chans.AddStrip()
	surf, err := New(log, []Rule{{Type: "cc", Number: 7, Strip: s1, Control: "level"}}, chans)
	if err != nil {
		t.Fatal(err)
	}

	src := &fakeSource{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- surf.Run(ctx, src, 4) }()

	deadline := time.Now().Add(2 * time.Second)
	for src.channel() == nil {
		if time.Now().After(deadline) {
			t.Fatal("capture never started")
		}
		time.Sleep(time.Millisecond)
	}
	src.channel() <- contracts.MIDI{Status: 0xB0, Data1: 7, Data2: 127}
	for chans.Level(s1) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("event not applied")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	if !src.stopped {
		t.Error("source not stopped")
	}
}
