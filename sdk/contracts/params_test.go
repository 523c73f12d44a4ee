package contracts

import (
	"errors"
	"testing"
)

func TestControlSymbols(t *testing.T) {
	tests := []struct {
		control Control
		symbol  string
		display string
	}{
		{Ctrl(ParamLevel), "level", "Level"},
		{Ctrl(ParamMS), "ms", "M+S"},
		{Ctrl(ParamNormalise), "normalise", "Normalise"},
		{SendCtrl(ParamSend, 3), "send_03", "Send 03"},
		{SendCtrl(ParamSendMode, 12), "send_mode_12", "Send Mode 12"},
		{SendCtrl(ParamReturn, 0), "return_00", "Return 00"},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			if got := tt.control.Symbol(); got != tt.symbol {
				t.Errorf("Symbol() = %q, want %q", got, tt.symbol)
			}
			if got := tt.control.DisplayName(); got != tt.display {
				t.Errorf("DisplayName() = %q, want %q", got, tt.display)
			}
			parsed, err := ParseControl(tt.symbol)
			if err != nil {
				t.Fatalf("ParseControl(%q): %v", tt.symbol, err)
			}
			if parsed != tt.control {
				t.Errorf("ParseControl(%q) = %+v, want %+v", tt.symbol, parsed, tt.control)
			}
		})
	}
}

func TestParseControlRejectsUnknown(t *testing.T) {
	for _, symbol := range []string{"", "fader", "send", "send_", "send_x", "send_mode", "send_-1", "levels", "send_3", "send_+3", "send_003", "send_mode_7"} {
		if _, err := ParseControl(symbol); !errors.Is(err, ErrUnknownControl) {
			t.Errorf("ParseControl(%q) error = %v, want ErrUnknownControl", symbol, err)
		}
	}
}

func TestParamDefaults(t *testing.T) {
	if ParamLevel.Default() != DefaultLevel || ParamReturn.Default() != DefaultReturnLevel || ParamBalance.Default() != 0 {
		t.Error("unexpected parameter defaults")
	}
	if !ParamMute.Boolean() || ParamSend.Boolean() {
		t.Error("Boolean() misclassifies parameters")
	}
}

func TestSendModeAndBusKind(t *testing.T) {
	if !PreFader.Valid() || SendMode(2).Valid() {
		t.Error("SendMode.Valid() wrong")
	}
	if k, ok := ParseBusKind("mixbus"); !ok || k != MainBus || k.String() != "main" {
		t.Errorf("ParseBusKind(mixbus) = %v, %v", k, ok)
	}
	if _, ok := ParseBusKind("aux"); ok {
		t.Error("ParseBusKind accepted aux")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"":        InfoLevel,
		"debug":   DebugLevel,
		"WARN":    WarnLevel,
		"warning": WarnLevel,
		" error ": ErrorLevel,
		"fatal":   FatalLevel,
	}
	for in, want := range tests {
		got, err := ParseLogLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLogLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLogLevel("loud"); err == nil {
		t.Error("ParseLogLevel accepted an unknown level")
	}
}

func TestMIDIEventFilter(t *testing.T) {
	var none *MIDIEventFilter
	if !none.Allows(0x93) {
		t.Error("nil filter should allow everything")
	}
	f := &MIDIEventFilter{Commands: []MIDICommand{ControlChange}}
	if !f.Allows(0xB5) || f.Allows(0x90) {
		t.Error("filter does not match on the command nibble")
	}
	m := MIDI{Status: 0xB5, Data1: 7, Data2: 100}
	if m.Command() != ControlChange || m.Channel() != 5 || len(m.Bytes()) != 3 {
		t.Errorf("MIDI accessors wrong for %+v", m)
	}
}
