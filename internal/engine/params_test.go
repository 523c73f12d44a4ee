package engine

import (
	"math"
	"testing"

	"github.com/leandrodaf/zynmixer/sdk/contracts"
)

func TestLevelRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	s := e.AddStrip()

	for _, v := range []float64{0, 0.123456789, 0.5, 0.8, 1} {
		e.SetLevel(s, v)
		if got := e.Level(s); got != v {
			t.Errorf("Level() = %v after SetLevel(%v)", got, v)
		}
	}
}

func TestLevelClampsAndRejectsNaN(t *testing.T) {
	e, _ := newTestEngine(t)
	s := e.AddStrip()
	sub := e.Subscribe(8)

	e.SetLevel(s, 1.5)
	if got := e.Level(s); got != 1 {
		t.Errorf("Level() = %v, want 1", got)
	}
	e.SetLevel(s, -2)
	if got := e.Level(s); got != 0 {
		t.Errorf("Level() = %v, want 0", got)
	}
	e.SetLevel(s, math.NaN())
	if got := e.Level(s); got != 0 {
		t.Errorf("NaN changed level to %v", got)
	}
	if got := len(drain(sub)); got != 2 {
		t.Errorf("published %d notifications, want 2", got)
	}
}

func TestBalanceRejectsOutOfDomain(t *testing.T) {
	e, _ := newTestEngine(t)
	s := e.AddStrip()
	sub := e.Subscribe(8)

	e.SetBalance(s, -0.3)
	for _, bad := range []float64{-1.01, 1.01, math.NaN(), math.Inf(1)} {
		e.SetBalance(s, bad)
	}
	if got := e.Balance(s); got != -0.3 {
		t.Errorf("Balance() = %v, want -0.3", got)
	}
	if got := len(drain(sub)); got != 1 {
		t.Errorf("published %d notifications, want 1", got)
	}
}

func TestInvalidHandleIsSilent(t *testing.T) {
	e, _ := newTestEngine(t)
	sub := e.Subscribe(8)

	for _, strip := range []int{-1, 3, 99} {
		e.SetLevel(strip, 0.1)
		e.SetBalance(strip, 0.5)
		e.SetMute(strip, true)
		e.ToggleMute(strip)
		e.SetSolo(strip, true)
		e.ToggleSolo(strip)
		e.SetMono(strip, true)
		e.SetPhase(strip, true)
		e.SetMS(strip, true)
		e.SetNormalise(strip, true)
		e.SetSend(strip, 0, 0.4)
		e.SetSendMode(strip, 0, contracts.PreFader)

		if e.Level(strip) != contracts.DefaultLevel || e.Balance(strip) != 0 || e.Mute(strip) ||
			e.Solo(strip) || e.Mono(strip) || e.Phase(strip) || e.MS(strip) || e.Normalise(strip) {
			t.Errorf("strip %d: getters did not return defaults", strip)
		}
		if e.Send(strip, 0) != 0 || e.SendMode(strip, 0) != contracts.PostFader {
			t.Errorf("strip %d: send getters did not return defaults", strip)
		}
	}
	e.SetReturnLevel(2, 0.5)
	if e.ReturnLevel(2) != contracts.DefaultReturnLevel {
		t.Error("return level of unallocated send changed")
	}
	if got := drain(sub); len(got) != 0 {
		t.Errorf("invalid handles published %v", got)
	}
}

func TestToggleMuteTwice(t *testing.T) {
	e, _ := newTestEngine(t)
	s := e.AddStrip()
	sub := e.Subscribe(8)

	e.ToggleMute(s)
	e.ToggleMute(s)

	if e.Mute(s) {
		t.Error("mute not restored")
	}
	got := drain(sub)
	if len(got) != 2 {
		t.Fatalf("published %d notifications, want 2", len(got))
	}
	if got[0].Value != 1 || got[1].Value != 0 {
		t.Errorf("values = %v, %v; want 1, 0", got[0].Value, got[1].Value)
	}
	for _, n := range got {
		if n.Strip != s || n.Symbol() != "mute" || n.Bus != contracts.ChannelBus {
			t.Errorf("unexpected notification %+v", n)
		}
	}
}

func TestTogglesFlipFlags(t *testing.T) {
	e, _ := newTestEngine(t)
	s := e.AddStrip()

	tests := []struct {
		name   string
		toggle func(int)
		get    func(int) bool
	}{
		{"phase", e.TogglePhase, e.Phase},
		{"mono", e.ToggleMono, e.Mono},
		{"ms", e.ToggleMS, e.MS},
		{"solo", e.ToggleSolo, e.Solo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.toggle(s)
			if !tt.get(s) {
				t.Error("flag not set by first toggle")
			}
			tt.toggle(s)
			if tt.get(s) {
				t.Error("flag not cleared by second toggle")
			}
		})
	}
}

func TestNormaliseIgnoredOnMainBus(t *testing.T) {
	e, _ := newTestEngine(t)
	sub := e.Subscribe(4)

	e.SetNormalise(contracts.MainStrip, true)
	if e.Normalise(contracts.MainStrip) {
		t.Error("main bus normalised")
	}
	s := e.AddStrip()
	e.SetNormalise(s, true)
	if !e.Normalise(s) {
		t.Error("normalise not set on channel strip")
	}
	if got := drain(sub); len(got) != 1 || got[0].Strip != s {
		t.Errorf("notifications = %v", got)
	}
}

func TestSendParameters(t *testing.T) {
	e, _ := newTestEngine(t)
	s := e.AddStrip()
	k := e.AddSend()
	sub := e.Subscribe(8)

	e.SetSend(s, k, 2)
	if got := e.Send(s, k); got != 1 {
		t.Errorf("Send() = %v, want clamped 1", got)
	}
	e.SetSendMode(s, k, contracts.PreFader)
	e.SetSendMode(s, k, contracts.SendMode(7))
	if got := e.SendMode(s, k); got != contracts.PreFader {
		t.Errorf("SendMode() = %v", got)
	}
	e.SetSend(contracts.MainStrip, k, 0.5)
	if got := e.Send(contracts.MainStrip, k); got != 0 {
		t.Errorf("main bus feeds a send at %v", got)
	}
	e.SetSend(s, k+1, 0.5)

	got := drain(sub)
	if len(got) != 2 {
		t.Fatalf("notifications = %v", got)
	}
	if got[0].Symbol() != "send_00" || got[1].Symbol() != "send_mode_00" || got[1].Value != 1 {
		t.Errorf("notifications = %+v", got)
	}
}

func TestReturnLevel(t *testing.T) {
	e, _ := newTestEngine(t)
	k := e.AddSend()
	sub := e.Subscribe(4)

	if got := e.ReturnLevel(k); got != contracts.DefaultReturnLevel {
		t.Errorf("ReturnLevel() = %v", got)
	}
	e.SetReturnLevel(k, 0.25)
	if got := e.ReturnLevel(k); got != 0.25 {
		t.Errorf("ReturnLevel() = %v", got)
	}
	n := drain(sub)
	if len(n) != 1 || n[0].Strip != contracts.MainStrip || n[0].Symbol() != "return_00" {
		t.Errorf("notifications = %+v", n)
	}
}

func TestSetControlDispatch(t *testing.T) {
	e, _ := newTestEngine(t)
	s := e.AddStrip()
	k := e.AddSend()

	tests := []struct {
		symbol string
		value  float64
		want   float64
	}{
		{"level", 0.25, 0.25},
		{"balance", -0.5, -0.5},
		{"mute", 1, 1},
		{"solo", 1, 1},
		{"mono", 0.7, 1},
		{"phase", 1, 1},
		{"ms", 0.2, 0},
		{"normalise", 1, 1},
		{"send_00", 0.6, 0.6},
		{"send_mode_00", 1, 1},
		{"return_00", 0.5, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			c, err := contracts.ParseControl(tt.symbol)
			if err != nil {
				t.Fatalf("ParseControl: %v", err)
			}
			if c.Param.Indexed() && c.Send != k {
				t.Fatalf("send index = %d", c.Send)
			}
			e.SetControl(s, c, tt.value)
			if got := e.ControlValue(s, c); got != tt.want {
				t.Errorf("ControlValue() = %v, want %v", got, tt.want)
			}
		})
	}

	mode := contracts.SendCtrl(contracts.ParamSendMode, k)
	e.SetControl(s, mode, 0.5)
	if got := e.ControlValue(s, mode); got != 1 {
		t.Errorf("fractional send mode accepted, now %v", got)
	}
	e.SetControl(s, contracts.Ctrl(contracts.ParamLevel), math.NaN())
	if got := e.Level(s); got != 0.25 {
		t.Errorf("NaN control changed level to %v", got)
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	e, _ := newTestEngine(t)
	s := e.AddStrip()
	if s != 1 {
		t.Fatalf("AddStrip() = %d, want 1", s)
	}
	k := e.AddSend()
	e.SetLevel(s, 0.5)
	e.SetBalance(s, -0.3)
	e.SetMute(s, true)
	e.SetPhase(s, true)
	e.SetNormalise(s, true)
	e.SetSend(s, k, 0.9)
	e.SetSendMode(s, k, contracts.PreFader)
	e.SetReturnLevel(k, 0.1)
	e.SetLevel(contracts.MainStrip, 0.2)
	sub := e.Subscribe(64)

	e.Reset()

	if got := e.Level(s); got != contracts.DefaultLevel {
		t.Errorf("Level() = %v, want default", got)
	}
	if e.Mute(s) || e.Phase(s) || e.Balance(s) != 0 {
		t.Error("flags or balance not reset")
	}
	if e.Send(s, k) != 0 || e.SendMode(s, k) != contracts.PostFader || e.ReturnLevel(k) != contracts.DefaultReturnLevel {
		t.Error("send parameters not reset")
	}
	if e.Level(contracts.MainStrip) != contracts.DefaultLevel {
		t.Error("main bus not reset")
	}
	if !e.IsStrip(s) || !e.IsSend(k) {
		t.Error("reset deallocated handles")
	}
	if !e.Normalise(s) {
		t.Error("reset changed normalise routing")
	}

	// main: level, balance, 5 flags; strip: the same plus level and mode per send; one return.
	if got := len(drain(sub)); got != 7+9+1 {
		t.Errorf("reset published %d notifications, want 17", got)
	}
}
