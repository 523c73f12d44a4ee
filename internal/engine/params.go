package engine

import (
	"math"
	"sync/atomic"

	"github.com/leandrodaf/zynmixer/sdk/contracts"
)

func clampUnit(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

// SetLevel sets the fader gain, clamped to [0,1]. NaN is rejected.
func (e *Engine) SetLevel(strip int, level float64) {
	if math.IsNaN(level) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setLevelLocked(strip, clampUnit(level))
}

func (e *Engine) setLevelLocked(strip int, level float64) {
	s := e.active(strip)
	if s == nil {
		return
	}
	s.level.Store(level)
	e.publish(strip, contracts.Ctrl(contracts.ParamLevel), level)
}

// Level returns the fader gain.
func (e *Engine) Level(strip int) float64 {
	if s := e.active(strip); s != nil {
		return s.level.Load()
	}
	return contracts.DefaultLevel
}

// SetBalance sets the stereo balance. Values outside [-1,1] are rejected.
func (e *Engine) SetBalance(strip int, balance float64) {
	if math.IsNaN(balance) || balance < -1 || balance > 1 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setBalanceLocked(strip, balance)
}

func (e *Engine) setBalanceLocked(strip int, balance float64) {
	s := e.active(strip)
	if s == nil {
		return
	}
	s.balance.Store(balance)
	e.publish(strip, contracts.Ctrl(contracts.ParamBalance), balance)
}

// Balance returns the stereo balance.
func (e *Engine) Balance(strip int) float64 {
	if s := e.active(strip); s != nil {
		return s.balance.Load()
	}
	return 0
}

// flag returns the boolean parameter p of s.
func (s *stripSlot) flag(p contracts.Param) *atomic.Bool {
	switch p {
	case contracts.ParamMute:
		return &s.mute
	case contracts.ParamSolo:
		return &s.solo
	case contracts.ParamMono:
		return &s.mono
	case contracts.ParamPhase:
		return &s.phase
	case contracts.ParamMS:
		return &s.ms
	case contracts.ParamNormalise:
		return &s.normalise
	}
	return nil
}

func (e *Engine) setFlag(strip int, p contracts.Param, v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setFlagLocked(strip, p, v)
}

func (e *Engine) setFlagLocked(strip int, p contracts.Param, v bool) {
	s := e.active(strip)
	if s == nil {
		return
	}
	s.flag(p).Store(v)
	e.publishBool(strip, p, v)
}

func (e *Engine) toggleFlag(strip int, p contracts.Param) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.active(strip)
	if s == nil {
		return
	}
	e.setFlagLocked(strip, p, !s.flag(p).Load())
}

func (e *Engine) getFlag(strip int, p contracts.Param) bool {
	if s := e.active(strip); s != nil {
		return s.flag(p).Load()
	}
	return false
}

// SetMute mutes or unmutes a strip.
func (e *Engine) SetMute(strip int, mute bool) { e.setFlag(strip, contracts.ParamMute, mute) }

// Mute reports whether a strip is muted.
func (e *Engine) Mute(strip int) bool { return e.getFlag(strip, contracts.ParamMute) }

// ToggleMute inverts the mute flag and publishes the result.
func (e *Engine) ToggleMute(strip int) { e.toggleFlag(strip, contracts.ParamMute) }

// SetMono sums both legs of a strip to mono.
func (e *Engine) SetMono(strip int, mono bool) { e.setFlag(strip, contracts.ParamMono, mono) }

func (e *Engine) Mono(strip int) bool { return e.getFlag(strip, contracts.ParamMono) }

func (e *Engine) ToggleMono(strip int) { e.toggleFlag(strip, contracts.ParamMono) }

// SetPhase inverts the polarity of leg B.
func (e *Engine) SetPhase(strip int, phase bool) { e.setFlag(strip, contracts.ParamPhase, phase) }

func (e *Engine) Phase(strip int) bool { return e.getFlag(strip, contracts.ParamPhase) }

func (e *Engine) TogglePhase(strip int) { e.toggleFlag(strip, contracts.ParamPhase) }

// SetMS enables mid/side decoding of the strip input.
func (e *Engine) SetMS(strip int, ms bool) { e.setFlag(strip, contracts.ParamMS, ms) }

func (e *Engine) MS(strip int) bool { return e.getFlag(strip, contracts.ParamMS) }

func (e *Engine) ToggleMS(strip int) { e.toggleFlag(strip, contracts.ParamMS) }

// SetNormalise routes a strip's output into the main bus. Ignored on the main bus itself.
func (e *Engine) SetNormalise(strip int, normalise bool) {
	if strip == contracts.MainStrip {
		return
	}
	e.setFlag(strip, contracts.ParamNormalise, normalise)
}

func (e *Engine) Normalise(strip int) bool { return e.getFlag(strip, contracts.ParamNormalise) }

// SetSend sets the level a strip feeds into a send, clamped to [0,1].
func (e *Engine) SetSend(strip, sendIdx int, level float64) {
	if math.IsNaN(level) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setSendLocked(strip, sendIdx, clampUnit(level))
}

func (e *Engine) setSendLocked(strip, sendIdx int, level float64) {
	s := e.sendTap(strip, sendIdx)
	if s == nil {
		return
	}
	s.sendLevel[sendIdx].Store(level)
	e.publish(strip, contracts.SendCtrl(contracts.ParamSend, sendIdx), level)
}

// Send returns the level a strip feeds into a send.
func (e *Engine) Send(strip, sendIdx int) float64 {
	if s := e.sendTap(strip, sendIdx); s != nil {
		return s.sendLevel[sendIdx].Load()
	}
	return 0
}

// SetSendMode selects pre- or post-fader tapping. Unknown modes are rejected.
func (e *Engine) SetSendMode(strip, sendIdx int, mode contracts.SendMode) {
	if !mode.Valid() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setSendModeLocked(strip, sendIdx, mode)
}

func (e *Engine) setSendModeLocked(strip, sendIdx int, mode contracts.SendMode) {
	s := e.sendTap(strip, sendIdx)
	if s == nil {
		return
	}
	s.sendMode[sendIdx].Store(uint32(mode))
	e.publish(strip, contracts.SendCtrl(contracts.ParamSendMode, sendIdx), float64(mode))
}

// SendMode returns where a strip taps a send.
func (e *Engine) SendMode(strip, sendIdx int) contracts.SendMode {
	if s := e.sendTap(strip, sendIdx); s != nil {
		return contracts.SendMode(s.sendMode[sendIdx].Load())
	}
	return contracts.PostFader
}

// SetReturnLevel sets the gain applied to a send bus output, clamped to [0,1].
// The notification is attributed to the main bus.
func (e *Engine) SetReturnLevel(sendIdx int, level float64) {
	if math.IsNaN(level) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setReturnLocked(sendIdx, clampUnit(level))
}

func (e *Engine) setReturnLocked(sendIdx int, level float64) {
	sd := e.activeSend(sendIdx)
	if sd == nil {
		return
	}
	sd.ret.Store(level)
	e.publish(contracts.MainStrip, contracts.SendCtrl(contracts.ParamReturn, sendIdx), level)
}

// ReturnLevel returns the gain applied to a send bus output.
func (e *Engine) ReturnLevel(sendIdx int) float64 {
	if sd := e.activeSend(sendIdx); sd != nil {
		return sd.ret.Load()
	}
	return contracts.DefaultReturnLevel
}

// sendTap returns the strip when both handles are valid and the strip can
// feed sends. The main bus never feeds sends.
func (e *Engine) sendTap(strip, sendIdx int) *stripSlot {
	if strip == contracts.MainStrip || e.activeSend(sendIdx) == nil {
		return nil
	}
	return e.active(strip)
}
