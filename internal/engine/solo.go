package engine

import "github.com/leandrodaf/zynmixer/sdk/contracts"

// SetSolo sets a strip's solo flag. Soloing the main bus clears every other
// strip's solo first, one notification per strip. Channel solos are additive.
func (e *Engine) SetSolo(strip int, solo bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setSoloLocked(strip, solo)
}

func (e *Engine) setSoloLocked(strip int, solo bool) {
	if e.active(strip) == nil {
		return
	}
	if strip == contracts.MainStrip && solo {
		for i := 1; i < e.maxChannels; i++ {
			e.setFlagLocked(i, contracts.ParamSolo, false)
		}
	}
	e.setFlagLocked(strip, contracts.ParamSolo, solo)
}

// Solo reports a strip's solo flag.
func (e *Engine) Solo(strip int) bool { return e.getFlag(strip, contracts.ParamSolo) }

// ToggleSolo inverts a strip's solo flag through SetSolo.
func (e *Engine) ToggleSolo(strip int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.active(strip)
	if s == nil {
		return
	}
	e.setSoloLocked(strip, !s.solo.Load())
}

// GlobalSolo reports whether any channel strip is soloed. While it is, the
// processor silences every channel strip that is not.
func (e *Engine) GlobalSolo() bool {
	for i := 1; i < e.maxChannels; i++ {
		s := &e.strips[i]
		if s.state.Load() == slotActive && s.solo.Load() {
			return true
		}
	}
	return false
}
