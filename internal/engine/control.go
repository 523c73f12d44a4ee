package engine

import (
	"math"

	"github.com/leandrodaf/zynmixer/sdk/contracts"
)

// SetControl writes a parameter addressed by its tagged control. Flags are
// set when value >= 0.5; send modes accept only 0 and 1.
func (e *Engine) SetControl(strip int, c contracts.Control, value float64) {
	if math.IsNaN(value) {
		return
	}
	on := value >= 0.5
	switch c.Param {
	case contracts.ParamLevel:
		e.SetLevel(strip, value)
	case contracts.ParamBalance:
		e.SetBalance(strip, value)
	case contracts.ParamMute:
		e.SetMute(strip, on)
	case contracts.ParamSolo:
		e.SetSolo(strip, on)
	case contracts.ParamMono:
		e.SetMono(strip, on)
	case contracts.ParamPhase:
		e.SetPhase(strip, on)
	case contracts.ParamMS:
		e.SetMS(strip, on)
	case contracts.ParamNormalise:
		e.SetNormalise(strip, on)
	case contracts.ParamSend:
		e.SetSend(strip, c.Send, value)
	case contracts.ParamSendMode:
		if value != 0 && value != 1 {
			return
		}
		e.SetSendMode(strip, c.Send, contracts.SendMode(value))
	case contracts.ParamReturn:
		e.SetReturnLevel(c.Send, value)
	}
}

// ControlValue reads a parameter addressed by its tagged control. Flags read as 0 or 1.
func (e *Engine) ControlValue(strip int, c contracts.Control) float64 {
	switch c.Param {
	case contracts.ParamLevel:
		return e.Level(strip)
	case contracts.ParamBalance:
		return e.Balance(strip)
	case contracts.ParamMute, contracts.ParamSolo, contracts.ParamMono,
		contracts.ParamPhase, contracts.ParamMS, contracts.ParamNormalise:
		return boolValue(e.getFlag(strip, c.Param))
	case contracts.ParamSend:
		return e.Send(strip, c.Send)
	case contracts.ParamSendMode:
		return float64(e.SendMode(strip, c.Send))
	case contracts.ParamReturn:
		return e.ReturnLevel(c.Send)
	}
	return c.Param.Default()
}

var resetFlags = [...]contracts.Param{
	contracts.ParamMute, contracts.ParamSolo, contracts.ParamMono,
	contracts.ParamPhase, contracts.ParamMS,
}

// Reset returns every allocated strip and send to its defaults, publishing a
// notification per parameter. Allocation, normalise routing and meter
// enables are left as they are.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	sends := e.Sends()
	for i := 0; i < e.maxChannels; i++ {
		if e.active(i) == nil {
			continue
		}
		e.setLevelLocked(i, contracts.DefaultLevel)
		e.setBalanceLocked(i, 0)
		for _, p := range resetFlags {
			e.setFlagLocked(i, p, false)
		}
		if i == contracts.MainStrip {
			continue
		}
		for _, k := range sends {
			e.setSendLocked(i, k, 0)
			e.setSendModeLocked(i, k, contracts.PostFader)
		}
	}
	for _, k := range sends {
		e.setReturnLocked(k, contracts.DefaultReturnLevel)
	}
	e.logger.Info("mixer reset", e.logger.Field().String("mixer", e.name))
}
