package contracts

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Param identifies a mixer control kind.
type Param uint8

const (
	ParamLevel Param = iota
	ParamBalance
	ParamMute
	ParamSolo
	ParamMono
	ParamPhase
	ParamMS
	ParamNormalise
	ParamSend
	ParamSendMode
	ParamReturn
)

var paramSymbols = [...]string{
	ParamLevel:     "level",
	ParamBalance:   "balance",
	ParamMute:      "mute",
	ParamSolo:      "solo",
	ParamMono:      "mono",
	ParamPhase:     "phase",
	ParamMS:        "ms",
	ParamNormalise: "normalise",
	ParamSend:      "send",
	ParamSendMode:  "send_mode",
	ParamReturn:    "return",
}

// String returns the symbol prefix of the parameter.
func (p Param) String() string {
	if int(p) < len(paramSymbols) {
		return paramSymbols[p]
	}
	return fmt.Sprintf("param(%d)", uint8(p))
}

// Indexed reports whether the parameter is addressed by a send index.
func (p Param) Indexed() bool {
	return p == ParamSend || p == ParamSendMode || p == ParamReturn
}

// Boolean reports whether the parameter is an on/off flag.
func (p Param) Boolean() bool {
	switch p {
	case ParamMute, ParamSolo, ParamMono, ParamPhase, ParamMS, ParamNormalise:
		return true
	}
	return false
}

// Default returns the value a never-set parameter reads as.
func (p Param) Default() float64 {
	switch p {
	case ParamLevel:
		return DefaultLevel
	case ParamReturn:
		return DefaultReturnLevel
	}
	return 0
}

// Control addresses one parameter of a strip. Send is only meaningful for
// indexed parameters.
type Control struct {
	Param Param
	Send  int
}

// Ctrl builds a control for a non-indexed parameter.
func Ctrl(p Param) Control {
	return Control{Param: p}
}

// SendCtrl builds a control for a send-indexed parameter.
func SendCtrl(p Param, send int) Control {
	return Control{Param: p, Send: send}
}

// Symbol returns the wire name of the control, e.g. "mute" or "send_03".
func (c Control) Symbol() string {
	if c.Param.Indexed() {
		return fmt.Sprintf("%s_%02d", c.Param, c.Send)
	}
	return c.Param.String()
}

func (c Control) String() string {
	return c.Symbol()
}

// DisplayName returns a human readable label, e.g. "Send Mode 03".
func (c Control) DisplayName() string {
	name := strings.ReplaceAll(c.Symbol(), "_", " ")
	if c.Param == ParamMS {
		return "M+S"
	}
	return cases.Title(language.English).String(name)
}

// ParseControl maps a control symbol back to its Control.
func ParseControl(symbol string) (Control, error) {
	for i := len(paramSymbols) - 1; i >= 0; i-- {
		p := Param(i)
		name := paramSymbols[i]
		if !p.Indexed() {
			if symbol == name {
				return Control{Param: p}, nil
			}
			continue
		}
		rest, ok := strings.CutPrefix(symbol, name+"_")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			continue
		}
		// only the canonical zero-padded form round-trips
		if c := (Control{Param: p, Send: n}); c.Symbol() == symbol {
			return c, nil
		}
	}
	return Control{}, fmt.Errorf("%w: %q", ErrUnknownControl, symbol)
}
