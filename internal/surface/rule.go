package surface

import (
	"errors"
	"fmt"

	"github.com/leandrodaf/zynmixer/sdk/contracts"
	"go.uber.org/multierr"
)

// ErrInvalidRule wraps every rule validation failure.
var ErrInvalidRule = errors.New("invalid control surface rule")

// Rule binds one MIDI controller or note to a mixer control.
type Rule struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`    // "cc" or "note"
	Channel int    `yaml:"channel"` // 1-16; 0 matches any channel
	Number  int    `yaml:"number"`  // controller or note number
	Mixer   string `yaml:"mixer"`   // "channel" (default) or "main"
	Strip   int    `yaml:"strip"`
	Control string `yaml:"control"` // control symbol such as "level" or "send_01"
	Action  string `yaml:"action"`  // "set" (default) or "toggle"
}

const (
	typeCC   = "cc"
	typeNote = "note"

	actionSet    = "set"
	actionToggle = "toggle"
)

func (r Rule) label() string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("%s %d -> %d/%s", r.Type, r.Number, r.Strip, r.Control)
}

// Validate reports every problem with the rule at once.
func (r Rule) Validate() error {
	var err error
	fail := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf("%w: %s: %s", ErrInvalidRule, r.label(), fmt.Sprintf(format, args...)))
	}

	if r.Type != typeCC && r.Type != typeNote {
		fail("type %q is neither %q nor %q", r.Type, typeCC, typeNote)
	}
	if r.Channel < 0 || r.Channel > 16 {
		fail("channel %d outside 0-16", r.Channel)
	}
	if r.Number < 0 || r.Number > 127 {
		fail("number %d outside 0-127", r.Number)
	}
	if _, ok := contracts.ParseBusKind(r.Mixer); !ok {
		fail("unknown mixer %q", r.Mixer)
	}
	if r.Strip < 0 {
		fail("negative strip %d", r.Strip)
	}
	c, cerr := contracts.ParseControl(r.Control)
	if cerr != nil {
		fail("%v", cerr)
	}
	switch r.Action {
	case "", actionSet:
	case actionToggle:
		if cerr == nil && !c.Param.Boolean() {
			fail("control %q cannot be toggled", r.Control)
		}
	default:
		fail("unknown action %q", r.Action)
	}
	return err
}

type binding struct {
	rule    Rule
	note    bool
	channel int // zero based; -1 matches any
	number  uint8
	bus     contracts.BusKind
	control contracts.Control
	toggle  bool
}

func compile(r Rule) (binding, error) {
	if err := r.Validate(); err != nil {
		return binding{}, err
	}
	bus, _ := contracts.ParseBusKind(r.Mixer)
	c, _ := contracts.ParseControl(r.Control)
	return binding{
		rule:    r,
		note:    r.Type == typeNote,
		channel: r.Channel - 1,
		number:  uint8(r.Number),
		bus:     bus,
		control: c,
		toggle:  r.Action == actionToggle,
	}, nil
}

func (b binding) matches(note bool, channel, number uint8) bool {
	return b.note == note && b.number == number && (b.channel < 0 || b.channel == int(channel))
}

// scale maps a 7-bit value onto the domain of a control.
func scale(c contracts.Control, v uint8) float64 {
	switch {
	case c.Param.Boolean(), c.Param == contracts.ParamSendMode:
		if v >= 64 {
			return 1
		}
		return 0
	case c.Param == contracts.ParamBalance:
		return max(-1, min(1, (float64(v)-64)/63))
	}
	return float64(v) / 127
}
