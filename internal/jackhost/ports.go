// Package jackhost runs a mixer engine inside a JACK client: one port pair per
// strip input, strip output and send, with the engine driven from the JACK
// process callback.
package jackhost

import (
	"errors"
	"fmt"

	"github.com/leandrodaf/zynmixer/sdk/contracts"
)

// ErrJACKUnavailable is returned where the binary was built without JACK support.
var ErrJACKUnavailable = errors.New("jack support not available on this platform")

// Options configure a Host.
type Options struct {
	ClientName  string
	StartServer bool
	MIDIInput   bool // register ctrl_in and forward its events to StartCapture
	LockMemory  bool
}

const (
	kindInput  = "input"
	kindOutput = "output"
	kindSend   = "send"

	midiPortName = "ctrl_in"
)

func portName(kind string, idx, leg int) string {
	return fmt.Sprintf("%s_%02d%c", kind, idx, 'a'+leg)
}

// pair holds the two legs of a stereo port. routed is refreshed from the
// JACK graph off the audio thread.
type pair[P comparable] struct {
	legs   [2]P
	routed bool
}

func (p pair[P]) registered() bool {
	var zero P
	return p.legs[0] != zero && p.legs[1] != zero
}

// portTable is published to the process callback by pointer swap and never
// mutated once published.
type portTable[P comparable] struct {
	in    []pair[P]
	out   []pair[P]
	sends []pair[P]
}

func newPortTable[P comparable](channels, sends int) *portTable[P] {
	return &portTable[P]{
		in:    make([]pair[P], channels),
		out:   make([]pair[P], channels),
		sends: make([]pair[P], sends),
	}
}

func (t *portTable[P]) clone() *portTable[P] {
	return &portTable[P]{
		in:    append([]pair[P](nil), t.in...),
		out:   append([]pair[P](nil), t.out...),
		sends: append([]pair[P](nil), t.sends...),
	}
}

// each visits every registered pair with its kind and index.
func (t *portTable[P]) each(fn func(kind string, idx int, p *pair[P])) {
	for _, group := range []struct {
		kind  string
		pairs []pair[P]
	}{{kindInput, t.in}, {kindOutput, t.out}, {kindSend, t.sends}} {
		for i := range group.pairs {
			if group.pairs[i].registered() {
				fn(group.kind, i, &group.pairs[i])
			}
		}
	}
}

// retired is a port waiting for the process callback to stop using it.
type retired[P any] struct {
	port  P
	cycle uint64
}

// reap releases every retired port whose cycle has been followed by a
// completed callback, and returns the rest.
func reap[P any](pending []retired[P], done uint64, release func(P)) []retired[P] {
	keep := pending[:0]
	for _, r := range pending {
		if done > r.cycle {
			release(r.port)
			continue
		}
		keep = append(keep, r)
	}
	return keep
}

// toMIDI converts one raw JACK MIDI event. System messages are dropped.
func toMIDI(time uint32, raw []byte) (contracts.MIDI, bool) {
	if len(raw) == 0 || raw[0] < 0x80 || raw[0] >= 0xF0 {
		return contracts.MIDI{}, false
	}
	ev := contracts.MIDI{Timestamp: uint64(time), Status: raw[0]}
	if len(raw) > 1 {
		ev.Data1 = raw[1]
	}
	if len(raw) > 2 {
		ev.Data2 = raw[2]
	}
	return ev, true
}
