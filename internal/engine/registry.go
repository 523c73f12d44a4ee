package engine

import (
	"math"
	"sync/atomic"

	"github.com/leandrodaf/zynmixer/sdk/contracts"
)

// Slot states. A retiring slot is skipped by the processor and invalid for
// control calls, but its index is not handed out again until the processor
// has finished a block that began after the removal.
const (
	slotFree uint32 = iota
	slotActive
	slotRetiring
)

type floatParam struct {
	bits atomic.Uint64
}

func (p *floatParam) Load() float64   { return math.Float64frombits(p.bits.Load()) }
func (p *floatParam) Store(v float64) { p.bits.Store(math.Float64bits(v)) }

type stripSlot struct {
	state   atomic.Uint32
	retired uint64 // block sequence at removal; guarded by Engine.mu

	level     floatParam
	balance   floatParam
	mute      atomic.Bool
	solo      atomic.Bool
	mono      atomic.Bool
	phase     atomic.Bool
	ms        atomic.Bool
	normalise atomic.Bool
	sendLevel []floatParam
	sendMode  []atomic.Uint32

	meter meter
	epoch atomic.Uint64 // bumped on every reset

	// processor only
	seen      uint64
	gain      [2]float32
	blockPeak [2]float32
	unrouted  bool
}

// claim drops processor state left over from an earlier allocation of the
// slot. Called by the processor before it reads or writes that state.
func (s *stripSlot) claim() {
	if ep := s.epoch.Load(); ep != s.seen {
		s.seen = ep
		s.gain = [2]float32{}
		s.blockPeak = [2]float32{}
		s.unrouted = false
	}
}

func (s *stripSlot) init(maxSends int) {
	s.sendLevel = make([]floatParam, maxSends)
	s.sendMode = make([]atomic.Uint32, maxSends)
	s.level.Store(contracts.DefaultLevel)
}

// reset restores defaults on a slot the processor is not reading.
func (s *stripSlot) reset(maxSends int) {
	s.level.Store(contracts.DefaultLevel)
	s.balance.Store(0)
	s.mute.Store(false)
	s.solo.Store(false)
	s.mono.Store(false)
	s.phase.Store(false)
	s.ms.Store(false)
	s.normalise.Store(false)
	for k := 0; k < maxSends; k++ {
		s.sendLevel[k].Store(0)
		s.sendMode[k].Store(uint32(contracts.PostFader))
	}
	s.meter.clear()
	s.epoch.Add(1)
}

type sendSlot struct {
	state   atomic.Uint32
	retired uint64
	ret     floatParam
}

func (e *Engine) reclaimable(retired uint64) bool {
	return e.Quiesced(retired)
}

// MaxChannels returns the strip capacity, main bus included.
func (e *Engine) MaxChannels() int { return e.maxChannels }

// MaxSends returns the send capacity.
func (e *Engine) MaxSends() int { return e.maxSends }

// AddStrip allocates the lowest free strip index, or returns contracts.Failure.
func (e *Engine) AddStrip() int {
	e.mu.Lock()
	idx := contracts.Failure
	for i := 1; i < e.maxChannels; i++ {
		s := &e.strips[i]
		if !e.claimable(s.state.Load(), s.retired) {
			continue
		}
		s.reset(e.maxSends)
		s.state.Store(slotActive)
		idx = i
		break
	}
	obs := e.observer
	e.mu.Unlock()

	if idx == contracts.Failure {
		e.logger.Warn("no free mixer strip",
			e.logger.Field().String("mixer", e.name),
			e.logger.Field().Int("maxChannels", e.maxChannels))
		return idx
	}
	e.logger.Debug("strip added",
		e.logger.Field().String("mixer", e.name),
		e.logger.Field().Int("strip", idx))
	if obs != nil {
		obs.StripAdded(idx)
	}
	return idx
}

// RemoveStrip frees a strip. The main bus cannot be removed.
func (e *Engine) RemoveStrip(strip int) bool {
	if strip == contracts.MainStrip {
		return false
	}
	e.mu.Lock()
	s := e.active(strip)
	if s == nil {
		e.mu.Unlock()
		return false
	}
	s.retired = e.blocksStarted.Load()
	s.state.Store(slotRetiring)
	obs := e.observer
	e.mu.Unlock()

	e.logger.Debug("strip removed",
		e.logger.Field().String("mixer", e.name),
		e.logger.Field().Int("strip", strip))
	if obs != nil {
		obs.StripRemoved(strip)
	}
	return true
}

// IsStrip reports whether strip is currently allocated.
func (e *Engine) IsStrip(strip int) bool {
	return e.active(strip) != nil
}

// StripCount returns the number of allocated strips, main bus included.
func (e *Engine) StripCount() int {
	n := 0
	for i := range e.strips {
		if e.strips[i].state.Load() == slotActive {
			n++
		}
	}
	return n
}

// Strips returns the allocated strip indices in ascending order.
func (e *Engine) Strips() []int {
	out := make([]int, 0, e.maxChannels)
	for i := range e.strips {
		if e.strips[i].state.Load() == slotActive {
			out = append(out, i)
		}
	}
	return out
}

// AddSend allocates the lowest free send index, or returns contracts.Failure.
// Every strip starts with the new send at level 0, post-fader.
func (e *Engine) AddSend() int {
	e.mu.Lock()
	idx := contracts.Failure
	for k := range e.sends {
		sd := &e.sends[k]
		if !e.claimable(sd.state.Load(), sd.retired) {
			continue
		}
		for i := range e.strips {
			e.strips[i].sendLevel[k].Store(0)
			e.strips[i].sendMode[k].Store(uint32(contracts.PostFader))
		}
		sd.ret.Store(contracts.DefaultReturnLevel)
		sd.state.Store(slotActive)
		idx = k
		break
	}
	obs := e.observer
	e.mu.Unlock()

	if idx == contracts.Failure {
		e.logger.Warn("no free mixer send",
			e.logger.Field().String("mixer", e.name),
			e.logger.Field().Int("maxSends", e.maxSends))
		return idx
	}
	e.logger.Debug("send added",
		e.logger.Field().String("mixer", e.name),
		e.logger.Field().Int("send", idx))
	if obs != nil {
		obs.SendAdded(idx)
	}
	return idx
}

// RemoveSend frees a send index.
func (e *Engine) RemoveSend(sendIdx int) bool {
	e.mu.Lock()
	sd := e.activeSend(sendIdx)
	if sd == nil {
		e.mu.Unlock()
		return false
	}
	sd.retired = e.blocksStarted.Load()
	sd.state.Store(slotRetiring)
	obs := e.observer
	e.mu.Unlock()

	e.logger.Debug("send removed",
		e.logger.Field().String("mixer", e.name),
		e.logger.Field().Int("send", sendIdx))
	if obs != nil {
		obs.SendRemoved(sendIdx)
	}
	return true
}

// IsSend reports whether the send index is currently allocated.
func (e *Engine) IsSend(sendIdx int) bool {
	return e.activeSend(sendIdx) != nil
}

// SendCount returns the number of allocated sends.
func (e *Engine) SendCount() int {
	n := 0
	for k := range e.sends {
		if e.sends[k].state.Load() == slotActive {
			n++
		}
	}
	return n
}

// Sends returns the allocated send indices in ascending order.
func (e *Engine) Sends() []int {
	out := make([]int, 0, e.maxSends)
	for k := range e.sends {
		if e.sends[k].state.Load() == slotActive {
			out = append(out, k)
		}
	}
	return out
}

func (e *Engine) claimable(state uint32, retired uint64) bool {
	switch state {
	case slotFree:
		return true
	case slotRetiring:
		return e.reclaimable(retired)
	}
	return false
}

func (e *Engine) active(strip int) *stripSlot {
	if strip < 0 || strip >= e.maxChannels {
		return nil
	}
	s := &e.strips[strip]
	if s.state.Load() != slotActive {
		return nil
	}
	return s
}

func (e *Engine) activeSend(sendIdx int) *sendSlot {
	if sendIdx < 0 || sendIdx >= e.maxSends {
		return nil
	}
	sd := &e.sends[sendIdx]
	if sd.state.Load() != slotActive {
		return nil
	}
	return sd
}
