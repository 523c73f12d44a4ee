package engine

import (
	"math"
	"runtime"
	"sync/atomic"

	"github.com/leandrodaf/zynmixer/sdk/contracts"
)

// holdPeriods is how many damping periods a held peak survives before it
// drops to the current peak.
const holdPeriods = 20

// meterReadAttempts bounds how often a snapshot read retries while the
// processor is committing meter values.
const meterReadAttempts = 4

// meter keeps linear peak values as float32 bits.
type meter struct {
	enabled atomic.Bool
	peak    [2]atomic.Uint32
	hold    [2]atomic.Uint32
}

func (m *meter) clear() {
	for leg := range m.peak {
		m.peak[leg].Store(0)
		m.hold[leg].Store(0)
	}
}

func loadF32(v *atomic.Uint32) float32     { return math.Float32frombits(v.Load()) }
func storeF32(v *atomic.Uint32, f float32) { v.Store(math.Float32bits(f)) }

// toDBFS converts a linear peak to dBFS, floored at contracts.DPMFloor.
func toDBFS(linear float32) float32 {
	if linear <= 0 {
		return contracts.DPMFloor
	}
	db := float32(20 * math.Log10(float64(linear)))
	if db < contracts.DPMFloor {
		return contracts.DPMFloor
	}
	return db
}

// EnableDPM turns metering on or off for the inclusive range [start,end].
// Indices outside the mixer are ignored. Enabling discards stale peaks.
func (e *Engine) EnableDPM(start, end int, enable bool) {
	start = max(start, 0)
	end = min(end, e.maxChannels-1)
	for i := start; i <= end; i++ {
		m := &e.strips[i].meter
		if enable {
			m.clear()
			m.enabled.Store(true)
		} else {
			m.enabled.Store(false)
			m.clear()
		}
	}
}

// DPMEnabled reports whether metering is on for a strip index.
func (e *Engine) DPMEnabled(strip int) bool {
	if strip < 0 || strip >= e.maxChannels {
		return false
	}
	return e.strips[strip].meter.enabled.Load()
}

func (e *Engine) meterFor(strip int, leg contracts.Leg) *meter {
	if leg > contracts.LegB {
		return nil
	}
	s := e.active(strip)
	if s == nil || !s.meter.enabled.Load() {
		return nil
	}
	return &s.meter
}

// DPM returns the instantaneous peak of one leg in dBFS.
func (e *Engine) DPM(strip int, leg contracts.Leg) float32 {
	if m := e.meterFor(strip, leg); m != nil {
		return toDBFS(loadF32(&m.peak[leg]))
	}
	return contracts.DPMFloor
}

// DPMHold returns the held peak of one leg in dBFS.
func (e *Engine) DPMHold(strip int, leg contracts.Leg) float32 {
	if m := e.meterFor(strip, leg); m != nil {
		return toDBFS(loadF32(&m.hold[leg]))
	}
	return contracts.DPMFloor
}

// DPMStates reads the meters of the inclusive range [start,end] in one pass.
// The range is clipped to valid strip indices; start > end yields an empty slice.
func (e *Engine) DPMStates(start, end int) []contracts.DPMState {
	start = max(start, 0)
	end = min(end, e.maxChannels-1)
	if start > end {
		return []contracts.DPMState{}
	}
	out := make([]contracts.DPMState, end-start+1)
	e.DPMStatesInto(out, start)
	return out
}

// DPMStatesInto fills dst with the meters of strips start, start+1, ... and
// returns the number of entries written. It does not allocate.
func (e *Engine) DPMStatesInto(dst []contracts.DPMState, start int) int {
	if start < 0 || start >= e.maxChannels {
		return 0
	}
	dst = dst[:min(len(dst), e.maxChannels-start)]
	for attempt := 0; attempt < meterReadAttempts; attempt++ {
		seq := e.meterSeq.Load()
		if seq&1 == 1 {
			runtime.Gosched()
			continue
		}
		e.readMeters(dst, start)
		if e.meterSeq.Load() == seq {
			return len(dst)
		}
	}
	// Still consistent per value; only cross-strip coherence is lost.
	e.readMeters(dst, start)
	return len(dst)
}

func (e *Engine) readMeters(dst []contracts.DPMState, start int) {
	for k := range dst {
		s := e.active(start + k)
		if s == nil {
			dst[k] = contracts.IdleDPMState
			continue
		}
		st := contracts.IdleDPMState
		st.Mono = s.mono.Load()
		if s.meter.enabled.Load() {
			st.PeakA = toDBFS(loadF32(&s.meter.peak[contracts.LegA]))
			st.PeakB = toDBFS(loadF32(&s.meter.peak[contracts.LegB]))
			st.HoldA = toDBFS(loadF32(&s.meter.hold[contracts.LegA]))
			st.HoldB = toDBFS(loadF32(&s.meter.hold[contracts.LegB]))
		}
		dst[k] = st
	}
}

// commitMeters folds the block peaks into the meters and applies release.
// Called by the processor once per block.
func (e *Engine) commitMeters(dampPeriod int) {
	damp := false
	if e.dampCount++; e.dampCount >= dampPeriod {
		e.dampCount = 0
		damp = true
		e.holdCount++
	}
	dropHold := false
	if damp && e.holdCount >= holdPeriods {
		e.holdCount = 0
		dropHold = true
	}

	e.meterSeq.Add(1)
	for i := range e.strips {
		s := &e.strips[i]
		if s.state.Load() != slotActive {
			continue
		}
		s.claim()
		if !s.meter.enabled.Load() {
			s.blockPeak = [2]float32{}
			continue
		}
		if s.unrouted {
			s.meter.clear()
			continue
		}
		for leg := range s.blockPeak {
			peak := max(loadF32(&s.meter.peak[leg]), s.blockPeak[leg])
			if damp {
				peak *= e.decay
			}
			hold := loadF32(&s.meter.hold[leg])
			if dropHold {
				hold = peak
			}
			storeF32(&s.meter.peak[leg], peak)
			storeF32(&s.meter.hold[leg], max(hold, peak))
		}
		s.blockPeak = [2]float32{}
	}
	e.meterSeq.Add(1)
}
