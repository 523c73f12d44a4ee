package engine

import (
	"math"

	"github.com/leandrodaf/zynmixer/sdk/contracts"
	"github.com/viterin/vek/vek32"
)

// StereoBuffer is one A/B pair of sample slices.
type StereoBuffer [2][]float32

func (b StereoBuffer) ok(frames int) bool {
	return len(b[0]) >= frames && len(b[1]) >= frames
}

// Block carries the buffers of one processing cycle. In and Out are indexed
// by strip, Sends by send index. A pair with a short or nil leg counts as
// unconnected: an unconnected channel input skips the strip, an unconnected
// output is not written.
type Block struct {
	Frames int
	In     []StereoBuffer
	Out    []StereoBuffer
	Sends  []StereoBuffer
}

// NewBlock returns a Block sized for this mixer, with no buffers attached.
func (e *Engine) NewBlock() *Block {
	return &Block{
		In:    make([]StereoBuffer, e.maxChannels),
		Out:   make([]StereoBuffer, e.maxChannels),
		Sends: make([]StereoBuffer, e.maxSends),
	}
}

type scratch struct {
	a, b         []float32
	tmp          []float32
	normA, normB []float32
	sampleRate   int
	dampPeriod   int
}

// Prepare sizes the processing buffers. Call it before the first Process and
// whenever the buffer size or sample rate changes, never concurrently with Process.
func (e *Engine) Prepare(sampleRate, bufferSize int) {
	if sampleRate <= 0 || bufferSize <= 0 {
		return
	}
	period := int(float64(e.decay) * float64(sampleRate) / float64(bufferSize) / 15)
	sc := &scratch{
		a:          make([]float32, bufferSize),
		b:          make([]float32, bufferSize),
		tmp:        make([]float32, bufferSize),
		normA:      make([]float32, bufferSize),
		normB:      make([]float32, bufferSize),
		sampleRate: sampleRate,
		dampPeriod: max(period, 1),
	}
	e.scratch.Store(sc)
	e.logger.Debug("mixer prepared",
		e.logger.Field().String("mixer", e.name),
		e.logger.Field().Int("sampleRate", sampleRate),
		e.logger.Field().Int("bufferSize", bufferSize),
		e.logger.Field().Int("dampPeriod", sc.dampPeriod))
}

// Process mixes one block. Channel strips run first so that normalised
// strips reach the main bus in the same block.
func (e *Engine) Process(blk *Block) {
	seq := e.blocksStarted.Add(1)
	defer e.blocksDone.Store(seq)

	n := blk.Frames
	sc := e.scratch.Load()
	if sc == nil || n <= 0 || n > len(sc.a) {
		silence(blk, n)
		return
	}

	clear(sc.normA[:n])
	clear(sc.normB[:n])
	for k := range blk.Sends {
		if k < e.maxSends && e.sends[k].state.Load() == slotActive && blk.Sends[k].ok(n) {
			clear(blk.Sends[k][0][:n])
			clear(blk.Sends[k][1][:n])
		}
	}

	solo := e.GlobalSolo()
	for i := 1; i < e.maxChannels; i++ {
		e.processStrip(i, blk, sc, solo)
	}
	e.processStrip(contracts.MainStrip, blk, sc, solo)

	for k := range blk.Sends {
		if k >= e.maxSends || e.sends[k].state.Load() != slotActive || !blk.Sends[k].ok(n) {
			continue
		}
		if g := float32(e.sends[k].ret.Load()); g != 1 {
			vek32.MulNumber_Inplace(blk.Sends[k][0][:n], g)
			vek32.MulNumber_Inplace(blk.Sends[k][1][:n], g)
		}
	}

	e.commitMeters(sc.dampPeriod)
}

func (e *Engine) processStrip(i int, blk *Block, sc *scratch, solo bool) {
	s := &e.strips[i]
	if s.state.Load() != slotActive {
		return
	}
	s.claim()
	n := blk.Frames
	main := i == contracts.MainStrip
	a, b := sc.a[:n], sc.b[:n]

	var in StereoBuffer
	if i < len(blk.In) {
		in = blk.In[i]
	}
	s.unrouted = false
	switch {
	case in.ok(n):
		copy(a, in[0][:n])
		copy(b, in[1][:n])
	case main:
		clear(a)
		clear(b)
	default:
		// the next connection ramps up from silence and the meter drops to the floor
		s.gain = [2]float32{}
		s.blockPeak = [2]float32{}
		s.unrouted = true
		return
	}
	if main {
		vek32.Add_Inplace(a, sc.normA[:n])
		vek32.Add_Inplace(b, sc.normB[:n])
	}

	if s.phase.Load() {
		vek32.MulNumber_Inplace(b, -1)
	}
	if s.ms.Load() {
		for j := range a {
			a[j], b[j] = a[j]+b[j], a[j]-b[j]
		}
	}
	if s.mono.Load() {
		for j := range a {
			m := (a[j] + b[j]) * 0.5
			a[j], b[j] = m, m
		}
	}

	if !main {
		e.tapSends(s, blk, a, b, sc.tmp[:n], contracts.PreFader)
	}

	level := float32(s.level.Load())
	if s.mute.Load() || (!main && solo && !s.solo.Load()) {
		level = 0
	}
	gainA, gainB := level, level
	if bal := float32(s.balance.Load()); bal > 0 {
		gainA *= 1 - bal
	} else if bal < 0 {
		gainB *= 1 + bal
	}
	applyGain(a, s.gain[0], gainA)
	applyGain(b, s.gain[1], gainB)
	s.gain = [2]float32{gainA, gainB}

	if !main {
		e.tapSends(s, blk, a, b, sc.tmp[:n], contracts.PostFader)
		if s.normalise.Load() {
			vek32.Add_Inplace(sc.normA[:n], a)
			vek32.Add_Inplace(sc.normB[:n], b)
		}
	}

	if i < len(blk.Out) && blk.Out[i].ok(n) {
		copy(blk.Out[i][0][:n], a)
		copy(blk.Out[i][1][:n], b)
	}

	if s.meter.enabled.Load() {
		s.blockPeak[0] = max(s.blockPeak[0], peak(a, sc.tmp[:n]))
		s.blockPeak[1] = max(s.blockPeak[1], peak(b, sc.tmp[:n]))
	}
}

func (e *Engine) tapSends(s *stripSlot, blk *Block, a, b, tmp []float32, mode contracts.SendMode) {
	n := len(a)
	for k := range blk.Sends {
		if k >= e.maxSends || e.sends[k].state.Load() != slotActive {
			continue
		}
		if contracts.SendMode(s.sendMode[k].Load()) != mode {
			continue
		}
		level := float32(s.sendLevel[k].Load())
		dst := blk.Sends[k]
		if level == 0 || !dst.ok(n) {
			continue
		}
		vek32.MulNumber_Into(tmp, a, level)
		vek32.Add_Inplace(dst[0][:n], tmp)
		vek32.MulNumber_Into(tmp, b, level)
		vek32.Add_Inplace(dst[1][:n], tmp)
	}
}

// applyGain scales x, ramping linearly from the previous block's gain to the
// target so fader moves do not click. Infinite samples are replaced by 1.
func applyGain(x []float32, from, to float32) {
	if from == to {
		vek32.MulNumber_Inplace(x, to)
	} else {
		step := (to - from) / float32(len(x))
		g := from
		for j := range x {
			g += step
			x[j] *= g
		}
	}
	for j, v := range x {
		if math.IsInf(float64(v), 0) {
			x[j] = 1
		}
	}
}

// peak returns the largest absolute sample of x, using tmp as scratch.
func peak(x, tmp []float32) float32 {
	if len(x) == 0 {
		return 0
	}
	copy(tmp, x)
	vek32.Abs_Inplace(tmp)
	return vek32.Max(tmp)
}

func silence(blk *Block, n int) {
	n = max(n, 0)
	for _, bufs := range [2][]StereoBuffer{blk.Out, blk.Sends} {
		for _, sb := range bufs {
			for leg := range sb {
				clear(sb[leg][:min(n, len(sb[leg]))])
			}
		}
	}
}
