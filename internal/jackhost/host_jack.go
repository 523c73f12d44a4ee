//go:build linux && cgo

package jackhost

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/leandrodaf/zynmixer/internal/engine"
	"github.com/leandrodaf/zynmixer/sdk/contracts"
	"github.com/xthexder/go-jack"
)

const maintainInterval = 20 * time.Millisecond

// Host owns the JACK client of one engine.
type Host struct {
	engine *engine.Engine
	logger contracts.Logger
	client *jack.Client
	block  *engine.Block
	midi   *jack.Port

	table   atomic.Pointer[portTable[*jack.Port]]
	capture atomic.Pointer[chan contracts.MIDI]
	dirty   atomic.Bool

	// process callback counters, used to know when a dropped port is unused
	cycles atomic.Uint64
	done   atomic.Uint64

	mu      sync.Mutex // table writes and the retired list
	pending []retired[*jack.Port]

	stop     chan struct{}
	shutdown chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	downOnce sync.Once
}

// Open connects eng to the JACK server, registers ports for every strip and
// send it already has, and starts processing.
func Open(eng *engine.Engine, logger contracts.Logger, opts Options) (*Host, error) {
	name := opts.ClientName
	if name == "" {
		name = eng.Name()
	}
	if opts.LockMemory {
		if err := lockMemory(); err != nil {
			logger.Warn("memory lock failed", logger.Field().Error("error", err))
		}
	}

	jopts := jack.NoStartServer
	if opts.StartServer {
		jopts = jack.NullOption
	}
	client, status := jack.ClientOpen(name, jopts)
	if client == nil {
		return nil, fmt.Errorf("opening jack client %q: %w", name, jack.StrError(status))
	}

	h := &Host{
		engine:   eng,
		logger:   logger,
		client:   client,
		block:    eng.NewBlock(),
		stop:     make(chan struct{}),
		shutdown: make(chan struct{}),
	}
	h.table.Store(newPortTable[*jack.Port](eng.MaxChannels(), eng.MaxSends()))

	if opts.MIDIInput {
		h.midi = client.PortRegister(midiPortName, jack.DEFAULT_MIDI_TYPE, jack.PortIsInput, 0)
		if h.midi == nil {
			client.Close()
			return nil, fmt.Errorf("registering jack port %s", midiPortName)
		}
	}
	for _, strip := range eng.Strips() {
		h.StripAdded(strip)
	}
	for _, send := range eng.Sends() {
		h.SendAdded(send)
	}
	eng.SetObserver(h)

	eng.Prepare(int(client.GetSampleRate()), int(client.GetBufferSize()))
	if code := client.SetProcessCallback(h.process); code != 0 {
		h.abort()
		return nil, fmt.Errorf("setting jack process callback: %w", jack.StrError(code))
	}
	if code := client.SetBufferSizeCallback(h.bufferSize); code != 0 {
		h.abort()
		return nil, fmt.Errorf("setting jack buffer size callback: %w", jack.StrError(code))
	}
	if code := client.SetPortConnectCallback(h.portConnect); code != 0 {
		h.abort()
		return nil, fmt.Errorf("setting jack port connect callback: %w", jack.StrError(code))
	}
	client.OnShutdown(h.serverGone)

	eng.AttachProcessor(true)
	if code := client.Activate(); code != 0 {
		eng.AttachProcessor(false)
		h.abort()
		return nil, fmt.Errorf("activating jack client: %w", jack.StrError(code))
	}

	h.wg.Add(1)
	go h.maintain()

	logger.Info("jack client started",
		logger.Field().String("client", name),
		logger.Field().Int("sampleRate", int(client.GetSampleRate())),
		logger.Field().Int("bufferSize", int(client.GetBufferSize())))
	return h, nil
}

func (h *Host) abort() {
	h.engine.SetObserver(nil)
	h.client.Close()
}

// Done is closed when the JACK server shuts the client down.
func (h *Host) Done() <-chan struct{} {
	return h.shutdown
}

// StartCapture forwards events from the ctrl_in port to ch. Events are
// dropped while ch is full.
func (h *Host) StartCapture(ch chan contracts.MIDI) {
	h.capture.Store(&ch)
}

// Stop detaches the capture channel. The client keeps running.
func (h *Host) Stop() error {
	h.capture.Store(nil)
	return nil
}

// Close deactivates the client and releases its ports.
func (h *Host) Close() error {
	var code int
	h.stopOnce.Do(func() {
		close(h.stop)
		h.wg.Wait()
		h.engine.SetObserver(nil)
		h.capture.Store(nil)
		code = h.client.Close()
		h.engine.AttachProcessor(false)
		h.logger.Info("jack client closed", h.logger.Field().String("mixer", h.engine.Name()))
	})
	if code != 0 {
		return fmt.Errorf("closing jack client: %w", jack.StrError(code))
	}
	return nil
}

func (h *Host) process(nframes uint32) int {
	cycle := h.cycles.Add(1)
	defer h.done.Store(cycle)

	t := h.table.Load()
	blk := h.block
	blk.Frames = int(nframes)
	fill(blk.In, t.in, nframes, true)
	fill(blk.Out, t.out, nframes, true)
	fill(blk.Sends, t.sends, nframes, false)
	h.engine.Process(blk)

	if h.midi != nil {
		h.forwardMIDI(nframes)
	}
	return 0
}

// fill points each block buffer at its port memory. Pairs that are missing,
// or unrouted when routing matters, get no buffer.
func fill(dst []engine.StereoBuffer, pairs []pair[*jack.Port], nframes uint32, routedOnly bool) {
	for i := range dst {
		p := pairs[i]
		if !p.registered() || (routedOnly && !p.routed) {
			dst[i] = engine.StereoBuffer{}
			continue
		}
		dst[i] = engine.StereoBuffer{samples(p.legs[0], nframes), samples(p.legs[1], nframes)}
	}
}

func samples(port *jack.Port, nframes uint32) []float32 {
	buf := port.GetBuffer(nframes)
	if len(buf) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&buf[0])), len(buf))
}

func (h *Host) forwardMIDI(nframes uint32) {
	events := h.midi.GetMidiEvents(nframes)
	ch := h.capture.Load()
	if ch == nil {
		return
	}
	for _, e := range events {
		ev, ok := toMIDI(e.Time, e.Buffer)
		if !ok {
			continue
		}
		select {
		case *ch <- ev:
		default:
		}
	}
}

func (h *Host) bufferSize(nframes uint32) int {
	h.engine.Prepare(int(h.client.GetSampleRate()), int(nframes))
	return 0
}

func (h *Host) portConnect(_, _ jack.PortId, _ bool) {
	h.dirty.Store(true)
}

func (h *Host) serverGone() {
	h.downOnce.Do(func() {
		h.engine.AttachProcessor(false)
		close(h.shutdown)
	})
	h.logger.Error("jack server shut down the client", h.logger.Field().String("mixer", h.engine.Name()))
}

// maintain refreshes routing after graph changes and releases retired ports.
func (h *Host) maintain() {
	defer h.wg.Done()
	ticker := time.NewTicker(maintainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-h.shutdown:
			return
		case <-ticker.C:
			if h.dirty.Swap(false) {
				h.refreshRouting()
			}
			h.mu.Lock()
			h.pending = reap(h.pending, h.done.Load(), h.unregister)
			h.mu.Unlock()
		}
	}
}

func (h *Host) refreshRouting() {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := h.table.Load().clone()
	next.each(func(_ string, _ int, p *pair[*jack.Port]) {
		p.routed = len(p.legs[0].GetConnections()) > 0 || len(p.legs[1].GetConnections()) > 0
	})
	h.table.Store(next)
}

func (h *Host) unregister(p *jack.Port) {
	if code := h.client.PortUnregister(p); code != 0 {
		h.logger.Warn("jack port unregister failed", h.logger.Field().Error("error", jack.StrError(code)))
	}
}

// StripAdded registers the input and output pairs of a strip.
func (h *Host) StripAdded(strip int) {
	in, errIn := h.register(kindInput, strip, jack.PortIsInput)
	out, errOut := h.register(kindOutput, strip, jack.PortIsOutput)
	if errIn != nil || errOut != nil {
		h.logger.Error("strip ports not registered",
			h.logger.Field().String("mixer", h.engine.Name()),
			h.logger.Field().Int("strip", strip))
	}
	h.mu.Lock()
	next := h.table.Load().clone()
	next.in[strip] = in
	next.out[strip] = out
	h.table.Store(next)
	h.mu.Unlock()
	h.dirty.Store(true)
}

// StripRemoved detaches the strip's ports and unregisters them once the
// process callback has moved past them.
func (h *Host) StripRemoved(strip int) {
	h.drop(func(t *portTable[*jack.Port]) []*pair[*jack.Port] {
		return []*pair[*jack.Port]{&t.in[strip], &t.out[strip]}
	})
}

// SendAdded registers the output pair of a send bus.
func (h *Host) SendAdded(send int) {
	p, err := h.register(kindSend, send, jack.PortIsOutput)
	if err != nil {
		h.logger.Error("send ports not registered",
			h.logger.Field().String("mixer", h.engine.Name()),
			h.logger.Field().Int("send", send))
	}
	h.mu.Lock()
	next := h.table.Load().clone()
	next.sends[send] = p
	h.table.Store(next)
	h.mu.Unlock()
	h.dirty.Store(true)
}

// SendRemoved detaches a send bus's ports.
func (h *Host) SendRemoved(send int) {
	h.drop(func(t *portTable[*jack.Port]) []*pair[*jack.Port] {
		return []*pair[*jack.Port]{&t.sends[send]}
	})
}

func (h *Host) drop(pick func(*portTable[*jack.Port]) []*pair[*jack.Port]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := h.table.Load().clone()
	var ports []*jack.Port
	for _, p := range pick(next) {
		if p.registered() {
			ports = append(ports, p.legs[:]...)
		}
		*p = pair[*jack.Port]{}
	}
	h.table.Store(next)
	cycle := h.cycles.Load()
	for _, port := range ports {
		h.pending = append(h.pending, retired[*jack.Port]{port: port, cycle: cycle})
	}
}

func (h *Host) register(kind string, idx int, flags uint64) (pair[*jack.Port], error) {
	var p pair[*jack.Port]
	for leg := range p.legs {
		name := portName(kind, idx, leg)
		port := h.client.PortRegister(name, jack.DEFAULT_AUDIO_TYPE, flags, 0)
		if port == nil {
			for _, done := range p.legs[:leg] {
				h.client.PortUnregister(done)
			}
			return pair[*jack.Port]{}, fmt.Errorf("registering jack port %s", name)
		}
		p.legs[leg] = port
	}
	return p, nil
}

var _ contracts.TopologyObserver = (*Host)(nil)
var _ contracts.MIDISource = (*Host)(nil)
