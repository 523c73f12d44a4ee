// Package engine implements the mixer: strip and send registry, parameter
// store, solo coordination, peak metering and the real-time block processor.
//
// Control calls may come from any goroutine. Process is meant for a single
// real-time goroutine; it never locks, blocks or allocates.
package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/leandrodaf/zynmixer/internal/notify"
	"github.com/leandrodaf/zynmixer/sdk/contracts"
)

// ErrInvalidConfig is returned by New when the configuration cannot produce a mixer.
var ErrInvalidConfig = errors.New("invalid mixer configuration")

// Config describes one mixer instance.
type Config struct {
	Name        string
	Bus         contracts.BusKind
	MaxChannels int
	MaxSends    int
	DPMDecay    float64
	Logger      contracts.Logger
}

// Engine is a mixer instance. The zero value is not usable; call New.
type Engine struct {
	id          string
	name        string
	bus         contracts.BusKind
	logger      contracts.Logger
	maxChannels int
	maxSends    int
	decay       float32

	mu       sync.Mutex // structural changes, and write+publish ordering
	strips   []stripSlot
	sends    []sendSlot
	observer contracts.TopologyObserver
	closed   bool

	notify *notify.Bus

	attached      atomic.Bool
	blocksStarted atomic.Uint64
	blocksDone    atomic.Uint64
	meterSeq      atomic.Uint64
	scratch       atomic.Pointer[scratch]

	// audio goroutine only
	dampCount int
	holdCount int
}

// New creates a mixer with the main bus (strip 0) allocated.
func New(cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ErrInvalidConfig)
	}
	if cfg.MaxChannels == 0 {
		cfg.MaxChannels = contracts.DefaultMaxChannels
	}
	if cfg.MaxSends == 0 {
		cfg.MaxSends = cfg.MaxChannels
	}
	if cfg.DPMDecay == 0 {
		cfg.DPMDecay = contracts.DefaultDPMDecay
	}
	if cfg.MaxChannels < 1 || cfg.MaxSends < 0 {
		return nil, fmt.Errorf("%w: capacity %d strips / %d sends", ErrInvalidConfig, cfg.MaxChannels, cfg.MaxSends)
	}
	if cfg.DPMDecay <= 0 || cfg.DPMDecay >= 1 || math.IsNaN(cfg.DPMDecay) {
		return nil, fmt.Errorf("%w: dpm decay %v outside (0,1)", ErrInvalidConfig, cfg.DPMDecay)
	}
	if cfg.Name == "" {
		cfg.Name = "zynmixer_" + cfg.Bus.String()
	}

	e := &Engine{
		id:          uuid.NewString(),
		name:        cfg.Name,
		bus:         cfg.Bus,
		logger:      cfg.Logger,
		maxChannels: cfg.MaxChannels,
		maxSends:    cfg.MaxSends,
		decay:       float32(cfg.DPMDecay),
		strips:      make([]stripSlot, cfg.MaxChannels),
		sends:       make([]sendSlot, cfg.MaxSends),
		notify:      notify.NewBus(cfg.Logger),
	}
	for i := range e.strips {
		e.strips[i].init(cfg.MaxSends)
	}
	e.strips[contracts.MainStrip].reset(e.maxSends)
	e.strips[contracts.MainStrip].state.Store(slotActive)

	e.logger.Info("mixer created",
		e.logger.Field().String("mixer", e.name),
		e.logger.Field().String("bus", e.bus.String()),
		e.logger.Field().Int("maxChannels", e.maxChannels),
		e.logger.Field().Int("maxSends", e.maxSends))
	return e, nil
}

// ID returns a unique identifier for this instance.
func (e *Engine) ID() string { return e.id }

// Name returns the instance name.
func (e *Engine) Name() string { return e.name }

// Bus returns the bus kind that tags this instance's notifications.
func (e *Engine) Bus() contracts.BusKind { return e.bus }

// Subscribe returns a subscription to parameter change notifications.
func (e *Engine) Subscribe(buffer int) contracts.Subscription {
	return e.notify.Subscribe(buffer)
}

// SetObserver installs the observer told about topology changes. Pass nil to remove.
func (e *Engine) SetObserver(o contracts.TopologyObserver) {
	e.mu.Lock()
	e.observer = o
	e.mu.Unlock()
}

// AttachProcessor declares whether a goroutine is calling Process. While
// detached, removed indices are reusable immediately.
func (e *Engine) AttachProcessor(attached bool) {
	e.attached.Store(attached)
}

// BlockSeq returns the number of blocks the processor has started.
func (e *Engine) BlockSeq() uint64 {
	return e.blocksStarted.Load()
}

// Quiesced reports whether a block that started after seq has completed, or
// no processor is attached.
func (e *Engine) Quiesced(seq uint64) bool {
	return !e.attached.Load() || e.blocksDone.Load() > seq
}

// Close mutes the main bus and ends notification delivery. Control calls
// remain safe afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	// the gain ramp fades the main bus out over the next block
	e.strips[contracts.MainStrip].mute.Store(true)
	e.mu.Unlock()

	e.notify.Close()
	e.logger.Info("mixer closed", e.logger.Field().String("mixer", e.name))
	return nil
}

func (e *Engine) publish(strip int, c contracts.Control, value float64) {
	e.notify.Publish(contracts.Notification{
		Bus:     e.bus,
		Strip:   strip,
		Control: c,
		Value:   value,
	})
}

func (e *Engine) publishBool(strip int, p contracts.Param, v bool) {
	e.publish(strip, contracts.Ctrl(p), boolValue(v))
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

var _ contracts.Mixer = (*Engine)(nil)
