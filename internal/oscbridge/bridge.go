// Package oscbridge mirrors mixer state to OSC clients: every committed
// parameter write and a periodic meter stream.
package oscbridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/hypebeast/go-osc/osc"
	"github.com/leandrodaf/zynmixer/sdk/contracts"
)

const (
	DefaultPort          = 1370
	DefaultMaxClients    = 5
	DefaultMeterInterval = 10 * time.Millisecond
	DefaultAddress       = `/mixer/{{ ternary "buses" "channels" (eq .Bus "main") }}/{{ .Strip }}/{{ .Symbol }}`

	notifyBuffer = 256
	meterScale   = 100000
)

var (
	ErrTooManyClients = errors.New("osc client limit reached")
	ErrInvalidClient  = errors.New("invalid osc client address")
)

// Sender delivers one packet to a client. *osc.Client satisfies it.
type Sender interface {
	Send(packet osc.Packet) error
}

// DialFunc opens a sender towards host:port.
type DialFunc func(host string, port int) Sender

func dialUDP(host string, port int) Sender {
	return osc.NewClient(host, port)
}

// Options configure a Bridge. Zero values take the package defaults.
type Options struct {
	Port            int
	MaxClients      int
	MeterInterval   time.Duration
	AddressTemplate string
	Dial            DialFunc
}

type client struct {
	host   string
	sender Sender
}

type addressKey struct {
	bus    contracts.BusKind
	strip  int
	symbol string
}

type meterKey struct {
	bus   contracts.BusKind
	strip int
	leg   int
}

// Bridge forwards notifications from a set of mixers to registered clients.
type Bridge struct {
	logger  contracts.Logger
	mixers  []contracts.Mixer
	opts    Options
	address *template.Template

	mu        sync.Mutex
	clients   []client
	addresses map[addressKey]string
	lastMeter map[meterKey]int
}

// New builds a bridge over the given mixers.
func New(logger contracts.Logger, opts Options, mixers ...contracts.Mixer) (*Bridge, error) {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.MaxClients == 0 {
		opts.MaxClients = DefaultMaxClients
	}
	if opts.MeterInterval == 0 {
		opts.MeterInterval = DefaultMeterInterval
	}
	if opts.AddressTemplate == "" {
		opts.AddressTemplate = DefaultAddress
	}
	if opts.Dial == nil {
		opts.Dial = dialUDP
	}
	tmpl, err := template.New("address").Funcs(sprig.TxtFuncMap()).Parse(opts.AddressTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing osc address template: %w", err)
	}
	return &Bridge{
		logger:    logger,
		mixers:    mixers,
		opts:      opts,
		address:   tmpl,
		addresses: make(map[addressKey]string),
		lastMeter: make(map[meterKey]int),
	}, nil
}

// AddClient registers an IP address and sends it the full state of every strip.
// Registering a known client again only repeats the state dump.
func (b *Bridge) AddClient(host string) error {
	if net.ParseIP(host) == nil {
		return fmt.Errorf("%w: %q", ErrInvalidClient, host)
	}

	b.mu.Lock()
	var c *client
	for i := range b.clients {
		if b.clients[i].host == host {
			c = &b.clients[i]
			break
		}
	}
	if c == nil {
		if len(b.clients) >= b.opts.MaxClients {
			b.mu.Unlock()
			b.logger.Warn("osc client rejected",
				b.logger.Field().String("client", host),
				b.logger.Field().Int("maxClients", b.opts.MaxClients))
			return fmt.Errorf("%w: %d", ErrTooManyClients, b.opts.MaxClients)
		}
		b.clients = append(b.clients, client{host: host, sender: b.opts.Dial(host, b.opts.Port)})
		c = &b.clients[len(b.clients)-1]
	}
	target := []client{*c}
	clear(b.lastMeter)
	b.mu.Unlock()

	b.logger.Info("osc client added", b.logger.Field().String("client", host))
	for _, m := range b.mixers {
		b.dumpState(m, target)
	}
	return nil
}

// RemoveClient unregisters host. Unknown hosts are ignored.
func (b *Bridge) RemoveClient(host string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.clients {
		if b.clients[i].host == host {
			b.clients = append(b.clients[:i], b.clients[i+1:]...)
			b.logger.Info("osc client removed", b.logger.Field().String("client", host))
			return
		}
	}
}

// Clients returns the registered hosts in registration order.
func (b *Bridge) Clients() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.clients))
	for i, c := range b.clients {
		out[i] = c.host
	}
	return out
}

// Run forwards notifications and polls meters until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, m := range b.mixers {
		sub := m.Subscribe(notifyBuffer)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sub.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case n, ok := <-sub.C():
					if !ok {
						return
					}
					b.Forward(n)
				}
			}
		}()
	}

	ticker := time.NewTicker(b.opts.MeterInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case <-ticker.C:
			b.PollMeters()
		}
	}
}

// Forward sends one notification to every client.
func (b *Bridge) Forward(n contracts.Notification) {
	clients := b.snapshot()
	if len(clients) == 0 {
		return
	}
	b.send(clients, b.message(n.Bus, n.Strip, n.Control, n.Value))
}

// PollMeters sends each strip's meter readings that moved since the last poll.
func (b *Bridge) PollMeters() {
	clients := b.snapshot()
	if len(clients) == 0 {
		return
	}
	for _, m := range b.mixers {
		strips := m.Strips()
		if len(strips) == 0 {
			continue
		}
		first, last := strips[0], strips[len(strips)-1]
		states := m.DPMStates(first, last)
		for _, strip := range strips {
			st := states[strip-first]
			for leg, v := range [...]float32{st.PeakA, st.PeakB, st.HoldA, st.HoldB} {
				if !b.meterMoved(meterKey{bus: m.Bus(), strip: strip, leg: leg}, v) {
					continue
				}
				msg := osc.NewMessage(b.addressFor(m.Bus(), strip, meterSymbols[leg]))
				msg.Append(v)
				b.send(clients, msg)
			}
		}
	}
}

var meterSymbols = [...]string{"dpma", "dpmb", "holda", "holdb"}

func (b *Bridge) meterMoved(k meterKey, v float32) bool {
	scaled := int(meterScale * v)
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.lastMeter[k]; ok && prev == scaled {
		return false
	}
	b.lastMeter[k] = scaled
	return true
}

func (b *Bridge) dumpState(m contracts.Mixer, to []client) {
	sends := m.Sends()
	for _, strip := range m.Strips() {
		for _, p := range stateParams {
			if p == contracts.ParamNormalise && strip == contracts.MainStrip {
				continue
			}
			c := contracts.Ctrl(p)
			b.send(to, b.message(m.Bus(), strip, c, m.ControlValue(strip, c)))
		}
		if strip == contracts.MainStrip {
			continue
		}
		for _, k := range sends {
			for _, p := range [...]contracts.Param{contracts.ParamSend, contracts.ParamSendMode} {
				c := contracts.SendCtrl(p, k)
				b.send(to, b.message(m.Bus(), strip, c, m.ControlValue(strip, c)))
			}
		}
	}
	for _, k := range sends {
		c := contracts.SendCtrl(contracts.ParamReturn, k)
		b.send(to, b.message(m.Bus(), contracts.MainStrip, c, m.ControlValue(contracts.MainStrip, c)))
	}
}

var stateParams = [...]contracts.Param{
	contracts.ParamBalance,
	contracts.ParamLevel,
	contracts.ParamMono,
	contracts.ParamMute,
	contracts.ParamPhase,
	contracts.ParamSolo,
	contracts.ParamMS,
	contracts.ParamNormalise,
}

func (b *Bridge) message(bus contracts.BusKind, strip int, c contracts.Control, value float64) *osc.Message {
	symbol := c.Symbol()
	if c.Param == contracts.ParamLevel {
		symbol = "fader"
	}
	msg := osc.NewMessage(b.addressFor(bus, strip, symbol))
	if c.Param.Boolean() || c.Param == contracts.ParamSendMode {
		msg.Append(int32(value))
	} else {
		msg.Append(float32(value))
	}
	return msg
}

func (b *Bridge) addressFor(bus contracts.BusKind, strip int, symbol string) string {
	key := addressKey{bus: bus, strip: strip, symbol: symbol}
	b.mu.Lock()
	addr, ok := b.addresses[key]
	b.mu.Unlock()
	if ok {
		return addr
	}

	var buf bytes.Buffer
	data := struct {
		Bus    string
		Strip  int
		Symbol string
	}{bus.String(), strip, symbol}
	if err := b.address.Execute(&buf, data); err != nil {
		b.logger.Error("osc address template failed",
			b.logger.Field().Error("error", err),
			b.logger.Field().String("symbol", symbol))
		return fmt.Sprintf("/mixer/%s/%d/%s", bus, strip, symbol)
	}
	addr = buf.String()
	b.mu.Lock()
	b.addresses[key] = addr
	b.mu.Unlock()
	return addr
}

func (b *Bridge) snapshot() []client {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]client(nil), b.clients...)
}

func (b *Bridge) send(to []client, msg *osc.Message) {
	for _, c := range to {
		if err := c.sender.Send(msg); err != nil {
			b.logger.Warn("osc send failed",
				b.logger.Field().String("client", c.host),
				b.logger.Field().String("address", msg.Address),
				b.logger.Field().Error("error", err))
		}
	}
}
