package oscbridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/leandrodaf/zynmixer/internal/engine"
	"github.com/leandrodaf/zynmixer/internal/logger"
	"github.com/leandrodaf/zynmixer/sdk/contracts"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	mu   sync.Mutex
	host string
	port int
	msgs []*osc.Message
	err  error
}

func (r *recorder) Send(p osc.Packet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, p.(*osc.Message))
	return r.err
}

func (r *recorder) take() []*osc.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.msgs
	r.msgs = nil
	return out
}

func (r *recorder) find(address string) *osc.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.Address == address {
			return m
		}
	}
	return nil
}

func (r *recorder) has(address string, value any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.Address == address && len(m.Arguments) == 1 && m.Arguments[0] == value {
			return true
		}
	}
	return false
}

type rig struct {
	bridge  *Bridge
	mixer   *engine.Engine
	senders map[string]*recorder
	logs    *observer.ObservedLogs
}

func newRig(t *testing.T, opts Options) *rig {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.NewWithCore(core)
	mix, err := engine.New(engine.Config{Name: "chans", MaxChannels: 4, MaxSends: 2, Logger: log})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() { _ = mix.Close() })

	r := &rig{mixer: mix, senders: map[string]*recorder{}, logs: logs}
	opts.Dial = func(host string, port int) Sender {
		rec := &recorder{host: host, port: port}
		r.senders[host] = rec
		return rec
	}
	r.bridge, err = New(log, opts, mix)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestNewRejectsBadTemplate(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	if _, err := New(logger.NewWithCore(core), Options{AddressTemplate: "{{ .Strip"}); err == nil {
		t.Fatal("expected template error")
	}
}

func TestAddClientDumpsState(t *testing.T) {
	r := newRig(t, Options{})
	strip := r.mixer.AddStrip()
	send := r.mixer.AddSend()
	r.mixer.SetLevel(strip, 0.5)
	r.mixer.SetMute(strip, true)
	r.mixer.SetSend(strip, send, 0.25)

	if err := r.bridge.AddClient("10.0.0.2"); err != nil {
		t.Fatalf("AddClient: %v", err)
	}
	rec := r.senders["10.0.0.2"]
	if rec.port != DefaultPort {
		t.Errorf("dialled port %d, want %d", rec.port, DefaultPort)
	}

	tests := []struct {
		address string
		want    any
	}{
		{"/mixer/channels/1/fader", float32(0.5)},
		{"/mixer/channels/1/mute", int32(1)},
		{"/mixer/channels/1/solo", int32(0)},
		{"/mixer/channels/1/balance", float32(0)},
		{"/mixer/channels/1/send_00", float32(0.25)},
		{"/mixer/channels/1/send_mode_00", int32(0)},
		{"/mixer/channels/0/fader", float32(contracts.DefaultLevel)},
		{"/mixer/channels/0/return_00", float32(1)},
	}
	for _, tt := range tests {
		msg := rec.find(tt.address)
		if msg == nil {
			t.Errorf("%s not sent", tt.address)
			continue
		}
		if len(msg.Arguments) != 1 || msg.Arguments[0] != tt.want {
			t.Errorf("%s = %v, want %v", tt.address, msg.Arguments, tt.want)
		}
	}
	if rec.find("/mixer/channels/0/normalise") != nil {
		t.Error("main bus has no normalise control")
	}
	if rec.find("/mixer/channels/0/send_00") != nil {
		t.Error("main bus has no send taps")
	}
}

func TestClientLimit(t *testing.T) {
	r := newRig(t, Options{MaxClients: 2})
	for _, host := range []string{"10.0.0.1", "10.0.0.2"} {
		if err := r.bridge.AddClient(host); err != nil {
			t.Fatalf("AddClient(%s): %v", host, err)
		}
	}
	if err := r.bridge.AddClient("10.0.0.1"); err != nil {
		t.Errorf("re-adding a known client should succeed: %v", err)
	}
	if err := r.bridge.AddClient("10.0.0.3"); !errors.Is(err, ErrTooManyClients) {
		t.Errorf("expected ErrTooManyClients, got %v", err)
	}
	if err := r.bridge.AddClient("not-an-ip"); !errors.Is(err, ErrInvalidClient) {
		t.Errorf("expected ErrInvalidClient, got %v", err)
	}

	r.bridge.RemoveClient("10.0.0.1")
	r.bridge.RemoveClient("10.0.0.9")
	if got := r.bridge.Clients(); len(got) != 1 || got[0] != "10.0.0.2" {
		t.Errorf("clients = %v", got)
	}
	if err := r.bridge.AddClient("10.0.0.3"); err != nil {
		t.Errorf("slot should be free again: %v", err)
	}
}

func TestForward(t *testing.T) {
	r := newRig(t, Options{AddressTemplate: "/{{ .Bus | upper }}/{{ .Strip }}/{{ .Symbol }}"})
	if err := r.bridge.AddClient("127.0.0.1"); err != nil {
		t.Fatal(err)
	}
	rec := r.senders["127.0.0.1"]
	rec.take()

	r.bridge.Forward(contracts.Notification{Bus: contracts.ChannelBus, Strip: 2, Control: contracts.Ctrl(contracts.ParamSolo), Value: 1})
	r.bridge.Forward(contracts.Notification{Bus: contracts.MainBus, Strip: 0, Control: contracts.Ctrl(contracts.ParamLevel), Value: 0.3})

	msgs := rec.take()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Address != "/CHANNEL/2/solo" || msgs[0].Arguments[0] != int32(1) {
		t.Errorf("unexpected %s %v", msgs[0].Address, msgs[0].Arguments)
	}
	if msgs[1].Address != "/MAIN/0/fader" || msgs[1].Arguments[0] != float32(0.3) {
		t.Errorf("unexpected %s %v", msgs[1].Address, msgs[1].Arguments)
	}
}

func TestSendErrorsAreLogged(t *testing.T) {
	r := newRig(t, Options{})
	if err := r.bridge.AddClient("127.0.0.1"); err != nil {
		t.Fatal(err)
	}
	r.senders["127.0.0.1"].err = errors.New("network unreachable")
	r.bridge.Forward(contracts.Notification{Strip: 1, Control: contracts.Ctrl(contracts.ParamMute), Value: 1})
	if n := r.logs.FilterMessage("osc send failed").Len(); n != 1 {
		t.Errorf("expected 1 warning, got %d", n)
	}
}

func TestPollMetersSendsChanges(t *testing.T) {
	r := newRig(t, Options{})
	if err := r.bridge.AddClient("127.0.0.1"); err != nil {
		t.Fatal(err)
	}
	rec := r.senders["127.0.0.1"]
	rec.take()

	r.bridge.PollMeters()
	first := rec.take()
	if len(first) != 4 {
		t.Fatalf("first poll should send the main bus meters, got %d messages", len(first))
	}
	if first[0].Address != "/mixer/channels/0/dpma" || first[0].Arguments[0] != float32(contracts.DPMFloor) {
		t.Errorf("unexpected %s %v", first[0].Address, first[0].Arguments)
	}

	r.bridge.PollMeters()
	if got := rec.take(); len(got) != 0 {
		t.Errorf("unchanged meters were resent: %d messages", len(got))
	}

	if err := r.bridge.AddClient("127.0.0.2"); err != nil {
		t.Fatal(err)
	}
	r.bridge.PollMeters()
	if got := rec.take(); len(got) != 4 {
		t.Errorf("a new client should trigger a full meter refresh, got %d", len(got))
	}
}

func TestRunForwardsUntilCancelled(t *testing.T) {
	r := newRig(t, Options{MeterInterval: time.Hour})
	if err := r.bridge.AddClient("127.0.0.1"); err != nil {
		t.Fatal(err)
	}
	rec := r.senders["127.0.0.1"]

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.bridge.Run(ctx) }()

	rec.take()
	deadline := time.Now().Add(2 * time.Second)
	for !rec.has("/mixer/channels/0/phase", int32(1)) {
		if time.Now().After(deadline) {
			t.Fatal("notification was not forwarded")
		}
		r.mixer.TogglePhase(0)
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
