// Command zynmixerd runs the audio mixers as JACK clients, mirrors their state
// to OSC clients and maps a MIDI control surface onto them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/leandrodaf/zynmixer/internal/config"
	"github.com/leandrodaf/zynmixer/internal/engine"
	"github.com/leandrodaf/zynmixer/internal/jackhost"
	"github.com/leandrodaf/zynmixer/internal/logger"
	"github.com/leandrodaf/zynmixer/internal/oscbridge"
	"github.com/leandrodaf/zynmixer/internal/surface"
	"github.com/leandrodaf/zynmixer/sdk/contracts"
	"github.com/leandrodaf/zynmixer/sdk/midi"
	"go.uber.org/multierr"
)

var errServerGone = errors.New("jack server shut down")

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	log := logger.NewZapLogger()
	err := run(*configPath, *logLevel, log)
	if s, ok := log.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "zynmixerd:", err)
		os.Exit(1)
	}
}

func run(path, level string, log contracts.Logger) (err error) {
	cfg := config.Default()
	if path != "" {
		if cfg, err = config.Load(path); err != nil {
			return err
		}
	}
	if level != "" {
		cfg.Log.Level = level
	}
	lvl, err := contracts.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	if cfg.Log.File != "" {
		log.SetDestination(contracts.FileLog, cfg.Log.File)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
		log.Info("zynmixerd stopped")
	}()

	var (
		mixers   []contracts.Mixer
		jackMIDI contracts.MIDISource
		wg       sync.WaitGroup
	)
	for _, mc := range cfg.Mixers {
		bus, _ := contracts.ParseBusKind(mc.Bus)
		eng, err := engine.New(engine.Config{
			Name:        mc.Name,
			Bus:         bus,
			MaxChannels: mc.MaxChannels,
			MaxSends:    mc.MaxSends,
			DPMDecay:    mc.DPMDecay,
			Logger:      log,
		})
		if err != nil {
			return fmt.Errorf("mixer %s: %w", mc.Name, err)
		}
		closers = append(closers, eng.Close)
		mixers = append(mixers, eng)

		for i := 0; i < mc.Strips; i++ {
			eng.AddStrip()
		}
		for i := 0; i < mc.Sends; i++ {
			eng.AddSend()
		}
		if mc.Metering {
			eng.EnableDPM(0, mc.MaxChannels-1, true)
		}

		if !mc.JACK.Enabled {
			continue
		}
		host, err := jackhost.Open(eng, log, jackhost.Options{
			ClientName:  mc.JACK.ClientName,
			StartServer: mc.JACK.StartServer,
			MIDIInput:   mc.JACK.MIDIInput,
			LockMemory:  mc.JACK.LockMemory,
		})
		if err != nil {
			return fmt.Errorf("mixer %s: %w", mc.Name, err)
		}
		closers = append(closers, host.Close)
		if mc.JACK.MIDIInput && jackMIDI == nil {
			jackMIDI = host
		}
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			select {
			case <-host.Done():
				cancel(fmt.Errorf("%w: %s", errServerGone, name))
			case <-ctx.Done():
			}
		}(mc.Name)
	}

	if cfg.OSC.Enabled {
		bridge, err := oscbridge.New(log, oscbridge.Options{
			Port:            cfg.OSC.Port,
			MaxClients:      cfg.OSC.MaxClients,
			MeterInterval:   cfg.OSC.MeterInterval,
			AddressTemplate: cfg.OSC.AddressTemplate,
		}, mixers...)
		if err != nil {
			return err
		}
		for _, host := range cfg.OSC.Clients {
			if err := bridge.AddClient(host); err != nil {
				return err
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = bridge.Run(ctx)
		}()
	}

	if src, err := surfaceSource(cfg.Surface, jackMIDI, log); err != nil {
		return err
	} else if src != nil {
		srf, err := surface.New(log, cfg.Surface.Rules, mixers...)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srf.Run(ctx, src, cfg.Surface.Buffer); err != nil {
				log.Warn("control surface stopped", log.Field().Error("error", err))
			}
		}()
	}

	log.Info("zynmixerd running", log.Field().Int("mixers", len(mixers)))
	<-ctx.Done()
	wg.Wait()

	if cause := context.Cause(ctx); errors.Is(cause, errServerGone) {
		return cause
	}
	return nil
}

func surfaceSource(cfg config.SurfaceConfig, jackMIDI contracts.MIDISource, log contracts.Logger) (contracts.MIDISource, error) {
	switch cfg.Source {
	case config.SourceJACK:
		return jackMIDI, nil
	case config.SourceDevice:
		client, err := midi.NewMIDIClient(contracts.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("control surface: %w", err)
		}
		if err := client.SelectDevice(cfg.Device); err != nil {
			return nil, fmt.Errorf("control surface: %w", err)
		}
		return client, nil
	}
	return nil, nil
}
