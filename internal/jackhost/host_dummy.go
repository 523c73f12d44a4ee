//go:build !(linux && cgo)

package jackhost

import (
	"github.com/leandrodaf/zynmixer/internal/engine"
	"github.com/leandrodaf/zynmixer/sdk/contracts"
)

// Host is a placeholder on platforms without JACK support.
type Host struct{}

// Open always fails with ErrJACKUnavailable.
func Open(_ *engine.Engine, logger contracts.Logger, opts Options) (*Host, error) {
	logger.Warn("jack host requested on an unsupported build", logger.Field().String("client", opts.ClientName))
	return nil, ErrJACKUnavailable
}

func (h *Host) Done() <-chan struct{} { return nil }
func (h *Host) StartCapture(ch chan contracts.MIDI) {}
func (h *Host) Stop() error { return nil }
func (h *Host) Close() error { return nil }
