// Package mixer builds in-process mixer engines.
package mixer

import (
	"github.com/leandrodaf/zynmixer/internal/engine"
	"github.com/leandrodaf/zynmixer/sdk/contracts"
)

// NewMixer creates a mixer with its main bus allocated.
//
// Without options it uses a zap logger at info level, 32 strips, 32 sends
// and the channel bus tag.
func NewMixer(opts ...contracts.Option) (contracts.Mixer, error) {
	options := applyDefaultOptions(opts...)
	e, err := engine.New(engine.Config{
		Name:        options.Name,
		Bus:         options.BusKind,
		MaxChannels: options.MaxChannels,
		MaxSends:    options.MaxSends,
		DPMDecay:    options.DPMDecay,
		Logger:      options.Logger,
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}
