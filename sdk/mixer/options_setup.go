package mixer

import (
	"github.com/leandrodaf/zynmixer/internal/logger"
	"github.com/leandrodaf/zynmixer/sdk/contracts"
)

// applyDefaultOptions fills in everything the caller left unset.
func applyDefaultOptions(opts ...contracts.Option) contracts.ClientOptions {
	options := &contracts.ClientOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
		options.Logger.SetLevel(options.LogLevel)
		if options.LogFilePath != "" {
			options.Logger.SetDestination(contracts.FileLog, options.LogFilePath)
		}
	}
	if options.MaxChannels == 0 {
		options.MaxChannels = contracts.DefaultMaxChannels
	}
	if options.MaxSends == 0 {
		options.MaxSends = options.MaxChannels
	}
	if options.DPMDecay == 0 {
		options.DPMDecay = contracts.DefaultDPMDecay
	}
	return *options
}
