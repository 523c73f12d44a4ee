package main

import (
	"fmt"

	"github.com/leandrodaf/zynmixer/internal/logger"
	"github.com/leandrodaf/zynmixer/sdk/contracts"
	"github.com/leandrodaf/zynmixer/sdk/mixer"
)

func main() {
	log := logger.NewZapLogger()

	mix, err := mixer.NewMixer(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
		contracts.WithName("example"),
		contracts.WithMaxChannels(8),
		contracts.WithMaxSends(2),
	)
	if err != nil {
		log.Error("Failed to create mixer", log.Field().Error("error", err))
		return
	}
	defer mix.Close()

	sub := mix.Subscribe(64)
	defer sub.Close()

	guitar := mix.AddStrip()
	vocals := mix.AddStrip()
	reverb := mix.AddSend()
	if guitar == contracts.Failure || vocals == contracts.Failure || reverb == contracts.Failure {
		log.Error("Failed to allocate strips")
		return
	}

	mix.SetLevel(guitar, 0.6)
	mix.SetBalance(guitar, -0.3)
	mix.SetSend(vocals, reverb, 0.4)
	mix.SetSendMode(vocals, reverb, contracts.PreFader)
	mix.SetSolo(vocals, true)
	fmt.Println("Global solo:", mix.GlobalSolo())

	c, err := contracts.ParseControl("send_mode_00")
	if err == nil {
		fmt.Printf("%s on strip %d = %v\n", c.DisplayName(), vocals, mix.ControlValue(vocals, c))
	}

	mix.Reset()

	for {
		select {
		case n := <-sub.C():
			log.Info("Mixer change",
				log.Field().String("bus", n.Bus.String()),
				log.Field().Int("strip", n.Strip),
				log.Field().String("control", n.Symbol()),
				log.Field().Float64("value", n.Value),
			)
		default:
			fmt.Println("Strips:", mix.Strips(), "sends:", mix.Sends())
			return
		}
	}
}
