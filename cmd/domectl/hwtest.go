package main

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oakmount-obs/domectl/pkg/config"
	"github.com/oakmount-obs/domectl/pkg/hwio"
)

func NewHWTestCommand() *cobra.Command {
	var walkDelay time.Duration

	cmd := &cobra.Command{
		Use:     "hwtest",
		Short:   "Exercise every channel of the interface board",
		GroupID: gMaintenance,
		Long: `Walk each digital output on and off, then read every digital input,
analog input and counter. For bench-checking the board wiring; do not
run with the dome motors connected.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			board, err := cfg.NewBoard()
			if err != nil {
				return err
			}
			if err := board.Open(); err != nil {
				return err
			}
			defer func() {
				if err := board.Close(); err != nil {
					logrus.WithError(err).Warn("Failed to close board")
				}
			}()

			for ch := 1; ch <= hwio.NumDigitalOutputs; ch++ {
				if err := board.SetOutput(ch); err != nil {
					return err
				}
				time.Sleep(walkDelay)
				if err := board.ClearOutput(ch); err != nil {
					return err
				}
				cmd.Printf("digital output %d: pulsed\n", ch)
			}
			for ch := 1; ch <= hwio.NumDigitalInputs; ch++ {
				v, err := board.ReadInput(ch)
				if err != nil {
					return err
				}
				cmd.Printf("digital input %d: %t\n", ch, v)
			}
			for ch := 1; ch <= hwio.NumAnalogInputs; ch++ {
				v, err := board.ReadAnalog(ch)
				if err != nil {
					if errors.Is(err, hwio.ErrUnsupported) {
						cmd.Printf("analog input %d: not available on this backend\n", ch)
						continue
					}
					return err
				}
				cmd.Printf("analog input %d: %d\n", ch, v)
			}
			for id := 1; id <= hwio.NumCounters; id++ {
				v, err := board.ReadCounter(id)
				if err != nil {
					return err
				}
				cmd.Printf("counter %d: %d\n", id, v)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&walkDelay, "walk-delay", 200*time.Millisecond, "how long each output stays energized")

	return cmd
}
