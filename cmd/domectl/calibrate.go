package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oakmount-obs/domectl/pkg/dome"
	"github.com/oakmount-obs/domectl/pkg/state"
)

func NewCalibrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "calibrate",
		Aliases: []string{"cali"},
		Short:   "Measure the mechanical calibration values",
		GroupID: gCalibration,
		Long: `Measure the mechanical properties of the dome: the home switch region
and the encoder ticks per revolution. The results are printed for the
operator to put into the config file; nothing is written automatically.`,
	}

	var passes int
	homeCmd := &cobra.Command{
		Use:   "home",
		Short: "Measure the home switch region",
		Long: `Sweep the dome across the home switch from both directions, recording
the encoder ticks at which it asserts and releases, and average over all
passes. The switch contact spans several ticks and its CW and CCW edges
differ, so homing on one raw edge would land differently per approach;
this measures the region width and parks the dome centered on it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEngine("calibrate-home", func(e *dome.Engine) error {
				cal, err := e.CalibrateHome(passes)
				if err != nil {
					return err
				}
				cmd.Printf("passes:   %d\n", len(cal.Sweeps)/2)
				cmd.Printf("width:    %.1f ticks\n", cal.AvgWidth)
				cmd.Printf("midpoint: %.1f ticks from sweep start\n", cal.Midpoint)
				return nil
			})
		},
	}
	homeCmd.Flags().IntVar(&passes, "passes", 3, "bidirectional sweep passes (minimum 3)")

	revCmd := &cobra.Command{
		Use:   "revolution [cw|ccw]",
		Short: "Count the encoder ticks of one full revolution",
		Args:  cobra.MaximumNArgs(1),
		Long: `Home the dome, turn one full revolution in the given direction (default
cw) and count the encoder ticks until the home switch asserts again. Run
it in both directions and put the results in the config as
ticks_per_rev_cw and ticks_per_rev_ccw.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := state.CW
			if len(args) == 1 {
				switch strings.ToLower(args[0]) {
				case "cw":
				case "ccw":
					dir = state.CCW
				default:
					return fmt.Errorf("invalid direction %q, want cw or ccw", args[0])
				}
			}
			return runEngine("calibrate-revolution", func(e *dome.Engine) error {
				ticks, err := e.MeasureRevolution(dir)
				if err != nil {
					return err
				}
				cmd.Printf("%s revolution: %d ticks\n", dir, ticks)
				return nil
			})
		},
	}

	cmd.AddCommand(homeCmd, revCmd)
	return cmd
}
