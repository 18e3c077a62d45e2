package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oakmount-obs/domectl/pkg/dome"
)

func NewConnectCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "connect",
		Short:   "Open the interface board and initialize the counters",
		GroupID: gBasic,
		Long: `Open the interface board, apply the configured counter debounce, clear
both counters and probe the home switch. Run once after powering up the
dome, before the first operation.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			if err := s.eng.Connect(); err != nil {
				return err
			}
			return s.store.Save(s.eng.Dome(), "connect")
		},
	}
}

func NewDisconnectCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "disconnect",
		Short:   "Stop all motion and close the interface board",
		GroupID: gBasic,
		Long: `Stop all dome motion, release every relay and close the board. Never
fails: whatever part of the hardware still responds is driven to a safe
state, the rest is logged.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			s, err := newSession()
			if err != nil {
				logrus.WithError(err).Error("Disconnect could not bring up the dome")
				return nil
			}
			if err := s.board.Open(); err != nil {
				logrus.WithError(err).Error("Disconnect could not open the board")
				return nil
			}
			s.eng.Disconnect()
			if err := s.store.Save(s.eng.Dome(), "disconnect"); err != nil {
				logrus.WithError(err).Error("Failed to save state")
			}
			return nil
		},
	}
}

func NewGotoCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "goto <azimuth>",
		Short:   "Rotate the dome to an azimuth",
		GroupID: gBasic,
		Long: `Rotate the dome to the given azimuth in degrees, taking the shorter
arc. Blocks until the encoder reports the target reached or the maximum
rotation time elapses.`,
		RunE: func(_ *cobra.Command, args []string) error {
			az, err := parseAzimuthArg(args)
			if err != nil {
				return err
			}
			return runEngine("goto", func(e *dome.Engine) error {
				return e.RotateTo(az)
			})
		},
	}
}

func NewParkCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "park",
		Aliases: []string{"home"},
		Short:   "Rotate the dome to the home position",
		GroupID: gBasic,
		Long: `Rotate the dome until the home switch asserts and re-reference the
position there. The home position is where the shutter docking contacts
mate, so the dome must be parked before the shutter can move.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runEngine("park", func(e *dome.Engine) error {
				return e.Home()
			})
		},
	}
}

func NewAbortCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "abort",
		Short:   "Stop all dome motion immediately",
		GroupID: gBasic,
		Long: `Release the rotation and shutter relays. The last line of defense:
always exits 0, even when the board is failing.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			err := runEngine("abort", func(e *dome.Engine) error {
				e.Abort()
				return nil
			})
			if err != nil {
				logrus.WithError(err).Error("Abort ran degraded")
			}
			return nil
		},
	}
}
