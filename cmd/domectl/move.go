package main

import (
	"github.com/spf13/cobra"

	"github.com/oakmount-obs/domectl/pkg/dome"
)

func NewMoveCWCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "move-cw",
		Short:   "Start clockwise rotation",
		GroupID: gBasic,
		Long: `Start rotating the dome clockwise and return immediately. The dome
keeps turning until "abort" releases the motor relay.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runEngine("move-cw", func(e *dome.Engine) error {
				return e.MoveCW()
			})
		},
	}
}

func NewMoveCCWCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "move-ccw",
		Short:   "Start counter-clockwise rotation",
		GroupID: gBasic,
		Long: `Start rotating the dome counter-clockwise and return immediately. The
dome keeps turning until "abort" releases the motor relay.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runEngine("move-ccw", func(e *dome.Engine) error {
				return e.MoveCCW()
			})
		},
	}
}
