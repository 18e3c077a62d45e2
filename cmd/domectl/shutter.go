package main

import (
	"github.com/spf13/cobra"

	"github.com/oakmount-obs/domectl/pkg/dome"
)

func NewOpenCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "open",
		Short:   "Open the shutter",
		GroupID: gBasic,
		Long: `Open the shutter. The dome must be parked at home, where the shutter
docking contacts mate. There is no position feedback on the shutter
drive: the command blocks for the full configured travel time, the limit
switch ends the mechanical motion, and the logical state is marked open
afterwards.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runEngine("open", func(e *dome.Engine) error {
				return e.Open()
			})
		},
	}
}

func NewCloseCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "close",
		Short:   "Close the shutter",
		GroupID: gBasic,
		Long: `Close the shutter. Same rules as "open": dome parked at home, blocking
for the full travel time, state marked closed afterwards.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runEngine("close", func(e *dome.Engine) error {
				return e.Close()
			})
		},
	}
}
