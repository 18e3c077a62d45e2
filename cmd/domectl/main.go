package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/oakmount-obs/domectl/pkg/config"
	"github.com/oakmount-obs/domectl/pkg/state"
	"github.com/oakmount-obs/domectl/pkg/version"
)

var (
	logLevel   = "info"
	configPath = config.DefaultPath
	statePath  = state.DefaultPath
)

var (
	gBasic        = "Basic:"
	gCalibration  = "Calibration:"
	gMaintenance  = "Maintenance:"
	commandGroups = []string{
		gBasic,
		gCalibration,
		gMaintenance,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domectl",
		Short: "domectl drives a motorized observatory dome",
		Long: `domectl drives a motorized observatory dome: azimuth rotation, homing
and the shutter, through a digital I/O interface board.

Each invocation performs one operation and exits. The dome position and
shutter state are carried between invocations in a state file; the INDI
dome driver runs these commands one at a time.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger()
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")
	globalFlags.StringVar(&statePath, "state", statePath, "state file path")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewVersionCommand(),
		NewConnectCommand(),
		NewDisconnectCommand(),
		NewStatusCommand(),
		NewGotoCommand(),
		NewMoveCWCommand(),
		NewMoveCCWCommand(),
		NewOpenCommand(),
		NewCloseCommand(),
		NewParkCommand(),
		NewAbortCommand(),
		NewCalibrateCommand(),
		NewStateCommand(),
		NewHWTestCommand(),
	)

	return cmd
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}
