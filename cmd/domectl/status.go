package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oakmount-obs/domectl/pkg/dome"
	"github.com/oakmount-obs/domectl/pkg/state"
)

// statusLine renders the one-line machine form the INDI driver polls:
// parked flag, shutter-open flag, azimuth.
func statusLine(d *state.Dome, az float64) string {
	parked := 0
	if d.IsHome {
		parked = 1
	}
	open := 0
	if d.Shutter == state.ShutterOpen {
		open = 1
	}
	return fmt.Sprintf("%d %d %.1f", parked, open, az)
}

type statusJSON struct {
	Azimuth   float64            `json:"azimuth"`
	Direction state.Direction    `json:"direction"`
	Parked    bool               `json:"parked"`
	Turning   bool               `json:"turning"`
	Shutter   state.ShutterState `json:"shutter"`
	Connected bool               `json:"connected"`

	Diagnostics dome.Diagnostics `json:"diagnostics"`
}

func NewStatusCommand() *cobra.Command {
	var human, jsonOut bool

	cmd := &cobra.Command{
		Use:     "status [file]",
		Short:   "Report the dome position and shutter state",
		GroupID: gBasic,
		Args:    cobra.MaximumNArgs(1),
		Long: `Report the dome state. The home switch and encoder are read live; the
last fixed position comes from the state file.

By default a single machine-readable line "<parked> <shutter-open>
<azimuth>" is printed, or written to the given file, which is the form
the INDI driver polls. --human prints a readable report, --json the full
record with encoder diagnostics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine("status", func(e *dome.Engine) error {
				az, err := e.CurrentAzimuth()
				if err != nil {
					return err
				}
				d := e.Dome()

				switch {
				case jsonOut:
					diag, err := e.ReadDiagnostics()
					if err != nil {
						return err
					}
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(statusJSON{
						Azimuth:     az,
						Direction:   d.Direction,
						Parked:      d.IsHome,
						Turning:     d.IsTurning,
						Shutter:     d.Shutter,
						Connected:   d.Connected,
						Diagnostics: diag,
					})
				case human:
					diag, err := e.ReadDiagnostics()
					if err != nil {
						return err
					}
					cmd.Println(bold("Dome:"))
					cmd.Printf("  Azimuth: %s\n", bold("%.1f°", az))
					cmd.Printf("  Parked (at home): %s\n", bool2Text(d.IsHome))
					cmd.Printf("  Turning: %s (last direction %s)\n", bool2Text(d.IsTurning), d.Direction)
					cmd.Println(bold("Shutter:"))
					cmd.Printf("  State: %s\n", bold("%s", d.Shutter))
					cmd.Println(bold("Encoder:"))
					cmd.Printf("  Ticks: %d\n", diag.EncoderTicks)
					cmd.Printf("  Home activations: %d\n", diag.HomeCount)
					cmd.Printf("  Errors: %d\n", diag.EncoderErrors)
					return nil
				default:
					line := statusLine(d, az)
					if len(args) == 1 {
						return os.WriteFile(args[0], []byte(line+"\n"), 0o644)
					}
					cmd.Println(line)
					return nil
				}
			})
		},
	}

	cmd.Flags().BoolVar(&human, "human", false, "print a human-readable report")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the full record as JSON")

	return cmd
}
