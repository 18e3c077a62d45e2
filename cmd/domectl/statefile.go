package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/oakmount-obs/domectl/pkg/state"
)

func NewStateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "state",
		Short:   "Inspect or reset the persisted dome state",
		GroupID: gMaintenance,
	}

	var jsonOut bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the persisted record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := state.NewStore(statePath).Load()
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(d)
			}
			cmd.Print(d.Summary())
			return nil
		},
	}
	showCmd.Flags().BoolVar(&jsonOut, "json", false, "print as JSON")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the state file",
		Long: `Delete the state file. The next command starts from a fresh dome:
azimuth 0, shutter closed, at rest. Use after moving the dome by hand,
then re-home before trusting the position.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return state.NewStore(statePath).Clear()
		},
	}

	cmd.AddCommand(showCmd, clearCmd)
	return cmd
}
