package cmd

import (
	"fmt"

	"github.com/jmacd/mtcmidi/generator/pmout"
	"github.com/jmacd/mtcmidi/listener"
	"github.com/rakyll/portmidi"
	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI inputs and outputs",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer listener.CloseDriver()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "inputs:")
		for _, name := range listener.Ports() {
			fmt.Fprintf(out, "  %s\n", name)
		}

		if err := portmidi.Initialize(); err != nil {
			return fmt.Errorf("initializing portmidi: %w", err)
		}
		defer portmidi.Terminate()

		fmt.Fprintln(out, "outputs:")
		for _, name := range pmout.Ports() {
			fmt.Fprintf(out, "  %s\n", name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
