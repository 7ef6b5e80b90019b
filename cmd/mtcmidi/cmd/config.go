package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the configuration in YAML format, after defaults, the config
file and MTCMIDI_ environment variables have been applied.

  mtcmidi config dump > mtcmidi.yaml

Environment variables use the MTCMIDI_ prefix and underscores for
nesting, e.g. midi.input -> MTCMIDI_MIDI_INPUT.`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

func runConfigDump(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	data, err := cfg.YAML()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "# mtcmidi configuration")
	fmt.Fprintln(out, "#")
	fmt.Fprintln(out, "# Durations use Go syntax: 500ms, 5s, 1m.")
	fmt.Fprintln(out, "")
	_, err = out.Write(data)
	return err
}
