// Package main is the entry point for the mtcmidi tool.
package main

import (
	"os"

	"github.com/jmacd/mtcmidi/cmd/mtcmidi/cmd"

	// Registers the rtmidi driver used by the listener.
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
