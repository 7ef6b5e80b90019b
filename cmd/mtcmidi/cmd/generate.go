package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmacd/mtcmidi/generator"
	"github.com/jmacd/mtcmidi/generator/pmout"
	"github.com/jmacd/mtcmidi/internal/observability"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Send MIDI Time Code to an output",
	Long: `Run as an MTC master: send quarter frames in real time, with a
full frame at start and every few cycles, to a MIDI output.`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().String("output", "", "MIDI output name (substring match, default output if empty)")
	generateCmd.Flags().String("rate", "25", "frame rate: 24, 25, 29.97 (drop-frame), 30")
	generateCmd.Flags().String("start", "00:00:00:00", "start position HH:MM:SS:FF")
	generateCmd.Flags().Int("full-frame-every", generator.DefaultFullFrameEvery, "quarter frame cycles between full frames, 0 for start only")

	mustBindPFlag("midi.output", generateCmd.Flags().Lookup("output"))
	mustBindPFlag("generator.rate", generateCmd.Flags().Lookup("rate"))
	mustBindPFlag("generator.start", generateCmd.Flags().Lookup("start"))
	mustBindPFlag("generator.full_frame_every", generateCmd.Flags().Lookup("full-frame-every"))
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	start, err := cfg.Generator.StartTimecode()
	if err != nil {
		return err
	}

	out, err := pmout.Open(cfg.MIDI.Output)
	if err != nil {
		return fmt.Errorf("opening MIDI output: %w", err)
	}

	log := observability.WithComponent(logger, "generator").With().Str("port", out.String()).Logger()
	g := generator.New(out, start,
		generator.WithLogger(log),
		generator.WithFullFrameEvery(cfg.Generator.FullFrameEvery),
	)
	defer g.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = g.Run(ctx)
	st := g.Stats()
	log.Info().
		Stringer("position", g.Position()).
		Uint64("quarter_frames", st.QuarterFrames).
		Uint64("full_frames", st.FullFrames).
		Msg("generator stopped")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
