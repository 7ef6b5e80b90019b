package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jmacd/mtcmidi/internal/mqttout"
	"github.com/jmacd/mtcmidi/internal/observability"
	"github.com/jmacd/mtcmidi/internal/oscout"
	"github.com/jmacd/mtcmidi/internal/status"
	"github.com/jmacd/mtcmidi/listener"
	"github.com/jmacd/mtcmidi/mtc"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Follow MIDI Time Code on an input",
	Long: `Follow MIDI Time Code arriving on a MIDI input and log every
decoded position.

Optionally the latest position is served as JSON on the status
address, forwarded to an OSC receiver and published to an MQTT broker.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().String("input", "", "MIDI input name (substring match, default first input)")
	monitorCmd.Flags().Int("buffer-depth", 64, "messages buffered between the driver and the decoder")
	monitorCmd.Flags().Bool("status", false, "serve the latest timecode over HTTP")
	monitorCmd.Flags().String("status-listen", "127.0.0.1:8765", "status server address")
	monitorCmd.Flags().Bool("osc", false, "send every decoded timecode over OSC")
	monitorCmd.Flags().String("osc-address", "127.0.0.1:57120", "OSC receiver host:port")
	monitorCmd.Flags().Float64("tempo", 120, "BPM for the OSC beat position")
	monitorCmd.Flags().Bool("mqtt", false, "publish every decoded timecode to an MQTT broker")
	monitorCmd.Flags().String("mqtt-broker", "127.0.0.1:1883", "MQTT broker host:port")

	mustBindPFlag("midi.input", monitorCmd.Flags().Lookup("input"))
	mustBindPFlag("midi.buffer_depth", monitorCmd.Flags().Lookup("buffer-depth"))
	mustBindPFlag("status.enabled", monitorCmd.Flags().Lookup("status"))
	mustBindPFlag("status.listen", monitorCmd.Flags().Lookup("status-listen"))
	mustBindPFlag("osc.enabled", monitorCmd.Flags().Lookup("osc"))
	mustBindPFlag("osc.address", monitorCmd.Flags().Lookup("osc-address"))
	mustBindPFlag("osc.tempo", monitorCmd.Flags().Lookup("tempo"))
	mustBindPFlag("mqtt.enabled", monitorCmd.Flags().Lookup("mqtt"))
	mustBindPFlag("mqtt.broker", monitorCmd.Flags().Lookup("mqtt-broker"))
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	defer listener.CloseDriver()

	l, err := listener.Open(cfg.MIDI.Input,
		listener.WithLogger(observability.WithComponent(logger, "listener")),
		listener.WithBufferDepth(cfg.MIDI.BufferDepth),
	)
	if err != nil {
		return fmt.Errorf("opening MIDI input: %w", err)
	}
	defer l.Close()

	l.AddCallback(func(tc mtc.Timecode) {
		fmt.Fprintln(cmd.OutOrStdout(), tc)
	})

	if cfg.OSC.Enabled {
		em, err := oscout.Dial(cfg.OSC.Address, cfg.OSC.Prefix, l.SessionID(), cfg.OSC.Tempo,
			observability.WithComponent(logger, "osc"))
		if err != nil {
			return err
		}
		defer em.Close()
		l.AddCallback(em.Callback())
	}

	if cfg.MQTT.Enabled {
		pub, err := mqttout.Connect(cfg.MQTT, l.SessionID(),
			observability.WithComponent(logger, "mqtt"))
		if err != nil {
			return err
		}
		defer pub.Close()
		l.AddCallback(pub.Callback())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg := sync.WaitGroup{}
	errc := make(chan error, 2)

	if cfg.Status.Enabled {
		srv := status.New(l, observability.WithComponent(logger, "status"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			errc <- srv.Run(ctx, cfg.Status.Listen, cfg.Status.ShutdownTimeout)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		errc <- l.Run(ctx)
	}()

	err = <-errc
	cancel()
	wg.Wait()

	st := l.Stats()
	logger.Info().
		Uint64("messages", st.Messages).
		Uint64("bytes", st.Bytes).
		Uint64("published", st.Published).
		Uint64("overflows", st.Overflows).
		Uint64("drops", l.Slot().Drops()).
		Msg("monitor stopped")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
