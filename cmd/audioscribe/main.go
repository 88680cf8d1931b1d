package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/petems/audioscribe/internal/capture"
	"github.com/petems/audioscribe/internal/config"
	"github.com/petems/audioscribe/internal/device"
	"github.com/petems/audioscribe/internal/logging"
	"github.com/petems/audioscribe/internal/permissions"
	"github.com/petems/audioscribe/internal/record"
	"github.com/petems/audioscribe/internal/transcribe"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

var (
	flagDevice     string
	flagDuration   time.Duration
	flagFormat     string
	flagContinuous bool
)

func main() {
	// Load config from XDG/Library/AppData
	cfg, err := config.Load()
	if err != nil {
		log := logging.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	log := logging.NewWithLevel(cfg.LogLevel)

	root := &cobra.Command{
		Use:          "audioscribe",
		Short:        "Capture audio devices and hand recordings to a transcription pipeline",
		Version:      fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage: true,
	}

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture-capable audio devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevices(log)
		},
	}

	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Record from a device and dispatch the audio for transcription",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(log)
		},
	}
	recordCmd.Flags().StringVar(&flagDevice, "device", cfg.Audio.Device,
		`device to record: "<name> (input)", "<name> (output)" or "default"`)
	recordCmd.Flags().DurationVar(&flagDuration, "duration",
		time.Duration(cfg.Audio.ChunkSeconds)*time.Second, "maximum duration per recording chunk")
	recordCmd.Flags().StringVar(&flagFormat, "format", cfg.Audio.SampleFormat,
		"stream sample format (f32, i32, i16, i8)")
	recordCmd.Flags().BoolVar(&flagContinuous, "continuous", false,
		"keep recording chunks until interrupted")

	root.AddCommand(devicesCmd, recordCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDevices(log zerolog.Logger) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	enum := device.NewEnumerator(device.PortAudioHost{}, log)
	for _, dir := range []device.Direction{device.Input, device.Output} {
		list, err := enum.List(dir)
		if err != nil {
			return err
		}
		for _, d := range list {
			fmt.Println(d)
		}
	}

	if d, err := enum.DefaultInput(); err == nil {
		fmt.Printf("default input:  %s\n", d)
	}
	if d, err := enum.DefaultOutput(); err == nil {
		fmt.Printf("default output: %s\n", d)
	}
	return nil
}

func runRecord(log zerolog.Logger) error {
	// macOS requires explicit microphone approval before capture works
	if err := permissions.EnsurePermissions(); err != nil {
		return err
	}

	format, err := capture.ParseSampleFormat(flagFormat)
	if err != nil {
		return err
	}
	desc, err := parseDeviceFlag(flagDevice)
	if err != nil {
		return err
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	enum := device.NewEnumerator(device.PortAudioHost{}, log)
	resolver := device.NewResolver(enum, format)
	queue := transcribe.NewQueue()
	coordinator := record.NewCoordinator(resolver, queue, log)

	consumerDone := make(chan struct{})
	go consume(queue, log, consumerDone)

	var stopping atomic.Bool
	var current atomic.Pointer[capture.RunSignal]

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("Shutting down...")
		stopping.Store(true)
		if sig := current.Load(); sig != nil {
			sig.Stop()
		}
	}()

	// One run signal per chunk; the signal handler stops whichever chunk
	// is live.
	for {
		sig := capture.NewRunSignal()
		current.Store(sig)
		if stopping.Load() {
			sig.Release()
			break
		}

		_, err := coordinator.Record(desc, flagDuration, sig)
		sig.Release()
		if err != nil {
			queue.Close()
			<-consumerDone
			return err
		}

		if !flagContinuous || stopping.Load() {
			break
		}
	}

	queue.Close()
	<-consumerDone
	return nil
}

// consume drains finished recordings. With a registered model it
// transcribes them; without one it just reports what was captured.
func consume(queue *transcribe.Queue, log zerolog.Logger, done chan struct{}) {
	defer close(done)
	ctx := context.Background()

	for {
		in, ok := queue.Pop(ctx)
		if !ok {
			return
		}

		t, err := transcribe.Get()
		if err != nil {
			log.Info().
				Str("device", in.Device).
				Dur("audio", in.Duration()).
				Int("samples", len(in.Samples)).
				Msg("recording captured (no transcription model registered)")
			continue
		}

		text, err := t.Transcribe(ctx, in)
		if err != nil {
			log.Error().Err(err).Str("device", in.Device).Msg("transcription failed")
			continue
		}
		log.Info().Str("device", in.Device).Str("text", text).Msg("transcription complete")
	}
}

func parseDeviceFlag(text string) (device.Descriptor, error) {
	if strings.EqualFold(strings.TrimSpace(text), device.DefaultName) {
		return device.Default(device.Input), nil
	}
	return device.Parse(text)
}
