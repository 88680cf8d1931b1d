// Package record drives bounded-duration recordings: resolve the device,
// run a capture session, package the result for the transcription pipeline.
package record

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/audioscribe/internal/capture"
	"github.com/petems/audioscribe/internal/device"
	"github.com/petems/audioscribe/internal/transcribe"
)

// pollInterval is the cadence at which the coordinator re-checks elapsed
// time and the run signal. Stop latency is bounded by one interval.
const pollInterval = 100 * time.Millisecond

// Resolver maps a descriptor to a concrete device handle and stream
// configuration.
type Resolver interface {
	Resolve(device.Descriptor) (capture.Opener, capture.StreamConfig, error)
}

// Coordinator records from resolved devices and hands completed packages
// to the transcription queue.
type Coordinator struct {
	resolver Resolver
	queue    *transcribe.Queue
	log      zerolog.Logger
}

func NewCoordinator(resolver Resolver, queue *transcribe.Queue, log zerolog.Logger) *Coordinator {
	return &Coordinator{resolver: resolver, queue: queue, log: log}
}

// Record captures from the described device until maxDuration elapses or
// the caller clears the run signal, whichever comes first. The finished
// package is pushed to the transcription queue and also returned; an empty
// recording is a valid result, not an error. Cancellation is cooperative:
// the signal may take up to one poll interval to be observed.
func (c *Coordinator) Record(desc device.Descriptor, maxDuration time.Duration, sig *capture.RunSignal) (transcribe.AudioInput, error) {
	opener, cfg, err := c.resolver.Resolve(desc)
	if err != nil {
		return transcribe.AudioInput{}, err
	}
	c.log.Debug().
		Str("device", desc.String()).
		Uint32("sample_rate", cfg.SampleRate).
		Uint16("channels", cfg.Channels).
		Stringer("format", cfg.Format).
		Msg("negotiated stream config")

	session := capture.NewSession(c.log)
	if err := session.Begin(opener, cfg, sig.Observe()); err != nil {
		return transcribe.AudioInput{}, err
	}

	c.log.Info().
		Str("device", desc.String()).
		Dur("max_duration", maxDuration).
		Msg("recording")

	start := time.Now()
	for sig.Running() && time.Since(start) < maxDuration {
		time.Sleep(pollInterval)
	}

	// The session thread tears the stream down strictly after the last
	// callback that could append, so reading the buffer after Wait races
	// with nothing.
	sig.Stop()
	session.Wait()

	in := transcribe.AudioInput{
		Samples:    session.Take(),
		Device:     desc.String(),
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	}
	c.log.Debug().
		Int("samples", len(in.Samples)).
		Dur("audio", in.Duration()).
		Msg("recording finished")

	if err := c.queue.Push(in); err != nil {
		// Recording already succeeded; a missing consumer is its problem.
		c.log.Error().Err(err).Msg("failed to hand off captured audio")
	}
	return in, nil
}
