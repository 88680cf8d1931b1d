package capture

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Stream is a live platform audio stream owned by a session thread.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Opener constructs a platform stream for a resolved device. cb must be a
// func taking one slice of the configured sample type, following
// portaudio's callback convention; errcb receives asynchronous stream
// errors from the platform.
type Opener interface {
	OpenStream(cfg StreamConfig, cb interface{}, errcb func(error)) (Stream, error)
}

// State is the session lifecycle phase.
type State int32

const (
	Idle State = iota
	Starting
	Streaming
	Stopping
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Streaming:
		return "streaming"
	case Stopping:
		return "stopping"
	case Terminated:
		return "terminated"
	}
	return "invalid"
}

var (
	// ErrUnsupportedFormat means the negotiated encoding has no known
	// conversion path to float32.
	ErrUnsupportedFormat = errors.New("unsupported sample format")
	// ErrStreamStart means the platform rejected stream construction or
	// activation.
	ErrStreamStart = errors.New("failed to start audio stream")
)

// keepaliveInterval is how often the session thread re-checks the run
// signal while the stream is live.
const keepaliveInterval = 100 * time.Millisecond

// deviceInvalidMarkers are substrings of platform error text that mean the
// device itself is gone rather than a transient stream fault. This is a
// heuristic; the exact wording is not stable across host API versions.
var deviceInvalidMarkers = []string{
	"no longer valid",
	"device unavailable",
	"invalid device",
}

func isDeviceInvalid(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range deviceInvalidMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Session owns one live hardware stream. The stream is not movable across
// goroutines that the platform may reschedule, so the session pins a
// dedicated OS thread for the stream's whole life; everything else talks to
// it only through the run signal observer and the sample buffer.
type Session struct {
	log   zerolog.Logger
	buf   *Buffer
	state atomic.Int32
	done  chan struct{}
}

func NewSession(log zerolog.Logger) *Session {
	return &Session{
		log:  log,
		buf:  NewBuffer(),
		done: make(chan struct{}),
	}
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Begin opens and activates the stream on a dedicated thread. It blocks
// until the stream is live or has failed. The observer is the session's
// only stop mechanism: once it reads stopped the stream is torn down.
func (s *Session) Begin(dev Opener, cfg StreamConfig, obs *Observer) error {
	if !s.state.CompareAndSwap(int32(Idle), int32(Starting)) {
		return errors.New("capture session already started")
	}

	cb, err := s.callbackFor(cfg, obs)
	if err != nil {
		s.state.Store(int32(Terminated))
		close(s.done)
		return err
	}

	started := make(chan error, 1)
	go s.run(dev, cfg, cb, obs, started)
	return <-started
}

// Wait blocks until the session thread has deactivated and released the
// stream. After Wait returns no further samples can be appended.
func (s *Session) Wait() {
	<-s.done
}

// Take hands out the captured samples. Call only after Wait.
func (s *Session) Take() []float32 {
	return s.buf.Take()
}

func (s *Session) run(dev Opener, cfg StreamConfig, cb interface{}, obs *Observer, started chan<- error) {
	// The stream must live and die on one OS thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(s.done)

	errcb := func(err error) { s.handleStreamError(err, obs) }

	stream, err := dev.OpenStream(cfg, cb, errcb)
	if err != nil {
		s.state.Store(int32(Terminated))
		started <- fmt.Errorf("%w: %v", ErrStreamStart, err)
		return
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		s.state.Store(int32(Terminated))
		started <- fmt.Errorf("%w: %v", ErrStreamStart, err)
		return
	}

	s.state.Store(int32(Streaming))
	started <- nil

	// Keepalive: the thread sleeps between signal checks so the stream
	// object stays alive until someone asks for the stop.
	for obs.Running() {
		time.Sleep(keepaliveInterval)
	}

	s.state.Store(int32(Stopping))
	if err := stream.Stop(); err != nil {
		s.log.Error().Err(err).Msg("failed to stop audio stream")
	}
	if err := stream.Close(); err != nil {
		s.log.Error().Err(err).Msg("failed to close audio stream")
	}
	s.state.Store(int32(Terminated))
}

// handleStreamError triages asynchronous stream errors. Only device
// invalidation is fatal; it propagates the stop through the observer so
// the keepalive loop and the coordinator both unwind.
func (s *Session) handleStreamError(err error, obs *Observer) {
	if isDeviceInvalid(err) {
		s.log.Warn().Err(err).Msg("audio device disconnected, stopping recording")
		obs.Stop()
		return
	}
	s.log.Error().Err(err).Msg("audio stream error")
}

// callbackFor builds the typed hardware callback for the negotiated
// encoding. Samples are appended only while the run signal still reads
// running, which is how a stop takes effect without blocking the realtime
// callback on a drain.
func (s *Session) callbackFor(cfg StreamConfig, obs *Observer) (interface{}, error) {
	switch cfg.Format {
	case F32:
		return func(in []float32) {
			if obs.Running() {
				s.buf.AppendFloat32(in)
			}
		}, nil
	case I32:
		return func(in []int32) {
			if obs.Running() {
				s.buf.AppendInt32(in)
			}
		}, nil
	case I16:
		return func(in []int16) {
			if obs.Running() {
				s.buf.AppendInt16(in)
			}
		}, nil
	case I8:
		return func(in []int8) {
			if obs.Running() {
				s.buf.AppendInt8(in)
			}
		}, nil
	}
	return nil, fmt.Errorf("%v: %w", cfg.Format, ErrUnsupportedFormat)
}
