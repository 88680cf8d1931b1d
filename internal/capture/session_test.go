package capture

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeStream struct {
	mu       sync.Mutex
	startErr error
	stopErr  error
	started  bool
	stopped  bool
	closed   bool
}

func (f *fakeStream) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeStream) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return f.stopErr
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeOpener struct {
	openErr  error
	startErr error

	cb     interface{}
	errcb  func(error)
	stream *fakeStream
}

func (f *fakeOpener) OpenStream(cfg StreamConfig, cb interface{}, errcb func(error)) (Stream, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.cb = cb
	f.errcb = errcb
	f.stream = &fakeStream{startErr: f.startErr}
	return f.stream, nil
}

func testConfig(format SampleFormat) StreamConfig {
	return StreamConfig{SampleRate: 16000, Channels: 1, Format: format}
}

func TestSessionLifecycle(t *testing.T) {
	dev := &fakeOpener{}
	sig := NewRunSignal()
	session := NewSession(zerolog.Nop())

	if err := session.Begin(dev, testConfig(F32), sig.Observe()); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if session.State() != Streaming {
		t.Fatalf("expected streaming state, got %v", session.State())
	}

	// Hardware delivers two callback batches while running.
	feed := dev.cb.(func([]float32))
	feed([]float32{0.1, 0.2})
	feed([]float32{0.3})

	sig.Stop()
	session.Wait()

	if session.State() != Terminated {
		t.Fatalf("expected terminated state, got %v", session.State())
	}
	if !dev.stream.stopped || !dev.stream.closed {
		t.Fatal("stream should be stopped and closed after termination")
	}

	// A straggler callback after the stop must not append.
	feed([]float32{0.9})

	samples := session.Take()
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
}

func TestSessionConvertsIntSamples(t *testing.T) {
	dev := &fakeOpener{}
	sig := NewRunSignal()
	session := NewSession(zerolog.Nop())

	if err := session.Begin(dev, testConfig(I16), sig.Observe()); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	dev.cb.(func([]int16))([]int16{16384, -32768})

	sig.Stop()
	session.Wait()

	samples := session.Take()
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0] != 0.5 || samples[1] != -1.0 {
		t.Fatalf("expected normalized samples, got %v", samples)
	}
}

func TestSessionRejectsUnknownFormat(t *testing.T) {
	dev := &fakeOpener{}
	sig := NewRunSignal()
	session := NewSession(zerolog.Nop())

	err := session.Begin(dev, testConfig(SampleFormat(42)), sig.Observe())
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if dev.stream != nil {
		t.Fatal("no stream should be opened for an unsupported format")
	}
	if session.State() != Terminated {
		t.Fatalf("expected terminated state, got %v", session.State())
	}
	session.Wait() // must not block
}

func TestSessionOpenFailure(t *testing.T) {
	dev := &fakeOpener{openErr: errors.New("host rejected parameters")}
	sig := NewRunSignal()
	session := NewSession(zerolog.Nop())

	err := session.Begin(dev, testConfig(F32), sig.Observe())
	if !errors.Is(err, ErrStreamStart) {
		t.Fatalf("expected ErrStreamStart, got %v", err)
	}
	session.Wait()
	if session.State() != Terminated {
		t.Fatalf("expected terminated state, got %v", session.State())
	}
}

func TestSessionStartFailureClosesStream(t *testing.T) {
	dev := &fakeOpener{startErr: errors.New("stream refused to start")}
	sig := NewRunSignal()
	session := NewSession(zerolog.Nop())

	err := session.Begin(dev, testConfig(F32), sig.Observe())
	if !errors.Is(err, ErrStreamStart) {
		t.Fatalf("expected ErrStreamStart, got %v", err)
	}
	session.Wait()
	if !dev.stream.closed {
		t.Fatal("stream should be closed after a failed start")
	}
}

func TestSessionStopsOnDeviceInvalidated(t *testing.T) {
	dev := &fakeOpener{}
	sig := NewRunSignal()
	session := NewSession(zerolog.Nop())

	if err := session.Begin(dev, testConfig(F32), sig.Observe()); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	dev.errcb(errors.New("the device is no longer valid"))

	if sig.Running() {
		t.Fatal("fatal stream error should clear the run signal")
	}

	terminated := make(chan struct{})
	go func() {
		session.Wait()
		close(terminated)
	}()
	select {
	case <-terminated:
	case <-time.After(time.Second):
		t.Fatal("session did not terminate after device invalidation")
	}
}

func TestSessionSurvivesTransientStreamError(t *testing.T) {
	dev := &fakeOpener{}
	sig := NewRunSignal()
	session := NewSession(zerolog.Nop())

	if err := session.Begin(dev, testConfig(F32), sig.Observe()); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	dev.errcb(errors.New("input overflowed"))

	if !sig.Running() {
		t.Fatal("transient stream error should not clear the run signal")
	}
	if session.State() != Streaming {
		t.Fatalf("expected streaming state, got %v", session.State())
	}

	sig.Stop()
	session.Wait()
}

func TestSessionCannotBeginTwice(t *testing.T) {
	dev := &fakeOpener{}
	sig := NewRunSignal()
	session := NewSession(zerolog.Nop())

	if err := session.Begin(dev, testConfig(F32), sig.Observe()); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := session.Begin(dev, testConfig(F32), sig.Observe()); err == nil {
		t.Fatal("second Begin should fail")
	}

	sig.Stop()
	session.Wait()
}
