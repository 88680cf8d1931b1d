package record

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/audioscribe/internal/capture"
	"github.com/petems/audioscribe/internal/device"
	"github.com/petems/audioscribe/internal/transcribe"
)

type fakeStream struct{}

func (fakeStream) Start() error { return nil }
func (fakeStream) Stop() error  { return nil }
func (fakeStream) Close() error { return nil }

// fakeOpener captures the session callback so tests can play the hardware.
type fakeOpener struct {
	mu    sync.Mutex
	cb    interface{}
	errcb func(error)
}

func (f *fakeOpener) OpenStream(cfg capture.StreamConfig, cb interface{}, errcb func(error)) (capture.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cb = cb
	f.errcb = errcb
	return fakeStream{}, nil
}

func (f *fakeOpener) feed(samples []float32) {
	f.mu.Lock()
	cb, _ := f.cb.(func([]float32))
	f.mu.Unlock()
	if cb != nil {
		cb(samples)
	}
}

type fakeResolver struct {
	opener *fakeOpener
	cfg    capture.StreamConfig
	err    error
}

func (f *fakeResolver) Resolve(device.Descriptor) (capture.Opener, capture.StreamConfig, error) {
	if f.err != nil {
		return nil, capture.StreamConfig{}, f.err
	}
	return f.opener, f.cfg, nil
}

func testCoordinator(r Resolver, q *transcribe.Queue) *Coordinator {
	return NewCoordinator(r, q, zerolog.Nop())
}

func testResolver() *fakeResolver {
	return &fakeResolver{
		opener: &fakeOpener{},
		cfg:    capture.StreamConfig{SampleRate: 16000, Channels: 1, Format: capture.F32},
	}
}

func TestRecordStoppedBeforeAnyCallback(t *testing.T) {
	resolver := testResolver()
	queue := transcribe.NewQueue()
	sig := capture.NewRunSignal()
	sig.Stop()

	in, err := testCoordinator(resolver, queue).Record(device.Default(device.Input), time.Minute, sig)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if len(in.Samples) != 0 {
		t.Fatalf("expected empty recording, got %d samples", len(in.Samples))
	}
	if in.SampleRate != 16000 || in.Channels != 1 {
		t.Fatalf("package metadata missing: %+v", in)
	}
}

func TestRecordZeroDuration(t *testing.T) {
	resolver := testResolver()
	queue := transcribe.NewQueue()
	sig := capture.NewRunSignal()

	start := time.Now()
	in, err := testCoordinator(resolver, queue).Record(device.Default(device.Input), 0, sig)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("zero-duration recording blocked for %v", elapsed)
	}
	if in.Device != "default (input)" {
		t.Fatalf("unexpected device label %q", in.Device)
	}
}

func TestRecordPackagesSamples(t *testing.T) {
	resolver := testResolver()
	queue := transcribe.NewQueue()
	sig := capture.NewRunSignal()
	coord := testCoordinator(resolver, queue)

	done := make(chan transcribe.AudioInput, 1)
	go func() {
		in, err := coord.Record(device.Descriptor{Name: "USB Mic", Direction: device.Input}, time.Minute, sig)
		if err != nil {
			t.Errorf("Record failed: %v", err)
		}
		done <- in
	}()

	// Wait for the session to come up, then play some hardware callbacks.
	waitFor(t, func() bool {
		resolver.opener.mu.Lock()
		defer resolver.opener.mu.Unlock()
		return resolver.opener.cb != nil
	})
	resolver.opener.feed([]float32{0.1, 0.2})
	resolver.opener.feed([]float32{0.3})

	sig.Stop()
	in := <-done

	if len(in.Samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(in.Samples))
	}
	if in.Device != "USB Mic (input)" {
		t.Fatalf("unexpected device label %q", in.Device)
	}

	// The same package must have been handed to the queue.
	queued, ok := queue.Pop(context.Background())
	if !ok || len(queued.Samples) != 3 {
		t.Fatalf("queue did not receive the package: ok=%v", ok)
	}
}

func TestSequentialRecordsDoNotShareBuffers(t *testing.T) {
	resolver := testResolver()
	queue := transcribe.NewQueue()
	coord := testCoordinator(resolver, queue)

	record := func(samples []float32) transcribe.AudioInput {
		sig := capture.NewRunSignal()
		done := make(chan transcribe.AudioInput, 1)
		go func() {
			in, err := coord.Record(device.Default(device.Input), time.Minute, sig)
			if err != nil {
				t.Errorf("Record failed: %v", err)
			}
			done <- in
		}()
		waitFor(t, func() bool {
			resolver.opener.mu.Lock()
			defer resolver.opener.mu.Unlock()
			return resolver.opener.cb != nil
		})
		resolver.opener.feed(samples)
		sig.Stop()
		in := <-done
		resolver.opener.mu.Lock()
		resolver.opener.cb = nil
		resolver.opener.mu.Unlock()
		return in
	}

	first := record([]float32{0.1, 0.2, 0.3})
	second := record([]float32{0.9})

	if len(first.Samples) != 3 {
		t.Fatalf("first recording: expected 3 samples, got %d", len(first.Samples))
	}
	if len(second.Samples) != 1 || second.Samples[0] != 0.9 {
		t.Fatalf("second recording leaked samples: %v", second.Samples)
	}
}

func TestRecordResolveFailureAbortsEarly(t *testing.T) {
	resolver := &fakeResolver{err: device.ErrDeviceNotFound}
	queue := transcribe.NewQueue()
	sig := capture.NewRunSignal()

	_, err := testCoordinator(resolver, queue).Record(device.Default(device.Input), time.Minute, sig)
	if !errors.Is(err, device.ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
	if queue.Len() != 0 {
		t.Fatal("no package should be dispatched on a resolution failure")
	}
}

func TestRecordDeviceInvalidatedCutsRecordingShort(t *testing.T) {
	resolver := testResolver()
	queue := transcribe.NewQueue()
	sig := capture.NewRunSignal()
	coord := testCoordinator(resolver, queue)

	done := make(chan struct{})
	go func() {
		if _, err := coord.Record(device.Default(device.Input), time.Hour, sig); err != nil {
			t.Errorf("Record failed: %v", err)
		}
		close(done)
	}()

	waitFor(t, func() bool {
		resolver.opener.mu.Lock()
		defer resolver.opener.mu.Unlock()
		return resolver.opener.errcb != nil
	})
	resolver.opener.errcb(errors.New("the device is no longer valid"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator did not unwind after device invalidation")
	}
}

func TestRecordSurvivesClosedQueue(t *testing.T) {
	resolver := testResolver()
	queue := transcribe.NewQueue()
	queue.Close()
	sig := capture.NewRunSignal()
	sig.Stop()

	in, err := testCoordinator(resolver, queue).Record(device.Default(device.Input), time.Minute, sig)
	if err != nil {
		t.Fatalf("a closed queue must not fail the recording: %v", err)
	}
	if in.SampleRate != 16000 {
		t.Fatalf("package should still be returned, got %+v", in)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
