package capture

import "sync/atomic"

const (
	signalReleased int32 = -1
	signalStopped  int32 = 0
	signalRunning  int32 = 1
)

// RunSignal is the shared stop/continue flag for one recording. The
// coordinator owns it; the session thread and the hardware callback only
// observe it through non-owning Observers. Stop is monotonic: once cleared
// the signal never runs again.
type RunSignal struct {
	state atomic.Int32
}

// NewRunSignal returns a signal in the running state.
func NewRunSignal() *RunSignal {
	s := &RunSignal{}
	s.state.Store(signalRunning)
	return s
}

// Running reports whether recording should continue.
func (s *RunSignal) Running() bool {
	return s.state.Load() == signalRunning
}

// Stop clears the signal. Calling Stop more than once is harmless.
func (s *RunSignal) Stop() {
	s.state.CompareAndSwap(signalRunning, signalStopped)
}

// Release marks the signal as abandoned by its owner. Observers treat a
// released signal as stopped and their Stop becomes a no-op, so a stalled
// session can never act on a signal its owner has walked away from.
func (s *RunSignal) Release() {
	s.state.CompareAndSwap(signalRunning, signalReleased)
	s.state.CompareAndSwap(signalStopped, signalReleased)
}

// Observe returns a non-owning view of the signal for the session thread
// and the hardware callback.
func (s *RunSignal) Observe() *Observer {
	return &Observer{sig: s}
}

// Observer is a non-owning view of a RunSignal.
type Observer struct {
	sig *RunSignal
}

// Running reports whether the observed signal is still running. A released
// or missing signal reads as stopped.
func (o *Observer) Running() bool {
	return o != nil && o.sig != nil && o.sig.Running()
}

// Stop clears the observed signal so the owner sees the stop too. No-op
// once the owner has released the signal.
func (o *Observer) Stop() {
	if o == nil || o.sig == nil {
		return
	}
	o.sig.Stop()
}
