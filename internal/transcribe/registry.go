package transcribe

import (
	"errors"
	"sync"
)

var (
	// ErrAlreadyInitialized means the registry already holds a model.
	ErrAlreadyInitialized = errors.New("transcription model already initialized")
	// ErrNotInitialized means no model has been registered yet.
	ErrNotInitialized = errors.New("transcription model not initialized")
)

// Registry holds the process-wide transcription model. Loading a model is
// expensive, so it happens once; everything else only needs the narrow
// "model ready" signal and a way to reach the Transcriber.
type Registry struct {
	mu    sync.Mutex
	t     Transcriber
	ready chan struct{}
}

func NewRegistry() *Registry {
	return &Registry{ready: make(chan struct{})}
}

// Initialize registers the model. A second call without an intervening
// Shutdown fails.
func (r *Registry) Initialize(t Transcriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.t != nil {
		return ErrAlreadyInitialized
	}
	r.t = t
	close(r.ready)
	return nil
}

// Ready is closed once a model has been registered.
func (r *Registry) Ready() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// Get returns the registered model.
func (r *Registry) Get() (Transcriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.t == nil {
		return nil, ErrNotInitialized
	}
	return r.t, nil
}

// Shutdown drops the model. The registry can be initialized again
// afterwards; Ready resets to a fresh, unclosed channel.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.t == nil {
		return
	}
	r.t = nil
	r.ready = make(chan struct{})
}

// defaultRegistry backs the package-level functions; the model is global
// to the process by design.
var defaultRegistry = NewRegistry()

// Initialize registers the process-wide transcription model.
func Initialize(t Transcriber) error { return defaultRegistry.Initialize(t) }

// Ready is closed once the process-wide model is registered.
func Ready() <-chan struct{} { return defaultRegistry.Ready() }

// Get returns the process-wide transcription model.
func Get() (Transcriber, error) { return defaultRegistry.Get() }

// Shutdown drops the process-wide model.
func Shutdown() { defaultRegistry.Shutdown() }
