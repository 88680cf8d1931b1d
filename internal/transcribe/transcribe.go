// Package transcribe is the boundary to the speech-to-text pipeline. The
// capture side hands finished recordings across it; the model itself lives
// on the other side.
package transcribe

import (
	"context"
	"errors"
	"sync"
	"time"
)

// AudioInput is one completed recording handed to the transcription
// pipeline: normalized float32 samples interleaved by channel, plus the
// metadata the consumer needs to interpret and attribute them.
type AudioInput struct {
	Samples    []float32
	Device     string
	SampleRate uint32
	Channels   uint16
}

// Duration returns the recorded wall-clock length.
func (a AudioInput) Duration() time.Duration {
	if a.SampleRate == 0 || a.Channels == 0 {
		return 0
	}
	frames := len(a.Samples) / int(a.Channels)
	return time.Duration(frames) * time.Second / time.Duration(a.SampleRate)
}

// Transcriber is implemented by the speech-to-text engine. Inference is
// not part of this repository; callers register an implementation through
// the registry.
type Transcriber interface {
	Transcribe(ctx context.Context, in AudioInput) (string, error)
}

// ErrQueueClosed is returned by Push once the queue has been closed.
var ErrQueueClosed = errors.New("transcription queue closed")

// Queue is the unbounded handoff queue between the capture coordinator and
// the transcription consumer. Push never blocks: a recording session must
// not stall because the model is slow.
type Queue struct {
	mu     sync.Mutex
	items  []AudioInput
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

func NewQueue() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Push appends a recording to the queue. Fails only if the queue has been
// closed; the caller decides whether that matters.
func (q *Queue) Push(in AudioInput) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, in)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pop removes the oldest recording, blocking until one is available, the
// queue is closed and drained, or ctx is done. The second return is false
// when no more items will ever arrive.
func (q *Queue) Pop(ctx context.Context) (AudioInput, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			in := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return in, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return AudioInput{}, false
		}
		select {
		case <-ctx.Done():
			return AudioInput{}, false
		case <-q.done:
		case <-q.wake:
		}
	}
}

// Len returns the number of queued recordings.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the queue finished. Queued items can still be popped;
// further pushes fail.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	q.mu.Unlock()
}
