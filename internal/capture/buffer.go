package capture

import "sync"

// Buffer accumulates normalized float32 samples, interleaved by channel.
// The hardware callback is the only writer and the coordinator reads it
// once after the session terminates, so a plain mutex with blocking
// acquisition is all the callback path needs.
type Buffer struct {
	mu      sync.Mutex
	samples []float32
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) AppendFloat32(in []float32) {
	b.mu.Lock()
	b.samples = append(b.samples, in...)
	b.mu.Unlock()
}

func (b *Buffer) AppendInt32(in []int32) {
	b.mu.Lock()
	for _, v := range in {
		b.samples = append(b.samples, float32(v)/(1<<31))
	}
	b.mu.Unlock()
}

func (b *Buffer) AppendInt16(in []int16) {
	b.mu.Lock()
	for _, v := range in {
		b.samples = append(b.samples, float32(v)/(1<<15))
	}
	b.mu.Unlock()
}

func (b *Buffer) AppendInt8(in []int8) {
	b.mu.Lock()
	for _, v := range in {
		b.samples = append(b.samples, float32(v)/(1<<7))
	}
	b.mu.Unlock()
}

// Len returns the number of samples accumulated so far.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Take hands out the accumulated samples and leaves the buffer empty.
func (b *Buffer) Take() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.samples
	b.samples = nil
	return out
}
