package device

import (
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/petems/audioscribe/internal/capture"
)

// ErrDeviceNotFound means no enumerated device matched the descriptor.
var ErrDeviceNotFound = errors.New("audio device not found")

// maxChannels caps negotiated channel counts; anything beyond stereo is
// useless to the transcription pipeline.
const maxChannels = 2

// Resolver maps a Descriptor to a concrete device handle plus a negotiated
// stream configuration. Resolution is read-only and never memoized: the
// platform's device set can change between calls.
type Resolver struct {
	enum   *Enumerator
	format capture.SampleFormat
}

func NewResolver(enum *Enumerator, format capture.SampleFormat) *Resolver {
	return &Resolver{enum: enum, format: format}
}

// Resolve finds the hardware device behind a descriptor and negotiates its
// stream configuration. The sentinel name "default" resolves to the
// platform default device for the descriptor's direction; any other name
// must match an enumerated device exactly (direction suffix stripped).
func (r *Resolver) Resolve(desc Descriptor) (capture.Opener, capture.StreamConfig, error) {
	info, err := r.lookup(desc)
	if err != nil {
		return nil, capture.StreamConfig{}, err
	}
	return capture.NewPortAudioDevice(info), r.negotiate(info, desc.Direction), nil
}

func (r *Resolver) lookup(desc Descriptor) (*portaudio.DeviceInfo, error) {
	if desc.IsDefault() {
		return r.enum.defaultDevice(desc.Direction)
	}

	infos, err := r.enum.candidates(desc.Direction)
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if info.Name == desc.Name {
			return info, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", desc.String(), ErrDeviceNotFound)
}

// negotiate derives the stream configuration from the device's
// capabilities. Output devices normally negotiate their output side, but a
// virtual capture device standing in for an output is really an input
// path, so its input side wins.
func (r *Resolver) negotiate(info *portaudio.DeviceInfo, dir Direction) capture.StreamConfig {
	inputSide := dir == Input || isVirtualCaptureName(info.Name)

	channels := info.MaxOutputChannels
	if inputSide {
		channels = info.MaxInputChannels
	}
	if channels < 1 {
		channels = 1
	}
	if channels > maxChannels {
		channels = maxChannels
	}

	return capture.StreamConfig{
		SampleRate: uint32(info.DefaultSampleRate),
		Channels:   uint16(channels),
		Format:     r.format,
	}
}
