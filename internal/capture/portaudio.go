package capture

import (
	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 512

// PortAudioDevice adapts a resolved portaudio device to the Opener
// interface. The capture path always opens input-side stream parameters;
// for virtual loopback devices the output signal arrives on an input
// stream anyway.
type PortAudioDevice struct {
	info *portaudio.DeviceInfo
}

func NewPortAudioDevice(info *portaudio.DeviceInfo) *PortAudioDevice {
	return &PortAudioDevice{info: info}
}

func (d *PortAudioDevice) OpenStream(cfg StreamConfig, cb interface{}, errcb func(error)) (Stream, error) {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   d.info,
			Channels: int(cfg.Channels),
			Latency:  d.info.DefaultLowInputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: framesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, cb)
	if err != nil {
		return nil, err
	}
	return &paStream{stream: stream, errcb: errcb}, nil
}

// paStream wraps *portaudio.Stream. PortAudio delivers no asynchronous
// error callback; device loss surfaces from Stop/Abort instead, so those
// failures are routed to errcb where the session triages them.
type paStream struct {
	stream *portaudio.Stream
	errcb  func(error)
}

func (s *paStream) Start() error {
	return s.stream.Start()
}

func (s *paStream) Stop() error {
	if err := s.stream.Stop(); err != nil {
		if s.errcb != nil {
			s.errcb(err)
		}
		return err
	}
	return nil
}

func (s *paStream) Close() error {
	return s.stream.Close()
}
