package device

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

// Host is the slice of the portaudio API the enumerator and resolver need.
// Tests substitute a fake; production code uses PortAudioHost.
type Host interface {
	Devices() ([]*portaudio.DeviceInfo, error)
	DefaultInputDevice() (*portaudio.DeviceInfo, error)
	DefaultOutputDevice() (*portaudio.DeviceInfo, error)
}

// PortAudioHost backs Host with the process-wide portaudio instance.
// portaudio.Initialize must have been called first.
type PortAudioHost struct{}

func (PortAudioHost) Devices() ([]*portaudio.DeviceInfo, error) {
	return portaudio.Devices()
}

func (PortAudioHost) DefaultInputDevice() (*portaudio.DeviceInfo, error) {
	return portaudio.DefaultInputDevice()
}

func (PortAudioHost) DefaultOutputDevice() (*portaudio.DeviceInfo, error) {
	return portaudio.DefaultOutputDevice()
}

// ErrNoDefaultDevice means the platform reports no default device for the
// requested direction.
var ErrNoDefaultDevice = errors.New("no default audio device")

// outputExclusions filters known-problematic virtual/loopback entries out
// of output enumeration. Heuristic, not a correctness guarantee.
var outputExclusions = []string{"speakers", "airpods"}

func excludedOutput(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range outputExclusions {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// virtualCaptureMarker tags devices that expose system output audio
// through a virtual capture path (e.g. macOS screen-capture displays).
const virtualCaptureMarker = "display"

func isVirtualCaptureName(name string) bool {
	return strings.Contains(strings.ToLower(name), virtualCaptureMarker)
}

// Enumerator lists audio devices per direction, hiding the platform quirk
// that some systems expose output audio only through virtual capture
// devices. Other components never see that branch.
type Enumerator struct {
	host Host
	log  zerolog.Logger

	// outputCaptureShim relabels virtual capture inputs as logical output
	// devices. Defaults per platform; overridable in tests.
	outputCaptureShim bool
}

func NewEnumerator(host Host, log zerolog.Logger) *Enumerator {
	return &Enumerator{
		host:              host,
		log:               log,
		outputCaptureShim: platformOutputCaptureShim,
	}
}

// List returns the descriptors of all usable devices for a direction.
// Devices without a resolvable name are skipped, not an error.
func (e *Enumerator) List(dir Direction) ([]Descriptor, error) {
	infos, err := e.candidates(dir)
	if err != nil {
		return nil, err
	}
	out := make([]Descriptor, 0, len(infos))
	for _, info := range infos {
		out = append(out, Descriptor{Name: info.Name, Direction: dir})
	}
	return out, nil
}

// candidates returns the concrete device infos matching a direction, with
// the exclusion filter and the output-capture shim applied. The resolver
// matches against the same list so listing and resolution cannot drift.
func (e *Enumerator) candidates(dir Direction) ([]*portaudio.DeviceInfo, error) {
	all, err := e.host.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate audio devices: %w", err)
	}

	var out []*portaudio.DeviceInfo
	if dir == Input {
		for _, info := range all {
			if info.Name == "" || info.MaxInputChannels <= 0 {
				continue
			}
			out = append(out, info)
		}
		return out, nil
	}

	// System-output capture shim: virtual capture devices stand in for the
	// outputs they monitor, listed ahead of the native outputs.
	if e.outputCaptureShim {
		for _, info := range all {
			if info.Name == "" || info.MaxInputChannels <= 0 {
				continue
			}
			if !isVirtualCaptureName(info.Name) || excludedOutput(info.Name) {
				continue
			}
			out = append(out, info)
		}
	}

	for _, info := range all {
		if info.Name == "" || info.MaxOutputChannels <= 0 {
			continue
		}
		if excludedOutput(info.Name) {
			e.log.Debug().Str("device", info.Name).Msg("excluding output device")
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// DefaultInput returns the platform's default input device.
func (e *Enumerator) DefaultInput() (Descriptor, error) {
	info, err := e.defaultDevice(Input)
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Name: info.Name, Direction: Input}, nil
}

// DefaultOutput returns the platform's default output device. On the shim
// platform the first virtual capture device wins, since that is the only
// path that can actually record the system output.
func (e *Enumerator) DefaultOutput() (Descriptor, error) {
	info, err := e.defaultDevice(Output)
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Name: info.Name, Direction: Output}, nil
}

func (e *Enumerator) defaultDevice(dir Direction) (*portaudio.DeviceInfo, error) {
	if dir == Input {
		info, err := e.host.DefaultInputDevice()
		if err != nil || info == nil {
			return nil, fmt.Errorf("%w for input: %v", ErrNoDefaultDevice, err)
		}
		return info, nil
	}

	if e.outputCaptureShim {
		all, err := e.host.Devices()
		if err == nil {
			for _, info := range all {
				if info.MaxInputChannels > 0 && isVirtualCaptureName(info.Name) && !excludedOutput(info.Name) {
					return info, nil
				}
			}
		}
	}

	info, err := e.host.DefaultOutputDevice()
	if err != nil || info == nil {
		return nil, fmt.Errorf("%w for output: %v", ErrNoDefaultDevice, err)
	}
	return info, nil
}
