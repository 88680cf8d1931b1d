package device

import (
	"errors"
	"fmt"
	"strings"
)

// Direction says which way audio flows through a device. Output devices are
// captured here as loopback/monitor sources, not played to.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// ErrInvalidDescriptor means a device string was empty or carried no
// direction suffix.
var ErrInvalidDescriptor = errors.New("device must be specified as \"<name> (input)\" or \"<name> (output)\"")

// DefaultName is the sentinel device name resolved to the platform default
// device for its direction.
const DefaultName = "default"

// Descriptor is the logical identity of an audio device: a display name
// plus a direction. Immutable once constructed; comparable.
type Descriptor struct {
	Name      string
	Direction Direction
}

// Default returns the sentinel descriptor for the platform default device
// of the given direction.
func Default(dir Direction) Descriptor {
	return Descriptor{Name: DefaultName, Direction: dir}
}

// Parse reads a descriptor from its display form. The direction suffix is
// matched case-insensitively and stripped, along with surrounding
// whitespace, so Parse is a left inverse of String.
func Parse(text string) (Descriptor, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Descriptor{}, fmt.Errorf("empty device name: %w", ErrInvalidDescriptor)
	}

	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasSuffix(lower, "(input)"):
		name := strings.TrimSpace(trimmed[:len(trimmed)-len("(input)")])
		return Descriptor{Name: name, Direction: Input}, nil
	case strings.HasSuffix(lower, "(output)"):
		name := strings.TrimSpace(trimmed[:len(trimmed)-len("(output)")])
		return Descriptor{Name: name, Direction: Output}, nil
	}
	return Descriptor{}, fmt.Errorf("%q: %w", text, ErrInvalidDescriptor)
}

// String renders the descriptor in its display form, which doubles as the
// resolver's match key.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.Direction)
}

// IsDefault reports whether this descriptor names the platform default
// device rather than a concrete one.
func (d Descriptor) IsDefault() bool {
	return d.Name == DefaultName
}
