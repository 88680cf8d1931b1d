package capture

import "fmt"

// SampleFormat identifies the sample encoding delivered by the hardware
// callback. Everything is converted to normalized float32 on append.
type SampleFormat int

const (
	F32 SampleFormat = iota
	I32
	I16
	I8
)

func (f SampleFormat) String() string {
	switch f {
	case F32:
		return "f32"
	case I32:
		return "i32"
	case I16:
		return "i16"
	case I8:
		return "i8"
	}
	return fmt.Sprintf("unknown(%d)", int(f))
}

// ParseSampleFormat parses a config/CLI sample format name.
func ParseSampleFormat(s string) (SampleFormat, error) {
	switch s {
	case "f32", "float32":
		return F32, nil
	case "i32", "int32":
		return I32, nil
	case "i16", "int16":
		return I16, nil
	case "i8", "int8":
		return I8, nil
	}
	return 0, fmt.Errorf("unknown sample format %q (want f32, i32, i16 or i8)", s)
}

// StreamConfig is the negotiated stream shape for one session. Derived once
// during device resolution and read-only afterwards.
type StreamConfig struct {
	SampleRate uint32
	Channels   uint16
	Format     SampleFormat
}
