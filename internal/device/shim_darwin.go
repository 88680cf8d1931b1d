//go:build darwin

package device

// macOS exposes system-output audio only through virtual screen-capture
// input devices, so output enumeration has to borrow them.
const platformOutputCaptureShim = true
