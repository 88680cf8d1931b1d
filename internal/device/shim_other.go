//go:build !darwin

package device

const platformOutputCaptureShim = false
