package audio

import "github.com/pcrane/voxcap/internal/config"

// Device describes an audio input device as reported by the host subsystem.
// Read-only after enumeration.
type Device struct {
	Index            int
	Name             string
	MaxInputChannels int
	Default          bool
}

// Stream is a live capture handle. Read blocks for roughly one chunk's
// duration. Stop and Close are idempotent and safe to call from a different
// goroutine than the one reading.
type Stream interface {
	Start() error
	Stop() error
	// Read returns one chunk of interleaved little-endian signed 16-bit
	// samples, or an empty slice / error once the stream is closed.
	// A device overflow is tolerated, not surfaced.
	Read() ([]byte, error)
	Close() error
}

// Backend abstracts the host audio subsystem: device enumeration, default
// resolution, configuration probing and stream acquisition.
type Backend interface {
	// Devices lists the available input devices.
	Devices() ([]Device, error)
	// DefaultInput resolves a usable default input device: the subsystem's
	// reported default when present, otherwise the first device with input
	// channels.
	DefaultInput() (Device, error)
	// Verify opens and immediately closes a probe stream to confirm the
	// device accepts the requested configuration.
	Verify(dev Device, cfg config.AudioConfig) error
	// Open acquires an input stream on the device in a stopped state.
	Open(dev Device, cfg config.AudioConfig) (Stream, error)
	// Close releases the subsystem.
	Close() error
}
