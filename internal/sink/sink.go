// Package sink defines the sound-sink plug-in contract (probe, open and
// configure, write a buffer, close) and the concrete backends the
// generator can select between: a malgo playback device, a portaudio
// device, and a null backend for tests. The lifecycle (Init/Start/Stop/
// Close over a device handle) mirrors internal/audio's capture side.
package sink

import "errors"

// SampleRatePreference is the negotiation order used when opening a device:
// try each rate in turn until the backend accepts one.
var SampleRatePreference = []uint32{48000, 44100, 32000, 22050, 16000, 11025, 8000}

// DefaultFragmentSize is the default playback fragment size (2^7 samples);
// a backend may negotiate a different effective size and must report it
// back via Config.BufferFrames after Open.
const DefaultFragmentSize = 128

var (
	// ErrBackendUnavailable indicates the requested backend cannot be opened.
	ErrBackendUnavailable = errors.New("sink: backend unavailable")
	// ErrShortWrite indicates WriteBuffer wrote fewer frames than requested.
	ErrShortWrite = errors.New("sink: short write")
	// ErrNotOpen indicates an operation was attempted before Open succeeded.
	ErrNotOpen = errors.New("sink: not open")
)

// Config is negotiated during Open and reported back to the caller (the
// generator) so it knows the effective sample rate and buffer size.
type Config struct {
	Device       string
	SampleRate   uint32
	BufferFrames int
	Channels     uint32
}

// Info is what Probe returns: whether a backend is usable right now, and
// which sample rates it is willing to negotiate.
type Info struct {
	Name        string
	Available   bool
	SampleRates []uint32
}

// Sink is the four-operation plug-in contract every sound backend
// implements: probe without opening, open+configure, write one buffer
// (blocking until accepted), and close.
type Sink interface {
	Name() string
	Probe(device string) Info
	Open(device string, preferred Config) (Config, error)
	WriteBuffer(samples []int16) error
	Close() error
}
