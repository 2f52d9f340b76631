package sink

import "sync/atomic"

// Null accepts and discards every buffer. It is always available and is
// the terminal fallback in the backend selection order, and the backend of
// choice for unit tests.
type Null struct {
	open         atomic.Bool
	framesWritten atomic.Int64
}

func NewNull() *Null { return &Null{} }

func (n *Null) Name() string { return "null" }

func (n *Null) Probe(_ string) Info {
	return Info{Name: "null", Available: true, SampleRates: SampleRatePreference}
}

func (n *Null) Open(_ string, preferred Config) (Config, error) {
	if preferred.SampleRate == 0 {
		preferred.SampleRate = SampleRatePreference[0]
	}
	if preferred.BufferFrames == 0 {
		preferred.BufferFrames = DefaultFragmentSize
	}
	if preferred.Channels == 0 {
		preferred.Channels = 1
	}
	n.open.Store(true)
	return preferred, nil
}

func (n *Null) WriteBuffer(samples []int16) error {
	if !n.open.Load() {
		return ErrNotOpen
	}
	n.framesWritten.Add(int64(len(samples)))
	return nil
}

func (n *Null) Close() error {
	n.open.Store(false)
	return nil
}

// FramesWritten reports the cumulative sample count accepted, useful for
// assertions in tests that exercise the generator end to end.
func (n *Null) FramesWritten() int64 {
	return n.framesWritten.Load()
}
