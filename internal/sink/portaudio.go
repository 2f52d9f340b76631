package sink

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// PortAudio wraps github.com/gordonklaus/portaudio as the second real
// backend, tried after Malgo. It drives a blocking write stream rather than
// a callback, which fits WriteBuffer's own blocking contract directly.
type PortAudio struct {
	mu      sync.Mutex
	stream  *portaudio.Stream
	running atomic.Bool
	cfg     Config
	outBuf  []int16
}

func NewPortAudio() *PortAudio { return &PortAudio{} }

func (p *PortAudio) Name() string { return "portaudio" }

func (p *PortAudio) Probe(_ string) Info {
	if err := portaudio.Initialize(); err != nil {
		return Info{Name: "portaudio", Available: false}
	}
	defer portaudio.Terminate()
	if _, err := portaudio.DefaultHostApi(); err != nil {
		return Info{Name: "portaudio", Available: false}
	}
	return Info{Name: "portaudio", Available: true, SampleRates: SampleRatePreference}
}

func (p *PortAudio) Open(_ string, preferred Config) (Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return Config{}, fmt.Errorf("sink/portaudio: already open")
	}

	if err := portaudio.Initialize(); err != nil {
		return Config{}, fmt.Errorf("sink/portaudio: initialize: %w", ErrBackendUnavailable)
	}

	bufferFrames := preferred.BufferFrames
	if bufferFrames == 0 {
		bufferFrames = DefaultFragmentSize
	}
	channels := preferred.Channels
	if channels == 0 {
		channels = 1
	}

	rates := SampleRatePreference
	if preferred.SampleRate != 0 {
		rates = append([]uint32{preferred.SampleRate}, SampleRatePreference...)
	}

	var lastErr error
	for _, rate := range rates {
		outBuf := make([]int16, bufferFrames*int(channels))
		stream, err := portaudio.OpenDefaultStream(0, int(channels), float64(rate), bufferFrames, outBuf)
		if err != nil {
			lastErr = err
			continue
		}
		if err := stream.Start(); err != nil {
			_ = stream.Close()
			lastErr = err
			continue
		}
		p.stream = stream
		p.outBuf = outBuf
		p.cfg = Config{SampleRate: rate, BufferFrames: bufferFrames, Channels: channels}
		p.running.Store(true)
		return p.cfg, nil
	}

	portaudio.Terminate()
	return Config{}, fmt.Errorf("sink/portaudio: no negotiable sample rate (last: %w): %w", lastErr, ErrBackendUnavailable)
}

// WriteBuffer feeds samples to the stream in chunks sized to the negotiated
// buffer, zero-padding the final short chunk, since portaudio's Write binds
// to the fixed-size buffer supplied at OpenDefaultStream time.
func (p *PortAudio) WriteBuffer(samples []int16) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil || !p.running.Load() {
		return ErrNotOpen
	}

	chunk := len(p.outBuf)
	for i := 0; i < len(samples); i += chunk {
		end := i + chunk
		if end > len(samples) {
			end = len(samples)
		}
		n := copy(p.outBuf, samples[i:end])
		for j := n; j < len(p.outBuf); j++ {
			p.outBuf[j] = 0
		}
		if err := p.stream.Write(); err != nil {
			return fmt.Errorf("sink/portaudio: write: %w", err)
		}
	}
	return nil
}

func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.running.Store(false)
	if p.stream != nil {
		_ = p.stream.Stop()
		_ = p.stream.Close()
		p.stream = nil
	}
	portaudio.Terminate()
	return nil
}
