package sink

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// Malgo is a real-time playback backend wrapping github.com/gen2brain/malgo.
// It carries the same InitContext/InitDevice/Start/Stop/Uninit lifecycle
// internal/audio uses for capture, applied here to a malgo.Playback device
// fed synchronously from WriteBuffer via a small ring channel.
type Malgo struct {
	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	running atomic.Bool

	cfg Config

	feed   chan []int16
	residue []int16
}

func NewMalgo() *Malgo { return &Malgo{} }

func (m *Malgo) Name() string { return "malgo" }

func (m *Malgo) Probe(_ string) Info {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return Info{Name: "malgo", Available: false}
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()
	if _, err := ctx.Devices(malgo.Playback); err != nil {
		return Info{Name: "malgo", Available: false}
	}
	return Info{Name: "malgo", Available: true, SampleRates: SampleRatePreference}
}

// Open negotiates a sample rate by retrying SampleRatePreference in order,
// starting from preferred.SampleRate if it is already set.
func (m *Malgo) Open(device string, preferred Config) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx != nil {
		return Config{}, errors.New("sink/malgo: already open")
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return Config{}, fmt.Errorf("sink/malgo: init context: %w", ErrBackendUnavailable)
	}

	rates := SampleRatePreference
	if preferred.SampleRate != 0 {
		rates = append([]uint32{preferred.SampleRate}, SampleRatePreference...)
	}

	bufferFrames := preferred.BufferFrames
	if bufferFrames == 0 {
		bufferFrames = DefaultFragmentSize
	}
	channels := preferred.Channels
	if channels == 0 {
		channels = 1
	}

	var lastErr error
	for _, rate := range rates {
		deviceConfig := malgo.DeviceConfig{
			DeviceType:         malgo.Playback,
			SampleRate:         rate,
			PeriodSizeInFrames: uint32(bufferFrames),
			Playback: malgo.SubConfig{
				Format:   malgo.FormatS16,
				Channels: channels,
			},
		}

		callbacks := malgo.DeviceCallbacks{
			Data: m.onSendFrames,
		}

		dev, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
		if err != nil {
			lastErr = err
			continue
		}
		if err := dev.Start(); err != nil {
			dev.Uninit()
			lastErr = err
			continue
		}

		m.ctx = ctx
		m.device = dev
		m.feed = make(chan []int16, 8)
		m.cfg = Config{Device: device, SampleRate: rate, BufferFrames: bufferFrames, Channels: channels}
		m.running.Store(true)
		return m.cfg, nil
	}

	_ = ctx.Uninit()
	ctx.Free()
	return Config{}, fmt.Errorf("sink/malgo: no negotiable sample rate (last: %w): %w", lastErr, ErrBackendUnavailable)
}

// onSendFrames is invoked on the audio thread to fill the output buffer. It
// drains queued buffers from WriteBuffer, padding with silence when the
// producer underruns.
func (m *Malgo) onSendFrames(output, _ []byte, frameCount uint32) {
	out := bytesAsInt16(output)
	i := 0
	for i < len(out) {
		if len(m.residue) == 0 {
			select {
			case next := <-m.feed:
				m.residue = next
			default:
				for ; i < len(out); i++ {
					out[i] = 0
				}
				continue
			}
		}
		n := copy(out[i:], m.residue)
		m.residue = m.residue[n:]
		i += n
	}
	// out is a decoded copy; write it back as little-endian S16.
	for j, s := range out {
		output[2*j] = byte(s)
		output[2*j+1] = byte(uint16(s) >> 8)
	}
}

func (m *Malgo) WriteBuffer(samples []int16) error {
	if !m.running.Load() {
		return ErrNotOpen
	}
	cp := make([]int16, len(samples))
	copy(cp, samples)
	m.feed <- cp
	return nil
}

func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.running.Store(false)
	if m.device != nil {
		_ = m.device.Stop()
		m.device.Uninit()
		m.device = nil
	}
	if m.ctx != nil {
		if err := m.ctx.Uninit(); err != nil {
			return fmt.Errorf("sink/malgo: uninit context: %w", err)
		}
		m.ctx.Free()
		m.ctx = nil
	}
	return nil
}

func bytesAsInt16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
	}
	return out
}
