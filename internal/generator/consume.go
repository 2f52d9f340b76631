package generator

import (
	"context"
	"math"
	"time"

	"github.com/ColonelBlimp/morsekit/internal/tonequeue"
)

// underrunSilence is enqueued when the consumer finds the queue empty and
// no forever tone active, so the sink keeps receiving samples while the
// consumer blocks for new work.
const underrunSilence = 20 * time.Millisecond

// fullScaleAmplitude is 0x7FFF, the int16 full-scale magnitude volume
// percent is scaled against.
const fullScaleAmplitude = 0x7FFF

// consume is the dedicated consumer goroutine body: dequeue a tone,
// synthesize it to the sink in fixed-size buffers, fire the key-state
// callback at each tone boundary, and repeat until Stop/Delete closes the
// queue or ctx is cancelled.
func (g *Generator) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		tone, ok := g.queue.Dequeue()
		if !ok {
			if err := g.queue.Enqueue(g.silence(underrunSilence)); err != nil {
				return
			}
			if err := g.queue.WaitForTone(); err != nil {
				return
			}
			continue
		}

		g.fireKeyState(tone.FrequencyHz != 0)
		g.synthesize(tone)
	}
}

func (g *Generator) fireKeyState(closed bool) {
	if b := g.keyCbPtr.Load(); b != nil {
		b.fn(b.ctx, closed)
	}
}

// synthesize writes one tone's worth of samples to the sink in
// cfg.BufferFrames-sized chunks, applying the configured slope shape to the
// rising and falling edges.
func (g *Generator) synthesize(t tonequeue.Tone) {
	rate := float64(g.cfg.SampleRate)
	if rate == 0 {
		rate = 48000
	}
	totalFrames := int(float64(t.Duration) / float64(time.Second) * rate)
	if totalFrames <= 0 {
		return
	}

	g.mu.Lock()
	volume := g.params.VolumePercent()
	g.mu.Unlock()
	amplitude := float64(volume) * fullScaleAmplitude / 100.0

	slopeFrames := int(float64(t.SlopeLength) / float64(time.Second) * rate)
	if slopeFrames*2 > totalFrames {
		slopeFrames = totalFrames / 2
	}

	bufferFrames := g.cfg.BufferFrames
	if bufferFrames <= 0 {
		bufferFrames = 128
	}

	buf := make([]int16, 0, bufferFrames)
	angular := 2 * math.Pi * float64(t.FrequencyHz) / rate

	for i := 0; i < totalFrames; i++ {
		var sample float64
		if t.FrequencyHz > 0 {
			sample = amplitude * math.Sin(angular*float64(i))
			sample *= slopeGain(i, totalFrames, slopeFrames, t.Slope)
		}
		buf = append(buf, int16(sample))
		if len(buf) == bufferFrames {
			_ = g.snk.WriteBuffer(buf)
			buf = buf[:0]
		}
	}
	if len(buf) > 0 {
		_ = g.snk.WriteBuffer(buf)
	}
}

// slopeGain returns the envelope multiplier in [0,1] for sample index i of
// totalFrames, ramping up over the first slopeFrames and down over the last
// slopeFrames according to shape. Rectangular applies no shaping.
func slopeGain(i, totalFrames, slopeFrames int, shape tonequeue.SlopeShape) float64 {
	if shape == tonequeue.SlopeRectangular || slopeFrames <= 0 {
		return 1.0
	}

	var t float64
	switch {
	case i < slopeFrames:
		t = float64(i) / float64(slopeFrames)
	case i >= totalFrames-slopeFrames:
		t = float64(totalFrames-1-i) / float64(slopeFrames)
	default:
		return 1.0
	}

	switch shape {
	case tonequeue.SlopeLinear:
		return t
	case tonequeue.SlopeRaisedCosine:
		return 0.5 * (1 - math.Cos(math.Pi*t))
	case tonequeue.SlopeSine:
		return math.Sin(math.Pi / 2 * t)
	default:
		return t
	}
}
