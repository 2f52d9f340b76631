// Package decode wires audio capture, Goertzel tone detection and the
// morse receiver state machine into a single real-time decoder: microphone
// in, decoded characters and word spaces out.
package decode

import (
	"context"
	"fmt"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/ColonelBlimp/morsekit/internal/audio"
	"github.com/ColonelBlimp/morsekit/internal/config"
	"github.com/ColonelBlimp/morsekit/internal/dsp"
	"github.com/ColonelBlimp/morsekit/internal/morsecode"
	"github.com/ColonelBlimp/morsekit/internal/receiver"
	"github.com/ColonelBlimp/morsekit/internal/timing"
)

// DecodedOutput is emitted for every resolved character and word space.
type DecodedOutput struct {
	Character   rune
	IsWordSpace bool
	Timestamp   time.Time
	CurrentWPM  int
}

// DecodedCallback receives decoded output. Must be non-blocking and fast.
type DecodedCallback func(DecodedOutput)

// Decoder owns the audio capture, Goertzel/detector pipeline and the
// receiver state machine, and drives decoded output via a callback.
type Decoder struct {
	capture  *audio.Capture
	goertzel *dsp.Goertzel
	detector *dsp.Detector
	recv      *receiver.Receiver
	seq       *receiver.Sequencer
	corrector *receiver.Corrector
	cb        DecodedCallback

	pollTimer *time.Timer
	pollDelay time.Duration
}

// NewDecoder builds a Decoder from validated settings. Returns an error if
// any stage rejects its configuration.
func NewDecoder(settings config.Settings) (*Decoder, error) {
	audioCfg := audio.Config{
		DeviceIndex: settings.DeviceIndex,
		SampleRate:  uint32(settings.SampleRate),
		Channels:    uint32(settings.Channels),
		BufferSize:  uint32(settings.BufferSize),
	}
	capture, err := audio.New(audioCfg)
	if err != nil {
		return nil, fmt.Errorf("decode: init audio: %w", err)
	}

	goertzelCfg := dsp.GoertzelConfig{
		TargetFrequency: settings.ToneFrequency,
		SampleRate:      settings.SampleRate,
		BlockSize:       settings.BlockSize,
	}
	goertzel, err := dsp.NewGoertzel(goertzelCfg)
	if err != nil {
		return nil, fmt.Errorf("decode: init goertzel: %w", err)
	}

	detectorCfg := dsp.DetectorConfig{
		Threshold:       settings.Threshold,
		Hysteresis:      settings.Hysteresis,
		OverlapPct:      settings.OverlapPct,
		AGCEnabled:      settings.AGCEnabled,
		AGCDecay:        settings.AGCDecay,
		AGCAttack:       settings.AGCAttack,
		AGCWarmupBlocks: settings.AGCWarmupBlocks,
	}
	detector, err := dsp.NewDetector(detectorCfg, goertzel)
	if err != nil {
		return nil, fmt.Errorf("decode: init detector: %w", err)
	}

	params := timing.NewParameters()
	if err := params.SetWPM(settings.WPM); err != nil {
		return nil, fmt.Errorf("decode: init timing: %w", err)
	}
	if err := params.SetTolerancePercent(settings.RecTolerancePercent); err != nil {
		return nil, fmt.Errorf("decode: init timing: %w", err)
	}

	recv := receiver.New(params, settings.RecAdaptive || settings.AdaptiveTiming)

	var corrector *receiver.Corrector
	if settings.RecCorrectionEnabled {
		corrector = receiver.NewCorrector(recv, receiver.CorrectorConfig{
			MinConfidence:       settings.RecCorrectionMinConfidence,
			AdjustmentRate:      settings.RecCorrectionAdjustmentRate,
			MinMatchesForAdjust: settings.RecCorrectionMinMatches,
		})
		recv.SetCorrector(corrector)
	}

	d := &Decoder{
		capture:   capture,
		goertzel:  goertzel,
		detector:  detector,
		recv:      recv,
		seq:       receiver.NewSequencer(16),
		corrector: corrector,
		pollDelay: 20 * time.Millisecond,
	}

	detector.SetCallback(d.handleToneEvent)
	capture.SetCallback(func(samples []float32) {
		detector.Process(samples)
	})

	return d, nil
}

// SetCallback registers the decoded-output callback.
func (d *Decoder) SetCallback(cb DecodedCallback) {
	d.cb = cb
}

// SetCorrectedCallback registers a callback invoked whenever the adaptive
// Corrector recognizes a known fragment; a no-op if rec_correction_enabled
// was false when the Decoder was built.
func (d *Decoder) SetCorrectedCallback(cb receiver.CorrectedCallback) {
	if d.corrector != nil {
		d.corrector.SetCorrectedCallback(cb)
	}
}

// Start initializes the audio backend and begins capture.
func (d *Decoder) Start(ctx context.Context) error {
	if err := d.capture.Init(); err != nil {
		return fmt.Errorf("decode: init audio: %w", err)
	}
	if err := d.capture.Start(ctx); err != nil {
		return fmt.Errorf("decode: start audio: %w", err)
	}
	d.schedulePoll()
	return nil
}

// Stop halts capture and releases the audio backend.
func (d *Decoder) Stop() error {
	if d.pollTimer != nil {
		d.pollTimer.Stop()
	}
	if err := d.capture.Stop(); err != nil && err != audio.ErrNotRunning {
		return fmt.Errorf("decode: stop audio: %w", err)
	}
	return d.capture.Close()
}

// handleToneEvent feeds a detector tone transition into the receiver.
func (d *Decoder) handleToneEvent(event dsp.ToneEvent) {
	if err := d.recv.NotifyKeyEvent(event.Timestamp, event.ToneOn); err != nil {
		return
	}
}

// schedulePoll arms a recurring timer that re-polls the receiver for
// resolved characters and word spaces; the receiver itself never pushes,
// since a definitive boundary can only be known once enough silence has
// elapsed.
func (d *Decoder) schedulePoll() {
	d.pollTimer = time.AfterFunc(d.pollDelay, d.poll)
}

func (d *Decoder) poll() {
	now := time.Now()
	for {
		c, isWordSpace, err := d.recv.PollCharacter(now)
		if err != nil {
			break
		}
		out := DecodedOutput{
			Character:   c,
			IsWordSpace: isWordSpace,
			Timestamp:   now,
			CurrentWPM:  d.recv.CurrentWPM(),
		}
		if d.cb != nil {
			d.cb(out)
		}
		if !isWordSpace {
			if rep, ok := morsecode.CharacterToRepresentation(c); ok {
				d.seq.Observe(rep, false)
			}
		} else {
			d.seq.Observe("", true)
		}
	}
	d.pollTimer = time.AfterFunc(d.pollDelay, d.poll)
}

// Match reports the best-matching common operating sequence (e.g. "CQ",
// "73") observed in recently decoded characters, if any.
func (d *Decoder) Match() (receiver.Pattern, bool) {
	return d.seq.Match()
}

// ListAudioDevices enumerates capture devices available to the default
// audio backend.
func ListAudioDevices() ([]malgo.DeviceInfo, error) {
	capture, err := audio.New(audio.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("decode: init audio: %w", err)
	}
	if err := capture.Init(); err != nil {
		return nil, fmt.Errorf("decode: init audio: %w", err)
	}
	defer func() { _ = capture.Close() }()

	devices, err := capture.ListDevices()
	if err != nil {
		return nil, fmt.Errorf("decode: list devices: %w", err)
	}
	return devices, nil
}
