package decode

import (
	"testing"

	"github.com/ColonelBlimp/morsekit/internal/config"
)

func testSettings() config.Settings {
	return config.Settings{
		DeviceIndex:         -1,
		SampleRate:          48000,
		Channels:            1,
		BufferSize:          1024,
		ToneFrequency:       600,
		BlockSize:           512,
		OverlapPct:          50,
		Threshold:           0.4,
		Hysteresis:          5,
		AGCEnabled:          true,
		AGCDecay:            0.9995,
		AGCAttack:           0.1,
		WPM:                 20,
		AdaptiveTiming:      true,
		RecAdaptive:         true,
		RecTolerancePercent: 10,
	}
}

func TestNewDecoderBuildsPipeline(t *testing.T) {
	decoder, err := NewDecoder(testSettings())
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	if decoder == nil {
		t.Fatal("NewDecoder() = nil, want a usable decoder")
	}
	if decoder.recv == nil || decoder.detector == nil || decoder.goertzel == nil || decoder.capture == nil {
		t.Fatal("NewDecoder() did not wire every pipeline stage")
	}
}

func TestNewDecoderRejectsInvalidGoertzelConfig(t *testing.T) {
	settings := testSettings()
	settings.ToneFrequency = settings.SampleRate // twice Nyquist, Goertzel should reject it
	if _, err := NewDecoder(settings); err == nil {
		t.Fatal("NewDecoder() with tone frequency above Nyquist, want error")
	}
}

func TestDecoderCallbackReceivesResolvedCharacters(t *testing.T) {
	decoder, err := NewDecoder(testSettings())
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}

	received := make(chan DecodedOutput, 1)
	decoder.SetCallback(func(out DecodedOutput) {
		select {
		case received <- out:
		default:
		}
	})
	if decoder.cb == nil {
		t.Fatal("SetCallback did not register")
	}
}
