// Package timing derives every Morse interval duration (dot, dash,
// inter-mark, inter-character, inter-word, plus the weighting
// additional/adjustment terms) from the small parameter set shared by the
// generator and the receiver: speed, frequency, volume, gap, weighting and
// (receiver-only) tolerance.
package timing

import (
	"errors"
	"math"
	"time"
)

// Parameter limits shared by the generator and receiver.
const (
	MinWPM = 4
	MaxWPM = 60

	MinFrequencyHz = 0
	MaxFrequencyHz = 4000

	MinVolumePercent = 0
	MaxVolumePercent = 100

	MinGapUnits = 0
	MaxGapUnits = 60

	MinWeightingPercent = 20
	MaxWeightingPercent = 80
	NeutralWeighting    = 50

	MinTolerancePercent = 0
	MaxTolerancePercent = 90
)

var (
	// ErrInvalidWPM indicates a speed value outside [MinWPM, MaxWPM].
	ErrInvalidWPM = errors.New("timing: wpm out of range")
	// ErrInvalidFrequency indicates a frequency value outside [MinFrequencyHz, MaxFrequencyHz].
	ErrInvalidFrequency = errors.New("timing: frequency out of range")
	// ErrInvalidVolume indicates a volume value outside [MinVolumePercent, MaxVolumePercent].
	ErrInvalidVolume = errors.New("timing: volume out of range")
	// ErrInvalidGap indicates a gap value outside [MinGapUnits, MaxGapUnits].
	ErrInvalidGap = errors.New("timing: gap out of range")
	// ErrInvalidWeighting indicates a weighting value outside [MinWeightingPercent, MaxWeightingPercent].
	ErrInvalidWeighting = errors.New("timing: weighting out of range")
	// ErrInvalidTolerance indicates a tolerance value outside [MinTolerancePercent, MaxTolerancePercent].
	ErrInvalidTolerance = errors.New("timing: tolerance out of range")
)

// Intervals holds every derived duration, computed in microseconds and
// surfaced here as time.Duration.
type Intervals struct {
	Dot        time.Duration
	Dash       time.Duration
	InterMark  time.Duration
	InterChar  time.Duration
	InterWord  time.Duration
	Additional time.Duration
	Adjustment time.Duration
}

// Parameters is the small, mutable set of user-facing knobs. Every setter
// validates against the limits above and marks the derived intervals dirty;
// Derive() re-synchronizes lazily, exactly once per dirty cycle.
type Parameters struct {
	wpm              int
	frequencyHz      int
	volumePercent    int
	gapUnits         int
	weightingPercent int
	tolerancePercent int

	dirty  bool
	cached Intervals
}

// NewParameters returns a Parameters at conservative, valid defaults:
// 20 WPM, 800 Hz, full volume, no gap, neutral weighting, 0% tolerance.
func NewParameters() *Parameters {
	p := &Parameters{
		wpm:              20,
		frequencyHz:      800,
		volumePercent:    100,
		gapUnits:         0,
		weightingPercent: NeutralWeighting,
		tolerancePercent: 0,
	}
	p.dirty = true
	return p
}

func (p *Parameters) SetWPM(wpm int) error {
	if wpm < MinWPM || wpm > MaxWPM {
		return ErrInvalidWPM
	}
	p.wpm = wpm
	p.dirty = true
	return nil
}

func (p *Parameters) WPM() int { return p.wpm }

func (p *Parameters) SetFrequencyHz(hz int) error {
	if hz < MinFrequencyHz || hz > MaxFrequencyHz {
		return ErrInvalidFrequency
	}
	p.frequencyHz = hz
	p.dirty = true
	return nil
}

func (p *Parameters) FrequencyHz() int { return p.frequencyHz }

func (p *Parameters) SetVolumePercent(v int) error {
	if v < MinVolumePercent || v > MaxVolumePercent {
		return ErrInvalidVolume
	}
	p.volumePercent = v
	p.dirty = true
	return nil
}

func (p *Parameters) VolumePercent() int { return p.volumePercent }

func (p *Parameters) SetGapUnits(g int) error {
	if g < MinGapUnits || g > MaxGapUnits {
		return ErrInvalidGap
	}
	p.gapUnits = g
	p.dirty = true
	return nil
}

func (p *Parameters) GapUnits() int { return p.gapUnits }

func (p *Parameters) SetWeightingPercent(w int) error {
	if w < MinWeightingPercent || w > MaxWeightingPercent {
		return ErrInvalidWeighting
	}
	p.weightingPercent = w
	p.dirty = true
	return nil
}

func (p *Parameters) WeightingPercent() int { return p.weightingPercent }

func (p *Parameters) SetTolerancePercent(t int) error {
	if t < MinTolerancePercent || t > MaxTolerancePercent {
		return ErrInvalidTolerance
	}
	p.tolerancePercent = t
	p.dirty = true
	return nil
}

func (p *Parameters) TolerancePercent() int { return p.tolerancePercent }

// Dirty reports whether the derived intervals need re-synchronization.
func (p *Parameters) Dirty() bool { return p.dirty }

// Derive recomputes and returns the seven interval durations. It is
// idempotent and lazy: repeated calls between parameter writes return the
// cached value without recomputing.
func (p *Parameters) Derive() Intervals {
	if !p.dirty {
		return p.cached
	}

	unit := 1_200_000.0 / float64(p.wpm) // microseconds, neutral dot length
	weightingLength := (2.0 * (float64(p.weightingPercent) - 50.0) * unit) / 100.0

	dot := unit + weightingLength
	dash := 3*unit + weightingLength
	interMark := unit - weightingLength
	interChar := 3*unit - weightingLength + float64(p.gapUnits)*unit
	interWord := 7*unit - weightingLength + float64(p.gapUnits)*unit

	p.cached = Intervals{
		Dot:        microseconds(dot),
		Dash:       microseconds(dash),
		InterMark:  microseconds(interMark),
		InterChar:  microseconds(interChar),
		InterWord:  microseconds(interWord),
		Additional: 0,
		Adjustment: microseconds(weightingLength),
	}
	p.dirty = false
	return p.cached
}

func microseconds(us float64) time.Duration {
	return time.Duration(math.Round(us)) * time.Microsecond
}
