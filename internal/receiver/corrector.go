package receiver

// corrector.go recognizes CommonSequences fragments in the receiver's own
// classified mark stream and, once a fragment has repeated enough times,
// nudges the owning Receiver's inter-character boundary toward the gap
// ratio the fragment's breaks imply. Unlike Sequencer (which matches on
// already-decoded characters purely as an operator hint), the Corrector
// works on raw marks and gaps and can feed back into the timing the
// receiver itself uses to classify future boundaries.

import (
	"strings"
	"sync"
	"time"

	"github.com/ColonelBlimp/morsekit/internal/morsecode"
)

const (
	// maxElementBuffer bounds how many classified marks the Corrector keeps.
	maxElementBuffer = 50
	// defaultMinConfidence is the default CorrectorConfig.MinConfidence.
	defaultMinConfidence = 0.7
	// defaultAdjustmentRate is the default CorrectorConfig.AdjustmentRate.
	defaultAdjustmentRate = 0.1
	// defaultMinMatchesForAdjust is the default CorrectorConfig.MinMatchesForAdjust.
	defaultMinMatchesForAdjust = 3
	// breakConfidenceFloor is the minimum break-alignment score a match
	// needs before it is considered at all, independent of MinConfidence.
	breakConfidenceFloor = 0.8
	// boundaryChangeFloor is the minimum interCharRatio delta worth
	// applying; anything smaller is noise.
	boundaryChangeFloor = 0.05
)

// Element is one mark the receiver has already classified as a dot or dash,
// together with the gap that followed it.
type Element struct {
	IsDash    bool
	Duration  time.Duration
	GapAfter  time.Duration
	Timestamp time.Time
	IsCharEnd bool
	IsWordEnd bool
}

// CorrectedOutput reports a recognized CommonSequences fragment.
type CorrectedOutput struct {
	Original       string
	Corrected      string
	Pattern        Pattern
	Confidence     float64
	TimingAdjusted bool
}

// CorrectedCallback is invoked whenever the Corrector recognizes a fragment.
type CorrectedCallback func(CorrectedOutput)

// CorrectorConfig tunes the Corrector's matching and adjustment behavior.
// Zero values fall back to the package defaults.
type CorrectorConfig struct {
	MinConfidence       float64
	AdjustmentRate      float64
	MinMatchesForAdjust int
}

func (c *CorrectorConfig) setDefaults() {
	if c.MinConfidence <= 0 {
		c.MinConfidence = defaultMinConfidence
	}
	if c.AdjustmentRate <= 0 {
		c.AdjustmentRate = defaultAdjustmentRate
	}
	if c.MinMatchesForAdjust <= 0 {
		c.MinMatchesForAdjust = defaultMinMatchesForAdjust
	}
}

// Corrector buffers classified marks from one Receiver, matches the current
// word against CommonSequences, and, once a fragment has been confirmed
// MinMatchesForAdjust times, calls back into the Receiver to nudge its
// inter-character boundary toward the fragment's own gap ratios.
type Corrector struct {
	recv *Receiver
	cfg  CorrectorConfig

	mu      sync.Mutex
	buffer  []Element
	matches map[string]int
	cb      CorrectedCallback
}

// NewCorrector creates a Corrector that observes and adjusts recv.
func NewCorrector(recv *Receiver, cfg CorrectorConfig) *Corrector {
	cfg.setDefaults()
	return &Corrector{
		recv:    recv,
		cfg:     cfg,
		buffer:  make([]Element, 0, maxElementBuffer),
		matches: make(map[string]int),
	}
}

// SetCorrectedCallback sets the callback invoked on every recognized
// fragment, whether or not it triggered a timing adjustment.
func (c *Corrector) SetCorrectedCallback(cb CorrectedCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cb = cb
}

// RecordElement appends a classified mark and, at a character or word
// boundary, attempts a CommonSequences match.
func (c *Corrector) RecordElement(e Element) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buffer = append(c.buffer, e)
	if len(c.buffer) > maxElementBuffer {
		c.buffer = c.buffer[len(c.buffer)-maxElementBuffer:]
	}
	if e.IsCharEnd || e.IsWordEnd {
		c.checkPatterns()
	}
}

// checkPatterns looks for a CommonSequences match within the current word
// (the buffered tail since the last IsWordEnd mark).
func (c *Corrector) checkPatterns() {
	if len(c.buffer) < 2 {
		return
	}

	start := 0
	for i := len(c.buffer) - 2; i >= 0; i-- {
		if c.buffer[i].IsWordEnd {
			start = i + 1
			break
		}
	}

	word := c.buffer[start:]
	if len(word) < 2 {
		return
	}

	match, shape := c.findBestMatch(word)
	if match != nil && match.confidence >= c.cfg.MinConfidence {
		c.handleMatch(match, shape, word)
	}
}

type patternMatch struct {
	confidence        float64
	suggestedBoundary float64
}

func (c *Corrector) findBestMatch(word []Element) (*patternMatch, patternShape) {
	var best *patternMatch
	var bestShape patternShape
	for _, shape := range commonPatternShapes {
		if len(shape.dashes) != len(word) {
			continue
		}
		m := c.matchShape(shape, word)
		if m == nil {
			continue
		}
		if best == nil || m.confidence > best.confidence ||
			(m.confidence == best.confidence && shape.pattern.Priority > bestShape.pattern.Priority) {
			best = m
			bestShape = shape
		}
	}
	return best, bestShape
}

// matchShape requires an exact dot/dash match (100%) and at least
// breakConfidenceFloor of the expected character breaks to actually be
// where the receiver classified them.
func (c *Corrector) matchShape(shape patternShape, word []Element) *patternMatch {
	for i, isDash := range shape.dashes {
		if word[i].IsDash != isDash {
			return nil
		}
	}

	breakConfidence := calculateBreakConfidence(shape, word)
	if breakConfidence < breakConfidenceFloor {
		return nil
	}

	return &patternMatch{
		confidence:        breakConfidence,
		suggestedBoundary: c.calculateSuggestedBoundary(shape, word),
	}
}

func calculateBreakConfidence(shape patternShape, word []Element) float64 {
	if len(shape.breaks) == 0 {
		return 1.0
	}
	correct := 0
	for idx := range shape.breaks {
		if idx < len(word) && word[idx].IsCharEnd {
			correct++
		}
	}
	return float64(correct) / float64(len(shape.breaks))
}

// calculateSuggestedBoundary compares gap ratios either side of the
// pattern's expected breaks, suggesting a new inter-character boundary (in
// dot units) as the midpoint between the widest intra-character gap and the
// narrowest inter-character gap observed in this match. Returns 0 (no
// suggestion) if the two ranges overlap, since no clean boundary exists.
func (c *Corrector) calculateSuggestedBoundary(shape patternShape, word []Element) float64 {
	if len(shape.breaks) == 0 || len(word) < 2 {
		return 0
	}
	dot := c.recv.dotDuration()
	if dot <= 0 {
		return 0
	}

	var maxIntra, minInter float64
	haveIntra, haveInter := false, false
	for i := 0; i < len(word)-1; i++ {
		ratio := float64(word[i].GapAfter) / float64(dot)
		if shape.breaks[i] {
			if !haveInter || ratio < minInter {
				minInter = ratio
				haveInter = true
			}
		} else {
			if !haveIntra || ratio > maxIntra {
				maxIntra = ratio
				haveIntra = true
			}
		}
	}

	if !haveIntra || !haveInter || minInter <= maxIntra {
		return 0
	}
	return (maxIntra + minInter) / 2
}

func (c *Corrector) handleMatch(match *patternMatch, shape patternShape, word []Element) {
	c.matches[shape.pattern.Text]++
	count := c.matches[shape.pattern.Text]

	out := CorrectedOutput{
		Original:   c.decodeWord(word),
		Corrected:  shape.pattern.Text,
		Pattern:    shape.pattern,
		Confidence: match.confidence,
	}

	if count >= c.cfg.MinMatchesForAdjust && match.suggestedBoundary > 0 {
		out.TimingAdjusted = c.recv.nudgeInterCharBoundary(match.suggestedBoundary, c.cfg.AdjustmentRate)
	}

	if c.cb != nil {
		c.cb(out)
	}
}

// decodeWord renders word back to text via the shared representation table,
// for CorrectedOutput.Original.
func (c *Corrector) decodeWord(word []Element) string {
	var out, rep strings.Builder
	for _, e := range word {
		if e.IsDash {
			rep.WriteByte('-')
		} else {
			rep.WriteByte('.')
		}
		if e.IsCharEnd {
			if ch, ok := morsecode.RepresentationToCharacter(rep.String()); ok {
				out.WriteRune(ch)
			}
			rep.Reset()
		}
	}
	if rep.Len() > 0 {
		if ch, ok := morsecode.RepresentationToCharacter(rep.String()); ok {
			out.WriteRune(ch)
		}
	}
	return out.String()
}

// GetPatternMatchCounts returns a copy of how many times each CommonSequences
// fragment has been recognized.
func (c *Corrector) GetPatternMatchCounts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts := make(map[string]int, len(c.matches))
	for k, v := range c.matches {
		counts[k] = v
	}
	return counts
}

// Reset clears the element buffer and match counts.
func (c *Corrector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffer = c.buffer[:0]
	c.matches = make(map[string]int)
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// patternShape decomposes a CommonSequences Pattern into its dash/dot
// sequence and the element indices where a character boundary is expected,
// precomputed once from Pattern.Representation.
type patternShape struct {
	pattern Pattern
	dashes  []bool
	breaks  map[int]bool
}

var commonPatternShapes = buildPatternShapes(CommonSequences)

func buildPatternShapes(patterns []Pattern) []patternShape {
	shapes := make([]patternShape, 0, len(patterns))
	for _, p := range patterns {
		var dashes []bool
		breaks := make(map[int]bool)
		for _, ch := range p.Representation {
			switch ch {
			case '.':
				dashes = append(dashes, false)
			case '-':
				dashes = append(dashes, true)
			case ' ':
				breaks[len(dashes)-1] = true
			}
		}
		shapes = append(shapes, patternShape{pattern: p, dashes: dashes, breaks: breaks})
	}
	return shapes
}
