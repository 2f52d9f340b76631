package generator

import (
	"time"

	"github.com/ColonelBlimp/morsekit/internal/morsecode"
	"github.com/ColonelBlimp/morsekit/internal/tonequeue"
)

func (g *Generator) silence(d time.Duration) tonequeue.Tone {
	return tonequeue.Tone{FrequencyHz: 0, Duration: d}
}

func (g *Generator) mark(d time.Duration) tonequeue.Tone {
	g.mu.Lock()
	freq := g.params.FrequencyHz()
	slope, slopeLen := g.slope, time.Duration(g.slopeLen)*time.Microsecond
	g.mu.Unlock()
	return tonequeue.Tone{FrequencyHz: freq, Duration: d, Slope: slope, SlopeLength: slopeLen}
}

// enqueueRepresentation pushes the mark/inter-mark tone sequence for rep.
// When partial is false it also appends the trailing inter-character
// silence; when true it stops right after the last mark's inter-mark gap,
// per EnqueueRepresentationPartial's contract. Returns the number of raw
// tones pushed.
func (g *Generator) enqueueRepresentation(rep string, partial bool) (int, error) {
	iv := g.intervals()
	tones := make([]tonequeue.Tone, 0, 2*len(rep)+1)

	for _, sym := range rep {
		var d time.Duration
		switch sym {
		case '.':
			d = iv.Dot
		case '-':
			d = iv.Dash
		default:
			return 0, ErrInvalidArgument
		}
		tones = append(tones, g.mark(d))
		tones = append(tones, g.silence(iv.InterMark))
	}

	if !partial {
		trailing := iv.InterChar - iv.InterMark
		if trailing < 0 {
			trailing = 0
		}
		tones = append(tones, g.silence(trailing))
	}

	for _, t := range tones {
		if err := g.queue.Enqueue(t); err != nil {
			return 0, err
		}
	}
	return len(tones), nil
}

// EnqueueRepresentation enqueues the mark/space sequence for a raw dot/dash
// string, including the trailing inter-character silence.
func (g *Generator) EnqueueRepresentation(rep string) error {
	if !morsecode.IsRepresentationValid(rep) {
		return ErrInvalidArgument
	}
	_, err := g.enqueueRepresentation(rep, false)
	return err
}

// EnqueueRepresentationPartial is EnqueueRepresentation without the trailing
// inter-character space, used when more marks for the same character will
// be appended by the caller (e.g. the iambic keyer).
func (g *Generator) EnqueueRepresentationPartial(rep string) error {
	if !morsecode.IsRepresentationValid(rep) {
		return ErrInvalidArgument
	}
	_, err := g.enqueueRepresentation(rep, true)
	return err
}

// EnqueueCharacter enqueues the full tone sequence for one character and
// records it on the undo stack for RemoveLastCharacter.
func (g *Generator) EnqueueCharacter(c rune) error {
	rep, ok := morsecode.CharacterToRepresentation(c)
	if !ok {
		return ErrInvalidArgument
	}

	// enqueueRepresentation takes g.mu itself (via intervals and mark), so
	// the lock is only held for the undo-stack update.
	n, err := g.enqueueRepresentation(rep, false)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.charStack = append(g.charStack, charBatch{toneCount: n, generation: g.queue.DequeueGeneration()})
	g.mu.Unlock()
	return nil
}

// EnqueueString validates every character up front (atomicity: either the
// whole string is enqueued or none of it is) then enqueues character by
// character, translating spaces into word spaces.
func (g *Generator) EnqueueString(s string) error {
	for _, c := range s {
		if c != ' ' && !morsecode.IsCharacterValid(c) {
			return ErrInvalidArgument
		}
	}
	for _, c := range s {
		var err error
		if c == ' ' {
			err = g.EnqueueWordSpace()
		} else {
			err = g.EnqueueCharacter(c)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// EnqueueDot enqueues a single dot-duration mark tone with no trailing
// space, for direct use by the iambic keyer.
func (g *Generator) EnqueueDot() error {
	iv := g.intervals()
	return g.queue.Enqueue(g.mark(iv.Dot))
}

// EnqueueDash enqueues a single dash-duration mark tone with no trailing
// space.
func (g *Generator) EnqueueDash() error {
	iv := g.intervals()
	return g.queue.Enqueue(g.mark(iv.Dash))
}

// MarkDuration returns the current dot or dash duration, for callers (the
// iambic keyer) that need to pace their own state timer alongside a mark
// they asked the generator to enqueue.
func (g *Generator) MarkDuration(dash bool) time.Duration {
	iv := g.intervals()
	if dash {
		return iv.Dash
	}
	return iv.Dot
}

// InterMarkDuration returns the current inter-mark gap duration.
func (g *Generator) InterMarkDuration() time.Duration {
	return g.intervals().InterMark
}

// EnqueueSilenceFor enqueues a standalone silence tone of duration d,
// bypassing the standard character/word-space derivation; used by the
// iambic keyer to enqueue its gap-state silences directly.
func (g *Generator) EnqueueSilenceFor(d time.Duration) error {
	return g.queue.Enqueue(g.silence(d))
}

// EnqueueCharacterSpace enqueues a standalone inter-character silence.
func (g *Generator) EnqueueCharacterSpace() error {
	iv := g.intervals()
	return g.queue.Enqueue(g.silence(iv.InterChar))
}

// EnqueueWordSpace enqueues the silence that separates words: the
// difference between inter-word and inter-character duration, since the
// preceding character enqueue already appended an inter-character silence.
func (g *Generator) EnqueueWordSpace() error {
	iv := g.intervals()
	d := iv.InterWord - iv.InterChar
	if d < 0 {
		d = 0
	}
	return g.queue.Enqueue(g.silence(d))
}

// foreverChunk is the tone length the consumer re-synthesizes each time it
// loops on an active forever tone (see tonequeue.Tone.Forever): short enough
// that a key-up is reflected in the sink within one chunk of latency.
const foreverChunk = 20 * time.Millisecond

// SetKeyValue holds the generator's output at a continuous tone (closed
// true) or continuous silence (closed false) by enqueuing a forever tone
// that displaces whichever forever tone is currently playing. It is the
// straight-key entry point: unlike EnqueueDot/EnqueueDash, the caller
// decides how long the tone plays by calling SetKeyValue again, rather than
// the generator deriving a fixed dot/dash duration.
func (g *Generator) SetKeyValue(closed bool) error {
	if !closed {
		return g.queue.Enqueue(tonequeue.Tone{Duration: foreverChunk, Forever: true})
	}
	g.mu.Lock()
	freq := g.params.FrequencyHz()
	g.mu.Unlock()
	return g.queue.Enqueue(tonequeue.Tone{FrequencyHz: freq, Duration: foreverChunk, Forever: true})
}

// RemoveLastCharacter undoes the most recently enqueued character's tones,
// provided none of them have been handed to the sink yet (the queue's
// dequeue generation must be unchanged since they were pushed). It is a
// silent no-op otherwise, per the enqueue algorithm's stated contract.
func (g *Generator) RemoveLastCharacter() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.charStack) == 0 {
		return
	}
	last := g.charStack[len(g.charStack)-1]
	g.charStack = g.charStack[:len(g.charStack)-1]

	if g.queue.DequeueGeneration() != last.generation {
		return
	}
	g.queue.RemoveLastN(last.toneCount)
}
