package receiver

import (
	"testing"
	"time"

	"github.com/ColonelBlimp/morsekit/internal/timing"
)

func paramsAt(t *testing.T, wpm int) *timing.Parameters {
	t.Helper()
	p := timing.NewParameters()
	if err := p.SetWPM(wpm); err != nil {
		t.Fatalf("set wpm: %v", err)
	}
	return p
}

// feedCharacter drives NotifyKeyEvent for a representation's marks and
// intra-character gaps, starting at t0 and returning the timestamp right
// after the last mark ends (the start of the trailing space).
func feedCharacter(t *testing.T, r *Receiver, t0 time.Time, rep string, iv timing.Intervals) time.Time {
	t.Helper()
	ts := t0
	for i, sym := range rep {
		if err := r.NotifyKeyEvent(ts, true); err != nil {
			t.Fatalf("notify down: %v", err)
		}
		var d time.Duration
		if sym == '.' {
			d = iv.Dot
		} else {
			d = iv.Dash
		}
		ts = ts.Add(d)
		if err := r.NotifyKeyEvent(ts, false); err != nil {
			t.Fatalf("notify up: %v", err)
		}
		if i < len(rep)-1 {
			ts = ts.Add(iv.InterMark)
		}
	}
	return ts
}

func TestPollCharacterReturnsEAGAINDuringMark(t *testing.T) {
	p := paramsAt(t, 20)
	r := New(p, false)
	t0 := time.Unix(0, 0)
	if err := r.NotifyKeyEvent(t0, true); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if _, _, err := r.PollCharacter(t0.Add(time.Microsecond)); err != ErrAgain {
		t.Fatalf("poll during mark = %v, want ErrAgain", err)
	}
}

func TestPollCharacterReturnsERANGEWhenNothingPending(t *testing.T) {
	p := paramsAt(t, 20)
	r := New(p, false)
	if _, _, err := r.PollCharacter(time.Unix(0, 0)); err != ErrRange {
		t.Fatalf("poll on idle = %v, want ErrRange", err)
	}
}

func TestPollCharacterResolvesSimpleCharacter(t *testing.T) {
	p := paramsAt(t, 20)
	r := New(p, false)
	iv := p.Derive()

	t0 := time.Unix(0, 0)
	spaceStart := feedCharacter(t, r, t0, "...", iv) // S

	// Within (1.5*dot, 5*dot]: a confident character-boundary classification.
	pollTime := spaceStart.Add(3 * iv.Dot)
	c, isWordSpace, err := r.PollCharacter(pollTime)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if isWordSpace {
		t.Fatal("expected a character boundary, not a word boundary")
	}
	if c != 'S' {
		t.Fatalf("character = %q, want 'S'", c)
	}
}

func TestPollCharacterSignalsPendingWordSpaceOnRePoll(t *testing.T) {
	p := paramsAt(t, 20)
	r := New(p, false)
	iv := p.Derive()

	t0 := time.Unix(0, 0)
	spaceStart := feedCharacter(t, r, t0, ".", iv) // E

	// Within (1.5*dot, 5*dot]: resolves the character but the gap could
	// still grow into a word space.
	charPoll := spaceStart.Add(3 * iv.Dot)
	c, isWordSpace, err := r.PollCharacter(charPoll)
	if err != nil || isWordSpace || c != 'E' {
		t.Fatalf("char poll = (%q, %v, %v)", c, isWordSpace, err)
	}

	// Still within the same (1.5*dot, 5*dot] window: nothing new to report yet.
	if _, _, err := r.PollCharacter(spaceStart.Add(4 * iv.Dot)); err != ErrAgain {
		t.Fatalf("re-poll before word threshold = %v, want ErrAgain", err)
	}

	// Past 5*dot: the gap is unambiguously a word space.
	wordPoll := spaceStart.Add(6 * iv.Dot)
	_, isWordSpace, err = r.PollCharacter(wordPoll)
	if err != nil {
		t.Fatalf("word poll: %v", err)
	}
	if !isWordSpace {
		t.Fatal("expected the deferred word-space signal")
	}

	if _, _, err := r.PollCharacter(wordPoll.Add(time.Microsecond)); err != ErrRange {
		t.Fatalf("poll after word space consumed = %v, want ErrRange", err)
	}
}

func TestPollCharacterSetsEOCGapState(t *testing.T) {
	p := paramsAt(t, 20)
	r := New(p, false)
	iv := p.Derive()

	t0 := time.Unix(0, 0)
	spaceStart := feedCharacter(t, r, t0, "...", iv) // S

	// Within (1.5*dot, 5*dot]: a character-boundary gap.
	if _, _, err := r.PollCharacter(spaceStart.Add(3 * iv.Dot)); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if r.State() != EOCGap {
		t.Fatalf("state = %v, want EOCGap", r.State())
	}
}

func TestPollCharacterSetsEOWGapState(t *testing.T) {
	p := paramsAt(t, 20)
	r := New(p, false)
	iv := p.Derive()

	t0 := time.Unix(0, 0)
	spaceStart := feedCharacter(t, r, t0, ".", iv) // E

	// Past interCharRatio*dot (default 5): an unambiguous word-space gap.
	if _, _, err := r.PollCharacter(spaceStart.Add(6 * iv.Dot)); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if r.State() != EOWGap {
		t.Fatalf("state = %v, want EOWGap", r.State())
	}
}

func TestNotifyKeyEventOverflowEntersErrorState(t *testing.T) {
	p := paramsAt(t, 20)
	r := New(p, false)
	iv := p.Derive()

	// maxRepresentationLength is 7; no morsecode entry is longer than that,
	// so an 8th mark without an intervening character boundary must overflow.
	t0 := time.Unix(0, 0)
	ts := t0
	for i := 0; i < maxRepresentationLength+1; i++ {
		if err := r.NotifyKeyEvent(ts, true); err != nil {
			t.Fatalf("notify down: %v", err)
		}
		ts = ts.Add(iv.Dot)
		if err := r.NotifyKeyEvent(ts, false); err != nil {
			t.Fatalf("notify up: %v", err)
		}
		ts = ts.Add(iv.InterMark)
	}

	if r.State() != Error {
		t.Fatalf("state = %v, want Error", r.State())
	}

	if _, _, err := r.PollCharacter(ts.Add(3 * iv.Dot)); err != ErrNoEntry {
		t.Fatalf("poll after overflow = %v, want ErrNoEntry", err)
	}
	if r.State() != AfterMarkSpace {
		t.Fatalf("state after drain = %v, want AfterMarkSpace", r.State())
	}
	if r.repBuffer != "" {
		t.Fatalf("repBuffer after drain = %q, want empty", r.repBuffer)
	}
}

func TestNotifyKeyEventRejectsOutOfOrderTimestamp(t *testing.T) {
	p := paramsAt(t, 20)
	r := New(p, false)
	t0 := time.Unix(10, 0)
	if err := r.NotifyKeyEvent(t0, true); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := r.NotifyKeyEvent(t0.Add(-time.Second), false); err != ErrInvalidTimestamp {
		t.Fatalf("out of order notify = %v, want ErrInvalidTimestamp", err)
	}
}

func TestAdaptiveSpeedTracksFasterSending(t *testing.T) {
	p := paramsAt(t, 20)
	r := New(p, true)
	iv := p.Derive()

	// Feed several dots at a faster (60 WPM) pace so the adaptive estimate
	// should converge toward the faster dot duration.
	fast := timing.NewParameters()
	if err := fast.SetWPM(60); err != nil {
		t.Fatalf("set wpm: %v", err)
	}
	fastIv := fast.Derive()

	ts := time.Unix(0, 0)
	for i := 0; i < 8; i++ {
		ts = feedCharacter(t, r, ts, ".", fastIv).Add(iv.InterChar + time.Millisecond)
	}

	if got := r.dotDuration(); got >= iv.Dot {
		t.Fatalf("adaptive dot estimate = %v, want less than the fixed 20wpm estimate %v", got, iv.Dot)
	}
}

func TestSequencerMatchesKnownSuffix(t *testing.T) {
	s := NewSequencer(8)
	s.Observe("-.-.", false) // C
	s.Observe("--.-", false) // Q

	match, ok := s.Match()
	if !ok {
		t.Fatal("expected a match for CQ")
	}
	if match.Text != "CQ" {
		t.Fatalf("matched %q, want CQ", match.Text)
	}
}

func TestSequencerResetsOnWordBoundary(t *testing.T) {
	s := NewSequencer(8)
	s.Observe("-.-.", false)
	s.Observe("--.-", true) // word boundary clears the buffer
	if _, ok := s.Match(); ok {
		t.Fatal("expected no match after a word-boundary reset")
	}
}
