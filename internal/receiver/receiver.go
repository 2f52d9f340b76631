// Package receiver implements the receiver state machine: it turns
// externally timed key transitions into characters, tracking adaptive
// speed and rolling statistics with a ring buffer and a median speed
// estimate. A Receiver holds no lock of its own.
package receiver

import (
	"errors"
	"sort"
	"time"

	"github.com/ColonelBlimp/morsekit/internal/morsecode"
	"github.com/ColonelBlimp/morsekit/internal/timing"
)

// State is one of the receiver's six states.
type State int

const (
	Idle State = iota
	InMark
	AfterMarkSpace
	EOCGap
	EOWGap
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InMark:
		return "in_mark"
	case AfterMarkSpace:
		return "after_mark_space"
	case EOCGap:
		return "eoc_gap"
	case EOWGap:
		return "eow_gap"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

var (
	// ErrAgain indicates the current mark is not yet complete; poll again later.
	ErrAgain = errors.New("receiver: mark not yet complete")
	// ErrRange indicates no character is pending.
	ErrRange = errors.New("receiver: no character pending")
	// ErrNoEntry indicates the accumulated representation has no matching character.
	ErrNoEntry = errors.New("receiver: invalid representation")
	// ErrInvalidTimestamp indicates a timestamp older than the last recorded transition.
	ErrInvalidTimestamp = errors.New("receiver: timestamp out of order")

	// ringCapacity bounds the adaptive dot/dash duration rings.
	ringCapacity = 16

	// maxRepresentationLength bounds the current-character accumulator: no
	// morsecode table entry is longer than this, so an 8th mark without an
	// intervening character boundary can never resolve and drives the
	// receiver into Error instead of growing repBuffer without limit.
	maxRepresentationLength = 7

	// defaultInterCharRatio is the inter-character gap threshold in dot
	// units before any Corrector has nudged it.
	defaultInterCharRatio = 5.0
)

// Stat is a minimal rolling statistic: count, running mean and extremes.
type Stat struct {
	Count int
	Mean  time.Duration
	Min   time.Duration
	Max   time.Duration
}

func (s *Stat) observe(d time.Duration) {
	if s.Count == 0 {
		s.Min, s.Max = d, d
	} else {
		if d < s.Min {
			s.Min = d
		}
		if d > s.Max {
			s.Max = d
		}
	}
	s.Mean = (s.Mean*time.Duration(s.Count) + d) / time.Duration(s.Count+1)
	s.Count++
}

// Stats is the set of rolling statistics exposed for diagnostics.
type Stats struct {
	Dot, Dash, InterMark, InterChar, InterWord Stat
}

// Receiver reconstructs characters from a stream of NotifyKeyEvent calls.
type Receiver struct {
	params   *timing.Parameters
	adaptive bool

	state State

	lastTransition time.Time
	haveLast       bool
	markStart      time.Time
	spaceStart     time.Time
	inSpace        bool

	repBuffer        string
	pendingWordSpace bool

	// pendingMark* carry the just-completed mark's classification through to
	// the next NotifyKeyEvent call, when its trailing gap is finally known
	// and a Corrector (if attached) can be given a complete Element.
	pendingMarkIsDash   bool
	pendingMarkDuration time.Duration
	pendingMarkStart    time.Time

	dotRing  []time.Duration
	dashRing []time.Duration

	dotEstimate  time.Duration
	dashEstimate time.Duration

	// interCharRatio is the inter-character gap threshold in dot units;
	// nudgeInterCharBoundary adjusts it once a Corrector has confirmed a
	// known sequence enough times.
	interCharRatio float64
	corrector      *Corrector

	stats Stats
}

// New creates a receiver using params for its fixed (non-adaptive)
// thresholds and, when adaptive is true, its own ring-buffer estimates once
// enough marks have been observed.
func New(params *timing.Parameters, adaptive bool) *Receiver {
	r := &Receiver{params: params, adaptive: adaptive, state: Idle, interCharRatio: defaultInterCharRatio}
	iv := params.Derive()
	r.dotEstimate = iv.Dot
	r.dashEstimate = iv.Dash
	return r
}

// State reports the current state, mainly for diagnostics/tests.
func (r *Receiver) State() State { return r.state }

// SetCorrector attaches c to observe every classified mark/gap and
// potentially nudge interCharRatio; pass nil to detach.
func (r *Receiver) SetCorrector(c *Corrector) {
	r.corrector = c
}

// Stats returns a copy of the rolling statistics.
func (r *Receiver) Stats() Stats { return r.stats }

func (r *Receiver) dotDuration() time.Duration {
	if r.adaptive && len(r.dotRing) > 0 {
		return r.dotEstimate
	}
	return r.params.Derive().Dot
}

// NotifyKeyEvent records a transition at timestamp ts: isDown true means a
// mark (tone) began, false means it ended and silence began. It classifies
// the interval that just completed.
func (r *Receiver) NotifyKeyEvent(ts time.Time, isDown bool) error {
	if r.haveLast && ts.Before(r.lastTransition) {
		return ErrInvalidTimestamp
	}

	if !r.haveLast {
		r.haveLast = true
		r.lastTransition = ts
		if isDown {
			r.markStart = ts
			r.state = InMark
		}
		return nil
	}

	if isDown {
		// A mark begins: the prior up-interval (if any) is now over.
		if r.inSpace {
			r.resolveSpace(ts.Sub(r.spaceStart))
			r.inSpace = false
		}
		r.markStart = ts
		r.state = InMark
	} else {
		// A mark ends: classify its duration as dot or dash.
		d := ts.Sub(r.markStart)
		isDash := r.classifyMark(d)
		r.observeMark(d, isDash)
		if isDash {
			r.repBuffer += "-"
		} else {
			r.repBuffer += "."
		}
		r.pendingMarkIsDash = isDash
		r.pendingMarkDuration = d
		r.pendingMarkStart = r.markStart
		r.spaceStart = ts
		r.inSpace = true
		if len(r.repBuffer) > maxRepresentationLength {
			r.state = Error
		} else {
			r.state = AfterMarkSpace
		}
	}

	r.lastTransition = ts
	return nil
}

// classifyMark classifies a completed mark duration as a dash (true) or dot
// (false): the threshold is the midpoint between the current dot and dash
// estimates.
func (r *Receiver) classifyMark(d time.Duration) bool {
	dot, dash := r.dotDuration(), r.dashDurationFixed()
	threshold := (dot + dash) / 2
	return d >= threshold
}

// dashDurationFixed is the (possibly adaptive) dash estimate, split out from
// dotDuration to keep both lookups symmetric and side-effect free.
func (r *Receiver) dashDurationFixed() time.Duration {
	if r.adaptive && len(r.dashRing) > 0 {
		return r.dashEstimate
	}
	return r.params.Derive().Dash
}

func (r *Receiver) observeMark(d time.Duration, isDash bool) {
	if isDash {
		r.stats.Dash.observe(d)
		if r.adaptive {
			r.dashRing = pushRing(r.dashRing, d, ringCapacity)
			r.dashEstimate = median(r.dashRing)
		}
	} else {
		r.stats.Dot.observe(d)
		if r.adaptive {
			r.dotRing = pushRing(r.dotRing, d, ringCapacity)
			r.dotEstimate = median(r.dotRing)
		}
	}
}

// spaceThresholds returns the inter-mark and inter-character boundaries in
// units of the current dot duration, widened by the configured tolerance.
func (r *Receiver) spaceThresholds() (interMark, interChar time.Duration) {
	dot := r.dotDuration()
	tolerance := float64(r.params.TolerancePercent()) / 100.0
	interMark = time.Duration(float64(dot) * (1.5 + tolerance))
	interChar = time.Duration(float64(dot) * (r.interCharRatio + tolerance))
	return
}

// resolveSpace is called once a space's final duration is known (a new mark
// has begun) and updates statistics; boundary classification for polling
// purposes is re-derived independently in pollState so a still-open space
// can be queried before it ends. It also hands the just-completed mark, now
// that its trailing gap is known, to an attached Corrector as one Element.
func (r *Receiver) resolveSpace(d time.Duration) {
	interMark, interChar := r.spaceThresholds()
	isCharEnd := d > interMark
	isWordEnd := d > interChar
	switch {
	case d <= interMark:
		r.stats.InterMark.observe(d)
	case d <= interChar:
		r.stats.InterChar.observe(d)
	default:
		r.stats.InterWord.observe(d)
	}

	if r.corrector != nil {
		r.corrector.RecordElement(Element{
			IsDash:    r.pendingMarkIsDash,
			Duration:  r.pendingMarkDuration,
			GapAfter:  d,
			Timestamp: r.pendingMarkStart,
			IsCharEnd: isCharEnd,
			IsWordEnd: isWordEnd,
		})
	}
}

func pushRing(ring []time.Duration, d time.Duration, capacity int) []time.Duration {
	ring = append(ring, d)
	if len(ring) > capacity {
		ring = ring[len(ring)-capacity:]
	}
	return ring
}

func median(ring []time.Duration) time.Duration {
	if len(ring) == 0 {
		return 0
	}
	cp := make([]time.Duration, len(ring))
	copy(cp, ring)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	mid := len(cp) / 2
	if len(cp)%2 == 1 {
		return cp[mid]
	}
	return (cp[mid-1] + cp[mid]) / 2
}

// nudgeInterCharBoundary blends suggested (an inter-character gap ratio in
// dot units) into interCharRatio by an EMA factor of rate. Used by a
// Corrector once a recognized sequence has repeated enough times to trust
// its own boundary suggestion. Reports whether the ratio actually moved; a
// change smaller than boundaryChangeFloor is treated as noise and ignored.
func (r *Receiver) nudgeInterCharBoundary(suggested, rate float64) bool {
	next := r.interCharRatio*(1-rate) + suggested*rate
	if absFloat(next-r.interCharRatio) <= boundaryChangeFloor {
		return false
	}
	r.interCharRatio = next
	return true
}

// CurrentWPM estimates WPM from the current dot duration estimate.
func (r *Receiver) CurrentWPM() int {
	dot := r.dotDuration()
	if dot <= 0 {
		return r.params.WPM()
	}
	return int(1_200_000.0/float64(dot.Microseconds()) + 0.5)
}

// pollState is shared logic for poll_character/poll_representation: it
// returns the ready representation (possibly empty, meaning "only a word
// space boundary to report"), whether it is an inter-word boundary, and an
// error drawn from {ErrAgain, ErrRange, ErrInvalidTimestamp, ErrNoEntry}
// (ErrNoEntry once after an overlong representation put it in Error).
func (r *Receiver) pollState(ts time.Time) (rep string, isWordSpace bool, err error) {
	if r.haveLast && ts.Before(r.lastTransition) {
		return "", false, ErrInvalidTimestamp
	}

	if r.state == Error {
		// An overlong representation can never resolve to a character; drop
		// it and give the caller one ErrNoEntry before resuming normal space
		// classification.
		r.repBuffer = ""
		r.pendingWordSpace = false
		r.state = AfterMarkSpace
		return "", false, ErrNoEntry
	}
	if r.state == Idle {
		return "", false, ErrRange
	}
	if r.state == InMark {
		return "", false, ErrAgain
	}
	if !r.inSpace {
		return "", false, ErrRange
	}

	elapsed := ts.Sub(r.spaceStart)
	if elapsed < 0 {
		return "", false, ErrInvalidTimestamp
	}

	interMark, interChar := r.spaceThresholds()

	switch {
	case elapsed <= interMark:
		r.state = AfterMarkSpace
	case elapsed <= interChar:
		r.state = EOCGap
	default:
		r.state = EOWGap
	}

	if elapsed <= interMark {
		if r.repBuffer == "" && !r.pendingWordSpace {
			return "", false, ErrRange
		}
		return "", false, ErrAgain
	}

	if elapsed <= interChar {
		if r.repBuffer == "" {
			if r.pendingWordSpace {
				return "", false, ErrAgain
			}
			return "", false, ErrRange
		}
		rep = r.repBuffer
		r.repBuffer = ""
		r.pendingWordSpace = true
		return rep, false, nil
	}

	// elapsed > interChar: inter-word range.
	if r.repBuffer != "" {
		rep = r.repBuffer
		r.repBuffer = ""
		r.pendingWordSpace = false
		return rep, true, nil
	}
	if r.pendingWordSpace {
		r.pendingWordSpace = false
		return "", true, nil
	}
	return "", false, ErrRange
}

// PollRepresentation returns the raw dot/dash representation of the next
// ready character, if any.
func (r *Receiver) PollRepresentation(ts time.Time) (rep string, isWordSpace bool, err error) {
	return r.pollState(ts)
}

// PollCharacter is PollRepresentation followed by representation-to-character
// lookup; a non-empty representation with no table entry is ErrNoEntry. An
// inter-word-only result (empty representation, isWordSpace true) reports
// ' ' as the character, matching the word-space marker convention.
func (r *Receiver) PollCharacter(ts time.Time) (character rune, isWordSpace bool, err error) {
	rep, isWordSpace, err := r.pollState(ts)
	if err != nil {
		return 0, false, err
	}
	if rep == "" {
		return ' ', isWordSpace, nil
	}
	c, ok := morsecode.RepresentationToCharacter(rep)
	if !ok {
		return 0, isWordSpace, ErrNoEntry
	}
	return c, isWordSpace, nil
}

// Reset clears all decoding state back to Idle, keeping accumulated
// statistics intact.
func (r *Receiver) Reset() {
	r.state = Idle
	r.haveLast = false
	r.inSpace = false
	r.repBuffer = ""
	r.pendingWordSpace = false
}
