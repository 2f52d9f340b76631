// Package key implements the straight-key value and the iambic keyer state
// machine (IDLE/IN_DOT/IN_DASH/AFTER_DOT_GAP/AFTER_DASH_GAP) that drives a
// generator's tone queue directly from paddle events, using a mutex-guarded
// state struct with one entry point per external event.
package key

import (
	"errors"
	"sync"
	"time"

	"github.com/ColonelBlimp/morsekit/internal/generator"
)

// State is one of the keyer's five states.
type State int

const (
	Idle State = iota
	InDot
	InDash
	AfterDotGap
	AfterDashGap
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InDot:
		return "in_dot"
	case InDash:
		return "in_dash"
	case AfterDotGap:
		return "after_dot_gap"
	case AfterDashGap:
		return "after_dash_gap"
	default:
		return "unknown"
	}
}

// Element is the last mark emitted, used for squeeze alternation.
type Element int

const (
	NoElement Element = iota
	DotElement
	DashElement
)

var (
	// ErrNoGenerator indicates the keyer was not given an owning generator.
	ErrNoGenerator = errors.New("key: no generator attached")
)

// Keyer is an iambic paddle keyer. It owns a generator handle one-way: it
// enqueues tones on it but the generator has no knowledge of the keyer.
type Keyer struct {
	mu sync.Mutex

	gen *generator.Generator

	state   State
	last    Element
	dot     bool
	dash    bool

	elementGen uint64
	idleCond   *sync.Cond
	elementCond *sync.Cond

	timer *time.Timer
}

// New creates a keyer that enqueues tones on gen.
func New(gen *generator.Generator) *Keyer {
	k := &Keyer{gen: gen, state: Idle}
	k.idleCond = sync.NewCond(&k.mu)
	k.elementCond = sync.NewCond(&k.mu)
	return k
}

// GetPaddles returns the last reported dot/dash paddle closure state.
func (k *Keyer) GetPaddles() (dot, dash bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.dot, k.dash
}

// NotifyPaddleEvent reports the current closure of both paddles. It is the
// sole external driver of the state machine.
func (k *Keyer) NotifyPaddleEvent(dotPaddle, dashPaddle bool) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.dot, k.dash = dotPaddle, dashPaddle

	if k.state == Idle {
		if dotPaddle || dashPaddle {
			return k.enterMarkLocked(k.chooseElementLocked())
		}
		return nil
	}
	// Gap/mark states react to paddle changes on their own timer expiry
	// (see onTimerLocked); nothing to do synchronously here beyond recording
	// the new paddle levels, which onTimerLocked reads when it fires.
	return nil
}

// chooseElementLocked implements squeeze semantics: when both paddles are
// closed, prefer the opposite of the last emitted element.
func (k *Keyer) chooseElementLocked() Element {
	switch {
	case k.dot && k.dash:
		if k.last == DotElement {
			return DashElement
		}
		return DotElement
	case k.dot:
		return DotElement
	case k.dash:
		return DashElement
	default:
		return NoElement
	}
}

func (k *Keyer) enterMarkLocked(el Element) error {
	if k.gen == nil {
		return ErrNoGenerator
	}
	if el == NoElement {
		k.state = Idle
		return nil
	}

	var d time.Duration
	var enqueue func() error
	switch el {
	case DotElement:
		k.state = InDot
		enqueue = k.gen.EnqueueDot
	case DashElement:
		k.state = InDash
		enqueue = k.gen.EnqueueDash
	}
	k.last = el
	if err := enqueue(); err != nil {
		return err
	}

	d = k.markDurationLocked(el)
	k.armTimerLocked(d, k.onMarkExpiryLocked)
	return nil
}

// markDurationLocked mirrors the duration the generator just enqueued for
// el, so the keyer's own timer expires at the same instant the consumer
// finishes playing the tone.
func (k *Keyer) markDurationLocked(el Element) time.Duration {
	return k.gen.MarkDuration(el == DashElement)
}

func (k *Keyer) armTimerLocked(d time.Duration, fn func()) {
	if k.timer != nil {
		k.timer.Stop()
	}
	k.timer = time.AfterFunc(d, func() {
		k.mu.Lock()
		fn()
		k.mu.Unlock()
	})
}

func (k *Keyer) onMarkExpiryLocked() {
	var gap time.Duration
	switch k.state {
	case InDot:
		k.state = AfterDotGap
		gap = k.gen.InterMarkDuration()
	case InDash:
		k.state = AfterDashGap
		gap = k.gen.InterMarkDuration()
	default:
		return
	}
	if err := k.gen.EnqueueSilenceFor(gap); err != nil {
		return
	}
	k.elementGen++
	k.elementCond.Broadcast()
	k.armTimerLocked(gap, k.onGapExpiryLocked)
}

func (k *Keyer) onGapExpiryLocked() {
	k.elementGen++
	k.elementCond.Broadcast()

	switch k.state {
	case AfterDotGap:
		if k.dash {
			_ = k.enterMarkLocked(DashElement)
			return
		}
		if k.dot {
			_ = k.enterMarkLocked(DotElement)
			return
		}
	case AfterDashGap:
		if k.dot {
			_ = k.enterMarkLocked(DotElement)
			return
		}
		if k.dash {
			_ = k.enterMarkLocked(DashElement)
			return
		}
	}
	k.state = Idle
	k.idleCond.Broadcast()
}

// WaitForKeyerElement blocks until the current mark or gap ends.
func (k *Keyer) WaitForKeyerElement() {
	k.mu.Lock()
	defer k.mu.Unlock()
	start := k.elementGen
	for k.elementGen == start && k.state != Idle {
		k.elementCond.Wait()
	}
}

// WaitForKeyer blocks until the keyer returns to Idle.
func (k *Keyer) WaitForKeyer() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for k.state != Idle {
		k.idleCond.Wait()
	}
}

// CurrentState reports the keyer's state, mainly for diagnostics/tests.
func (k *Keyer) CurrentState() State {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}
