// Package generator implements the PCM tone generator (GEN): a consumer
// goroutine that dequeues tones from an internal/tonequeue.Queue and
// synthesizes samples onto a pluggable internal/sink.Sink, plus the
// high-level enqueue operations that turn characters and representations
// into tone sequences. Lifecycle and consumer-loop shape use an atomic
// running flag, a mutex-guarded device handle, and context-cancellation
// shutdown, the same pattern internal/audio uses on the capture side.
package generator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ColonelBlimp/morsekit/internal/morsecode"
	"github.com/ColonelBlimp/morsekit/internal/sink"
	"github.com/ColonelBlimp/morsekit/internal/timing"
	"github.com/ColonelBlimp/morsekit/internal/tonequeue"
)

// State is the generator's lifecycle state.
type State int32

const (
	Created State = iota
	Started
	Stopped
	Deleted
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Started:
		return "started"
	case Stopped:
		return "stopped"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

var (
	// ErrAlreadyStarted is returned by Start when the generator is already running.
	ErrAlreadyStarted = errors.New("generator: already started")
	// ErrNotStarted is returned by Stop when the generator is not running.
	ErrNotStarted = errors.New("generator: not started")
	// ErrDeleted is returned by any operation on a deleted generator.
	ErrDeleted = errors.New("generator: deleted")
	// ErrInvalidArgument is returned for an unrecognized character or representation.
	ErrInvalidArgument = errors.New("generator: invalid argument")
)

// KeyStateCallback is invoked from the consumer goroutine between tones,
// reporting the new key state: true when a mark begins, false when silence
// begins. Must be non-blocking and fast.
type KeyStateCallback func(ctx any, closed bool)

// Generator owns a tone queue, a sound sink and the parameter set shared
// with the timing package; its consumer goroutine turns queued tones into
// PCM samples written to the sink.
type Generator struct {
	mu     sync.Mutex
	params *timing.Parameters
	slope  tonequeue.SlopeShape
	slopeLen uint32 // microseconds

	queue *tonequeue.Queue
	snk   sink.Sink
	cfg   sink.Config

	state atomic.Int32

	keyCbPtr atomic.Pointer[keyCallbackBinding]

	// charStack records, per enqueued character, the number of raw tones
	// pushed and the queue's dequeue generation observed right after, so
	// RemoveLastCharacter can verify nothing has been consumed since.
	charStack []charBatch

	group  *errgroup.Group
	cancel context.CancelFunc
}

type keyCallbackBinding struct {
	fn  KeyStateCallback
	ctx any
}

type charBatch struct {
	toneCount  int
	generation uint64
}

// New creates a generator against the named backend ("auto", "malgo",
// "portaudio", "null") and device, opening the sink immediately.
func New(backend, device string) (*Generator, error) {
	snk, cfg, err := sink.Open(backend, device, sink.Config{})
	if err != nil {
		return nil, fmt.Errorf("generator: open sink: %w", err)
	}

	g := &Generator{
		params: timing.NewParameters(),
		slope:  tonequeue.SlopeLinear,
		slopeLen: 2000,
		queue:  tonequeue.New(tonequeue.DefaultCapacity),
		snk:    snk,
		cfg:    cfg,
	}
	g.state.Store(int32(Created))
	return g, nil
}

func (g *Generator) state_() State { return State(g.state.Load()) }

// Start launches the consumer goroutine.
func (g *Generator) Start() error {
	if g.state_() == Deleted {
		return ErrDeleted
	}
	if !g.state.CompareAndSwap(int32(Created), int32(Started)) &&
		!g.state.CompareAndSwap(int32(Stopped), int32(Started)) {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	eg, egCtx := errgroup.WithContext(ctx)
	g.group = eg
	eg.Go(func() error {
		g.consume(egCtx)
		return nil
	})
	return nil
}

// Stop signals the consumer goroutine to exit and waits for it.
func (g *Generator) Stop() error {
	if g.state_() == Deleted {
		return ErrDeleted
	}
	if !g.state.CompareAndSwap(int32(Started), int32(Stopped)) {
		return ErrNotStarted
	}
	g.queue.Close()
	if g.cancel != nil {
		g.cancel()
	}
	if g.group != nil {
		_ = g.group.Wait()
	}
	return nil
}

// Delete stops the generator if running and releases the sink.
func (g *Generator) Delete() error {
	if g.state_() == Started {
		_ = g.Stop()
	}
	if !g.state.CompareAndSwap(int32(Stopped), int32(Deleted)) &&
		!g.state.CompareAndSwap(int32(Created), int32(Deleted)) {
		return ErrDeleted
	}
	return g.snk.Close()
}

func (g *Generator) State() State { return g.state_() }

// RegisterKeyStateCallback arms (or, with a nil fn, disarms) the key-state
// callback fired between tones by the consumer goroutine.
func (g *Generator) RegisterKeyStateCallback(fn KeyStateCallback, ctx any) {
	if fn == nil {
		g.keyCbPtr.Store(nil)
		return
	}
	g.keyCbPtr.Store(&keyCallbackBinding{fn: fn, ctx: ctx})
}

// --- parameter setters/getters, forwarded to timing.Parameters under the
// generator's own lock (timing.Parameters itself is not concurrency-safe). ---

func (g *Generator) SetWPM(wpm int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.params.SetWPM(wpm)
}

func (g *Generator) WPM() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.params.WPM()
}

func (g *Generator) SetFrequencyHz(hz int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.params.SetFrequencyHz(hz)
}

func (g *Generator) FrequencyHz() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.params.FrequencyHz()
}

func (g *Generator) SetVolumePercent(v int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.params.SetVolumePercent(v)
}

func (g *Generator) VolumePercent() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.params.VolumePercent()
}

func (g *Generator) SetGapUnits(units int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.params.SetGapUnits(units)
}

func (g *Generator) GapUnits() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.params.GapUnits()
}

func (g *Generator) SetWeightingPercent(w int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.params.SetWeightingPercent(w)
}

func (g *Generator) WeightingPercent() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.params.WeightingPercent()
}

// SetSlopeShape selects the rising/falling edge shape applied to every
// subsequently synthesized mark tone.
func (g *Generator) SetSlopeShape(shape tonequeue.SlopeShape) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.slope = shape
}

func (g *Generator) SlopeShape() tonequeue.SlopeShape {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.slope
}

// SetSlopeLengthMicroseconds sets the rise/fall duration applied at each
// tone's edges.
func (g *Generator) SetSlopeLengthMicroseconds(us uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.slopeLen = us
}

func (g *Generator) intervals() timing.Intervals {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.params.Derive()
}

// WaitForToneQueue blocks until the tone queue drains to empty.
func (g *Generator) WaitForToneQueue() error {
	return g.queue.WaitForEmpty()
}

// WaitForTone blocks until the next tone is dequeued by the consumer.
func (g *Generator) WaitForTone() error {
	return g.queue.WaitForTone()
}

// QueueLength exposes the pending tone count, mainly for diagnostics/tests.
func (g *Generator) QueueLength() int { return g.queue.Length() }
