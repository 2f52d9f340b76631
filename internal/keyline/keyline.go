// Package keyline reads a paddle (or a single straight key) wired to the
// modem control lines of a serial port and republishes debounced paddle
// state as timed events, suitable for driving internal/key.Keyer directly.
package keyline

import (
	"context"
	"errors"
	"fmt"
	"time"

	serial "github.com/daedaluz/goserial"
)

// ErrAlreadyOpen indicates Open was called on a Source that already has a port.
var ErrAlreadyOpen = errors.New("keyline: already open")

// ErrNotOpen indicates an operation was attempted before Open succeeded.
var ErrNotOpen = errors.New("keyline: not open")

// dotLine and dashLine are the modem control lines wired to the paddle's two
// contacts. A straight key wired to only the dot line still works: the
// dash contact simply never closes.
const (
	dotLine  = serial.TIOCM_CTS
	dashLine = serial.TIOCM_DSR
)

// PaddleEvent is a debounced paddle-state snapshot.
type PaddleEvent struct {
	Timestamp time.Time
	Dot       bool
	Dash      bool
}

// Callback receives paddle events. Must be non-blocking and fast.
type Callback func(PaddleEvent)

// Source polls a serial port's CTS/DSR lines and reports debounced paddle
// transitions.
type Source struct {
	device       string
	pollInterval time.Duration
	debounce     time.Duration

	port *serial.Port
	cb   Callback
}

// New creates a Source for device, polled at pollInterval and debounced by
// requiring debounce of stable state before reporting a transition. A zero
// pollInterval or debounce picks a sensible default.
func New(device string, pollInterval, debounce time.Duration) *Source {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Millisecond
	}
	if debounce <= 0 {
		debounce = 4 * time.Millisecond
	}
	return &Source{
		device:       device,
		pollInterval: pollInterval,
		debounce:     debounce,
	}
}

// SetCallback registers the event callback. Set before Run.
func (s *Source) SetCallback(cb Callback) {
	s.cb = cb
}

// Open opens the underlying serial port without starting polling.
func (s *Source) Open() error {
	if s.port != nil {
		return ErrAlreadyOpen
	}
	opts := serial.NewOptions().SetReadTimeout(0)
	port, err := serial.Open(s.device, opts)
	if err != nil {
		return fmt.Errorf("keyline: open %s: %w", s.device, err)
	}
	s.port = port
	return nil
}

// Close closes the underlying serial port.
func (s *Source) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// debouncedLine tracks one modem line's candidate/stable state across polls.
type debouncedLine struct {
	stable, candidate bool
	candidateSince    time.Time
	haveStable        bool
}

// update feeds a fresh reading and reports whether the stable value changed.
func (d *debouncedLine) update(down bool, now time.Time, debounce time.Duration) bool {
	if !d.haveStable {
		d.stable, d.candidate, d.candidateSince, d.haveStable = down, down, now, true
		return false
	}
	if down != d.candidate {
		d.candidate, d.candidateSince = down, now
		return false
	}
	if d.candidate != d.stable && now.Sub(d.candidateSince) >= debounce {
		d.stable = d.candidate
		return true
	}
	return false
}

// Run polls the key lines until ctx is done or the port errors out. Intended
// to be run in its own goroutine.
func (s *Source) Run(ctx context.Context) error {
	if s.port == nil {
		return ErrNotOpen
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var dot, dash debouncedLine

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		lines, err := s.port.GetModemLines()
		if err != nil {
			return fmt.Errorf("keyline: read modem lines: %w", err)
		}
		now := time.Now()

		changedDot := dot.update(lines&dotLine != 0, now, s.debounce)
		changedDash := dash.update(lines&dashLine != 0, now, s.debounce)

		if (changedDot || changedDash) && s.cb != nil {
			s.cb(PaddleEvent{Timestamp: now, Dot: dot.stable, Dash: dash.stable})
		}
	}
}
