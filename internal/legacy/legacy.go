// Package legacy exposes a process-global generator/keyer/receiver triple
// behind free functions, for callers migrating from a single-instance C-style
// API that cannot carry an explicit handle through their call sites. New code
// should prefer internal/generator, internal/key and internal/receiver
// directly. Modeled on internal/config's single package-level Init/Get
// singleton.
package legacy

import (
	"errors"
	"sync"

	"github.com/ColonelBlimp/morsekit/internal/generator"
	"github.com/ColonelBlimp/morsekit/internal/key"
	"github.com/ColonelBlimp/morsekit/internal/receiver"
	"github.com/ColonelBlimp/morsekit/internal/timing"
)

// ErrNotInitialized is returned by every legacy call made before Init.
var ErrNotInitialized = errors.New("legacy: not initialized")

// ErrAlreadyInitialized is returned by Init when called a second time
// without an intervening Shutdown.
var ErrAlreadyInitialized = errors.New("legacy: already initialized")

var (
	mu  sync.Mutex
	gen *generator.Generator
	ky  *key.Keyer
	rcv *receiver.Receiver
)

// Init constructs the single process-wide generator, keyer and receiver and
// starts the generator's consumer goroutine. Must be called exactly once
// before any other function in this package.
func Init(backend, device string) error {
	mu.Lock()
	defer mu.Unlock()

	if gen != nil {
		return ErrAlreadyInitialized
	}

	g, err := generator.New(backend, device)
	if err != nil {
		return err
	}
	if err := g.Start(); err != nil {
		_ = g.Delete()
		return err
	}

	gen = g
	ky = key.New(g)
	rcv = receiver.New(timing.NewParameters(), true)
	return nil
}

// Shutdown tears down the process-wide instances, allowing a later Init.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()

	if gen == nil {
		return ErrNotInitialized
	}
	err := gen.Delete()
	gen, ky, rcv = nil, nil, nil
	return err
}

func withGenerator(fn func(*generator.Generator) error) error {
	mu.Lock()
	g := gen
	mu.Unlock()
	if g == nil {
		return ErrNotInitialized
	}
	return fn(g)
}

// GeneratorNew is an alias for Init, matching the generator_new naming of
// the single-instance API this package emulates.
func GeneratorNew(backend, device string) error { return Init(backend, device) }

// GeneratorDelete is an alias for Shutdown.
func GeneratorDelete() error { return Shutdown() }

// SendCharacter enqueues a single character on the process-wide generator.
func SendCharacter(c rune) error {
	return withGenerator(func(g *generator.Generator) error {
		return g.EnqueueCharacter(c)
	})
}

// SendString enqueues a full string on the process-wide generator.
func SendString(s string) error {
	return withGenerator(func(g *generator.Generator) error {
		return g.EnqueueString(s)
	})
}

// SetWPM sets the process-wide generator's speed. The receiver tracks speed
// on its own via its adaptive estimator and is not affected.
func SetWPM(wpm int) error {
	return withGenerator(func(g *generator.Generator) error {
		return g.SetWPM(wpm)
	})
}

// NotifyPaddleEvent forwards to the process-wide keyer.
func NotifyPaddleEvent(dot, dash bool) error {
	mu.Lock()
	k := ky
	mu.Unlock()
	if k == nil {
		return ErrNotInitialized
	}
	return k.NotifyPaddleEvent(dot, dash)
}

// Receiver returns the process-wide receiver for callers that need direct
// access to poll operations not worth re-exposing as free functions.
func Receiver() (*receiver.Receiver, error) {
	mu.Lock()
	r := rcv
	mu.Unlock()
	if r == nil {
		return nil, ErrNotInitialized
	}
	return r, nil
}
