// internal/key/straightkey.go
package key

import (
	"sync"

	"github.com/ColonelBlimp/morsekit/internal/generator"
)

// StraightKey models a hand key that reports raw key-down/key-up
// transitions: unlike Keyer, it applies no timing classification of its
// own. The tone plays for exactly as long as the key is held, via the
// generator's forever-tone mechanism.
type StraightKey struct {
	mu     sync.Mutex
	gen    *generator.Generator
	closed bool
}

// NewStraightKey creates a straight key that drives gen.
func NewStraightKey(gen *generator.Generator) *StraightKey {
	return &StraightKey{gen: gen}
}

// SetKeyValue reports the key's closure: true for key-down (tone on), false
// for key-up (tone off). It is the sole external driver of the straight
// key, mirroring Keyer.NotifyPaddleEvent's role for the iambic keyer.
func (s *StraightKey) SetKeyValue(closed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == nil {
		return ErrNoGenerator
	}
	if err := s.gen.SetKeyValue(closed); err != nil {
		return err
	}
	s.closed = closed
	return nil
}

// KeyValue reports the last reported closure.
func (s *StraightKey) KeyValue() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
