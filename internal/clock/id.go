package clock

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDSource generates opaque unique identifiers.
type IDSource interface {
	NewID() string
}

type uuidSource struct{}

func (uuidSource) NewID() string { return uuid.New().String() }

// UUIDs returns an IDSource producing random (v4) UUID strings.
func UUIDs() IDSource { return uuidSource{} }

// Sequence is an IDSource that yields prefix-1, prefix-2, ... for tests.
type Sequence struct {
	prefix string
	n      atomic.Uint64
}

// NewSequence creates a Sequence with the given prefix.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

// NewID returns the next id in the sequence.
func (s *Sequence) NewID() string {
	return fmt.Sprintf("%s-%d", s.prefix, s.n.Add(1))
}
