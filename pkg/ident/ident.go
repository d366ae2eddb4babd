// Package ident provides identifier generators for SOP documents.
package ident

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces unique identifiers.
type Generator interface {
	NewID() string
}

// UUID generates random v4 UUIDs.
type UUID struct{}

// NewID returns a new random UUID string.
func (UUID) NewID() string {
	return uuid.New().String()
}

// Sequence generates prefix1, prefix2, ... and is safe for concurrent use.
type Sequence struct {
	Prefix string
	n      atomic.Uint64
}

// NewSequence returns a Sequence starting at 1.
func NewSequence(prefix string) *Sequence {
	return &Sequence{Prefix: prefix}
}

// NewID returns the next identifier in the sequence.
func (s *Sequence) NewID() string {
	return fmt.Sprintf("%s%d", s.Prefix, s.n.Add(1))
}
