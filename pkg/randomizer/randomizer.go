// Package randomizer decides probabilistic A/B path selection.
package randomizer

import (
	"fmt"
	"math"
	"math/rand/v2"
)

const (
	PathA = "A"
	PathB = "B"
)

// Source yields uniform values in [0, 1).
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 {
	return rand.Float64() // #nosec G404 -- branch selection is not security sensitive
}

// NewSource returns a goroutine-safe source backed by the runtime generator.
func NewSource() Source {
	return globalSource{}
}

// Fixed is a Source that always returns the same draw.
type Fixed float64

func (f Fixed) Float64() float64 {
	return float64(f)
}

// Sequence returns the given draws in order, repeating the last one.
type Sequence struct {
	Draws []float64
	next  int
}

func (s *Sequence) Float64() float64 {
	if len(s.Draws) == 0 {
		return 0
	}

	if s.next >= len(s.Draws) {
		return s.Draws[len(s.Draws)-1]
	}

	draw := s.Draws[s.next]
	s.next++

	return draw
}

// ValidateProbability rejects probabilities outside [0, 1].
func ValidateProbability(p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return fmt.Errorf("probability %v is outside [0, 1]", p)
	}

	return nil
}

// Choose draws r from src and selects path A iff r < p.
func Choose(p float64, src Source) (string, float64) {
	r := src.Float64()
	if r < p {
		return PathA, r
	}

	return PathB, r
}
