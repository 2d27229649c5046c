package randomizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChoose(t *testing.T) {
	tests := []struct {
		name string
		p    float64
		r    float64
		want string
	}{
		{name: "draw below probability", p: 0.7, r: 0.69, want: PathA},
		{name: "draw equal to probability", p: 0.7, r: 0.7, want: PathB},
		{name: "draw above probability", p: 0.7, r: 0.9, want: PathB},
		{name: "zero probability never picks A", p: 0, r: 0, want: PathB},
		{name: "full probability always picks A", p: 1, r: 0.999999, want: PathA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, r := Choose(tt.p, Fixed(tt.r))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.r, r)
		})
	}
}

func TestValidateProbability(t *testing.T) {
	assert.NoError(t, ValidateProbability(0))
	assert.NoError(t, ValidateProbability(1))
	assert.NoError(t, ValidateProbability(0.25))
	assert.Error(t, ValidateProbability(-0.1))
	assert.Error(t, ValidateProbability(1.5))
}

func TestSequence(t *testing.T) {
	seq := &Sequence{Draws: []float64{0.1, 0.9}}

	assert.InDelta(t, 0.1, seq.Float64(), 0)
	assert.InDelta(t, 0.9, seq.Float64(), 0)
	assert.InDelta(t, 0.9, seq.Float64(), 0)
}

func TestNewSourceRange(t *testing.T) {
	src := NewSource()

	for range 1000 {
		r := src.Float64()
		assert.GreaterOrEqual(t, r, 0.0)
		assert.Less(t, r, 1.0)
	}
}
