package timeint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBDF_Coefficients(t *testing.T) {
	b, err := NewBDF(2, 0.1)
	require.NoError(t, err)

	// first step falls back to backward Euler
	assert.Equal(t, 1.0, b.Gamma1())
	assert.Equal(t, -1.0, b.Gamma2())
	assert.Equal(t, 0.0, b.Gamma3())

	require.NoError(t, b.Advance(0.1))
	assert.InDelta(t, 1.5, b.Gamma1(), 1e-14)
	assert.InDelta(t, -2.0, b.Gamma2(), 1e-14)
	assert.InDelta(t, 0.5, b.Gamma3(), 1e-14)
	assert.Equal(t, 1, b.Step())

	// consistency: the coefficients annihilate a constant
	require.NoError(t, b.Advance(0.05))
	assert.InDelta(t, 0, b.Gamma1()+b.Gamma2()+b.Gamma3(), 1e-14)
	assert.Equal(t, 0.05, b.TimeStep())

	be, err := NewBDF(1, 0.2)
	require.NoError(t, err)
	require.NoError(t, be.Advance(0.2))
	assert.Equal(t, 0.0, be.Gamma3())

	_, err = NewBDF(3, 0.1)
	assert.ErrorIs(t, err, ErrInvalidCoefficients)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		c    TimeIntegrator
		ok   bool
	}{
		{"BackwardEuler", BackwardEuler(0.5), true},
		{"ZeroGamma3", Coefficients{Dt: 1, G1: 1, G2: -1}, true},
		{"ZeroDt", Coefficients{Dt: 0, G1: 1, G2: -1}, false},
		{"NegativeDt", Coefficients{Dt: -1, G1: 1, G2: -1}, false},
		{"ZeroGamma1", Coefficients{Dt: 1, G2: -1}, false},
		{"NaN", Coefficients{Dt: 1, G1: math.NaN()}, false},
		{"Inf", Coefficients{Dt: math.Inf(1), G1: 1}, false},
		{"Nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.c)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidCoefficients)
			}
		})
	}
}
