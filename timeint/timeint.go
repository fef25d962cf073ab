package timeint

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidCoefficients = errors.New("invalid time integration coefficients")

// TimeIntegrator supplies the BDF coefficients of the current step. The time
// derivative of q is approximated as (g1*q[n+1] + g2*q[n] + g3*q[n-1]) / dt.
type TimeIntegrator interface {
	TimeStep() float64
	Gamma1() float64
	Gamma2() float64
	Gamma3() float64
}

// Coefficients is a fixed set of step coefficients
type Coefficients struct {
	Dt, G1, G2, G3 float64
}

func (c Coefficients) TimeStep() float64 { return c.Dt }
func (c Coefficients) Gamma1() float64   { return c.G1 }
func (c Coefficients) Gamma2() float64   { return c.G2 }
func (c Coefficients) Gamma3() float64   { return c.G3 }

// BackwardEuler returns first order coefficients for step dt
func BackwardEuler(dt float64) Coefficients {
	return Coefficients{Dt: dt, G1: 1, G2: -1, G3: 0}
}

// BDF is a variable step backward differentiation integrator. The first step
// is always backward Euler; later steps use second order when Order is 2.
type BDF struct {
	Order int
	dt    float64
	dtN   float64
	step  int
	c     Coefficients
}

// NewBDF creates an integrator of order 1 or 2
func NewBDF(order int, dt float64) (*BDF, error) {
	if order != 1 && order != 2 {
		return nil, fmt.Errorf("BDF order %d: %w", order, ErrInvalidCoefficients)
	}
	b := &BDF{Order: order, dt: dt, dtN: dt}
	b.compute()
	return b, Validate(b)
}

func (b *BDF) compute() {
	if b.Order == 1 || b.step == 0 {
		b.c = BackwardEuler(b.dt)
		return
	}
	dt, dtN := b.dt, b.dtN
	b.c = Coefficients{
		Dt: dt,
		G1: (2*dt + dtN) / (dt + dtN),
		G2: -(dt + dtN) / dtN,
		G3: dt * dt / (dtN * (dt + dtN)),
	}
}

// Advance moves to the next step with step size dt
func (b *BDF) Advance(dt float64) error {
	b.dtN = b.dt
	b.dt = dt
	b.step++
	b.compute()
	return Validate(b)
}

// Step returns the number of completed Advance calls
func (b *BDF) Step() int { return b.step }

func (b *BDF) TimeStep() float64 { return b.c.Dt }
func (b *BDF) Gamma1() float64   { return b.c.G1 }
func (b *BDF) Gamma2() float64   { return b.c.G2 }
func (b *BDF) Gamma3() float64   { return b.c.G3 }

// Validate checks that the coefficients can be used for assembly: all finite,
// a positive step and a non-zero leading coefficient.
func Validate(ti TimeIntegrator) error {
	if ti == nil {
		return fmt.Errorf("nil integrator: %w", ErrInvalidCoefficients)
	}
	dt, g1, g2, g3 := ti.TimeStep(), ti.Gamma1(), ti.Gamma2(), ti.Gamma3()
	for _, v := range []float64{dt, g1, g2, g3} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("dt=%g gamma=(%g,%g,%g) not finite: %w", dt, g1, g2, g3, ErrInvalidCoefficients)
		}
	}
	if dt <= 0 {
		return fmt.Errorf("dt=%g: %w", dt, ErrInvalidCoefficients)
	}
	if g1 == 0 {
		return fmt.Errorf("gamma1=0: %w", ErrInvalidCoefficients)
	}
	return nil
}
