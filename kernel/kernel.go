package kernel

import (
	"fmt"

	"github.com/notargets/CVFEMKernel/field"
	"github.com/notargets/CVFEMKernel/timeint"
	"gonum.org/v1/gonum/mat"
)

// Field names shared by the kernels
const (
	DensityName          = "density"
	VelocityName         = "velocity"
	PressureGradientName = "dpdx"
	DiffFluxCoeffName    = "diff_flux_coeff"
	ScalarFluxName       = "scalar_flux_bc"
	DualVolumeName       = "dual_nodal_volume"
	ExposedAreaName      = "exposed_area_vector"
	WallShearStressName  = "wall_shear_stress_bip"
	SynthTurbForcingName = "synth_turb_forcing"
)

// Kernel computes one term of an equation on one entity. Kernels read only
// the scratch views and the scalars captured in Setup, and add into lhs and
// rhs; they may run concurrently on different entities.
type Kernel interface {
	// Setup captures the time step coefficients once per step
	Setup(ti timeint.TimeIntegrator)
	Execute(lhs *mat.Dense, rhs []float64, scratch *ScratchViews)
}

// NodeKernel computes one term on one node. lhs and rhs are sized to the
// equation block.
type NodeKernel interface {
	Setup(ti timeint.TimeIntegrator)
	Execute(lhs *mat.Dense, rhs []float64, node int)
}

// timeCoefficients is embedded by kernels of time dependent terms
type timeCoefficients struct {
	dt, gamma1, gamma2, gamma3 float64
}

func (c *timeCoefficients) Setup(ti timeint.TimeIntegrator) {
	c.dt = ti.TimeStep()
	c.gamma1 = ti.Gamma1()
	c.gamma2 = ti.Gamma2()
	c.gamma3 = ti.Gamma3() // may be zero
}

// noSetup is embedded by kernels without step dependent state
type noSetup struct{}

func (noSetup) Setup(timeint.TimeIntegrator) {}

// stateOrdinals resolves N-1, N and N+1 of a field of the given rank
func stateOrdinals(reg *field.Registry, name string, rank field.Rank) (nm1, n, np1 field.Ordinal, err error) {
	if np1, err = reg.ResolveRank(name, rank, field.StateNP1); err != nil {
		return
	}
	n, _ = reg.Resolve(name, field.StateN)
	nm1, _ = reg.Resolve(name, field.StateNM1)
	return
}

func resolve(reg *field.Registry, name string, rank field.Rank) (field.Ordinal, error) {
	return reg.ResolveRank(name, rank, field.StateNP1)
}

func fieldShapeError(reg *field.Registry, ord field.Ordinal, want int) error {
	name, _ := reg.Name(ord)
	return fmt.Errorf("field %s has %d components, want %d: %w", name, reg.Components(ord), want, ErrRequirementMismatch)
}

func kernelError(kernel string, err error) error {
	return fmt.Errorf("%s: %w", kernel, err)
}
