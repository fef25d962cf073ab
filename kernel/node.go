package kernel

import (
	"github.com/notargets/CVFEMKernel/field"
	"github.com/notargets/CVFEMKernel/timeint"
	"gonum.org/v1/gonum/mat"
)

// Node kernels read the registry directly. The backing arrays are captured
// in Setup because state rotation swaps them between steps.

// MomentumSynthTurbNodeKernel adds the synthetic turbulence body force
// rho*f integrated over the dual volume
type MomentumSynthTurbNodeKernel struct {
	reg                          *field.Registry
	nDim                         int
	densityID, dualVolID, turbID field.Ordinal
	density, dualVol, forcing    []float64
}

func NewMomentumSynthTurbNodeKernel(reg *field.Registry, nDim int) (*MomentumSynthTurbNodeKernel, error) {
	k := &MomentumSynthTurbNodeKernel{reg: reg, nDim: nDim}
	var err error
	if k.densityID, err = resolve(reg, DensityName, field.NodeRank); err != nil {
		return nil, kernelError("synthetic turbulence", err)
	}
	if k.dualVolID, err = resolve(reg, DualVolumeName, field.NodeRank); err != nil {
		return nil, kernelError("synthetic turbulence", err)
	}
	if k.turbID, err = resolve(reg, SynthTurbForcingName, field.NodeRank); err != nil {
		return nil, kernelError("synthetic turbulence", err)
	}
	if nc := reg.Components(k.turbID); nc != nDim {
		return nil, kernelError("synthetic turbulence",
			fieldShapeError(reg, k.turbID, nDim))
	}
	return k, nil
}

func (k *MomentumSynthTurbNodeKernel) Setup(timeint.TimeIntegrator) {
	k.density = k.reg.Data(k.densityID)
	k.dualVol = k.reg.Data(k.dualVolID)
	k.forcing = k.reg.Data(k.turbID)
}

func (k *MomentumSynthTurbNodeKernel) Execute(_ *mat.Dense, rhs []float64, node int) {
	fac := k.density[node] * k.dualVol[node]
	for i := 0; i < k.nDim; i++ {
		rhs[i] += fac * k.forcing[node*k.nDim+i]
	}
}

// ScalarMassNodeKernel is the lumped BDF mass term of a scalar evaluated
// with the dual nodal volume
type ScalarMassNodeKernel struct {
	timeCoefficients
	reg                  *field.Registry
	qIDs, rhoIDs         [3]field.Ordinal // N-1, N, N+1
	dualVolID            field.Ordinal
	qNm1, qN, qNp1       []float64
	rhoNm1, rhoN, rhoNp1 []float64
	dualVol              []float64
	diagRelaxFactor      float64
}

func NewScalarMassNodeKernel(reg *field.Registry, scalarName string, relax float64) (*ScalarMassNodeKernel, error) {
	k := &ScalarMassNodeKernel{reg: reg, diagRelaxFactor: relax}
	var err error
	if k.qIDs[0], k.qIDs[1], k.qIDs[2], err = stateOrdinals(reg, scalarName, field.NodeRank); err != nil {
		return nil, kernelError("scalar nodal mass", err)
	}
	if k.rhoIDs[0], k.rhoIDs[1], k.rhoIDs[2], err = stateOrdinals(reg, DensityName, field.NodeRank); err != nil {
		return nil, kernelError("scalar nodal mass", err)
	}
	if k.dualVolID, err = resolve(reg, DualVolumeName, field.NodeRank); err != nil {
		return nil, kernelError("scalar nodal mass", err)
	}
	return k, nil
}

func (k *ScalarMassNodeKernel) Setup(ti timeint.TimeIntegrator) {
	k.timeCoefficients.Setup(ti)
	k.qNm1, k.qN, k.qNp1 = k.reg.Data(k.qIDs[0]), k.reg.Data(k.qIDs[1]), k.reg.Data(k.qIDs[2])
	k.rhoNm1, k.rhoN, k.rhoNp1 = k.reg.Data(k.rhoIDs[0]), k.reg.Data(k.rhoIDs[1]), k.reg.Data(k.rhoIDs[2])
	k.dualVol = k.reg.Data(k.dualVolID)
}

func (k *ScalarMassNodeKernel) Execute(lhs *mat.Dense, rhs []float64, node int) {
	dv := k.dualVol[node]
	rhs[0] += -(k.gamma1*k.rhoNp1[node]*k.qNp1[node] + k.gamma2*k.rhoN[node]*k.qN[node] +
		k.gamma3*k.rhoNm1[node]*k.qNm1[node]) * dv / k.dt
	l := lhs.RawMatrix()
	l.Data[0] += k.gamma1 * k.rhoNp1[node] * dv / k.dt * k.diagRelaxFactor
}
