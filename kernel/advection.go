package kernel

import (
	"github.com/notargets/CVFEMKernel/config"
	"github.com/notargets/CVFEMKernel/element"
	"github.com/notargets/CVFEMKernel/field"
	"gonum.org/v1/gonum/mat"
)

// ScalarUpwAdvElemKernel assembles first order upwind advection of q with
// the mass flow rho u.A evaluated at each sub-control surface
type ScalarUpwAdvElemKernel[T element.AlgTraits] struct {
	noSetup
	q, density, velocity field.Ordinal
	me                   element.MasterElement
}

func NewScalarUpwAdvElemKernel[T element.AlgTraits](reg *field.Registry, opts *config.SolutionOptions,
	req *ElemDataRequests, scalarName string) (*ScalarUpwAdvElemKernel[T], error) {
	var traits T
	k := &ScalarUpwAdvElemKernel[T]{me: element.VolumeMasterElementOf[T]()}
	var err error
	if k.q, err = resolve(reg, scalarName, field.NodeRank); err != nil {
		return nil, kernelError("scalar upwind advection", err)
	}
	if k.density, err = resolve(reg, DensityName, field.NodeRank); err != nil {
		return nil, kernelError("scalar upwind advection", err)
	}
	if k.velocity, err = resolve(reg, VelocityName, field.NodeRank); err != nil {
		return nil, kernelError("scalar upwind advection", err)
	}
	coords, err := resolve(reg, opts.CoordinatesName, field.NodeRank)
	if err != nil {
		return nil, kernelError("scalar upwind advection", err)
	}

	req.AddCoordinatesField(coords, traits.NDim())
	req.AddCVFEMVolumeME(k.me)
	req.AddGatheredNodalField(k.q, 1)
	req.AddGatheredNodalField(k.density, 1)
	req.AddGatheredNodalField(k.velocity, traits.NDim())
	req.AddMasterElementCall(SCSAreaVector)
	req.AddMasterElementCall(SCSShapeFcn)
	return k, nil
}

func (k *ScalarUpwAdvElemKernel[T]) Execute(lhs *mat.Dense, rhs []float64, s *ScratchViews) {
	var traits T
	npe, nDim := traits.NodesPerElement(), traits.NDim()
	q, rho, u := s.View(k.q), s.View(k.density), s.View(k.velocity)
	shape := s.ScsShapeFcn().RawMatrix()
	l := lhs.RawMatrix()
	lr := k.me.Adjacent()

	for ip := 0; ip < traits.NumScsIp(); ip++ {
		il, ir := lr[ip][0], lr[ip][1]
		av := s.ScsAreav[ip*nDim : (ip+1)*nDim]

		var rhoIp, udotA float64
		for ic, ric := range shape.Data[ip*shape.Stride : ip*shape.Stride+npe] {
			rhoIp += ric * rho[ic]
			for j := 0; j < nDim; j++ {
				udotA += ric * u[ic*nDim+j] * av[j]
			}
		}
		tmdot := rhoIp * udotA

		up := ir
		if tmdot > 0 {
			up = il
		}
		flux := tmdot * q[up]
		rhs[il] -= flux
		rhs[ir] += flux
		l.Data[il*l.Stride+up] += tmdot
		l.Data[ir*l.Stride+up] -= tmdot
	}
}
