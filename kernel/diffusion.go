package kernel

import (
	"github.com/notargets/CVFEMKernel/config"
	"github.com/notargets/CVFEMKernel/element"
	"github.com/notargets/CVFEMKernel/field"
	"gonum.org/v1/gonum/mat"
)

// ScalarDiffElemKernel assembles -div(Gamma grad q) as the sum of the
// diffusive fluxes through the sub-control surfaces of an element
type ScalarDiffElemKernel[T element.AlgTraits] struct {
	noSetup
	q, diffFluxCoeff field.Ordinal
	shiftedGradOp    bool
	me               element.MasterElement
}

func NewScalarDiffElemKernel[T element.AlgTraits](reg *field.Registry, opts *config.SolutionOptions,
	req *ElemDataRequests, scalarName, diffFluxCoeffName string, shiftedGradOp bool) (*ScalarDiffElemKernel[T], error) {
	var traits T
	k := &ScalarDiffElemKernel[T]{
		shiftedGradOp: shiftedGradOp,
		me:            element.VolumeMasterElementOf[T](),
	}
	var err error
	if k.q, err = resolve(reg, scalarName, field.NodeRank); err != nil {
		return nil, kernelError("scalar diffusion", err)
	}
	if k.diffFluxCoeff, err = resolve(reg, diffFluxCoeffName, field.NodeRank); err != nil {
		return nil, kernelError("scalar diffusion", err)
	}
	coords, err := resolve(reg, opts.CoordinatesName, field.NodeRank)
	if err != nil {
		return nil, kernelError("scalar diffusion", err)
	}

	req.AddCoordinatesField(coords, traits.NDim())
	req.AddCVFEMVolumeME(k.me)
	req.AddGatheredNodalField(k.q, 1)
	req.AddGatheredNodalField(k.diffFluxCoeff, 1)
	req.AddMasterElementCall(SCSAreaVector)
	if shiftedGradOp {
		req.AddMasterElementCall(SCSShiftedGradOp)
	} else {
		req.AddMasterElementCall(SCSGradOp)
		req.AddMasterElementCall(SCSShapeFcn)
	}
	return k, nil
}

func (k *ScalarDiffElemKernel[T]) Execute(lhs *mat.Dense, rhs []float64, s *ScratchViews) {
	var traits T
	npe, nDim := traits.NodesPerElement(), traits.NDim()
	q, gamma := s.View(k.q), s.View(k.diffFluxCoeff)
	dndx := s.Dndx
	if k.shiftedGradOp {
		dndx = s.DndxShifted
	}
	shape := s.ScsShapeFcn().RawMatrix()
	l := lhs.RawMatrix()
	lr := k.me.Adjacent()

	for ip := 0; ip < traits.NumScsIp(); ip++ {
		il, ir := lr[ip][0], lr[ip][1]
		av := s.ScsAreav[ip*nDim : (ip+1)*nDim]

		var diffIp float64
		if k.shiftedGradOp {
			// shifted ips sit on the edge midpoint
			diffIp = 0.5 * (gamma[il] + gamma[ir])
		} else {
			for ic, ric := range shape.Data[ip*shape.Stride : ip*shape.Stride+npe] {
				diffIp += ric * gamma[ic]
			}
		}

		var qDiff float64
		for ic := 0; ic < npe; ic++ {
			g := dndx[(ip*npe+ic)*nDim : (ip*npe+ic+1)*nDim]
			var lhsfac float64
			for j := 0; j < nDim; j++ {
				lhsfac += -diffIp * g[j] * av[j]
			}
			qDiff += lhsfac * q[ic]
			l.Data[il*l.Stride+ic] += lhsfac
			l.Data[ir*l.Stride+ic] -= lhsfac
		}
		rhs[il] -= qDiff
		rhs[ir] += qDiff
	}
}
