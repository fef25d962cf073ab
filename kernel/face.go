package kernel

import (
	"math"

	"github.com/notargets/CVFEMKernel/config"
	"github.com/notargets/CVFEMKernel/element"
	"github.com/notargets/CVFEMKernel/field"
	"gonum.org/v1/gonum/mat"
)

// ScalarFluxBCElemKernel adds a prescribed normal flux, given as a nodal
// field on the boundary, to the right hand side of the boundary nodes
type ScalarFluxBCElemKernel[F element.FaceTraits] struct {
	noSetup
	flux       field.Ordinal
	useShifted bool
	fe         element.FaceMasterElement
}

func NewScalarFluxBCElemKernel[F element.FaceTraits](reg *field.Registry, opts *config.SolutionOptions,
	req *ElemDataRequests, fluxName string, useShifted bool) (*ScalarFluxBCElemKernel[F], error) {
	var traits F
	k := &ScalarFluxBCElemKernel[F]{
		useShifted: useShifted,
		fe:         element.FaceMasterElementOf[F](),
	}
	var err error
	if k.flux, err = resolve(reg, fluxName, field.NodeRank); err != nil {
		return nil, kernelError("scalar flux bc", err)
	}
	coords, err := resolve(reg, opts.CoordinatesName, field.NodeRank)
	if err != nil {
		return nil, kernelError("scalar flux bc", err)
	}
	req.AddCoordinatesField(coords, traits.NDim())
	req.AddCVFEMFaceME(k.fe)
	req.AddGatheredNodalField(k.flux, 1)
	req.AddMasterElementCall(FaceExposedArea)
	return k, nil
}

func (k *ScalarFluxBCElemKernel[F]) Execute(_ *mat.Dense, rhs []float64, s *ScratchViews) {
	var traits F
	nfn, nDim := traits.NodesPerFace(), traits.NDim()
	flux := s.View(k.flux)
	shape := s.FaceShapeFcn().RawMatrix()
	ipNodeMap := k.fe.IpNodeMap()

	for ip := 0; ip < traits.NumFaceIp(); ip++ {
		nn := ipNodeMap[ip]
		var fluxBip float64
		if k.useShifted {
			fluxBip = flux[nn]
		} else {
			for ic, ric := range shape.Data[ip*shape.Stride : ip*shape.Stride+nfn] {
				fluxBip += ric * flux[ic]
			}
		}
		var amag float64
		for _, a := range s.ExposedAreav[ip*nDim : (ip+1)*nDim] {
			amag += a * a
		}
		rhs[nn] += fluxBip * math.Sqrt(amag)
	}
}

// MomentumABLWallShearStressEdgeKernel applies a wall shear stress computed
// at the boundary ips to the momentum right hand side
type MomentumABLWallShearStressEdgeKernel[F element.FaceTraits] struct {
	noSetup
	exposedAreaVec, wallShearStress field.Ordinal
	fe                              element.FaceMasterElement
}

func NewMomentumABLWallShearStressEdgeKernel[F element.FaceTraits](reg *field.Registry,
	req *ElemDataRequests) (*MomentumABLWallShearStressEdgeKernel[F], error) {
	var traits F
	k := &MomentumABLWallShearStressEdgeKernel[F]{fe: element.FaceMasterElementOf[F]()}
	var err error
	if k.exposedAreaVec, err = resolve(reg, ExposedAreaName, field.FaceRank); err != nil {
		return nil, kernelError("abl wall shear stress", err)
	}
	if k.wallShearStress, err = resolve(reg, WallShearStressName, field.FaceRank); err != nil {
		return nil, kernelError("abl wall shear stress", err)
	}
	req.AddCVFEMFaceME(k.fe)
	req.AddFaceField(k.exposedAreaVec, traits.NumFaceIp(), traits.NDim())
	req.AddFaceField(k.wallShearStress, traits.NumFaceIp(), traits.NDim())
	return k, nil
}

func (k *MomentumABLWallShearStressEdgeKernel[F]) Execute(_ *mat.Dense, rhs []float64, s *ScratchViews) {
	var traits F
	nDim := traits.NDim()
	areavec, tau := s.View(k.exposedAreaVec), s.View(k.wallShearStress)
	ipNodeMap := k.fe.IpNodeMap()

	for ip := 0; ip < traits.NumFaceIp(); ip++ {
		nodeR := ipNodeMap[ip]
		var amag float64
		for d := 0; d < nDim; d++ {
			amag += areavec[ip*nDim+d] * areavec[ip*nDim+d]
		}
		amag = math.Sqrt(amag)
		for i := 0; i < nDim; i++ {
			rhs[nodeR*nDim+i] += tau[ip*nDim+i] * amag
		}
	}
}
