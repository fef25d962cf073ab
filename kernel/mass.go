package kernel

import (
	"github.com/notargets/CVFEMKernel/config"
	"github.com/notargets/CVFEMKernel/element"
	"github.com/notargets/CVFEMKernel/field"
	"gonum.org/v1/gonum/mat"
)

// ScalarMassElemKernel assembles the BDF time derivative of rho*q for a
// scalar q. The lumped form interpolates with the shifted shape functions.
type ScalarMassElemKernel[T element.AlgTraits] struct {
	timeCoefficients
	qNm1, qN, qNp1       field.Ordinal
	rhoNm1, rhoN, rhoNp1 field.Ordinal
	lumped               bool
	diagRelaxFactor      float64
	me                   element.MasterElement
}

func NewScalarMassElemKernel[T element.AlgTraits](reg *field.Registry, opts *config.SolutionOptions,
	req *ElemDataRequests, scalarName string, lumped bool) (*ScalarMassElemKernel[T], error) {
	var traits T
	k := &ScalarMassElemKernel[T]{
		lumped:          lumped,
		diagRelaxFactor: opts.RelaxationFactor(scalarName),
		me:              element.VolumeMasterElementOf[T](),
	}
	var err error
	if k.qNm1, k.qN, k.qNp1, err = stateOrdinals(reg, scalarName, field.NodeRank); err != nil {
		return nil, kernelError("scalar mass", err)
	}
	if k.rhoNm1, k.rhoN, k.rhoNp1, err = stateOrdinals(reg, DensityName, field.NodeRank); err != nil {
		return nil, kernelError("scalar mass", err)
	}
	coords, err := resolve(reg, opts.CoordinatesName, field.NodeRank)
	if err != nil {
		return nil, kernelError("scalar mass", err)
	}

	req.AddCoordinatesField(coords, traits.NDim())
	req.AddCVFEMVolumeME(k.me)
	if lumped {
		req.AddMasterElementCall(SCVShiftedShapeFcn)
	} else {
		req.AddMasterElementCall(SCVShapeFcn)
	}
	for _, ord := range []field.Ordinal{k.qNm1, k.qN, k.qNp1, k.rhoNm1, k.rhoN, k.rhoNp1} {
		req.AddGatheredNodalField(ord, 1)
	}
	req.AddMasterElementCall(SCVVolume)
	return k, nil
}

func (k *ScalarMassElemKernel[T]) Execute(lhs *mat.Dense, rhs []float64, s *ScratchViews) {
	var traits T
	npe := traits.NodesPerElement()
	qNm1, qN, qNp1 := s.View(k.qNm1), s.View(k.qN), s.View(k.qNp1)
	rhoNm1, rhoN, rhoNp1 := s.View(k.rhoNm1), s.View(k.rhoN), s.View(k.rhoNp1)
	shape := s.ShapeFcn(k.lumped).RawMatrix()
	l := lhs.RawMatrix()
	ipNodeMap := k.me.IpNodeMap()

	for ip := 0; ip < traits.NumScvIp(); ip++ {
		nn := ipNodeMap[ip]
		r := shape.Data[ip*shape.Stride : ip*shape.Stride+npe]

		var qNm1Scv, qNScv, qNp1Scv, rhoNm1Scv, rhoNScv, rhoNp1Scv float64
		for ic, ric := range r {
			qNm1Scv += ric * qNm1[ic]
			qNScv += ric * qN[ic]
			qNp1Scv += ric * qNp1[ic]
			rhoNm1Scv += ric * rhoNm1[ic]
			rhoNScv += ric * rhoN[ic]
			rhoNp1Scv += ric * rhoNp1[ic]
		}

		scV := s.ScvVolume[ip]
		rhs[nn] += -(k.gamma1*rhoNp1Scv*qNp1Scv + k.gamma2*rhoNScv*qNScv + k.gamma3*rhoNm1Scv*qNm1Scv) * scV / k.dt

		row := l.Data[nn*l.Stride:]
		for ic, ric := range r {
			row[ic] += ric * k.gamma1 * rhoNp1Scv * scV / k.dt * k.diagRelaxFactor
		}
	}
}

// MomentumMassElemKernel is the mass term of the velocity equation. The
// optional nodal pressure gradient is moved to the right hand side with the
// same interpolation.
type MomentumMassElemKernel[T element.AlgTraits] struct {
	timeCoefficients
	uNm1, uN, uNp1       field.Ordinal
	rhoNm1, rhoN, rhoNp1 field.Ordinal
	gjp                  field.Ordinal
	lumped               bool
	diagRelaxFactor      float64
	me                   element.MasterElement
}

// NewMomentumMassElemKernel builds the kernel; pressureGradName may be empty
func NewMomentumMassElemKernel[T element.AlgTraits](reg *field.Registry, opts *config.SolutionOptions,
	req *ElemDataRequests, velocityName, pressureGradName string, lumped bool) (*MomentumMassElemKernel[T], error) {
	var traits T
	nDim := traits.NDim()
	k := &MomentumMassElemKernel[T]{
		gjp:             field.InvalidOrdinal,
		lumped:          lumped,
		diagRelaxFactor: opts.RelaxationFactor(velocityName),
		me:              element.VolumeMasterElementOf[T](),
	}
	var err error
	if k.uNm1, k.uN, k.uNp1, err = stateOrdinals(reg, velocityName, field.NodeRank); err != nil {
		return nil, kernelError("momentum mass", err)
	}
	if k.rhoNm1, k.rhoN, k.rhoNp1, err = stateOrdinals(reg, DensityName, field.NodeRank); err != nil {
		return nil, kernelError("momentum mass", err)
	}
	if pressureGradName != "" {
		if k.gjp, err = resolve(reg, pressureGradName, field.NodeRank); err != nil {
			return nil, kernelError("momentum mass", err)
		}
	}
	coords, err := resolve(reg, opts.CoordinatesName, field.NodeRank)
	if err != nil {
		return nil, kernelError("momentum mass", err)
	}

	req.AddCoordinatesField(coords, nDim)
	req.AddCVFEMVolumeME(k.me)
	if lumped {
		req.AddMasterElementCall(SCVShiftedShapeFcn)
	} else {
		req.AddMasterElementCall(SCVShapeFcn)
	}
	for _, ord := range []field.Ordinal{k.uNm1, k.uN, k.uNp1} {
		req.AddGatheredNodalField(ord, nDim)
	}
	for _, ord := range []field.Ordinal{k.rhoNm1, k.rhoN, k.rhoNp1} {
		req.AddGatheredNodalField(ord, 1)
	}
	if k.gjp != field.InvalidOrdinal {
		req.AddGatheredNodalField(k.gjp, nDim)
	}
	req.AddMasterElementCall(SCVVolume)
	return k, nil
}

func (k *MomentumMassElemKernel[T]) Execute(lhs *mat.Dense, rhs []float64, s *ScratchViews) {
	var traits T
	npe, nDim := traits.NodesPerElement(), traits.NDim()
	uNm1, uN, uNp1 := s.View(k.uNm1), s.View(k.uN), s.View(k.uNp1)
	rhoNm1, rhoN, rhoNp1 := s.View(k.rhoNm1), s.View(k.rhoN), s.View(k.rhoNp1)
	var gjp []float64
	if k.gjp != field.InvalidOrdinal {
		gjp = s.View(k.gjp)
	}
	shape := s.ShapeFcn(k.lumped).RawMatrix()
	l := lhs.RawMatrix()
	ipNodeMap := k.me.IpNodeMap()

	var uNm1Scv, uNScv, uNp1Scv, gjpScv [3]float64
	for ip := 0; ip < traits.NumScvIp(); ip++ {
		nn := ipNodeMap[ip]
		r := shape.Data[ip*shape.Stride : ip*shape.Stride+npe]

		var rhoNm1Scv, rhoNScv, rhoNp1Scv float64
		for i := 0; i < nDim; i++ {
			uNm1Scv[i], uNScv[i], uNp1Scv[i], gjpScv[i] = 0, 0, 0, 0
		}
		for ic, ric := range r {
			rhoNm1Scv += ric * rhoNm1[ic]
			rhoNScv += ric * rhoN[ic]
			rhoNp1Scv += ric * rhoNp1[ic]
			for i := 0; i < nDim; i++ {
				uNm1Scv[i] += ric * uNm1[ic*nDim+i]
				uNScv[i] += ric * uN[ic*nDim+i]
				uNp1Scv[i] += ric * uNp1[ic*nDim+i]
				if gjp != nil {
					gjpScv[i] += ric * gjp[ic*nDim+i]
				}
			}
		}

		scV := s.ScvVolume[ip]
		for i := 0; i < nDim; i++ {
			rhs[nn*nDim+i] += -(k.gamma1*rhoNp1Scv*uNp1Scv[i]+k.gamma2*rhoNScv*uNScv[i]+
				k.gamma3*rhoNm1Scv*uNm1Scv[i])*scV/k.dt - gjpScv[i]*scV
		}
		for ic, ric := range r {
			lhsfac := ric * k.gamma1 * rhoNp1Scv * scV / k.dt * k.diagRelaxFactor
			for i := 0; i < nDim; i++ {
				l.Data[(nn*nDim+i)*l.Stride+ic*nDim+i] += lhsfac
			}
		}
	}
}
