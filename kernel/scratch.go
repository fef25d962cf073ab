package kernel

import (
	"github.com/notargets/CVFEMKernel/element"
	"github.com/notargets/CVFEMKernel/field"
	"gonum.org/v1/gonum/mat"
)

// ScratchViews holds everything gathered for one entity: field values by
// ordinal and the master element results requested by the kernels. One
// ScratchViews belongs to one worker and is overwritten by every Gather.
type ScratchViews struct {
	Index int
	Nodes []int

	nDim  int
	npe   int
	views [][]float64
	reqs  []FieldRequest

	coords   field.Ordinal
	calls    [numMECalls]bool
	vme      element.MasterElement
	fme      element.FaceMasterElement
	interior []float64
	ws       *element.Workspace

	ScvVolume   []float64
	ScsAreav    []float64
	Dndx        []float64
	DndxShifted []float64
	// ExposedAreav holds the outward face area vectors [ip*nDim+d]
	ExposedAreav []float64

	scvShape, scvShifted, scsShape, faceShape *mat.Dense
}

// NewScratchViews sizes the buffers for a validated request set
func NewScratchViews(req *ElemDataRequests) *ScratchViews {
	s := &ScratchViews{
		nDim:     req.nDim,
		npe:      req.NodesPerEntity(),
		views:    make([][]float64, req.reg.NumOrdinals()),
		reqs:     req.fields,
		coords:   req.coords,
		calls:    req.calls,
		vme:      req.volumeME,
		fme:      req.faceME,
		interior: make([]float64, req.nDim),
		ws:       element.NewWorkspace(req.nDim),
	}
	for _, fr := range req.fields {
		n := fr.Components
		if fr.Rank == field.NodeRank {
			n *= s.npe
		}
		s.views[fr.Ordinal] = make([]float64, n)
	}
	if me := s.vme; me != nil {
		s.scvShape = me.ShapeFcn(false)
		s.scvShifted = me.ShapeFcn(true)
		s.scsShape = me.ScsShapeFcn()
		if s.calls[SCVVolume] {
			s.ScvVolume = make([]float64, me.NumScvIp())
		}
		if s.calls[SCSAreaVector] {
			s.ScsAreav = make([]float64, me.NumScsIp()*s.nDim)
		}
		if s.calls[SCSGradOp] {
			s.Dndx = make([]float64, me.NumScsIp()*s.npe*s.nDim)
		}
		if s.calls[SCSShiftedGradOp] {
			s.DndxShifted = make([]float64, me.NumScsIp()*s.npe*s.nDim)
		}
	}
	if fe := s.fme; fe != nil {
		s.faceShape = fe.ShapeFcn()
		if s.calls[FaceExposedArea] {
			s.ExposedAreav = make([]float64, fe.NumFaceIp()*s.nDim)
		}
	}
	return s
}

// Gather copies the requested fields of entity index with the given nodes
// and evaluates the requested master element calls. parentNodes are the
// nodes of the element owning a face and orient the exposed areas; they are
// ignored for elements.
func (s *ScratchViews) Gather(reg *field.Registry, index int, nodes, parentNodes []int) {
	s.Index = index
	s.Nodes = nodes
	for _, fr := range s.reqs {
		dst, src := s.views[fr.Ordinal], reg.Data(fr.Ordinal)
		nc := fr.Components
		if fr.Rank == field.NodeRank {
			for n, node := range nodes {
				copy(dst[n*nc:(n+1)*nc], src[node*nc:(node+1)*nc])
			}
			continue
		}
		copy(dst, src[index*nc:(index+1)*nc])
	}

	if me := s.vme; me != nil {
		coords := s.views[s.coords]
		if s.calls[SCVVolume] {
			me.ScvVolumes(s.ws, coords, s.ScvVolume)
		}
		if s.calls[SCSAreaVector] {
			me.ScsAreaVectors(s.ws, coords, s.ScsAreav)
		}
		if s.calls[SCSGradOp] {
			me.ScsGradOp(s.ws, coords, s.Dndx, false)
		}
		if s.calls[SCSShiftedGradOp] {
			me.ScsGradOp(s.ws, coords, s.DndxShifted, true)
		}
	}
	if s.fme != nil && s.calls[FaceExposedArea] {
		s.parentCentroid(reg, parentNodes)
		s.fme.ExposedAreaVectors(s.ws, s.views[s.coords], s.interior, s.ExposedAreav)
	}
}

func (s *ScratchViews) parentCentroid(reg *field.Registry, parentNodes []int) {
	for d := range s.interior {
		s.interior[d] = 0
	}
	if len(parentNodes) == 0 {
		return
	}
	xs := reg.Data(s.coords)
	for _, n := range parentNodes {
		for d := range s.interior {
			s.interior[d] += xs[n*s.nDim+d]
		}
	}
	for d := range s.interior {
		s.interior[d] /= float64(len(parentNodes))
	}
}

// View returns the gathered values of an ordinal: [node*comps+c] for nodal
// fields, the entity values otherwise
func (s *ScratchViews) View(ord field.Ordinal) []float64 { return s.views[ord] }

// ShapeFcn returns the SCV interpolation table, shifted for lumped terms
func (s *ScratchViews) ShapeFcn(shifted bool) *mat.Dense {
	if shifted {
		return s.scvShifted
	}
	return s.scvShape
}

func (s *ScratchViews) ScsShapeFcn() *mat.Dense { return s.scsShape }

func (s *ScratchViews) FaceShapeFcn() *mat.Dense { return s.faceShape }

// NumNodes is the node count of the gathered entity type
func (s *ScratchViews) NumNodes() int { return s.npe }
