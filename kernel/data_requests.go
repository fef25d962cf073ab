package kernel

import (
	"errors"
	"fmt"

	"github.com/notargets/CVFEMKernel/element"
	"github.com/notargets/CVFEMKernel/field"
)

var ErrRequirementMismatch = errors.New("data requirement mismatch")

// MECall names a master element evaluation performed during gather
type MECall uint8

const (
	SCVVolume MECall = iota
	SCVShapeFcn
	SCVShiftedShapeFcn
	SCSAreaVector
	SCSShapeFcn
	SCSGradOp
	SCSShiftedGradOp
	FaceExposedArea
	numMECalls
)

func (c MECall) String() string {
	switch c {
	case SCVVolume:
		return "SCV_VOLUME"
	case SCVShapeFcn:
		return "SCV_SHAPE_FCN"
	case SCVShiftedShapeFcn:
		return "SCV_SHIFTED_SHAPE_FCN"
	case SCSAreaVector:
		return "SCS_AREAV"
	case SCSShapeFcn:
		return "SCS_SHAPE_FCN"
	case SCSGradOp:
		return "SCS_GRAD_OP"
	case SCSShiftedGradOp:
		return "SCS_SHIFTED_GRAD_OP"
	case FaceExposedArea:
		return "FC_AREAV"
	}
	return fmt.Sprintf("MECall(%d)", uint8(c))
}

// geometric calls need the coordinates gathered
func (c MECall) geometric() bool {
	switch c {
	case SCVVolume, SCSAreaVector, SCSGradOp, SCSShiftedGradOp, FaceExposedArea:
		return true
	}
	return false
}

// FieldRequest is one field gathered per entity. Components counts values per
// node for nodal fields and per entity otherwise.
type FieldRequest struct {
	Ordinal    field.Ordinal
	Rank       field.Rank
	Components int
}

// ElemDataRequests collects what every kernel on a selection needs gathered.
// Kernels register into it at construction; problems are recorded and
// reported together by Validate so that one bad kernel does not hide another.
type ElemDataRequests struct {
	reg      *field.Registry
	nDim     int
	topo     element.Topology
	coords   field.Ordinal
	volumeME element.MasterElement
	faceME   element.FaceMasterElement
	fields   []FieldRequest
	index    map[field.Ordinal]int
	calls    [numMECalls]bool
	errs     []error
}

// NewElemDataRequests starts an empty request set for entities of dimension
// nDim whose fields live in reg
func NewElemDataRequests(reg *field.Registry, nDim int) *ElemDataRequests {
	return &ElemDataRequests{
		reg:    reg,
		nDim:   nDim,
		coords: field.InvalidOrdinal,
		index:  make(map[field.Ordinal]int),
	}
}

func (r *ElemDataRequests) NDim() int { return r.nDim }

// ExpectTopology restricts the master elements kernels may register to those
// of topology t, the topology of the entities being gathered
func (r *ElemDataRequests) ExpectTopology(t element.Topology) { r.topo = t }

func (r *ElemDataRequests) wrongTopology(t element.Topology) bool {
	return r.topo != element.TopoInvalid && t != r.topo
}

func (r *ElemDataRequests) fail(format string, args ...interface{}) {
	r.errs = append(r.errs, fmt.Errorf(format+": %w", append(args, ErrRequirementMismatch)...))
}

func (r *ElemDataRequests) addField(req FieldRequest) {
	if req.Ordinal < 0 || int(req.Ordinal) >= r.reg.NumOrdinals() {
		r.fail("ordinal %d is not registered", req.Ordinal)
		return
	}
	name, state := r.reg.Name(req.Ordinal)
	if rank := r.reg.RankOf(req.Ordinal); rank != req.Rank {
		r.fail("field %s(%s) is a %s field, requested as %s", name, state, rank, req.Rank)
		return
	}
	if nc := r.reg.Components(req.Ordinal); nc != req.Components {
		r.fail("field %s(%s) has %d components, requested %d", name, state, nc, req.Components)
		return
	}
	if i, ok := r.index[req.Ordinal]; ok {
		if prev := r.fields[i]; prev != req {
			r.fail("field %s(%s) requested as %s x%d and %s x%d",
				name, state, prev.Rank, prev.Components, req.Rank, req.Components)
		}
		return
	}
	r.index[req.Ordinal] = len(r.fields)
	r.fields = append(r.fields, req)
}

// AddCoordinatesField requests the model coordinates; nDim must match the
// request dimension
func (r *ElemDataRequests) AddCoordinatesField(ord field.Ordinal, nDim int) {
	if nDim != r.nDim {
		r.fail("coordinates requested with %d dimensions in a %dD request", nDim, r.nDim)
		return
	}
	if r.coords != field.InvalidOrdinal && r.coords != ord {
		r.fail("two coordinate fields requested (ordinals %d and %d)", r.coords, ord)
		return
	}
	r.coords = ord
	r.addField(FieldRequest{Ordinal: ord, Rank: field.NodeRank, Components: nDim})
}

// AddGatheredNodalField requests comps values per node of the entity
func (r *ElemDataRequests) AddGatheredNodalField(ord field.Ordinal, comps int) {
	r.addField(FieldRequest{Ordinal: ord, Rank: field.NodeRank, Components: comps})
}

// AddFaceField requests a face field stored as numIp x comps per face
func (r *ElemDataRequests) AddFaceField(ord field.Ordinal, numIp, comps int) {
	r.addField(FieldRequest{Ordinal: ord, Rank: field.FaceRank, Components: numIp * comps})
}

// AddElemField requests comps values per element
func (r *ElemDataRequests) AddElemField(ord field.Ordinal, comps int) {
	r.addField(FieldRequest{Ordinal: ord, Rank: field.ElemRank, Components: comps})
}

func (r *ElemDataRequests) AddCVFEMVolumeME(me element.MasterElement) {
	switch {
	case me == nil:
		r.fail("nil volume master element")
	case me.NDim() != r.nDim:
		r.fail("%s master element in a %dD request", me.Topology(), r.nDim)
	case r.wrongTopology(me.Topology()):
		r.fail("%s master element on %s entities", me.Topology(), r.topo)
	case r.faceME != nil:
		r.fail("%s volume master element on a %s face request", me.Topology(), r.faceME.Topology())
	case r.volumeME != nil && r.volumeME != me:
		r.fail("volume master elements %s and %s on one request", r.volumeME.Topology(), me.Topology())
	default:
		r.volumeME = me
	}
}

func (r *ElemDataRequests) AddCVFEMFaceME(fe element.FaceMasterElement) {
	switch {
	case fe == nil:
		r.fail("nil face master element")
	case fe.NDim() != r.nDim:
		r.fail("%s face master element in a %dD request", fe.Topology(), r.nDim)
	case r.wrongTopology(fe.Topology()):
		r.fail("%s face master element on %s faces", fe.Topology(), r.topo)
	case r.volumeME != nil:
		r.fail("%s face master element on a %s volume request", fe.Topology(), r.volumeME.Topology())
	case r.faceME != nil && r.faceME != fe:
		r.fail("face master elements %s and %s on one request", r.faceME.Topology(), fe.Topology())
	default:
		r.faceME = fe
	}
}

func (r *ElemDataRequests) AddMasterElementCall(c MECall) {
	if c >= numMECalls {
		r.fail("unknown master element call %d", c)
		return
	}
	r.calls[c] = true
}

// Validate reports every problem recorded so far, plus calls that cannot be
// served by the registered master elements and coordinates
func (r *ElemDataRequests) Validate() error {
	errs := append([]error(nil), r.errs...)
	for c := MECall(0); c < numMECalls; c++ {
		if !r.calls[c] {
			continue
		}
		if c.geometric() && r.coords == field.InvalidOrdinal {
			errs = append(errs, fmt.Errorf("%s needs the coordinates field: %w", c, ErrRequirementMismatch))
		}
		if c == FaceExposedArea {
			if r.faceME == nil {
				errs = append(errs, fmt.Errorf("%s without a face master element: %w", c, ErrRequirementMismatch))
			}
		} else if r.volumeME == nil {
			errs = append(errs, fmt.Errorf("%s without a volume master element: %w", c, ErrRequirementMismatch))
		}
	}
	if r.volumeME == nil && r.faceME == nil {
		errs = append(errs, fmt.Errorf("no master element registered: %w", ErrRequirementMismatch))
	}
	return errors.Join(errs...)
}

// Fields returns the gathered fields in registration order
func (r *ElemDataRequests) Fields() []FieldRequest { return r.fields }

func (r *ElemDataRequests) Has(c MECall) bool { return c < numMECalls && r.calls[c] }

func (r *ElemDataRequests) Coordinates() field.Ordinal { return r.coords }

func (r *ElemDataRequests) VolumeME() element.MasterElement { return r.volumeME }

func (r *ElemDataRequests) FaceME() element.FaceMasterElement { return r.faceME }

// NodesPerEntity is the node count of the registered master element
func (r *ElemDataRequests) NodesPerEntity() int {
	switch {
	case r.volumeME != nil:
		return r.volumeME.NodesPerElement()
	case r.faceME != nil:
		return r.faceME.NodesPerFace()
	}
	return 0
}
