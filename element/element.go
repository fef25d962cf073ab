package element

import (
	"errors"
	"fmt"
)

// Dimensionality represents the spatial dimension of an element
type Dimensionality uint8

const (
	D0 Dimensionality = iota // points (1D boundary sides)
	D1                       // lines
	D2                       // triangles, quadrilaterals
	D3                       // tetrahedra, hexahedra
)

// Topology identifies the shape of a mesh entity
type Topology uint8

const (
	TopoInvalid Topology = iota
	TopoNode1
	TopoLine2
	TopoTri3
	TopoQuad4
	TopoTet4
	TopoHex8
)

var ErrUnsupportedTopology = errors.New("unsupported topology")

func (t Topology) String() string {
	switch t {
	case TopoNode1:
		return "Node1"
	case TopoLine2:
		return "Line2"
	case TopoTri3:
		return "Tri3"
	case TopoQuad4:
		return "Quad4"
	case TopoTet4:
		return "Tet4"
	case TopoHex8:
		return "Hex8"
	default:
		return fmt.Sprintf("Topology(%d)", uint8(t))
	}
}

// NumNodes returns the number of defining nodes of the topology
func (t Topology) NumNodes() int {
	switch t {
	case TopoNode1:
		return 1
	case TopoLine2:
		return 2
	case TopoTri3:
		return 3
	case TopoQuad4, TopoTet4:
		return 4
	case TopoHex8:
		return 8
	default:
		return 0
	}
}

// Dimensions returns the parametric dimension of the topology
func (t Topology) Dimensions() Dimensionality {
	switch t {
	case TopoNode1:
		return D0
	case TopoLine2:
		return D1
	case TopoTri3, TopoQuad4:
		return D2
	case TopoTet4, TopoHex8:
		return D3
	default:
		return D0
	}
}

// SideTopology returns the topology of the boundary sides of an element topology
func (t Topology) SideTopology() Topology {
	switch t {
	case TopoLine2:
		return TopoNode1
	case TopoTri3, TopoQuad4:
		return TopoLine2
	case TopoTet4:
		return TopoTri3
	case TopoHex8:
		return TopoQuad4
	default:
		return TopoInvalid
	}
}

// TopologyFromNodeCount infers an element topology from its node count and
// the spatial dimension of the mesh. Quad4 and Tet4 share a node count.
func TopologyFromNodeCount(nodes, nDim int) (Topology, error) {
	switch {
	case nodes == 2 && nDim == 1:
		return TopoLine2, nil
	case nodes == 3 && nDim == 2:
		return TopoTri3, nil
	case nodes == 4 && nDim == 2:
		return TopoQuad4, nil
	case nodes == 4 && nDim == 3:
		return TopoTet4, nil
	case nodes == 8 && nDim == 3:
		return TopoHex8, nil
	}
	return TopoInvalid, fmt.Errorf("%d nodes in %dD: %w", nodes, nDim, ErrUnsupportedTopology)
}

// AlgTraits describes a volume element topology at compile time. Kernels are
// instantiated over one of the zero-size implementations below.
type AlgTraits interface {
	Topology() Topology
	NodesPerElement() int
	NDim() int
	NumScvIp() int
	NumScsIp() int
}

// FaceTraits describes a boundary face topology at compile time
type FaceTraits interface {
	Topology() Topology
	NodesPerFace() int
	NDim() int
	NumFaceIp() int
}

type Line2 struct{}

func (Line2) Topology() Topology   { return TopoLine2 }
func (Line2) NodesPerElement() int { return 2 }
func (Line2) NDim() int            { return 1 }
func (Line2) NumScvIp() int        { return 2 }
func (Line2) NumScsIp() int        { return 1 }

type Tri3 struct{}

func (Tri3) Topology() Topology   { return TopoTri3 }
func (Tri3) NodesPerElement() int { return 3 }
func (Tri3) NDim() int            { return 2 }
func (Tri3) NumScvIp() int        { return 3 }
func (Tri3) NumScsIp() int        { return 3 }

type Quad4 struct{}

func (Quad4) Topology() Topology   { return TopoQuad4 }
func (Quad4) NodesPerElement() int { return 4 }
func (Quad4) NDim() int            { return 2 }
func (Quad4) NumScvIp() int        { return 4 }
func (Quad4) NumScsIp() int        { return 4 }

type Tet4 struct{}

func (Tet4) Topology() Topology   { return TopoTet4 }
func (Tet4) NodesPerElement() int { return 4 }
func (Tet4) NDim() int            { return 3 }
func (Tet4) NumScvIp() int        { return 4 }
func (Tet4) NumScsIp() int        { return 6 }

type Hex8 struct{}

func (Hex8) Topology() Topology   { return TopoHex8 }
func (Hex8) NodesPerElement() int { return 8 }
func (Hex8) NDim() int            { return 3 }
func (Hex8) NumScvIp() int        { return 8 }
func (Hex8) NumScsIp() int        { return 12 }

// Node1Face is the boundary point of a 1D mesh
type Node1Face struct{}

func (Node1Face) Topology() Topology { return TopoNode1 }
func (Node1Face) NodesPerFace() int  { return 1 }
func (Node1Face) NDim() int          { return 1 }
func (Node1Face) NumFaceIp() int     { return 1 }

// Line2Face is the boundary edge of a 2D mesh
type Line2Face struct{}

func (Line2Face) Topology() Topology { return TopoLine2 }
func (Line2Face) NodesPerFace() int  { return 2 }
func (Line2Face) NDim() int          { return 2 }
func (Line2Face) NumFaceIp() int     { return 2 }

type Tri3Face struct{}

func (Tri3Face) Topology() Topology { return TopoTri3 }
func (Tri3Face) NodesPerFace() int  { return 3 }
func (Tri3Face) NDim() int          { return 3 }
func (Tri3Face) NumFaceIp() int     { return 3 }

type Quad4Face struct{}

func (Quad4Face) Topology() Topology { return TopoQuad4 }
func (Quad4Face) NodesPerFace() int  { return 4 }
func (Quad4Face) NDim() int          { return 3 }
func (Quad4Face) NumFaceIp() int     { return 4 }
