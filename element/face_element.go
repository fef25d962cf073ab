package element

import (
	"gonum.org/v1/gonum/mat"
)

// FaceMasterElement evaluates the boundary sub-faces of one face topology.
// Each face ip owns the part of the face nearest to one face node.
type FaceMasterElement interface {
	Topology() Topology
	NodesPerFace() int
	NDim() int
	NumFaceIp() int
	IpNodeMap() []int
	// ShapeFcn returns the [NumFaceIp x NodesPerFace] interpolation table
	ShapeFcn() *mat.Dense
	// ExposedAreaVectors writes outward area vectors areav[ip*nDim+dim]. The
	// interior point (usually the parent element centroid) fixes the
	// orientation. A nil Workspace allocates a temporary one.
	ExposedAreaVectors(ws *Workspace, coords, interior, areav []float64)
}

type faceME struct {
	topo      Topology
	nDim      int
	nfn       int
	ipNodeMap []int
	shapeFcn  *mat.Dense
}

func newFaceME(topo Topology) *faceME {
	fe := &faceME{topo: topo, nfn: topo.NumNodes()}
	switch topo {
	case TopoNode1:
		fe.nDim = 1
		fe.shapeFcn = mat.NewDense(1, 1, []float64{1})
	case TopoLine2:
		fe.nDim = 2
		fe.shapeFcn = mat.NewDense(2, 2, []float64{0.75, 0.25, 0.25, 0.75})
	case TopoTri3, TopoQuad4:
		// the face ips coincide with the SCV ips of the 2D parametric shape
		fe.nDim = 3
		me := newVolumeME(topo)
		fe.shapeFcn = mat.DenseCopyOf(me.ShapeFcn(false))
	}
	fe.ipNodeMap = make([]int, fe.nfn)
	for i := range fe.ipNodeMap {
		fe.ipNodeMap[i] = i
	}
	return fe
}

func (fe *faceME) Topology() Topology   { return fe.topo }
func (fe *faceME) NodesPerFace() int    { return fe.nfn }
func (fe *faceME) NDim() int            { return fe.nDim }
func (fe *faceME) NumFaceIp() int       { return fe.nfn }
func (fe *faceME) IpNodeMap() []int     { return fe.ipNodeMap }
func (fe *faceME) ShapeFcn() *mat.Dense { return fe.shapeFcn }

func (fe *faceME) ExposedAreaVectors(ws *Workspace, coords, interior, areav []float64) {
	nd := fe.nDim
	ws = ws.fit(nd)
	out := ws.out
	Centroid(coords, nd, out)
	for d := 0; d < nd; d++ {
		out[d] -= interior[d]
	}
	node := func(i int) []float64 { return coords[i*nd : (i+1)*nd] }

	switch fe.topo {
	case TopoNode1:
		areav[0] = 1
	case TopoLine2:
		// each half edge, node to midpoint
		for ip := 0; ip < 2; ip++ {
			x := node(ip)
			mx := 0.5 * (coords[0] + coords[2])
			my := 0.5 * (coords[1] + coords[3])
			areav[ip*2] = my - x[1]
			areav[ip*2+1] = -(mx - x[0])
		}
	case TopoTri3:
		d1, d2, n := ws.d1, ws.d2, ws.n
		for d := 0; d < 3; d++ {
			d1[d] = coords[3+d] - coords[d]
			d2[d] = coords[6+d] - coords[d]
		}
		cross(d1, d2, n)
		for ip := 0; ip < 3; ip++ {
			for d := 0; d < 3; d++ {
				areav[ip*3+d] = n[d] / 6
			}
		}
	case TopoQuad4:
		c, d1, d2, n := ws.c, ws.d1, ws.d2, ws.n
		Centroid(coords, 3, c)
		for ip := 0; ip < 4; ip++ {
			x, next, prev := node(ip), node((ip+1)%4), node((ip+3)%4)
			for d := 0; d < 3; d++ {
				d1[d] = c[d] - x[d]
				d2[d] = 0.5*(prev[d]+x[d]) - 0.5*(next[d]+x[d])
			}
			cross(d1, d2, n)
			for d := 0; d < 3; d++ {
				areav[ip*3+d] = 0.5 * n[d]
			}
		}
	}

	for ip := 0; ip < fe.nfn; ip++ {
		a := areav[ip*nd : (ip+1)*nd]
		if dot(a, out) < 0 {
			for d := range a {
				a[d] = -a[d]
			}
		}
	}
}
