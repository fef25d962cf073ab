package element

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// MasterElement evaluates the sub-control-volume (SCV) and sub-control-surface
// (SCS) quantities of one volume topology. Coordinates are passed per element
// as coords[node*nDim+dim]; outputs are written into caller owned slices so the
// evaluator can be shared by concurrent workers.
type MasterElement interface {
	Topology() Topology
	NodesPerElement() int
	NDim() int
	NumScvIp() int
	NumScsIp() int

	// IpNodeMap returns the node nearest to each SCV integration point
	IpNodeMap() []int
	// ShapeFcn returns the [NumScvIp x NodesPerElement] interpolation table.
	// The shifted table evaluates the basis at the nearest node.
	ShapeFcn(shifted bool) *mat.Dense
	// ScsShapeFcn returns the [NumScsIp x NodesPerElement] interpolation table
	ScsShapeFcn() *mat.Dense
	// Adjacent returns the (left, right) nodes separated by each SCS
	Adjacent() [][2]int
	// Sides returns the local nodes of each boundary side
	Sides() [][]int

	// The geometric evaluations below take the caller's Workspace; a nil
	// Workspace allocates a temporary one.

	ScvVolumes(ws *Workspace, coords, vol []float64)
	// ScsAreaVectors writes area vectors oriented from left to right node,
	// areav[ip*nDim+dim]
	ScsAreaVectors(ws *Workspace, coords, areav []float64)
	// ScsGradOp writes dN/dx at each SCS ip, dndx[(ip*npe+node)*nDim+dim]. The
	// shifted operator is evaluated at the edge midpoints.
	ScsGradOp(ws *Workspace, coords, dndx []float64, shifted bool)
}

type volumeME struct {
	info        *topoInfo
	ipNodeMap   []int
	scvIps      [][]float64
	shapeFcn    *mat.Dense
	shiftedFcn  *mat.Dense
	scsShapeFcn *mat.Dense
	cornerShape [][][]float64 // shape functions at each SCS corner
	affineDeriv []float64     // simplices: constant reference derivatives
	scsDeriv    [][]float64
	scsShifted  [][]float64
	scvGauss    [][][]float64 // tensor elements: Gauss points of each node's sub-box
	scvDeriv    [][][]float64
}

func newVolumeME(topo Topology) *volumeME {
	info := topoInfos[topo]
	npe, nd := info.npe(), info.nDim
	me := &volumeME{
		info:        info,
		ipNodeMap:   make([]int, npe),
		scvIps:      make([][]float64, npe),
		shapeFcn:    mat.NewDense(npe, npe, nil),
		shiftedFcn:  mat.NewDense(npe, npe, nil),
		scsShapeFcn: mat.NewDense(len(info.edges), npe, nil),
	}

	n := make([]float64, npe)
	for ip := 0; ip < npe; ip++ {
		me.ipNodeMap[ip] = ip
		me.scvIps[ip] = scvIpLocation(info, ip)
		info.shape(me.scvIps[ip], n)
		me.shapeFcn.SetRow(ip, n)
		info.shape(info.nodes[ip], n)
		me.shiftedFcn.SetRow(ip, n)
	}

	cellCentroid := info.centroid(info.allNodes())
	for ip, e := range info.edges {
		mid := info.centroid(e[:])
		var corners [][]float64
		switch nd {
		case 1:
			corners = [][]float64{mid}
		case 2:
			corners = [][]float64{mid, cellCentroid}
		case 3:
			sides := info.sidesWithEdge(e)
			corners = [][]float64{mid, info.centroid(sides[0]), cellCentroid, info.centroid(sides[1])}
		}
		cs := make([][]float64, len(corners))
		for k, c := range corners {
			cs[k] = make([]float64, npe)
			info.shape(c, cs[k])
		}
		me.cornerShape = append(me.cornerShape, cs)

		ipLoc := make([]float64, nd)
		for _, c := range corners {
			for d := range ipLoc {
				ipLoc[d] += c[d] / float64(len(corners))
			}
		}
		info.shape(ipLoc, n)
		me.scsShapeFcn.SetRow(ip, n)

		d := make([]float64, npe*nd)
		info.deriv(ipLoc, d)
		me.scsDeriv = append(me.scsDeriv, d)
		ds := make([]float64, npe*nd)
		info.deriv(mid, ds)
		me.scsShifted = append(me.scsShifted, ds)
	}

	if info.simplex {
		me.affineDeriv = make([]float64, npe*nd)
		info.deriv(info.nodes[0], me.affineDeriv)
	} else {
		// Each node owns the sub-box between itself and the element center
		ng := 1 << nd
		me.scvGauss = make([][][]float64, npe)
		me.scvDeriv = make([][][]float64, npe)
		for i, node := range info.nodes {
			for g := 0; g < ng; g++ {
				xi := make([]float64, nd)
				for d := 0; d < nd; d++ {
					xi[d] = 0.5*node[d] + 0.5*gauss2[(g>>d)&1]
				}
				dv := make([]float64, npe*nd)
				info.deriv(xi, dv)
				me.scvGauss[i] = append(me.scvGauss[i], xi)
				me.scvDeriv[i] = append(me.scvDeriv[i], dv)
			}
		}
	}
	return me
}

// scvIpLocation is the vertex average of the sub-control volume of a node.
// On simplices this puts 7/12 (tri) or 15/32 (tet) of the barycentric weight
// on the owning node.
func scvIpLocation(info *topoInfo, node int) []float64 {
	nd := info.nDim
	xi := make([]float64, nd)
	if !info.simplex {
		for d := 0; d < nd; d++ {
			xi[d] = 0.5 * info.nodes[node][d]
		}
		return xi
	}
	var own, other float64
	switch nd {
	case 2:
		own, other = 7./12., 5./24.
	case 3:
		own, other = 15./32., 17./96.
	}
	for d := 0; d < nd; d++ {
		xi[d] = other
		if node == d+1 {
			xi[d] = own
		}
	}
	return xi
}

func (me *volumeME) Topology() Topology     { return me.info.topo }
func (me *volumeME) NodesPerElement() int   { return me.info.npe() }
func (me *volumeME) NDim() int              { return me.info.nDim }
func (me *volumeME) NumScvIp() int          { return me.info.npe() }
func (me *volumeME) NumScsIp() int          { return len(me.info.edges) }
func (me *volumeME) IpNodeMap() []int       { return me.ipNodeMap }
func (me *volumeME) ScsShapeFcn() *mat.Dense { return me.scsShapeFcn }
func (me *volumeME) Adjacent() [][2]int     { return me.info.edges }
func (me *volumeME) Sides() [][]int         { return me.info.sides }

func (me *volumeME) ShapeFcn(shifted bool) *mat.Dense {
	if shifted {
		return me.shiftedFcn
	}
	return me.shapeFcn
}

func (me *volumeME) ScvVolumes(ws *Workspace, coords, vol []float64) {
	info := me.info
	nd := info.nDim
	ws = ws.fit(nd)
	if info.simplex {
		// affine map: every sub-volume is an equal share of the element
		jacobian(nd, me.affineDeriv, coords, ws.jac)
		v := math.Abs(determinant(nd, ws.jac)) * info.refVolume / float64(info.npe())
		for i := range vol[:info.npe()] {
			vol[i] = v
		}
		return
	}
	w := math.Pow(0.5, float64(nd))
	for i := range me.scvGauss {
		vol[i] = 0
		for _, dv := range me.scvDeriv[i] {
			jacobian(nd, dv, coords, ws.jac)
			vol[i] += w * math.Abs(determinant(nd, ws.jac))
		}
	}
}

func (me *volumeME) ScsAreaVectors(ws *Workspace, coords, areav []float64) {
	info := me.info
	nd := info.nDim
	ws = ws.fit(nd)
	p, lr, a := ws.p, ws.lr, ws.a
	for ip, e := range info.edges {
		for d := 0; d < nd; d++ {
			lr[d] = coords[e[1]*nd+d] - coords[e[0]*nd+d]
		}
		for k, n := range me.cornerShape[ip] {
			interpolate(nd, n, coords, p[k])
		}
		switch nd {
		case 1:
			a[0] = 1
		case 2:
			a[0] = p[1][1] - p[0][1]
			a[1] = -(p[1][0] - p[0][0])
		case 3:
			for d := 0; d < 3; d++ {
				ws.d1[d] = p[2][d] - p[0][d]
				ws.d2[d] = p[3][d] - p[1][d]
			}
			cross(ws.d1, ws.d2, ws.n)
			for d := 0; d < 3; d++ {
				a[d] = 0.5 * ws.n[d]
			}
		}
		if dot(a, lr) < 0 {
			for d := range a {
				a[d] = -a[d]
			}
		}
		copy(areav[ip*nd:(ip+1)*nd], a)
	}
}

func (me *volumeME) ScsGradOp(ws *Workspace, coords, dndx []float64, shifted bool) {
	info := me.info
	nd, npe := info.nDim, info.npe()
	ws = ws.fit(nd)
	derivs := me.scsDeriv
	if shifted {
		derivs = me.scsShifted
	}
	for ip, dv := range derivs {
		jacobian(nd, dv, coords, ws.jac)
		if !invert(nd, ws.jac, ws.jinv) {
			// degenerate element, leave the operator as NaN for the caller
			for i := range dndx[ip*npe*nd : (ip+1)*npe*nd] {
				dndx[ip*npe*nd+i] = math.NaN()
			}
			continue
		}
		for n := 0; n < npe; n++ {
			for a := 0; a < nd; a++ {
				var s float64
				for b := 0; b < nd; b++ {
					s += dv[n*nd+b] * ws.jinv[b*nd+a]
				}
				dndx[(ip*npe+n)*nd+a] = s
			}
		}
	}
}
