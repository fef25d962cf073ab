package element

import "math"

// topoInfo holds the reference geometry of one topology. Tensor-product
// elements live on [-1,1]^d, simplices on the unit simplex.
type topoInfo struct {
	topo      Topology
	nDim      int
	nodes     [][]float64 // reference coordinates, one row per node
	edges     [][2]int
	sides     [][]int // boundary sides by local node
	simplex   bool
	refVolume float64
}

var topoInfos = map[Topology]*topoInfo{
	TopoLine2: {
		topo:      TopoLine2,
		nDim:      1,
		nodes:     [][]float64{{-1}, {1}},
		edges:     [][2]int{{0, 1}},
		sides:     [][]int{{0}, {1}},
		refVolume: 2,
	},
	TopoTri3: {
		topo:      TopoTri3,
		nDim:      2,
		nodes:     [][]float64{{0, 0}, {1, 0}, {0, 1}},
		edges:     [][2]int{{0, 1}, {1, 2}, {2, 0}},
		sides:     [][]int{{0, 1}, {1, 2}, {2, 0}},
		simplex:   true,
		refVolume: 0.5,
	},
	TopoQuad4: {
		topo:      TopoQuad4,
		nDim:      2,
		nodes:     [][]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}},
		edges:     [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}},
		sides:     [][]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}},
		refVolume: 4,
	},
	TopoTet4: {
		topo:      TopoTet4,
		nDim:      3,
		nodes:     [][]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		edges:     [][2]int{{0, 1}, {1, 2}, {2, 0}, {0, 3}, {1, 3}, {2, 3}},
		sides:     [][]int{{0, 1, 3}, {1, 2, 3}, {0, 3, 2}, {0, 2, 1}},
		simplex:   true,
		refVolume: 1. / 6.,
	},
	TopoHex8: {
		topo: TopoHex8,
		nDim: 3,
		nodes: [][]float64{
			{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
			{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
		},
		edges: [][2]int{
			{0, 1}, {1, 2}, {2, 3}, {3, 0},
			{4, 5}, {5, 6}, {6, 7}, {7, 4},
			{0, 4}, {1, 5}, {2, 6}, {3, 7},
		},
		sides: [][]int{
			{0, 1, 5, 4}, {1, 2, 6, 5}, {2, 3, 7, 6},
			{0, 4, 7, 3}, {0, 3, 2, 1}, {4, 5, 6, 7},
		},
		refVolume: 8,
	},
}

func (ti *topoInfo) npe() int { return len(ti.nodes) }

// shape evaluates the nodal basis at reference point xi into n
func (ti *topoInfo) shape(xi, n []float64) {
	if ti.simplex {
		n[0] = 1
		for d := 0; d < ti.nDim; d++ {
			n[0] -= xi[d]
			n[d+1] = xi[d]
		}
		return
	}
	for i, node := range ti.nodes {
		v := 1.
		for d := 0; d < ti.nDim; d++ {
			v *= 0.5 * (1 + node[d]*xi[d])
		}
		n[i] = v
	}
}

// deriv evaluates dN_i/dxi_j at xi into d[i*nDim+j]
func (ti *topoInfo) deriv(xi, d []float64) {
	nd := ti.nDim
	if ti.simplex {
		for j := 0; j < nd; j++ {
			d[j] = -1
		}
		for i := 1; i <= nd; i++ {
			for j := 0; j < nd; j++ {
				d[i*nd+j] = 0
			}
			d[i*nd+i-1] = 1
		}
		return
	}
	for i, node := range ti.nodes {
		for j := 0; j < nd; j++ {
			v := 0.5 * node[j]
			for k := 0; k < nd; k++ {
				if k != j {
					v *= 0.5 * (1 + node[k]*xi[k])
				}
			}
			d[i*nd+j] = v
		}
	}
}

// centroid of a subset of reference nodes
func (ti *topoInfo) centroid(local []int) []float64 {
	c := make([]float64, ti.nDim)
	for _, n := range local {
		for d := 0; d < ti.nDim; d++ {
			c[d] += ti.nodes[n][d]
		}
	}
	for d := range c {
		c[d] /= float64(len(local))
	}
	return c
}

func (ti *topoInfo) allNodes() []int {
	all := make([]int, ti.npe())
	for i := range all {
		all[i] = i
	}
	return all
}

// sidesWithEdge returns the sides that contain both nodes of an edge
func (ti *topoInfo) sidesWithEdge(e [2]int) [][]int {
	var found [][]int
	for _, s := range ti.sides {
		var hasL, hasR bool
		for _, n := range s {
			hasL = hasL || n == e[0]
			hasR = hasR || n == e[1]
		}
		if hasL && hasR {
			found = append(found, s)
		}
	}
	return found
}

// interpolate maps shape function values n to physical space using nodal
// coords laid out as coords[node*nDim+dim]
func interpolate(nDim int, n, coords, out []float64) {
	for d := 0; d < nDim; d++ {
		out[d] = 0
	}
	for i, ni := range n {
		for d := 0; d < nDim; d++ {
			out[d] += ni * coords[i*nDim+d]
		}
	}
}

// jacobian fills jac[a*nDim+b] = dx_a/dxi_b from reference derivatives
func jacobian(nDim int, deriv, coords, jac []float64) {
	npe := len(deriv) / nDim
	for i := range jac[:nDim*nDim] {
		jac[i] = 0
	}
	for n := 0; n < npe; n++ {
		for a := 0; a < nDim; a++ {
			x := coords[n*nDim+a]
			for b := 0; b < nDim; b++ {
				jac[a*nDim+b] += x * deriv[n*nDim+b]
			}
		}
	}
}

func determinant(nDim int, j []float64) float64 {
	switch nDim {
	case 1:
		return j[0]
	case 2:
		return j[0]*j[3] - j[1]*j[2]
	default:
		return j[0]*(j[4]*j[8]-j[5]*j[7]) -
			j[1]*(j[3]*j[8]-j[5]*j[6]) +
			j[2]*(j[3]*j[7]-j[4]*j[6])
	}
}

// invert writes the inverse of the nDim x nDim matrix j into inv by the
// adjugate and reports false when j is singular
func invert(nDim int, j, inv []float64) bool {
	det := determinant(nDim, j)
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return false
	}
	r := 1 / det
	switch nDim {
	case 1:
		inv[0] = r
	case 2:
		inv[0], inv[1] = j[3]*r, -j[1]*r
		inv[2], inv[3] = -j[2]*r, j[0]*r
	default:
		inv[0] = (j[4]*j[8] - j[5]*j[7]) * r
		inv[1] = (j[2]*j[7] - j[1]*j[8]) * r
		inv[2] = (j[1]*j[5] - j[2]*j[4]) * r
		inv[3] = (j[5]*j[6] - j[3]*j[8]) * r
		inv[4] = (j[0]*j[8] - j[2]*j[6]) * r
		inv[5] = (j[2]*j[3] - j[0]*j[5]) * r
		inv[6] = (j[3]*j[7] - j[4]*j[6]) * r
		inv[7] = (j[1]*j[6] - j[0]*j[7]) * r
		inv[8] = (j[0]*j[4] - j[1]*j[3]) * r
	}
	return true
}

// Centroid averages nodal coordinates laid out as coords[node*nDim+dim]
func Centroid(coords []float64, nDim int, out []float64) {
	npe := len(coords) / nDim
	for d := 0; d < nDim; d++ {
		out[d] = 0
		for n := 0; n < npe; n++ {
			out[d] += coords[n*nDim+d]
		}
		out[d] /= float64(npe)
	}
}

func cross(a, b, out []float64) {
	out[0] = a[1]*b[2] - a[2]*b[1]
	out[1] = a[2]*b[0] - a[0]*b[2]
	out[2] = a[0]*b[1] - a[1]*b[0]
}

func dot(a, b []float64) (s float64) {
	for i := range a {
		s += a[i] * b[i]
	}
	return
}

var gauss2 = [2]float64{-1 / math.Sqrt(3), 1 / math.Sqrt(3)}
