package mesh

import (
	"fmt"

	"github.com/notargets/CVFEMKernel/element"
)

// NewLineMesh builds n Line2 elements on [0, length] with sidesets "left" and
// "right"
func NewLineMesh(n int, length float64) (*Bulk, error) {
	if n < 1 {
		return nil, fmt.Errorf("line mesh needs at least one element, got %d", n)
	}
	coords := make([][]float64, n+1)
	for i := range coords {
		coords[i] = []float64{length * float64(i) / float64(n)}
	}
	conn := make([][]int, n)
	for k := range conn {
		conn[k] = []int{k, k + 1}
	}
	b := NewBulk(1, coords)
	if _, err := b.AddElementBlock("block_1", element.TopoLine2, conn); err != nil {
		return nil, err
	}
	if _, err := b.AddSideset("left", []Side{{Elem: 0, Ordinal: 0}}); err != nil {
		return nil, err
	}
	if _, err := b.AddSideset("right", []Side{{Elem: n - 1, Ordinal: 1}}); err != nil {
		return nil, err
	}
	_, err := b.Commit()
	return b, err
}

// NewQuadMesh builds an nx by ny grid of Quad4 elements on [0,lx]x[0,ly] with
// sidesets "bottom", "right", "top" and "left"
func NewQuadMesh(nx, ny int, lx, ly float64) (*Bulk, error) {
	b, conn, err := quadGrid(nx, ny, lx, ly)
	if err != nil {
		return nil, err
	}
	if _, err = b.AddElementBlock("block_1", element.TopoQuad4, conn); err != nil {
		return nil, err
	}
	var sides [4][]Side
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			k := i + j*nx
			if j == 0 {
				sides[0] = append(sides[0], Side{k, 0})
			}
			if i == nx-1 {
				sides[1] = append(sides[1], Side{k, 1})
			}
			if j == ny-1 {
				sides[2] = append(sides[2], Side{k, 2})
			}
			if i == 0 {
				sides[3] = append(sides[3], Side{k, 3})
			}
		}
	}
	for s, name := range []string{"bottom", "right", "top", "left"} {
		if _, err = b.AddSideset(name, sides[s]); err != nil {
			return nil, err
		}
	}
	_, err = b.Commit()
	return b, err
}

// NewTriMesh splits every cell of an nx by ny grid into two Tri3 elements.
// The boundary is collected in the sideset "boundary".
func NewTriMesh(nx, ny int, lx, ly float64) (*Bulk, error) {
	b, quads, err := quadGrid(nx, ny, lx, ly)
	if err != nil {
		return nil, err
	}
	conn := make([][]int, 0, 2*len(quads))
	for _, q := range quads {
		conn = append(conn, []int{q[0], q[1], q[2]}, []int{q[0], q[2], q[3]})
	}
	if _, err = b.AddElementBlock("block_1", element.TopoTri3, conn); err != nil {
		return nil, err
	}
	if _, err = b.SkinMesh("boundary"); err != nil {
		return nil, err
	}
	_, err = b.Commit()
	return b, err
}

func quadGrid(nx, ny int, lx, ly float64) (*Bulk, [][]int, error) {
	if nx < 1 || ny < 1 {
		return nil, nil, fmt.Errorf("grid needs at least one cell per direction, got %dx%d", nx, ny)
	}
	node := func(i, j int) int { return i + j*(nx+1) }
	coords := make([][]float64, (nx+1)*(ny+1))
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			coords[node(i, j)] = []float64{lx * float64(i) / float64(nx), ly * float64(j) / float64(ny)}
		}
	}
	conn := make([][]int, 0, nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			conn = append(conn, []int{node(i, j), node(i+1, j), node(i+1, j+1), node(i, j+1)})
		}
	}
	return NewBulk(2, coords), conn, nil
}

// NewHexMesh builds an nx by ny by nz grid of Hex8 elements with sidesets
// "xmin", "xmax", "ymin", "ymax", "zmin" and "zmax"
func NewHexMesh(nx, ny, nz int, lx, ly, lz float64) (*Bulk, error) {
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, fmt.Errorf("grid needs at least one cell per direction, got %dx%dx%d", nx, ny, nz)
	}
	node := func(i, j, k int) int { return i + (nx+1)*(j+(ny+1)*k) }
	coords := make([][]float64, (nx+1)*(ny+1)*(nz+1))
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				coords[node(i, j, k)] = []float64{
					lx * float64(i) / float64(nx),
					ly * float64(j) / float64(ny),
					lz * float64(k) / float64(nz),
				}
			}
		}
	}
	var conn [][]int
	// side ordinals of the Hex8 master element
	const (
		ymin = 0
		xmax = 1
		ymax = 2
		xmin = 3
		zmin = 4
		zmax = 5
	)
	sides := make(map[int][]Side)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				e := len(conn)
				conn = append(conn, []int{
					node(i, j, k), node(i+1, j, k), node(i+1, j+1, k), node(i, j+1, k),
					node(i, j, k+1), node(i+1, j, k+1), node(i+1, j+1, k+1), node(i, j+1, k+1),
				})
				if i == 0 {
					sides[xmin] = append(sides[xmin], Side{e, xmin})
				}
				if i == nx-1 {
					sides[xmax] = append(sides[xmax], Side{e, xmax})
				}
				if j == 0 {
					sides[ymin] = append(sides[ymin], Side{e, ymin})
				}
				if j == ny-1 {
					sides[ymax] = append(sides[ymax], Side{e, ymax})
				}
				if k == 0 {
					sides[zmin] = append(sides[zmin], Side{e, zmin})
				}
				if k == nz-1 {
					sides[zmax] = append(sides[zmax], Side{e, zmax})
				}
			}
		}
	}
	b := NewBulk(3, coords)
	if _, err := b.AddElementBlock("block_1", element.TopoHex8, conn); err != nil {
		return nil, err
	}
	names := []struct {
		name string
		side int
	}{{"xmin", xmin}, {"xmax", xmax}, {"ymin", ymin}, {"ymax", ymax}, {"zmin", zmin}, {"zmax", zmax}}
	for _, n := range names {
		if _, err := b.AddSideset(n.name, sides[n.side]); err != nil {
			return nil, err
		}
	}
	_, err := b.Commit()
	return b, err
}
