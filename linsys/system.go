package linsys

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"unsafe"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ScatterStrategy selects how concurrent workers add into the system
type ScatterStrategy int

const (
	// ScatterColoring relies on the caller running only entities that share
	// no node concurrently; adds are plain stores and the summation order per
	// row is fixed.
	ScatterColoring ScatterStrategy = iota
	// ScatterAtomic adds with compare-and-swap so any entities may run
	// concurrently. Results are equal up to round-off, not bit-identical.
	ScatterAtomic
)

func (s ScatterStrategy) String() string {
	switch s {
	case ScatterColoring:
		return "coloring"
	case ScatterAtomic:
		return "atomic"
	}
	return fmt.Sprintf("ScatterStrategy(%d)", int(s))
}

// ParseScatterStrategy accepts "coloring" or "atomic"
func ParseScatterStrategy(s string) (ScatterStrategy, error) {
	switch strings.ToLower(s) {
	case "coloring", "":
		return ScatterColoring, nil
	case "atomic":
		return ScatterAtomic, nil
	}
	return 0, fmt.Errorf("unknown scatter strategy %q", s)
}

// System is the global linear system of one equation. The matrix graph is
// fixed at construction from the entity connectivity, so concurrent adds
// never reallocate. Row r = node*BlockSize + component.
type System struct {
	NumNodes  int
	BlockSize int
	NumRows   int

	rowPtr []int
	cols   []int
	vals   []float64
	rhs    *sparse.DenseArray
}

// NewSystem builds the matrix graph: every pair of nodes appearing together
// in one entity of any connectivity list couples all their components.
func NewSystem(numNodes, blockSize int, connectivity ...[][]int) *System {
	if numNodes < 1 || blockSize < 1 {
		panic(fmt.Sprintf("linear system needs rows, got numNodes=%d blockSize=%d", numNodes, blockSize))
	}
	nbrs := make([]map[int]struct{}, numNodes)
	for n := range nbrs {
		nbrs[n] = map[int]struct{}{n: {}}
	}
	for _, conn := range connectivity {
		for _, nodes := range conn {
			for _, a := range nodes {
				for _, b := range nodes {
					nbrs[a][b] = struct{}{}
				}
			}
		}
	}

	s := &System{
		NumNodes:  numNodes,
		BlockSize: blockSize,
		NumRows:   numNodes * blockSize,
		rowPtr:    make([]int, numNodes*blockSize+1),
		rhs:       sparse.ZerosDense(numNodes * blockSize),
	}
	for n := 0; n < numNodes; n++ {
		sorted := make([]int, 0, len(nbrs[n]))
		for m := range nbrs[n] {
			sorted = append(sorted, m)
		}
		sort.Ints(sorted)
		for c := 0; c < blockSize; c++ {
			for _, m := range sorted {
				for cc := 0; cc < blockSize; cc++ {
					s.cols = append(s.cols, m*blockSize+cc)
				}
			}
			s.rowPtr[n*blockSize+c+1] = len(s.cols)
		}
	}
	s.vals = make([]float64, len(s.cols))
	return s
}

// Nonzeros returns the number of stored matrix entries
func (s *System) Nonzeros() int { return len(s.vals) }

// Zero clears the matrix values and the right hand side
func (s *System) Zero() {
	for i := range s.vals {
		s.vals[i] = 0
	}
	for i := range s.rhs.Elements {
		s.rhs.Elements[i] = 0
	}
}

func (s *System) slot(row, col int) int {
	lo, hi := s.rowPtr[row], s.rowPtr[row+1]
	k := lo + sort.SearchInts(s.cols[lo:hi], col)
	if k == hi || s.cols[k] != col {
		panic(fmt.Sprintf("entry (%d,%d) is not in the matrix graph", row, col))
	}
	return k
}

// SumInto adds a local system for the given entity nodes. lhs is
// (n*b x n*b) and rhs n*b with local index node*b + component.
func (s *System) SumInto(nodes []int, lhs *mat.Dense, rhs []float64) {
	s.sumInto(nodes, lhs, rhs, func(p *float64, v float64) { *p += v })
}

// SumIntoAtomic is SumInto safe for concurrent use on overlapping rows
func (s *System) SumIntoAtomic(nodes []int, lhs *mat.Dense, rhs []float64) {
	s.sumInto(nodes, lhs, rhs, atomicAdd)
}

// Scatter dispatches to SumInto or SumIntoAtomic
func (s *System) Scatter(strategy ScatterStrategy, nodes []int, lhs *mat.Dense, rhs []float64) {
	if strategy == ScatterAtomic {
		s.SumIntoAtomic(nodes, lhs, rhs)
		return
	}
	s.SumInto(nodes, lhs, rhs)
}

func (s *System) sumInto(nodes []int, lhs *mat.Dense, rhs []float64, add func(*float64, float64)) {
	bs := s.BlockSize
	n := len(nodes) * bs
	raw := lhs.RawMatrix()
	for i := 0; i < n; i++ {
		row := nodes[i/bs]*bs + i%bs
		if v := rhs[i]; v != 0 {
			add(&s.rhs.Elements[row], v)
		}
		for j := 0; j < n; j++ {
			v := raw.Data[i*raw.Stride+j]
			if v == 0 {
				continue
			}
			add(&s.vals[s.slot(row, nodes[j/bs]*bs+j%bs)], v)
		}
	}
}

func atomicAdd(p *float64, v float64) {
	u := (*uint64)(unsafe.Pointer(p))
	for {
		old := atomic.LoadUint64(u)
		if atomic.CompareAndSwapUint64(u, old, math.Float64bits(math.Float64frombits(old)+v)) {
			return
		}
	}
}

// At returns a matrix entry, zero outside the graph
func (s *System) At(row, col int) float64 {
	lo, hi := s.rowPtr[row], s.rowPtr[row+1]
	k := lo + sort.SearchInts(s.cols[lo:hi], col)
	if k == hi || s.cols[k] != col {
		return 0
	}
	return s.vals[k]
}

// RHS returns the right hand side values
func (s *System) RHS() []float64 { return s.rhs.Elements }

// RHSArray exposes the right hand side as a dense array
func (s *System) RHSArray() *sparse.DenseArray { return s.rhs }

// ToSparse exports the matrix as a sparse array holding the stored nonzeros
func (s *System) ToSparse() *sparse.SparseArray {
	a := sparse.ZerosSparse(s.NumRows, s.NumRows)
	for r := 0; r < s.NumRows; r++ {
		for k := s.rowPtr[r]; k < s.rowPtr[r+1]; k++ {
			if s.vals[k] != 0 {
				a.Set(s.vals[k], r, s.cols[k])
			}
		}
	}
	return a
}

// Dense copies the matrix into a gonum dense matrix
func (s *System) Dense() *mat.Dense {
	d := mat.NewDense(s.NumRows, s.NumRows, nil)
	for r := 0; r < s.NumRows; r++ {
		for k := s.rowPtr[r]; k < s.rowPtr[r+1]; k++ {
			d.Set(r, s.cols[k], s.vals[k])
		}
	}
	return d
}

// Solve computes the update x of lhs*x = rhs with a dense factorization. It
// is meant for small systems and tests; production solves belong to an
// external sparse solver.
func (s *System) Solve() (*mat.VecDense, error) {
	var x mat.VecDense
	b := mat.NewVecDense(s.NumRows, append([]float64(nil), s.rhs.Elements...))
	if err := x.SolveVec(s.Dense(), b); err != nil {
		return nil, fmt.Errorf("dense solve of %d rows: %w", s.NumRows, err)
	}
	return &x, nil
}

// ResidualNorm returns the 2-norm of the right hand side
func (s *System) ResidualNorm() float64 {
	return floats.Norm(s.rhs.Elements, 2)
}
