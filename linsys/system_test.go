package linsys

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSystem_Graph(t *testing.T) {
	// two Line2 elements: 0-1, 1-2
	s := NewSystem(3, 2, [][]int{{0, 1}, {1, 2}})
	assert.Equal(t, 6, s.NumRows)
	// node 0 and 2 couple to 2 nodes, node 1 to 3, each with 2x2 blocks
	assert.Equal(t, (2+3+2)*4, s.Nonzeros())

	assert.Panics(t, func() { NewSystem(0, 1) })
	assert.Panics(t, func() {
		s.SumInto([]int{0, 2}, mat.NewDense(4, 4, []float64{0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}), make([]float64, 4))
	}, "node 0 and 2 are not coupled")
}

func TestSystem_SumInto(t *testing.T) {
	s := NewSystem(3, 1, [][]int{{0, 1}, {1, 2}})
	lhs := mat.NewDense(2, 2, []float64{2, -1, -1, 2})
	s.SumInto([]int{0, 1}, lhs, []float64{1, 2})
	s.SumInto([]int{1, 2}, lhs, []float64{3, 4})

	assert.Equal(t, []float64{1, 5, 4}, s.RHS())
	assert.Equal(t, 4.0, s.At(1, 1))
	assert.Equal(t, -1.0, s.At(1, 2))
	assert.Equal(t, 0.0, s.At(0, 2))

	d := s.Dense()
	want := mat.NewDense(3, 3, []float64{2, -1, 0, -1, 4, -1, 0, -1, 2})
	assert.True(t, mat.Equal(want, d))

	sp := s.ToSparse()
	assert.Equal(t, 4.0, sp.Get(1, 1))
	assert.Equal(t, 0.0, sp.Get(0, 2))
	assert.Len(t, sp.Elements, 7)
	assert.Equal(t, 10.0, s.RHSArray().Sum())

	s.Zero()
	assert.Equal(t, 0.0, s.ResidualNorm())
	assert.Equal(t, 0.0, s.At(1, 1))
}

func TestSystem_Solve(t *testing.T) {
	s := NewSystem(2, 1, [][]int{{0, 1}})
	s.SumInto([]int{0, 1}, mat.NewDense(2, 2, []float64{2, 1, 1, 3}), []float64{3, 5})
	x, err := s.Solve()
	require.NoError(t, err)
	assert.InDelta(t, 0.8, x.AtVec(0), 1e-14)
	assert.InDelta(t, 1.4, x.AtVec(1), 1e-14)
}

func TestSystem_AtomicMatchesSerial(t *testing.T) {
	const n = 200
	conn := make([][]int, n)
	for k := range conn {
		conn[k] = []int{k % 17, (k + 1) % 17}
	}
	serial := NewSystem(17, 1, conn)
	atomicSys := NewSystem(17, 1, conn)
	local := func(k int) (*mat.Dense, []float64) {
		v := float64(k%7) + 0.1
		return mat.NewDense(2, 2, []float64{v, -v, -v, v}), []float64{v, -v / 3}
	}
	for k, nodes := range conn {
		lhs, rhs := local(k)
		serial.SumInto(nodes, lhs, rhs)
	}
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for k := w; k < n; k += 8 {
				lhs, rhs := local(k)
				atomicSys.Scatter(ScatterAtomic, conn[k], lhs, rhs)
			}
		}(w)
	}
	wg.Wait()
	assert.InDeltaSlice(t, serial.RHS(), atomicSys.RHS(), 1e-12)
	assert.True(t, mat.EqualApprox(serial.Dense(), atomicSys.Dense(), 1e-12))
}

func TestParseScatterStrategy(t *testing.T) {
	s, err := ParseScatterStrategy("Atomic")
	require.NoError(t, err)
	assert.Equal(t, ScatterAtomic, s)
	s, err = ParseScatterStrategy("")
	require.NoError(t, err)
	assert.Equal(t, ScatterColoring, s)
	assert.Equal(t, "coloring", s.String())
	_, err = ParseScatterStrategy("locks")
	assert.Error(t, err)
}
