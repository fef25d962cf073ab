package parallel

import (
	"sync"
	"testing"

	"github.com/notargets/CVFEMKernel/field"
	"github.com/notargets/CVFEMKernel/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeExchange(t *testing.T) {
	ne, err := NewNodeExchange([][]int64{
		{0, 1, 2, 5},
		{2, 3, 5, 4},
		{5, 6},
	})
	require.NoError(t, err)
	// partition 0 shares 2 and 5 with 1; local order follows global id
	assert.Equal(t, []int{2, 3}, ne.GetPickIndices(0, 1))
	assert.Equal(t, []int{0, 2}, ne.GetPlaceIndices(1, 0))
	assert.Equal(t, []int{3}, ne.GetPickIndices(0, 2))
	assert.Equal(t, []int{0}, ne.GetPlaceIndices(2, 0))
	assert.Equal(t, []int{2, 3}, ne.SharedNodes[0])
	assert.Equal(t, []int{0, 2}, ne.SharedNodes[1])
	assert.Nil(t, ne.GetPickIndices(0, 3))

	_, err = NewNodeExchange([][]int64{{1, 1}})
	assert.Error(t, err)
	_, err = NewNodeExchange(nil)
	assert.Error(t, err)
}

func TestSerial(t *testing.T) {
	reg := field.NewRegistry(3, 0, 0)
	_, err := reg.Declare("dual_nodal_volume", field.NodeRank, 1, 1)
	require.NoError(t, err)
	var comm Communicator = Serial{}
	assert.NoError(t, comm.ParallelSum(reg, "dual_nodal_volume"))
	assert.ErrorIs(t, comm.ParallelSum(reg, "missing"), field.ErrFieldNotFound)
	assert.Equal(t, 1, comm.Size())
}

// Every rank writes 1 at each local node copy; after the reduction a node
// holds the number of partitions that touch it.
func TestLocalGroup_ParallelSum(t *testing.T) {
	b, err := mesh.NewQuadMesh(3, 2, 3, 2)
	require.NoError(t, err)
	// columns of elements go to separate ranks
	locals, err := mesh.Decompose(b, []int{0, 1, 2, 0, 1, 2})
	require.NoError(t, err)
	group, err := NewLocalGroup(locals)
	require.NoError(t, err)

	for _, lb := range locals {
		f, err := lb.Fields().Declare("count", field.NodeRank, 2, 1)
		require.NoError(t, err)
		lb.Fields().Fill(f.Ordinal(field.StateNP1), 1)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(locals))
	for p, lb := range locals {
		wg.Add(1)
		go func(p int, lb *mesh.Bulk) {
			defer wg.Done()
			errs[p] = group.Comm(p).ParallelSum(lb.Fields(), "count")
		}(p, lb)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	for _, lb := range locals {
		ord, _ := lb.Fields().Resolve("count", field.StateNP1)
		for l := 0; l < lb.NumNodes; l++ {
			x := lb.Coordinates(l)[0]
			want := 1.0
			if x == 1 || x == 2 {
				want = 2
			}
			assert.Equal(t, []float64{want, want}, lb.Fields().Entity(ord, l), "rank %d node x=%g", lb.Rank, x)
		}
	}
}

func TestLocalGroup_MissingField(t *testing.T) {
	b, err := mesh.NewLineMesh(2, 2)
	require.NoError(t, err)
	locals, err := mesh.Decompose(b, []int{0, 1})
	require.NoError(t, err)
	group, err := NewLocalGroup(locals)
	require.NoError(t, err)
	_, err = locals[0].Fields().Declare("v", field.NodeRank, 1, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for p := range locals {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			errs[p] = group.Comm(p).ParallelSum(locals[p].Fields(), "v")
		}(p)
	}
	wg.Wait()
	assert.Error(t, errs[0], "rank 1 sent nothing")
	assert.ErrorIs(t, errs[1], field.ErrFieldNotFound)
}
