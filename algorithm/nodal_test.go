package algorithm

import (
	"math"
	"sync"
	"testing"

	"github.com/notargets/CVFEMKernel/field"
	"github.com/notargets/CVFEMKernel/kernel"
	"github.com/notargets/CVFEMKernel/mesh"
	"github.com/notargets/CVFEMKernel/parallel"
	"github.com/notargets/CVFEMKernel/timeint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sides = []string{"bottom", "right", "top", "left"}

func runDrivers(t *testing.T, drivers ...Driver) {
	t.Helper()
	ti := timeint.BackwardEuler(1)
	for _, d := range drivers {
		require.NoError(t, d.Setup(ti), d.Name())
		require.NoError(t, d.Execute(), d.Name())
		assert.Equal(t, Scattered, d.State())
		d.EndStep()
	}
}

func fieldValues(t *testing.T, b *mesh.Bulk, name string) []float64 {
	t.Helper()
	ord, err := b.Fields().Resolve(name, field.StateNP1)
	require.NoError(t, err)
	return b.Fields().Data(ord)
}

func TestDualVolumeDriver(t *testing.T) {
	b, err := mesh.NewQuadMesh(2, 2, 1, 1)
	require.NoError(t, err)
	d, err := NewDualVolumeDriver(b, parallel.Serial{}, Options{NumWorkers: 2}, "block_1")
	require.NoError(t, err)
	assert.ErrorIs(t, d.Execute(), ErrNotSetUp)
	runDrivers(t, d)
	// running twice must not accumulate
	runDrivers(t, d)

	dv := fieldValues(t, b, kernel.DualVolumeName)
	var total float64
	for n, v := range dv {
		total += v
		x := b.Coordinates(n)
		corners := 0
		for _, xi := range x {
			if xi == 0 || xi == 1 {
				corners++
			}
		}
		want := []float64{0.25, 0.125, 0.0625}[corners]
		assert.InDelta(t, want, v, 1e-14, "node %d at %v", n, x)
	}
	assert.InDelta(t, 1, total, 1e-14)
}

func TestExposedAreaDriver(t *testing.T) {
	b, err := mesh.NewQuadMesh(3, 2, 3, 2)
	require.NoError(t, err)
	d, err := NewExposedAreaDriver(b, Options{}, sides...)
	require.NoError(t, err)
	runDrivers(t, d)

	area := fieldValues(t, b, kernel.ExposedAreaName)
	require.Len(t, area, len(b.Faces)*2*2)
	var sum [2]float64
	var perimeter float64
	for f := range b.Faces {
		for ip := 0; ip < 2; ip++ {
			a := area[(f*2+ip)*2 : (f*2+ip)*2+2]
			sum[0] += a[0]
			sum[1] += a[1]
			perimeter += math.Hypot(a[0], a[1])
		}
	}
	assert.InDelta(t, 0, sum[0], 1e-14, "closed boundary")
	assert.InDelta(t, 0, sum[1], 1e-14)
	assert.InDelta(t, 10, perimeter, 1e-14)

	// bottom faces point down
	bottom, err := b.Part("bottom")
	require.NoError(t, err)
	for _, f := range bottom.Entities {
		assert.Less(t, area[f*4+1], 0.0)
	}
}

func linearField(t *testing.T, b *mesh.Bulk) {
	declare(t, b, "q", 1, 1, func(x []float64, _ field.State, _ int) float64 {
		return 2*x[0] + 3*x[1] + 1
	})
}

func newNodalGrad(t *testing.T, b *mesh.Bulk, shifted bool, faces ...string) []float64 {
	t.Helper()
	dv, err := NewDualVolumeDriver(b, parallel.Serial{}, Options{}, "block_1")
	require.NoError(t, err)
	grad, err := NewNodalGradDriver(b, parallel.Serial{}, Options{NumWorkers: 3}, NodalGradSpec{
		Scalar: "q", Gradient: "dqdx", Shifted: shifted,
		ElemParts: []string{"block_1"}, FaceParts: faces,
	})
	require.NoError(t, err)
	runDrivers(t, dv, grad)
	return fieldValues(t, b, "dqdx")
}

func TestNodalGradDriver_LinearFieldExact(t *testing.T) {
	tests := []struct {
		name    string
		newMesh func() (*mesh.Bulk, error)
		faces   []string
	}{
		{"quad", func() (*mesh.Bulk, error) { return mesh.NewQuadMesh(3, 4, 1.5, 2) }, sides},
		{"tri", func() (*mesh.Bulk, error) { return mesh.NewTriMesh(3, 3, 1, 1) }, []string{"boundary"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.newMesh()
			require.NoError(t, err)
			linearField(t, b)
			_, err = NewNodalGradDriver(b, parallel.Serial{}, Options{}, NodalGradSpec{
				Scalar: "missing", Gradient: "dqdx", ElemParts: []string{"block_1"},
			})
			assert.ErrorIs(t, err, field.ErrFieldNotFound)

			g := newNodalGrad(t, b, false, tt.faces...)
			for n := 0; n < b.NumNodes; n++ {
				assert.InDeltaSlice(t, []float64{2, 3}, g[2*n:2*n+2], 1e-12,
					"node %d at %v", n, b.Coordinates(n))
			}
		})
	}
}

// The shifted integration points sit on the element edges; on a uniform
// grid the offsets cancel around interior nodes
func TestNodalGradDriver_ShiftedInterior(t *testing.T) {
	b, err := mesh.NewQuadMesh(4, 4, 2, 1)
	require.NoError(t, err)
	linearField(t, b)
	g := newNodalGrad(t, b, true, sides...)
	interior := 0
	for n := 0; n < b.NumNodes; n++ {
		x := b.Coordinates(n)
		if x[0] == 0 || x[0] == 2 || x[1] == 0 || x[1] == 1 {
			continue
		}
		interior++
		assert.InDeltaSlice(t, []float64{2, 3}, g[2*n:2*n+2], 1e-12, "node %d at %v", n, x)
	}
	assert.Equal(t, 9, interior)
}

func TestNodalGradDriver_NeedsDualVolume(t *testing.T) {
	b, err := mesh.NewQuadMesh(1, 1, 1, 1)
	require.NoError(t, err)
	linearField(t, b)
	_, err = NewNodalGradDriver(b, parallel.Serial{}, Options{}, NodalGradSpec{
		Scalar: "q", Gradient: "dqdx", ElemParts: []string{"block_1"},
	})
	assert.ErrorIs(t, err, field.ErrFieldNotFound)
}

// A decomposed mesh must reproduce the serial nodal fields at every copy of
// every node
func TestNodalGradDriver_SerialVersusDecomposed(t *testing.T) {
	serial, err := mesh.NewQuadMesh(4, 3, 2, 1)
	require.NoError(t, err)
	// a nonlinear field so that the interior sums are not trivially exact
	quadratic := func(b *mesh.Bulk) {
		declare(t, b, "q", 1, 1, func(x []float64, _ field.State, _ int) float64 {
			return x[0]*x[0] + x[0]*x[1]
		})
	}
	quadratic(serial)
	spec := NodalGradSpec{Scalar: "q", Gradient: "dqdx", ElemParts: []string{"block_1"}, FaceParts: sides}
	dv, err := NewDualVolumeDriver(serial, parallel.Serial{}, Options{}, "block_1")
	require.NoError(t, err)
	grad, err := NewNodalGradDriver(serial, parallel.Serial{}, Options{}, spec)
	require.NoError(t, err)
	runDrivers(t, dv, grad)
	wantVol := fieldValues(t, serial, kernel.DualVolumeName)
	wantGrad := fieldValues(t, serial, "dqdx")

	eToP := make([]int, len(serial.Elements))
	for k := range eToP {
		eToP[k] = k % 3
	}
	locals, err := mesh.Decompose(serial, eToP)
	require.NoError(t, err)
	group, err := parallel.NewLocalGroup(locals)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, len(locals))
	for p, lb := range locals {
		quadratic(lb)
		wg.Add(1)
		go func(p int, lb *mesh.Bulk) {
			defer wg.Done()
			comm := group.Comm(p)
			ti := timeint.BackwardEuler(1)
			dv, err := NewDualVolumeDriver(lb, comm, Options{NumWorkers: 2}, "block_1")
			if err != nil {
				errs[p] = err
				return
			}
			grad, err := NewNodalGradDriver(lb, comm, Options{NumWorkers: 2}, spec)
			if err != nil {
				errs[p] = err
				return
			}
			for _, d := range []Driver{dv, grad} {
				if err := d.Setup(ti); err != nil {
					errs[p] = err
					return
				}
				if err := d.Execute(); err != nil {
					errs[p] = err
					return
				}
			}
		}(p, lb)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	for _, lb := range locals {
		vol := fieldValues(t, lb, kernel.DualVolumeName)
		g := fieldValues(t, lb, "dqdx")
		for l := 0; l < lb.NumNodes; l++ {
			n := int(lb.GlobalIDs[l])
			assert.InDelta(t, wantVol[n], vol[l], 1e-14, "rank %d node %d", lb.Rank, n)
			assert.InDeltaSlice(t, wantGrad[2*n:2*n+2], g[2*l:2*l+2], 1e-12, "rank %d node %d", lb.Rank, n)
		}
	}
}
