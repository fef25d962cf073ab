package equation

import (
	"context"
	"testing"

	"github.com/notargets/CVFEMKernel/algorithm"
	"github.com/notargets/CVFEMKernel/field"
	"github.com/notargets/CVFEMKernel/kernel"
	"github.com/notargets/CVFEMKernel/linsys"
	"github.com/notargets/CVFEMKernel/mesh"
	"github.com/notargets/CVFEMKernel/parallel"
	"github.com/notargets/CVFEMKernel/timeint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func declare(t *testing.T, b *mesh.Bulk, name string, states int, v func(x []float64) float64) {
	t.Helper()
	reg := b.Fields()
	fld, err := reg.Declare(name, field.NodeRank, 1, states)
	require.NoError(t, err)
	for s := field.State(0); int(s) < states; s++ {
		data := reg.Data(fld.Ordinal(s))
		for n := range data {
			data[n] = v(b.Coordinates(n))
		}
	}
}

// heat builds a transient conduction equation for "T": lumped nodal mass,
// diffusion and a constant boundary flux
func heat(t *testing.T) (*mesh.Bulk, *System) {
	t.Helper()
	b, err := mesh.NewQuadMesh(3, 3, 1, 1)
	require.NoError(t, err)
	declare(t, b, "T", 2, func(x []float64) float64 { return x[0] * x[1] })
	declare(t, b, kernel.DensityName, 1, func([]float64) float64 { return 2 })
	declare(t, b, kernel.DiffFluxCoeffName, 1, func([]float64) float64 { return 0.1 })
	declare(t, b, kernel.ScalarFluxName, 1, func([]float64) float64 { return 1 })

	var conn [][]int
	for _, e := range b.Elements {
		conn = append(conn, e.Nodes)
	}
	sys := linsys.NewSystem(b.NumNodes, 1, conn)
	eq := NewSystem("T", b.Fields(), sys, nil)
	opts := algorithm.Options{NumWorkers: 2}
	kreg := kernel.NewRegistry()
	ctx := kernel.BuildContext{Equation: "T"}

	dv, err := algorithm.NewDualVolumeDriver(b, parallel.Serial{}, opts, "block_1")
	require.NoError(t, err)
	eq.AddFieldDriver(dv)

	mass, err := algorithm.NewNodeAlgorithm("T mass", b, sys, opts, "block_1")
	require.NoError(t, err)
	require.NoError(t, mass.AddKernels(kreg, ctx, kernel.ScalarMassNode))
	eq.AddAssembly(mass)

	diff, err := algorithm.NewElemAlgorithm("T diffusion", b, sys, opts, "block_1")
	require.NoError(t, err)
	require.NoError(t, diff.AddKernels(kreg, ctx, kernel.ScalarDiffusion))
	eq.AddAssembly(diff)

	flux, err := algorithm.NewFaceAlgorithm("T flux", b, sys, opts, "bottom", "right", "top", "left")
	require.NoError(t, err)
	require.NoError(t, flux.AddKernels(kreg, ctx, kernel.ScalarFluxBC))
	eq.AddAssembly(flux)
	return b, eq
}

func TestSystem_Setup(t *testing.T) {
	b, err := mesh.NewQuadMesh(1, 1, 1, 1)
	require.NoError(t, err)
	empty := NewSystem("T", b.Fields(), linsys.NewSystem(b.NumNodes, 1), nil)
	assert.ErrorIs(t, empty.Setup(timeint.BackwardEuler(1)), ErrNoDrivers)

	_, eq := heat(t)
	assert.ErrorIs(t, eq.Setup(timeint.Coefficients{Dt: -1, G1: 1, G2: -1}), timeint.ErrInvalidCoefficients)
	_, err = eq.SolveIteration(context.Background())
	assert.ErrorIs(t, err, algorithm.ErrNotSetUp)

	require.NoError(t, eq.Setup(timeint.BackwardEuler(0.1)))
	for _, d := range eq.Drivers() {
		assert.Equal(t, algorithm.SetUp, d.State(), d.Name())
	}
	assert.Equal(t, "dual nodal volume", eq.Drivers()[0].Name())
}

func TestSystem_Requirements(t *testing.T) {
	_, eq := heat(t)
	gathered := map[string][]string{}
	for _, r := range eq.Requirements() {
		gathered[r.Driver] = append(gathered[r.Driver], r.Field)
	}
	assert.Contains(t, gathered["T diffusion"], "T")
	assert.Contains(t, gathered["T diffusion"], kernel.DiffFluxCoeffName)
	assert.Contains(t, gathered["T diffusion"], mesh.CoordinatesName)
	assert.Contains(t, gathered["T flux"], kernel.ScalarFluxName)
	assert.NotContains(t, gathered, "T mass", "node algorithms gather nothing")
}

func TestSystem_SolveIteration(t *testing.T) {
	b, eq := heat(t)
	require.NoError(t, eq.Setup(timeint.BackwardEuler(0.1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := eq.SolveIteration(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	first, err := eq.SolveIteration(context.Background())
	require.NoError(t, err)
	assert.Greater(t, first, 0.0)
	again, err := eq.SolveIteration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, again, "each iteration starts from a zeroed system")

	// every term is linear in T, so one Newton update converges
	delta, err := eq.LinSys.Solve()
	require.NoError(t, err)
	require.NoError(t, eq.Update(delta.RawVector().Data, 1))
	assert.Error(t, eq.Update(delta.RawVector().Data[1:], 1))
	converged, err := eq.SolveIteration(context.Background())
	require.NoError(t, err)
	assert.Less(t, converged, 1e-10*first)

	// the boundary heat input equals the stored energy gain
	ord, err := b.Fields().Resolve("T", field.StateNP1)
	require.NoError(t, err)
	old, err := b.Fields().Resolve("T", field.StateN)
	require.NoError(t, err)
	dual, err := b.Fields().Resolve(kernel.DualVolumeName, field.StateNP1)
	require.NoError(t, err)
	var stored float64
	tNew, tOld, vol := b.Fields().Data(ord), b.Fields().Data(old), b.Fields().Data(dual)
	for n := range tNew {
		stored += 2 * (tNew[n] - tOld[n]) * vol[n] / 0.1
	}
	assert.InDelta(t, 4, stored, 1e-9)

	eq.EndStep()
	for _, d := range eq.Drivers() {
		assert.Equal(t, algorithm.Idle, d.State())
	}
}
