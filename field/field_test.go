package field

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_DeclareResolve(t *testing.T) {
	reg := NewRegistry(4, 2, 3)

	q, err := reg.Declare("temperature", NodeRank, 1, 3)
	require.NoError(t, err)
	rho, err := reg.Declare("density", NodeRank, 1, 2)
	require.NoError(t, err)
	_, err = reg.Declare("exposed_area_vector", FaceRank, 4, 1)
	require.NoError(t, err)

	t.Run("DistinctStates", func(t *testing.T) {
		np1, _ := reg.Resolve("temperature", StateNP1)
		n, _ := reg.Resolve("temperature", StateN)
		nm1, _ := reg.Resolve("temperature", StateNM1)
		assert.NotEqual(t, np1, n)
		assert.NotEqual(t, n, nm1)
		assert.Equal(t, q.Ordinal(StateNM1), nm1)
	})

	t.Run("TwoStatesAliasNM1", func(t *testing.T) {
		n, _ := reg.Resolve("density", StateN)
		nm1, _ := reg.Resolve("density", StateNM1)
		assert.Equal(t, n, nm1)
		assert.Equal(t, rho.Ordinal(StateN), nm1)
	})

	t.Run("Missing", func(t *testing.T) {
		ord, err := reg.Resolve("viscosity", StateNP1)
		assert.True(t, errors.Is(err, ErrFieldNotFound))
		assert.Equal(t, InvalidOrdinal, ord)
		_, err = reg.ResolveRank("exposed_area_vector", NodeRank, StateNP1)
		assert.ErrorIs(t, err, ErrFieldNotFound)
	})

	t.Run("Sizes", func(t *testing.T) {
		ord, _ := reg.Resolve("exposed_area_vector", StateNP1)
		assert.Len(t, reg.Data(ord), 8)
		assert.Equal(t, 4, reg.Components(ord))
		assert.Equal(t, FaceRank, reg.RankOf(ord))
		name, st := reg.Name(ord)
		assert.Equal(t, "exposed_area_vector", name)
		assert.Equal(t, StateNP1, st)
	})

	t.Run("Redeclare", func(t *testing.T) {
		again, err := reg.Declare("temperature", NodeRank, 1, 3)
		require.NoError(t, err)
		assert.Same(t, q, again)
		_, err = reg.Declare("temperature", NodeRank, 2, 3)
		assert.Error(t, err)
	})

	assert.Equal(t, []string{"density", "exposed_area_vector", "temperature"}, reg.Names())
	assert.Equal(t, 6, reg.NumOrdinals())
}

func TestRegistry_AdvanceStates(t *testing.T) {
	reg := NewRegistry(2, 0, 0)
	q, _ := reg.Declare("q", NodeRank, 1, 3)
	u, _ := reg.Declare("u", NodeRank, 2, 2)

	reg.Fill(q.Ordinal(StateNM1), 1)
	reg.Fill(q.Ordinal(StateN), 2)
	reg.Fill(q.Ordinal(StateNP1), 3)
	reg.Write(u.Ordinal(StateN), 1, 1, 5)
	reg.Write(u.Ordinal(StateNP1), 1, 1, 7)

	reg.AdvanceStates()

	assert.Equal(t, []float64{2, 2}, reg.Data(q.Ordinal(StateNM1)))
	assert.Equal(t, []float64{3, 3}, reg.Data(q.Ordinal(StateN)))
	assert.Equal(t, []float64{3, 3}, reg.Data(q.Ordinal(StateNP1)))
	assert.Equal(t, 7.0, reg.Read(u.Ordinal(StateN), 1, 1))
	assert.Equal(t, 7.0, reg.Read(u.Ordinal(StateNP1), 1, 1))
	assert.Equal(t, []float64{0, 7}, reg.Entity(u.Ordinal(StateNP1), 1))

	// the seeded N+1 is a copy, not shared storage
	reg.Write(q.Ordinal(StateNP1), 0, 0, 9)
	assert.Equal(t, 3.0, reg.Read(q.Ordinal(StateN), 0, 0))
}
