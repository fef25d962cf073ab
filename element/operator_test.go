package element

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestGetRefMatrices(t *testing.T) {
	me, err := GetVolumeMasterElement(TopoTri3)
	require.NoError(t, err)
	mats := GetRefMatrices(me)
	assert.Len(t, mats, 3)
	for _, name := range []string{"ScvShape_Tri3", "ScvShiftedShape_Tri3", "ScsShape_Tri3"} {
		m, ok := mats[name]
		require.True(t, ok, name)
		r, c := m.Dims()
		assert.Equal(t, 3, c, name)
		assert.Equal(t, 3, r, name)
	}
	assert.Equal(t, "ScvShiftedShape_Tri3", ScvShapeName(me, true))
}

func TestFormatStaticMatrix(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 0.5, -2, 1. / 3.})
	src := FormatStaticMatrix("A", m, FLOAT64)
	assert.Equal(t, "const double A[2][2] = {\n"+
		"  {1.0, 0.5}, // ip 0\n"+
		"  {-2.0, 0.3333333333333333} // ip 1\n"+
		"};\n\n", src)

	src = FormatStaticMatrix("B", m, FLOAT32)
	assert.Contains(t, src, "const float B[2][2]")
	assert.Contains(t, src, "{1.0f, 0.5f},")
	assert.Contains(t, src, "0.33333334f")
}

func TestFloatType_Literal(t *testing.T) {
	tests := []struct {
		v    float64
		ft   FloatType
		want string
	}{
		{0, FLOAT64, "0.0"},
		{0.5625, FLOAT64, "0.5625"},
		{1e-20, FLOAT64, "1e-20"},
		{3, FLOAT32, "3.0f"},
		{0.1, FLOAT32, "0.1f"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(tt.ft.Literal(nil, tt.v)))
	}
	// literals read back exactly
	for _, v := range []float64{1. / 3., 9. / 16., -7. / 12., math.Pi} {
		got, err := strconv.ParseFloat(string(FLOAT64.Literal(nil, v)), 64)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}
