package builder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestNewBuilder(t *testing.T) {
	kb := NewBuilder(Config{K: []int{3, 7, 5}})
	assert.Equal(t, 3, kb.NumPartitions)
	assert.Equal(t, 7, kb.KpartMax)
	assert.Equal(t, 15, kb.GetTotalElements())
	assert.Equal(t, Float64, kb.FloatType)
	assert.Equal(t, 8, kb.GetIntSize())

	assert.Panics(t, func() { NewBuilder(Config{}) })
}

func TestGeneratePreamble(t *testing.T) {
	kb := NewBuilder(Config{K: []int{4, 4}, IntType: INT32})
	kb.AddStaticMatrix("Shape", mat.NewDense(2, 2, []float64{1, 0, 0.25, 0.75}))
	kb.AddStaticIndices("IpNodeMap", []int{0, 1})
	kb.AddArray("in")
	kb.AddArray("in")
	kb.AddArray("out")

	preamble := kb.GeneratePreamble()
	for _, want := range []string{
		"typedef double real_t;",
		"typedef int int_t;",
		"#define NPART 2",
		"#define KpartMax 4",
		"const double Shape[2][2]",
		"const int IpNodeMap[2] = {0, 1};",
		"#define in_PART(part) (in_global + in_offsets[part])",
		"#define out_PART(part)",
	} {
		assert.Contains(t, preamble, want)
	}
	assert.Equal(t, 1, strings.Count(preamble, "#define in_PART"))
	assert.Equal(t, preamble, kb.KernelPreamble)
}

func TestGenerateKernelTemplate(t *testing.T) {
	kb := NewBuilder(Config{K: []int{2}})
	src := kb.GenerateKernelTemplate("scale", "out[elem] = a*in[elem];",
		Input("in"), Output("out"), Scalar("a"))

	sig := kb.GenerateKernelSignature(Input("in"), Output("out"), Scalar("a"))
	assert.Equal(t, "const int_t* K,\n\tconst real_t* in_global,\n\tconst int_t* in_offsets,\n\t"+
		"real_t* out_global,\n\tconst int_t* out_offsets,\n\tconst real_t a", sig)
	assert.Contains(t, src, "@kernel void scale(")
	assert.Contains(t, src, "const real_t* in = in_PART(part);")
	assert.Contains(t, src, "real_t* out = out_PART(part);")
	assert.Contains(t, src, "if (elem < K[part]) {")
	assert.Contains(t, src, "out[elem] = a*in[elem];")
	assert.Less(t, strings.Index(src, "@outer"), strings.Index(src, "@inner"))
}
