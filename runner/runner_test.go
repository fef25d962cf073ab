package runner

import (
	"testing"

	"github.com/notargets/CVFEMKernel/element"
	"github.com/notargets/CVFEMKernel/partitions"
	"github.com/notargets/CVFEMKernel/runner/builder"
	"github.com/notargets/CVFEMKernel/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockLayout(t *testing.T, n, size int) *partitions.PartitionLayout {
	t.Helper()
	conn := make([][]int, n)
	for i := range conn {
		conn[i] = []int{i, i + 1}
	}
	pb := &partitions.PartitionBuilder{
		Mesh:                &partitions.MeshConnectivity{NumEntities: n, EntityNodes: conn},
		TargetPartitionSize: size,
		Strategy:            partitions.BlockPartition,
	}
	layout, err := pb.BuildPartitions()
	require.NoError(t, err)
	return layout
}

func TestNewRunner(t *testing.T) {
	t.Run("NilDevice", func(t *testing.T) {
		assert.Panics(t, func() { NewRunner(nil, builder.Config{K: []int{10}}) })
	})

	device := utils.CreateTestDevice()
	defer device.Free()

	t.Run("EmptyKArray", func(t *testing.T) {
		assert.Panics(t, func() { NewRunner(device, builder.Config{}) })
	})

	kr := NewRunner(device, builder.Config{K: []int{3, 5}})
	defer kr.Free()
	assert.Equal(t, 2, kr.NumPartitions)
	assert.Equal(t, 5, kr.KpartMax)
	assert.NotNil(t, kr.PooledMemory["K"])
}

func TestRunner_ScaleKernel(t *testing.T) {
	device := utils.CreateTestDevice()
	defer device.Free()

	const n, stride = 10, 2
	layout := blockLayout(t, n, 4)
	kr := NewRunner(device, builder.Config{K: layout.K()})
	defer kr.Free()

	in := partitions.AllocatePartitionedArray(layout, stride)
	out := partitions.AllocatePartitionedArray(layout, stride)
	host := make([]float64, n*stride)
	for i := range host {
		host[i] = float64(i)
	}
	in.Pack(layout, host)

	require.NoError(t, kr.AllocateArray("in", in))
	require.NoError(t, kr.AllocateArray("out", out))
	assert.Error(t, kr.AllocateArray("in", in))
	require.NoError(t, kr.CopyToDevice("in", in))

	src := kr.GenerateKernelTemplate("scale",
		"for (int c = 0; c < 2; ++c) out[elem*2 + c] = a*in[elem*2 + c];",
		builder.Input("in"), builder.Output("out"), builder.Scalar("a"))
	_, err := kr.BuildKernel(src, "scale")
	require.NoError(t, err)
	require.NoError(t, kr.RunKernel("scale", "in", "out", 3.0))
	require.NoError(t, kr.CopyFromDevice("out", out))

	got := make([]float64, n*stride)
	out.Unpack(layout, got)
	for i, v := range got {
		assert.InDelta(t, 3*float64(i), v, 1e-14)
	}

	assert.Error(t, kr.RunKernel("missing"))
	assert.Error(t, kr.RunKernel("scale", "nope", "out", 3.0))
	assert.Error(t, kr.CopyToDevice("nope", in))
}

func TestRunner_MassKernelSource(t *testing.T) {
	device := utils.CreateTestDevice()
	defer device.Free()

	me, err := element.GetVolumeMasterElement(element.TopoQuad4)
	require.NoError(t, err)
	kr := NewRunner(device, builder.Config{K: []int{1}})
	defer kr.Free()
	kr.AddMassTables(me, true)

	src := kr.MassKernelSource(4)
	assert.Contains(t, src, "@kernel void "+MassKernelName)
	assert.Contains(t, src, "const real_t* e = massIn + elem*28;")
	assert.Contains(t, src, "real_t* lhs = massOut + elem*20;")
	assert.Contains(t, src, "ScvShiftedShape_Quad4[ip][ic]")
	preamble := kr.GeneratePreamble()
	assert.Contains(t, preamble, "const int IpNodeMap[4] = {0, 1, 2, 3};")
	assert.Contains(t, preamble, "const double ScsShape_Quad4[4][4]")
	assert.Equal(t, 28, MassInputStride(4))
	assert.Equal(t, 20, MassOutputStride(4))
}
