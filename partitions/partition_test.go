package partitions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridConnectivity returns the quad connectivity of an nx by ny grid
func gridConnectivity(nx, ny int) [][]int {
	node := func(i, j int) int { return i + j*(nx+1) }
	var conn [][]int
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			conn = append(conn, []int{node(i, j), node(i+1, j), node(i+1, j+1), node(i, j+1)})
		}
	}
	return conn
}

func TestPartitionBuilder_Strategies(t *testing.T) {
	conn := gridConnectivity(5, 3)
	for _, strategy := range []PartitionStrategy{BlockPartition, RoundRobin, GraphPartition} {
		pb := &PartitionBuilder{
			Mesh:                &MeshConnectivity{NumEntities: len(conn), EntityNodes: conn},
			TargetPartitionSize: 4,
			Strategy:            strategy,
		}
		layout, err := pb.BuildPartitions()
		if err != nil {
			t.Fatalf("strategy %d: %v", strategy, err)
		}
		if layout.NumPartitions != 4 {
			t.Errorf("strategy %d: expected 4 partitions, got %d", strategy, layout.NumPartitions)
		}
		if layout.KpartMax != 4 {
			t.Errorf("strategy %d: expected KpartMax=4, got %d", strategy, layout.KpartMax)
		}
		stats := layout.PartitionStatistics()
		if stats.MinEntities != 3 || stats.MaxEntities != 4 {
			t.Errorf("strategy %d: unbalanced %+v", strategy, stats)
		}
		total := 0
		for _, k := range layout.K() {
			total += k
		}
		if total != 15 {
			t.Errorf("strategy %d: partitions hold %d entities", strategy, total)
		}
	}
}

func TestPartitionBuilder_Block(t *testing.T) {
	pb := &PartitionBuilder{
		Mesh:          &MeshConnectivity{NumEntities: 7, EntityNodes: make([][]int, 7)},
		NumPartitions: 3,
	}
	layout, err := pb.BuildPartitions()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 2, 2}, layout.EToP)
	assert.Equal(t, []int{3, 4}, layout.Partitions[1].Entities)
	assert.Equal(t, 1, layout.GetPartition(3))
	assert.Equal(t, -1, layout.GetPartition(7))

	_, err = (&PartitionBuilder{Mesh: &MeshConnectivity{NumEntities: 2}}).BuildPartitions()
	assert.Error(t, err)
}

func TestValidateLayout(t *testing.T) {
	layout := &PartitionLayout{
		Partitions: []Partition{
			{ID: 0, Entities: []int{0, 1}, NumEntities: 2, MaxEntities: 2},
			{ID: 1, Entities: []int{2}, NumEntities: 1, MaxEntities: 3},
		},
		KpartMax:      2,
		TotalEntities: 3,
		NumPartitions: 2,
		EToP:          []int{0, 0, 1},
	}
	if err := layout.ValidateLayout(); err == nil {
		t.Error("expected MaxEntities mismatch")
	}
	layout.Partitions[1].MaxEntities = 2
	if err := layout.ValidateLayout(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	layout.EToP[2] = 0
	if err := layout.ValidateLayout(); err == nil {
		t.Error("expected EToP mismatch")
	}
}

func TestColorEntities(t *testing.T) {
	conn := gridConnectivity(4, 4)
	for _, method := range []ColoringMethod{FirstFit, WelshPowell, Dsatur} {
		col, err := ColorEntities(conn, method)
		require.NoError(t, err)
		require.NoError(t, col.Validate(conn))
		// every quad touches its 8 neighbors, so at least 4 colors
		assert.GreaterOrEqual(t, col.NumColors, 4)
		seen := 0
		for _, grp := range col.Groups {
			assert.IsIncreasing(t, grp)
			seen += len(grp)
		}
		assert.Equal(t, len(conn), seen)
	}

	// first fit is a pure function of the connectivity
	a, _ := ColorEntities(conn, FirstFit)
	b, _ := ColorEntities(conn, FirstFit)
	assert.Equal(t, a.Colors, b.Colors)
	assert.Equal(t, 4, a.NumColors)

	// disjoint entities need one color
	col, err := ColorEntities([][]int{{0, 1}, {2, 3}, {4, 5}}, FirstFit)
	require.NoError(t, err)
	assert.Equal(t, 1, col.NumColors)

	bad := &Coloring{NumColors: 1, Groups: [][]int{{0, 1}}}
	assert.Error(t, bad.Validate([][]int{{0, 1}, {1, 2}}))
}

func TestParseColoringMethod(t *testing.T) {
	tests := map[string]ColoringMethod{
		"":             FirstFit,
		"first_fit":    FirstFit,
		"welsh_powell": WelshPowell,
		"DSATUR":       Dsatur,
	}
	for name, want := range tests {
		m, err := ParseColoringMethod(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, m, name)
	}
	assert.Equal(t, "welsh_powell", WelshPowell.String())
	_, err := ParseColoringMethod("rainbow")
	assert.ErrorIs(t, err, ErrUnknownColoring)
}

func TestPartitionedArray_PackUnpack(t *testing.T) {
	pb := &PartitionBuilder{
		Mesh:          &MeshConnectivity{NumEntities: 5, EntityNodes: make([][]int, 5)},
		NumPartitions: 2,
		Strategy:      RoundRobin,
	}
	layout, err := pb.BuildPartitions()
	require.NoError(t, err)

	pa := AllocatePartitionedArray(layout, 2)
	assert.Len(t, pa.GlobalData, 2*3*2)
	assert.Equal(t, []int64{0, 6, 12}, pa.Offsets)

	src := []float64{0, 0.5, 1, 1.5, 2, 2.5, 3, 3.5, 4, 4.5}
	pa.Pack(layout, src)
	// partition 0 holds entities 0, 2, 4
	assert.Equal(t, []float64{0, 0.5, 2, 2.5, 4, 4.5}, pa.GetPartitionData(0))
	// partition 1 holds 1, 3 and one padding slot
	assert.Equal(t, []float64{1, 1.5, 3, 3.5, 0, 0}, pa.GetPartitionData(1))
	assert.Nil(t, pa.GetPartitionData(2))

	dst := make([]float64, len(src))
	pa.Unpack(layout, dst)
	assert.Equal(t, src, dst)
}
