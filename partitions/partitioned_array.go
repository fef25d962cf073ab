package partitions

// PartitionedArray stores per-entity data in partition order, padded so every
// partition occupies KpartMax*Stride values:
//
//	[Partition 0 Data][Partition 1 Data]...[Partition N-1 Data]
//
// A device kernel reads entity e of partition p at Offsets[p] + e*Stride.
type PartitionedArray struct {
	GlobalData []float64
	Offsets    []int64
	Stride     int
}

// AllocatePartitionedArray creates zeroed storage for a layout
func AllocatePartitionedArray(layout *PartitionLayout, stride int) *PartitionedArray {
	pa := &PartitionedArray{
		GlobalData: make([]float64, layout.NumPartitions*layout.KpartMax*stride),
		Offsets:    make([]int64, layout.NumPartitions+1),
		Stride:     stride,
	}
	for p := 0; p <= layout.NumPartitions; p++ {
		pa.Offsets[p] = int64(p * layout.KpartMax * stride)
	}
	return pa
}

// GetPartitionData returns a slice for partition p's data
func (pa *PartitionedArray) GetPartitionData(partitionID int) []float64 {
	if partitionID < 0 || partitionID >= len(pa.Offsets)-1 {
		return nil
	}
	return pa.GlobalData[pa.Offsets[partitionID]:pa.Offsets[partitionID+1]]
}

// Pack copies entity-ordered values (global entity k at src[k*Stride]) into
// partition order
func (pa *PartitionedArray) Pack(layout *PartitionLayout, src []float64) {
	for _, p := range layout.Partitions {
		dst := pa.GetPartitionData(p.ID)
		for local, k := range p.Entities {
			copy(dst[local*pa.Stride:(local+1)*pa.Stride], src[k*pa.Stride:(k+1)*pa.Stride])
		}
	}
}

// Unpack is the inverse of Pack
func (pa *PartitionedArray) Unpack(layout *PartitionLayout, dst []float64) {
	for _, p := range layout.Partitions {
		src := pa.GetPartitionData(p.ID)
		for local, k := range p.Entities {
			copy(dst[k*pa.Stride:(k+1)*pa.Stride], src[local*pa.Stride:(local+1)*pa.Stride])
		}
	}
}
