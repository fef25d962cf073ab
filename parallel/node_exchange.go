package parallel

import (
	"fmt"
	"sort"
)

// NodeExchange manages pick and place indices for nodes shared between
// partitions. Partition p sends the values at PickIndices[p][q] to q, which
// adds them at PlaceIndices[q][p]; both lists are ordered by global node id.
type NodeExchange struct {
	NumPartitions int

	PickIndices  [][]PickBuffer  // [sourcePartition][targetPartition]
	PlaceIndices [][]PlaceBuffer // [targetPartition][sourcePartition]

	// SharedNodes lists, per partition, the local nodes with copies elsewhere
	SharedNodes [][]int
}

// PickBuffer contains the local nodes whose values are sent
type PickBuffer struct {
	Indices         []int
	TargetPartition int
}

// PlaceBuffer contains the local nodes receiving values
type PlaceBuffer struct {
	Indices         []int
	SourcePartition int
}

// NewNodeExchange matches nodes across partitions by global id.
// globalIDs[p][local] is the global id of local node 'local' on partition p.
func NewNodeExchange(globalIDs [][]int64) (*NodeExchange, error) {
	np := len(globalIDs)
	if np == 0 {
		return nil, fmt.Errorf("node exchange needs at least one partition")
	}
	lookup := make([]map[int64]int, np)
	for p, ids := range globalIDs {
		lookup[p] = make(map[int64]int, len(ids))
		for local, g := range ids {
			if _, dup := lookup[p][g]; dup {
				return nil, fmt.Errorf("partition %d: global id %d appears twice", p, g)
			}
			lookup[p][g] = local
		}
	}

	ne := &NodeExchange{
		NumPartitions: np,
		PickIndices:   make([][]PickBuffer, np),
		PlaceIndices:  make([][]PlaceBuffer, np),
		SharedNodes:   make([][]int, np),
	}
	for p := 0; p < np; p++ {
		ne.PickIndices[p] = make([]PickBuffer, np)
		ne.PlaceIndices[p] = make([]PlaceBuffer, np)
		for q := 0; q < np; q++ {
			ne.PickIndices[p][q].TargetPartition = q
			ne.PlaceIndices[p][q].SourcePartition = q
		}
	}

	for p := 0; p < np; p++ {
		shared := make(map[int]bool)
		for q := 0; q < np; q++ {
			if q == p {
				continue
			}
			var common []int64
			for g := range lookup[p] {
				if _, ok := lookup[q][g]; ok {
					common = append(common, g)
				}
			}
			sort.Slice(common, func(i, j int) bool { return common[i] < common[j] })
			for _, g := range common {
				ne.PickIndices[p][q].Indices = append(ne.PickIndices[p][q].Indices, lookup[p][g])
				ne.PlaceIndices[q][p].Indices = append(ne.PlaceIndices[q][p].Indices, lookup[q][g])
				shared[lookup[p][g]] = true
			}
		}
		for n := range shared {
			ne.SharedNodes[p] = append(ne.SharedNodes[p], n)
		}
		sort.Ints(ne.SharedNodes[p])
	}
	return ne, ne.Verify()
}

// GetPickIndices returns pick indices for sending from source to target
func (ne *NodeExchange) GetPickIndices(sourcePartition, targetPartition int) []int {
	if sourcePartition < 0 || sourcePartition >= ne.NumPartitions ||
		targetPartition < 0 || targetPartition >= ne.NumPartitions {
		return nil
	}
	return ne.PickIndices[sourcePartition][targetPartition].Indices
}

// GetPlaceIndices returns place indices for target receiving from source
func (ne *NodeExchange) GetPlaceIndices(targetPartition, sourcePartition int) []int {
	if targetPartition < 0 || targetPartition >= ne.NumPartitions ||
		sourcePartition < 0 || sourcePartition >= ne.NumPartitions {
		return nil
	}
	return ne.PlaceIndices[targetPartition][sourcePartition].Indices
}

// Verify checks that pick and place lists correspond
func (ne *NodeExchange) Verify() error {
	for p := 0; p < ne.NumPartitions; p++ {
		if n := len(ne.PickIndices[p][p].Indices); n != 0 {
			return fmt.Errorf("partition %d picks %d nodes for itself", p, n)
		}
		for q := 0; q < ne.NumPartitions; q++ {
			pickLen := len(ne.PickIndices[p][q].Indices)
			placeLen := len(ne.PlaceIndices[q][p].Indices)
			if pickLen != placeLen {
				return fmt.Errorf("length mismatch: pick[%d][%d]=%d, place[%d][%d]=%d",
					p, q, pickLen, q, p, placeLen)
			}
			// sharing is symmetric
			if back := len(ne.PickIndices[q][p].Indices); back != pickLen {
				return fmt.Errorf("asymmetric sharing between %d and %d: %d vs %d", p, q, pickLen, back)
			}
		}
	}
	return nil
}
