package partitions

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// PartitionBuilder constructs partitions from mesh connectivity
type PartitionBuilder struct {
	Mesh *MeshConnectivity

	TargetPartitionSize int // desired entities per partition
	NumPartitions       int // overrides TargetPartitionSize when > 0
	Strategy            PartitionStrategy
}

// MeshConnectivity provides the topology needed for partitioning: the nodes
// of every entity. Entities sharing a node are neighbors.
type MeshConnectivity struct {
	NumEntities int
	EntityNodes [][]int
}

// PartitionStrategy defines how entities are grouped
type PartitionStrategy int

const (
	BlockPartition PartitionStrategy = iota // consecutive entities
	RoundRobin                              // distribute cyclically
	GraphPartition                          // breadth-first growth over the node adjacency graph
)

// BuildPartitions creates a partition layout from mesh connectivity
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.Mesh == nil || pb.Mesh.NumEntities != len(pb.Mesh.EntityNodes) {
		return nil, fmt.Errorf("partition builder needs connectivity for every entity")
	}
	numPartitions := pb.calculateNumPartitions()

	eToP := pb.partitionEntities(numPartitions)

	partitions := pb.createPartitions(eToP, numPartitions)

	kpartMax := calculateKpartMax(partitions)
	for i := range partitions {
		partitions[i].MaxEntities = kpartMax
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      kpartMax,
		TotalEntities: pb.Mesh.NumEntities,
		NumPartitions: numPartitions,
		EToP:          eToP,
	}

	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}

	return layout, nil
}

// calculateNumPartitions determines the partition count
func (pb *PartitionBuilder) calculateNumPartitions() int {
	numPartitions := pb.NumPartitions
	if numPartitions <= 0 && pb.TargetPartitionSize > 0 {
		numPartitions = int(math.Ceil(float64(pb.Mesh.NumEntities) / float64(pb.TargetPartitionSize)))
	}
	if numPartitions > pb.Mesh.NumEntities {
		numPartitions = pb.Mesh.NumEntities
	}
	if numPartitions < 1 {
		numPartitions = 1
	}
	return numPartitions
}

// partitionEntities assigns entities to partitions
func (pb *PartitionBuilder) partitionEntities(numPartitions int) []int {
	n := pb.Mesh.NumEntities
	switch pb.Strategy {
	case RoundRobin:
		eToP := make([]int, n)
		for i := 0; i < n; i++ {
			eToP[i] = i % numPartitions
		}
		return eToP

	case GraphPartition:
		return blockSplit(breadthFirstOrder(pb.Mesh.EntityNodes), numPartitions)

	default:
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		return blockSplit(order, numPartitions)
	}
}

// blockSplit cuts an entity ordering into numPartitions nearly equal runs
func blockSplit(order []int, numPartitions int) []int {
	n := len(order)
	eToP := make([]int, n)
	base, extra := n/numPartitions, n%numPartitions
	pos := 0
	for p := 0; p < numPartitions; p++ {
		size := base
		if p < extra {
			size++
		}
		for i := 0; i < size; i++ {
			eToP[order[pos]] = p
			pos++
		}
	}
	return eToP
}

// breadthFirstOrder visits entities through the node adjacency graph so that
// consecutive runs of the ordering are spatially compact
func breadthFirstOrder(entityNodes [][]int) []int {
	g := EntityGraph(entityNodes)
	order := make([]int, 0, len(entityNodes))
	placed := make([]bool, len(entityNodes))
	place := func(e int) {
		if !placed[e] {
			placed[e] = true
			order = append(order, e)
		}
	}
	bf := traverse.BreadthFirst{
		Visit: func(n graph.Node) { place(int(n.ID())) },
	}
	for e := range entityNodes {
		start := simple.Node(int64(e))
		if bf.Visited(start) {
			continue
		}
		place(e)
		bf.Walk(g, start, nil)
	}
	return order
}

// createPartitions builds partition structures from entity assignments
func (pb *PartitionBuilder) createPartitions(eToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)
	for p := range partitions {
		partitions[p].ID = p
	}
	for e, p := range eToP {
		partitions[p].Entities = append(partitions[p].Entities, e)
	}
	for p := range partitions {
		sort.Ints(partitions[p].Entities)
		partitions[p].NumEntities = len(partitions[p].Entities)
	}
	return partitions
}

// calculateKpartMax finds maximum entities across all partitions
func calculateKpartMax(partitions []Partition) int {
	kpartMax := 0
	for _, p := range partitions {
		if p.NumEntities > kpartMax {
			kpartMax = p.NumEntities
		}
	}
	return kpartMax
}
