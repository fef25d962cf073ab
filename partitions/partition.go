package partitions

import (
	"fmt"
)

// Partition is a collection of entities that execute together as one @outer
// iteration of a device kernel, or live on one process after decomposition
type Partition struct {
	ID int

	Entities    []int // global entity indices in this partition
	NumEntities int   // actual number of active entities
	MaxEntities int   // padded size for @inner loop uniformity
}

// PartitionLayout manages a complete decomposition of an entity set
type PartitionLayout struct {
	Partitions []Partition

	// KpartMax is max(NumEntities) across all partitions
	KpartMax      int
	TotalEntities int
	NumPartitions int

	// EToP maps entity k to its partition
	EToP []int
}

// GetPartition returns the partition containing entity k
func (pl *PartitionLayout) GetPartition(entityID int) int {
	if entityID < 0 || entityID >= len(pl.EToP) {
		return -1
	}
	return pl.EToP[entityID]
}

// ValidateLayout checks partition consistency
func (pl *PartitionLayout) ValidateLayout() error {
	actualMax, total := 0, 0
	for _, p := range pl.Partitions {
		if p.NumEntities > actualMax {
			actualMax = p.NumEntities
		}
		if p.MaxEntities != pl.KpartMax {
			return fmt.Errorf("partition %d: MaxEntities %d != KpartMax %d",
				p.ID, p.MaxEntities, pl.KpartMax)
		}
		if len(p.Entities) != p.NumEntities {
			return fmt.Errorf("partition %d: %d entities listed, NumEntities %d",
				p.ID, len(p.Entities), p.NumEntities)
		}
		for _, e := range p.Entities {
			if pl.GetPartition(e) != p.ID {
				return fmt.Errorf("entity %d listed in partition %d but mapped to %d",
					e, p.ID, pl.GetPartition(e))
			}
		}
		total += p.NumEntities
	}
	if actualMax != pl.KpartMax {
		return fmt.Errorf("computed KpartMax %d != stored KpartMax %d",
			actualMax, pl.KpartMax)
	}
	if total != pl.TotalEntities {
		return fmt.Errorf("partitions hold %d entities, expected %d", total, pl.TotalEntities)
	}
	return nil
}

// K returns the active entity count of every partition
func (pl *PartitionLayout) K() []int {
	k := make([]int, len(pl.Partitions))
	for i, p := range pl.Partitions {
		k[i] = p.NumEntities
	}
	return k
}

// PartitionStats summarizes load balance
type PartitionStats struct {
	NumPartitions int
	MinEntities   int
	MaxEntities   int
	AvgEntities   float64
	Imbalance     float64 // max/avg
}

// PartitionStatistics computes load balance metrics
func (pl *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{NumPartitions: pl.NumPartitions}
	if pl.NumPartitions == 0 {
		return stats
	}
	stats.MinEntities = pl.Partitions[0].NumEntities
	for _, p := range pl.Partitions {
		if p.NumEntities < stats.MinEntities {
			stats.MinEntities = p.NumEntities
		}
		if p.NumEntities > stats.MaxEntities {
			stats.MaxEntities = p.NumEntities
		}
	}
	stats.AvgEntities = float64(pl.TotalEntities) / float64(pl.NumPartitions)
	if stats.AvgEntities > 0 {
		stats.Imbalance = float64(stats.MaxEntities) / stats.AvgEntities
	}
	return stats
}
