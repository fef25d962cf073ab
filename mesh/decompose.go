package mesh

import (
	"fmt"
	"sort"

	"github.com/notargets/CVFEMKernel/element"
	"github.com/notargets/CVFEMKernel/field"
)

// Decompose splits a committed serial mesh into one Bulk per partition using
// an element to partition map. Nodes on partition boundaries are copied into
// every partition that touches them and owned by the lowest one. Parts are
// replicated on every partition, possibly empty.
func Decompose(b *Bulk, eToP []int) ([]*Bulk, error) {
	if len(eToP) != len(b.Elements) {
		return nil, fmt.Errorf("EToP length %d does not match %d elements", len(eToP), len(b.Elements))
	}
	numPartitions := 0
	for _, p := range eToP {
		if p < 0 {
			return nil, fmt.Errorf("negative partition id %d", p)
		}
		if p+1 > numPartitions {
			numPartitions = p + 1
		}
	}

	owner := make([]int, b.NumNodes)
	for i := range owner {
		owner[i] = -1
	}
	for k, elem := range b.Elements {
		for _, n := range elem.Nodes {
			if owner[n] < 0 || eToP[k] < owner[n] {
				owner[n] = eToP[k]
			}
		}
	}

	locals := make([]*Bulk, numPartitions)
	for p := 0; p < numPartitions; p++ {
		var nodes []int
		seen := make(map[int]bool)
		for k, elem := range b.Elements {
			if eToP[k] != p {
				continue
			}
			for _, n := range elem.Nodes {
				if !seen[n] {
					seen[n] = true
					nodes = append(nodes, n)
				}
			}
		}
		sort.Ints(nodes)
		g2l := make(map[int]int, len(nodes))
		coords := make([][]float64, len(nodes))
		for l, g := range nodes {
			g2l[g] = l
			coords[l] = append([]float64(nil), b.Coordinates(g)...)
		}
		lb := NewBulk(b.NDim, coords)
		lb.Rank = p
		for l, g := range nodes {
			lb.GlobalIDs[l] = b.GlobalIDs[g]
			lb.Owner[l] = owner[g]
		}

		elemG2L := make(map[int]int)
		for _, part := range b.Parts() {
			if part.Rank != field.ElemRank {
				continue
			}
			var conn [][]int
			for _, e := range part.Entities {
				if eToP[e] != p {
					continue
				}
				local := make([]int, len(b.Elements[e].Nodes))
				for i, g := range b.Elements[e].Nodes {
					local[i] = g2l[g]
				}
				elemG2L[e] = len(lb.Elements) + len(conn)
				conn = append(conn, local)
			}
			if _, err := lb.AddElementBlock(part.Name, part.Topology, conn); err != nil {
				return nil, err
			}
		}
		for _, part := range b.Parts() {
			if part.Rank != field.FaceRank {
				continue
			}
			var sides []Side
			for _, f := range part.Entities {
				face := b.Faces[f]
				if eToP[face.Parent] != p {
					continue
				}
				sides = append(sides, Side{Elem: elemG2L[face.Parent], Ordinal: face.Side})
			}
			lp, err := lb.AddSideset(part.Name, sides)
			if err != nil {
				return nil, err
			}
			if lp.Topology == element.TopoInvalid {
				lp.Topology = part.Topology
			}
		}
		if _, err := lb.Commit(); err != nil {
			return nil, err
		}
		locals[p] = lb
	}
	return locals, nil
}
