package parallel

import (
	"fmt"
	"sync"

	"github.com/notargets/CVFEMKernel/field"
	"github.com/notargets/CVFEMKernel/mesh"
)

// Communicator reduces node fields over the copies of shared nodes. Every
// rank of a group must call ParallelSum with the same fields; the call blocks
// until all ranks have contributed.
type Communicator interface {
	Rank() int
	Size() int
	ParallelSum(reg *field.Registry, fields ...string) error
}

// Serial is the communicator of an undecomposed mesh
type Serial struct{}

func (Serial) Rank() int { return 0 }
func (Serial) Size() int { return 1 }

// ParallelSum only checks that the fields exist
func (Serial) ParallelSum(reg *field.Registry, fields ...string) error {
	for _, name := range fields {
		if _, err := reg.ResolveRank(name, field.NodeRank, field.StateNP1); err != nil {
			return fmt.Errorf("parallel sum: %w", err)
		}
	}
	return nil
}

// LocalGroup runs the ranks of a decomposed mesh as goroutines of one process
// and exchanges shared node values through memory
type LocalGroup struct {
	Exchange *NodeExchange

	// send[p][q] holds the values p packed for q in the current round
	send [][][]float64

	mu   sync.Mutex
	cond *sync.Cond
	wait int
	gen  int
}

// NewLocalGroup builds the exchange for the partitions produced by
// mesh.Decompose, indexed by Bulk.Rank
func NewLocalGroup(bulks []*mesh.Bulk) (*LocalGroup, error) {
	ids := make([][]int64, len(bulks))
	for p, b := range bulks {
		if b.Rank != p {
			return nil, fmt.Errorf("bulk %d reports rank %d", p, b.Rank)
		}
		ids[p] = b.GlobalIDs
	}
	ex, err := NewNodeExchange(ids)
	if err != nil {
		return nil, err
	}
	g := &LocalGroup{
		Exchange: ex,
		send:     make([][][]float64, len(bulks)),
	}
	for p := range g.send {
		g.send[p] = make([][]float64, len(bulks))
	}
	g.cond = sync.NewCond(&g.mu)
	return g, nil
}

// Comm returns the communicator used by one rank
func (g *LocalGroup) Comm(rank int) Communicator {
	return &localComm{group: g, rank: rank}
}

func (g *LocalGroup) barrier() {
	g.mu.Lock()
	defer g.mu.Unlock()
	gen := g.gen
	g.wait++
	if g.wait == g.Exchange.NumPartitions {
		g.wait = 0
		g.gen++
		g.cond.Broadcast()
		return
	}
	for gen == g.gen {
		g.cond.Wait()
	}
}

type localComm struct {
	group *LocalGroup
	rank  int
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return c.group.Exchange.NumPartitions }

// ParallelSum sums each shared node over all copies in rank order, so every
// copy ends up with a bit-identical value
func (c *localComm) ParallelSum(reg *field.Registry, fields ...string) error {
	g, p := c.group, c.rank
	ex := g.Exchange
	np := ex.NumPartitions

	ords := make([]field.Ordinal, 0, len(fields))
	var resolveErr error
	for _, name := range fields {
		ord, err := reg.ResolveRank(name, field.NodeRank, field.StateNP1)
		if err != nil {
			resolveErr = fmt.Errorf("parallel sum on rank %d: %w", p, err)
			ords = nil
			break
		}
		ords = append(ords, ord)
	}

	// pack
	for q := 0; q < np; q++ {
		var buf []float64
		for _, ord := range ords {
			data, nc := reg.Data(ord), reg.Components(ord)
			for _, n := range ex.GetPickIndices(p, q) {
				buf = append(buf, data[n*nc:(n+1)*nc]...)
			}
		}
		g.send[p][q] = buf
	}
	g.barrier()

	err := resolveErr
	if err == nil {
		err = c.reduce(reg, ords)
	}
	g.barrier()
	return err
}

func (c *localComm) reduce(reg *field.Registry, ords []field.Ordinal) error {
	g, p := c.group, c.rank
	ex := g.Exchange
	for _, ord := range ords {
		data, nc := reg.Data(ord), reg.Components(ord)
		acc := make(map[int][]float64, len(ex.SharedNodes[p]))
		for _, n := range ex.SharedNodes[p] {
			acc[n] = make([]float64, nc)
		}
		for r := 0; r < ex.NumPartitions; r++ {
			if r == p {
				for _, n := range ex.SharedNodes[p] {
					for k := 0; k < nc; k++ {
						acc[n][k] += data[n*nc+k]
					}
				}
				continue
			}
			place := ex.GetPlaceIndices(p, r)
			if len(place) == 0 {
				continue
			}
			buf, offset := g.send[r][p], 0
			// locate this field inside the source buffer
			for _, prev := range ords {
				if prev == ord {
					break
				}
				offset += len(place) * reg.Components(prev)
			}
			if len(buf) < offset+len(place)*nc {
				return fmt.Errorf("rank %d sent %d values to rank %d, expected at least %d",
					r, len(buf), p, offset+len(place)*nc)
			}
			for i, n := range place {
				for k := 0; k < nc; k++ {
					acc[n][k] += buf[offset+i*nc+k]
				}
			}
		}
		for n, v := range acc {
			copy(data[n*nc:(n+1)*nc], v)
		}
	}
	return nil
}
