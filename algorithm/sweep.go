package algorithm

import (
	"fmt"
	"sync"

	"github.com/notargets/CVFEMKernel/element"
	"github.com/notargets/CVFEMKernel/field"
	"github.com/notargets/CVFEMKernel/kernel"
	"github.com/notargets/CVFEMKernel/mesh"
	"github.com/notargets/CVFEMKernel/partitions"
)

// selection is the entities of one rank and topology named by a list of
// parts. Positions in the selection, not mesh indices, are what the loops
// and the coloring work on.
type selection struct {
	parts    []string
	rank     field.Rank
	topo     element.Topology
	entities []int
	nodes    [][]int
	parents  [][]int // parent element nodes of faces
}

func selectEntities(bulk *mesh.Bulk, rank field.Rank, names []string) (*selection, error) {
	parts, err := bulk.Select(names...)
	if err != nil {
		return nil, err
	}
	if parts[0].Rank != rank {
		return nil, fmt.Errorf("parts %v hold %s entities, want %s", names, parts[0].Rank, rank)
	}
	sel := &selection{parts: names, rank: rank, topo: parts[0].Topology}
	ents := bulk.Entities(rank)
	for _, p := range parts {
		for _, e := range p.Entities {
			sel.entities = append(sel.entities, e)
			sel.nodes = append(sel.nodes, ents[e].Nodes)
			if rank == field.FaceRank {
				sel.parents = append(sel.parents, bulk.Elements[ents[e].Parent].Nodes)
			}
		}
	}
	return sel, nil
}

func (s *selection) size() int { return len(s.entities) }

func (s *selection) parent(i int) []int {
	if s.parents == nil {
		return nil
	}
	return s.parents[i]
}

// all is a single group holding every position
func (s *selection) all() [][]int {
	idx := make([]int, s.size())
	for i := range idx {
		idx[i] = i
	}
	return [][]int{idx}
}

func (s *selection) color(method partitions.ColoringMethod) ([][]int, error) {
	c, err := partitions.ColorEntities(s.nodes, method)
	if err != nil {
		return nil, err
	}
	return c.Groups, nil
}

// selectedNodes is the sorted union of the selection's nodes
func (s *selection) selectedNodes(numNodes int) []int {
	mark := make([]bool, numNodes)
	for _, nodes := range s.nodes {
		for _, n := range nodes {
			mark[n] = true
		}
	}
	var out []int
	for n, m := range mark {
		if m {
			out = append(out, n)
		}
	}
	return out
}

// forEach runs body over idx split into contiguous chunks, one goroutine per
// worker, and returns when every chunk is done. Worker w only ever sees
// its own chunk.
func forEach(idx []int, numWorkers int, body func(w, i int)) {
	if numWorkers > len(idx) {
		numWorkers = len(idx)
	}
	if numWorkers <= 1 {
		for _, i := range idx {
			body(0, i)
		}
		return
	}
	chunk := (len(idx) + numWorkers - 1) / numWorkers
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		lo := w * chunk
		if lo >= len(idx) {
			break
		}
		hi := min(lo+chunk, len(idx))
		wg.Add(1)
		go func(w int, part []int) {
			defer wg.Done()
			for _, i := range part {
				body(w, i)
			}
		}(w, idx[lo:hi])
	}
	wg.Wait()
}

// sweep gathers a selection entity by entity into per-worker scratch views
type sweep struct {
	sel     *selection
	reg     *field.Registry
	req     *kernel.ElemDataRequests
	scratch []*kernel.ScratchViews
}

func newSweep(sel *selection, reg *field.Registry, nDim int) *sweep {
	req := kernel.NewElemDataRequests(reg, nDim)
	req.ExpectTopology(sel.topo)
	return &sweep{sel: sel, reg: reg, req: req}
}

// prepare validates the requests and sizes one scratch per worker. It is a
// no-op once the scratch exists.
func (s *sweep) prepare(numWorkers int) error {
	if s.scratch != nil {
		return nil
	}
	if err := s.req.Validate(); err != nil {
		return err
	}
	s.scratch = make([]*kernel.ScratchViews, numWorkers)
	for w := range s.scratch {
		s.scratch[w] = kernel.NewScratchViews(s.req)
	}
	return nil
}

// reset drops the scratch after the requests changed
func (s *sweep) reset() { s.scratch = nil }

// run visits the groups in order. Entities within a group run
// concurrently; a group starts only after the previous one finished.
func (s *sweep) run(groups [][]int, body func(w int, sv *kernel.ScratchViews)) {
	for _, g := range groups {
		forEach(g, len(s.scratch), func(w, i int) {
			sv := s.scratch[w]
			sv.Gather(s.reg, s.sel.entities[i], s.sel.nodes[i], s.sel.parent(i))
			body(w, sv)
		})
	}
}
