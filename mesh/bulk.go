package mesh

import (
	"errors"
	"fmt"
	"sort"

	"github.com/notargets/CVFEMKernel/element"
	"github.com/notargets/CVFEMKernel/field"
)

// CoordinatesName is the node field Commit declares
const CoordinatesName = field.CoordinatesName

var ErrPartNotFound = errors.New("part not found")

// Entity is an element or a boundary face
type Entity struct {
	Topology element.Topology
	Nodes    []int
	// Parent is the owning element and Side its side ordinal (faces only)
	Parent int
	Side   int
}

// Part is a named selection of entities of one rank and one topology
type Part struct {
	Name     string
	Rank     field.Rank
	Topology element.Topology
	Entities []int
}

// Bulk holds the connectivity of one mesh partition and its field registry
type Bulk struct {
	NDim     int
	NumNodes int
	Elements []Entity
	Faces    []Entity
	// GlobalIDs maps local nodes to ids shared by every partition holding a
	// copy of the node; Owner is the partition that owns each node.
	GlobalIDs []int64
	Owner     []int
	Rank      int

	coords    [][]float64
	parts     map[string]*Part
	partOrder []string
	fields    *field.Registry
}

// NewBulk starts a mesh from node coordinates, one row per node
func NewBulk(nDim int, coords [][]float64) *Bulk {
	b := &Bulk{
		NDim:      nDim,
		NumNodes:  len(coords),
		coords:    coords,
		parts:     make(map[string]*Part),
		GlobalIDs: make([]int64, len(coords)),
		Owner:     make([]int, len(coords)),
	}
	for i := range b.GlobalIDs {
		b.GlobalIDs[i] = int64(i)
	}
	return b
}

func (b *Bulk) checkPartName(name string) error {
	if b.fields != nil {
		return fmt.Errorf("part %s: mesh already committed", name)
	}
	if _, ok := b.parts[name]; ok {
		return fmt.Errorf("part %s declared twice", name)
	}
	return nil
}

func (b *Bulk) addPart(p *Part) *Part {
	b.parts[p.Name] = p
	b.partOrder = append(b.partOrder, p.Name)
	return p
}

// AddElementBlock adds elements of one topology as a named part
func (b *Bulk) AddElementBlock(name string, topo element.Topology, conn [][]int) (*Part, error) {
	if err := b.checkPartName(name); err != nil {
		return nil, err
	}
	if topo.Dimensions() != element.Dimensionality(b.NDim) {
		return nil, fmt.Errorf("block %s: %s elements in a %dD mesh: %w", name, topo, b.NDim, element.ErrUnsupportedTopology)
	}
	p := &Part{Name: name, Rank: field.ElemRank, Topology: topo}
	npe := topo.NumNodes()
	for k, nodes := range conn {
		if len(nodes) != npe {
			return nil, fmt.Errorf("block %s element %d: %d nodes, want %d", name, k, len(nodes), npe)
		}
		for _, n := range nodes {
			if n < 0 || n >= b.NumNodes {
				return nil, fmt.Errorf("block %s element %d: node %d out of range", name, k, n)
			}
		}
	}
	for _, nodes := range conn {
		p.Entities = append(p.Entities, len(b.Elements))
		b.Elements = append(b.Elements, Entity{Topology: topo, Nodes: append([]int(nil), nodes...), Parent: -1})
	}
	return b.addPart(p), nil
}

// Side identifies one side of an element
type Side struct {
	Elem    int
	Ordinal int
}

// AddSideset adds boundary faces, given as element sides, as a named part
func (b *Bulk) AddSideset(name string, sides []Side) (*Part, error) {
	if err := b.checkPartName(name); err != nil {
		return nil, err
	}
	p := &Part{Name: name, Rank: field.FaceRank}
	faces := make([]Entity, 0, len(sides))
	for _, s := range sides {
		if s.Elem < 0 || s.Elem >= len(b.Elements) {
			return nil, fmt.Errorf("sideset %s: element %d out of range", name, s.Elem)
		}
		elem := b.Elements[s.Elem]
		me, err := element.GetVolumeMasterElement(elem.Topology)
		if err != nil {
			return nil, err
		}
		if s.Ordinal < 0 || s.Ordinal >= len(me.Sides()) {
			return nil, fmt.Errorf("sideset %s: side %d of %s out of range", name, s.Ordinal, elem.Topology)
		}
		topo := elem.Topology.SideTopology()
		if p.Topology == element.TopoInvalid {
			p.Topology = topo
		} else if p.Topology != topo {
			return nil, fmt.Errorf("sideset %s mixes %s and %s faces", name, p.Topology, topo)
		}
		local := me.Sides()[s.Ordinal]
		nodes := make([]int, len(local))
		for i, ln := range local {
			nodes[i] = elem.Nodes[ln]
		}
		faces = append(faces, Entity{Topology: topo, Nodes: nodes, Parent: s.Elem, Side: s.Ordinal})
	}
	for _, f := range faces {
		p.Entities = append(p.Entities, len(b.Faces))
		b.Faces = append(b.Faces, f)
	}
	return b.addPart(p), nil
}

// SkinMesh collects every element side not shared by two elements into a
// sideset
func (b *Bulk) SkinMesh(name string) (*Part, error) {
	type sideRef struct {
		side  Side
		count int
	}
	seen := make(map[string]*sideRef)
	var order []string
	for k, elem := range b.Elements {
		me, err := element.GetVolumeMasterElement(elem.Topology)
		if err != nil {
			return nil, err
		}
		for s, local := range me.Sides() {
			key := sideKey(elem.Nodes, local)
			if ref, ok := seen[key]; ok {
				ref.count++
				continue
			}
			seen[key] = &sideRef{side: Side{Elem: k, Ordinal: s}, count: 1}
			order = append(order, key)
		}
	}
	var sides []Side
	for _, key := range order {
		if seen[key].count == 1 {
			sides = append(sides, seen[key].side)
		}
	}
	return b.AddSideset(name, sides)
}

func sideKey(nodes, local []int) string {
	ids := make([]int, len(local))
	for i, ln := range local {
		ids[i] = nodes[ln]
	}
	sort.Ints(ids)
	return fmt.Sprint(ids)
}

// Commit freezes the connectivity, creates the field registry and fills the
// coordinates field
func (b *Bulk) Commit() (*field.Registry, error) {
	if b.fields != nil {
		return b.fields, nil
	}
	reg := field.NewRegistry(b.NumNodes, len(b.Faces), len(b.Elements))
	f, err := reg.Declare(CoordinatesName, field.NodeRank, b.NDim, 1)
	if err != nil {
		return nil, err
	}
	data := reg.Data(f.Ordinal(field.StateNP1))
	for i, x := range b.coords {
		if len(x) < b.NDim {
			return nil, fmt.Errorf("node %d has %d coordinates, want %d", i, len(x), b.NDim)
		}
		copy(data[i*b.NDim:(i+1)*b.NDim], x[:b.NDim])
	}
	b.fields = reg
	return reg, nil
}

// Fields returns the registry created by Commit
func (b *Bulk) Fields() *field.Registry { return b.fields }

// Part looks up a part by name
func (b *Bulk) Part(name string) (*Part, error) {
	p, ok := b.parts[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrPartNotFound)
	}
	return p, nil
}

// Select resolves a list of part names; all parts must share rank and
// topology
func (b *Bulk) Select(names ...string) ([]*Part, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("empty selection: %w", ErrPartNotFound)
	}
	parts := make([]*Part, 0, len(names))
	for _, name := range names {
		p, err := b.Part(name)
		if err != nil {
			return nil, err
		}
		if len(parts) > 0 && (p.Rank != parts[0].Rank || p.Topology != parts[0].Topology) {
			return nil, fmt.Errorf("part %s (%s %s) does not match %s (%s %s)",
				p.Name, p.Rank, p.Topology, parts[0].Name, parts[0].Rank, parts[0].Topology)
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// Parts returns every part in declaration order
func (b *Bulk) Parts() []*Part {
	parts := make([]*Part, len(b.partOrder))
	for i, name := range b.partOrder {
		parts[i] = b.parts[name]
	}
	return parts
}

// Entities returns the entity list of a rank
func (b *Bulk) Entities(rank field.Rank) []Entity {
	if rank == field.FaceRank {
		return b.Faces
	}
	return b.Elements
}

// SelectedNodes returns the sorted, unique nodes touched by the parts
func (b *Bulk) SelectedNodes(parts []*Part) []int {
	mark := make([]bool, b.NumNodes)
	for _, p := range parts {
		ents := b.Entities(p.Rank)
		for _, e := range p.Entities {
			for _, n := range ents[e].Nodes {
				mark[n] = true
			}
		}
	}
	var nodes []int
	for n, m := range mark {
		if m {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Owned reports whether this partition owns a node
func (b *Bulk) Owned(node int) bool { return b.Owner[node] == b.Rank }

// Coordinates returns the coordinates of one node
func (b *Bulk) Coordinates(node int) []float64 {
	if b.fields != nil {
		ord, _ := b.fields.Resolve(CoordinatesName, field.StateNP1)
		return b.fields.Entity(ord, node)
	}
	return b.coords[node]
}
