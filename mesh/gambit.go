package mesh

import (
	"fmt"

	"github.com/notargets/CVFEMKernel/element"
	"github.com/notargets/gocfd/DG3D/mesh/readers"
)

// LoadGambit reads a 3D mesh file (Gambit neutral and the other formats the
// gocfd readers accept). Elements are grouped into one block per topology,
// "block_Tet4" and so on, and the skin is collected in "boundary".
func LoadGambit(meshfile string) (*Bulk, error) {
	msh, err := readers.ReadMeshFile(meshfile)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", meshfile, err)
	}
	coords := make([][]float64, len(msh.Vertices))
	for i, v := range msh.Vertices {
		coords[i] = []float64{v[0], v[1], v[2]}
	}
	b := NewBulk(3, coords)

	blocks := make(map[element.Topology][][]int)
	var order []element.Topology
	for k, nodes := range msh.EtoV {
		topo, err := element.TopologyFromNodeCount(len(nodes), 3)
		if err != nil {
			return nil, fmt.Errorf("%s element %d: %w", meshfile, k, err)
		}
		if _, ok := blocks[topo]; !ok {
			order = append(order, topo)
		}
		blocks[topo] = append(blocks[topo], nodes)
	}
	for _, topo := range order {
		if _, err = b.AddElementBlock("block_"+topo.String(), topo, blocks[topo]); err != nil {
			return nil, err
		}
	}
	if _, err = b.SkinMesh("boundary"); err != nil {
		return nil, err
	}
	if _, err = b.Commit(); err != nil {
		return nil, err
	}
	return b, nil
}
