package partitions

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph/coloring"
	"gonum.org/v1/gonum/graph/simple"
)

// ColoringMethod selects how the entity conflict graph is colored
type ColoringMethod int

const (
	// FirstFit colors entities greedily in index order. The result depends
	// only on the connectivity, so assembly order is reproducible run to run.
	FirstFit ColoringMethod = iota
	// WelshPowell usually needs fewer colors; ties between equal degree
	// entities are broken arbitrarily.
	WelshPowell
	// Dsatur colors by saturation degree.
	Dsatur
)

var coloringNames = map[string]ColoringMethod{
	"first_fit":    FirstFit,
	"welsh_powell": WelshPowell,
	"dsatur":       Dsatur,
}

// ErrUnknownColoring is returned for a coloring method name that is not
// recognized
var ErrUnknownColoring = errors.New("unknown coloring method")

// ParseColoringMethod maps first_fit, welsh_powell or dsatur to a method. The
// empty name is FirstFit.
func ParseColoringMethod(name string) (ColoringMethod, error) {
	if name == "" {
		return FirstFit, nil
	}
	m, ok := coloringNames[strings.ToLower(name)]
	if !ok {
		return FirstFit, fmt.Errorf("%w: %q", ErrUnknownColoring, name)
	}
	return m, nil
}

func (m ColoringMethod) String() string {
	for name, v := range coloringNames {
		if v == m {
			return name
		}
	}
	return fmt.Sprintf("ColoringMethod(%d)", int(m))
}

// Coloring groups entities so that no two entities of a group share a node
type Coloring struct {
	NumColors int
	Groups    [][]int // entity indices per color, ascending
	Colors    []int   // color of each entity
}

// EntityGraph builds the conflict graph of a set of entities: one graph node
// per entity, an edge whenever two entities share a mesh node
func EntityGraph(entityNodes [][]int) *simple.UndirectedGraph {
	g := simple.NewUndirectedGraph()
	nodeToEntities := make(map[int][]int)
	for e, nodes := range entityNodes {
		g.AddNode(simple.Node(int64(e)))
		for _, n := range nodes {
			nodeToEntities[n] = append(nodeToEntities[n], e)
		}
	}
	for _, ents := range nodeToEntities {
		for i := 0; i < len(ents); i++ {
			for j := i + 1; j < len(ents); j++ {
				a, b := int64(ents[i]), int64(ents[j])
				if a == b || g.HasEdgeBetween(a, b) {
					continue
				}
				g.SetEdge(simple.Edge{F: simple.Node(a), T: simple.Node(b)})
			}
		}
	}
	return g
}

// ColorEntities colors the conflict graph of the entities
func ColorEntities(entityNodes [][]int, method ColoringMethod) (*Coloring, error) {
	g := EntityGraph(entityNodes)
	colors := make(map[int64]int, len(entityNodes))

	var err error
	switch method {
	case WelshPowell:
		_, colors, err = coloring.WelshPowell(g, nil)
	case Dsatur:
		_, colors, err = coloring.Dsatur(g, nil)
	default:
		for e := range entityNodes {
			used := make(map[int]bool)
			nbrs := g.From(int64(e))
			for nbrs.Next() {
				if c, ok := colors[nbrs.Node().ID()]; ok {
					used[c] = true
				}
			}
			c := 0
			for used[c] {
				c++
			}
			colors[int64(e)] = c
		}
	}

	if err != nil {
		return nil, fmt.Errorf("coloring %d entities with %v: %w", len(entityNodes), method, err)
	}

	col := &Coloring{Colors: make([]int, len(entityNodes))}
	for e := range entityNodes {
		c, ok := colors[int64(e)]
		if !ok {
			return nil, fmt.Errorf("entity %d left uncolored", e)
		}
		col.Colors[e] = c
		if c+1 > col.NumColors {
			col.NumColors = c + 1
		}
	}
	col.Groups = make([][]int, col.NumColors)
	for e, c := range col.Colors {
		col.Groups[c] = append(col.Groups[c], e)
	}
	for _, grp := range col.Groups {
		sort.Ints(grp)
	}
	if err = col.Validate(entityNodes); err != nil {
		return nil, err
	}
	return col, nil
}

// Validate checks that no group contains two entities sharing a node
func (c *Coloring) Validate(entityNodes [][]int) error {
	for color, grp := range c.Groups {
		owner := make(map[int]int)
		for _, e := range grp {
			for _, n := range entityNodes[e] {
				if other, ok := owner[n]; ok && other != e {
					return fmt.Errorf("color %d: entities %d and %d share node %d", color, other, e, n)
				}
				owner[n] = e
			}
		}
	}
	return nil
}
