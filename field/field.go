package field

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// CoordinatesName is the node field holding the model coordinates
const CoordinatesName = "coordinates"

// State selects one stored time level of a multi-state field
type State uint8

const (
	StateNP1 State = iota // current iterate
	StateN                // previous step
	StateNM1              // two steps back
)

func (s State) String() string {
	switch s {
	case StateNP1:
		return "N+1"
	case StateN:
		return "N"
	case StateNM1:
		return "N-1"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Rank is the kind of mesh entity a field lives on
type Rank uint8

const (
	NodeRank Rank = iota
	FaceRank
	ElemRank
)

func (r Rank) String() string {
	switch r {
	case NodeRank:
		return "node"
	case FaceRank:
		return "face"
	case ElemRank:
		return "element"
	}
	return fmt.Sprintf("Rank(%d)", uint8(r))
}

// Ordinal addresses one state of one field in the registry
type Ordinal int

const InvalidOrdinal Ordinal = -1

var ErrFieldNotFound = errors.New("field not found")

// Field describes a declared field. Components is the per-entity stride.
type Field struct {
	Name       string
	Rank       Rank
	Components int
	NumStates  int
	ordinals   [3]Ordinal
}

// Ordinal returns the ordinal for a state; missing older states alias the
// oldest stored one.
func (f *Field) Ordinal(s State) Ordinal {
	if int(s) >= f.NumStates {
		return f.ordinals[f.NumStates-1]
	}
	return f.ordinals[s]
}

type slot struct {
	field *Field
	state State
	data  []float64
}

// Registry is the arena of all field data. Declaration and state rotation
// happen between assembly passes; during assembly it is read by ordinal only.
type Registry struct {
	mu     sync.RWMutex
	counts [3]int
	fields map[string]*Field
	slots  []slot
}

// NewRegistry creates a registry sized for the entity counts of one mesh
func NewRegistry(numNodes, numFaces, numElems int) *Registry {
	return &Registry{
		counts: [3]int{numNodes, numFaces, numElems},
		fields: make(map[string]*Field),
	}
}

// EntityCount returns the number of entities of a rank
func (r *Registry) EntityCount(rank Rank) int { return r.counts[rank] }

// Declare registers a field. Re-declaring an identical field returns the
// existing one.
func (r *Registry) Declare(name string, rank Rank, components, numStates int) (*Field, error) {
	if components < 1 || numStates < 1 || numStates > 3 {
		return nil, fmt.Errorf("field %s: invalid components=%d states=%d", name, components, numStates)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.fields[name]; ok {
		if f.Rank != rank || f.Components != components || f.NumStates != numStates {
			return nil, fmt.Errorf("field %s already declared as %s x%d with %d states",
				name, f.Rank, f.Components, f.NumStates)
		}
		return f, nil
	}
	f := &Field{Name: name, Rank: rank, Components: components, NumStates: numStates}
	for s := 0; s < numStates; s++ {
		f.ordinals[s] = Ordinal(len(r.slots))
		r.slots = append(r.slots, slot{
			field: f,
			state: State(s),
			data:  make([]float64, components*r.counts[rank]),
		})
	}
	r.fields[name] = f
	return f, nil
}

// Field looks up a declared field by name
func (r *Registry) Field(name string) (*Field, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fields[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrFieldNotFound)
	}
	return f, nil
}

// Resolve returns the ordinal of (name, state)
func (r *Registry) Resolve(name string, s State) (Ordinal, error) {
	f, err := r.Field(name)
	if err != nil {
		return InvalidOrdinal, err
	}
	return f.Ordinal(s), nil
}

// ResolveRank resolves like Resolve and checks the entity rank
func (r *Registry) ResolveRank(name string, rank Rank, s State) (Ordinal, error) {
	f, err := r.Field(name)
	if err != nil {
		return InvalidOrdinal, err
	}
	if f.Rank != rank {
		return InvalidOrdinal, fmt.Errorf("%q is a %s field, not %s: %w", name, f.Rank, rank, ErrFieldNotFound)
	}
	return f.Ordinal(s), nil
}

// NumOrdinals is one past the largest ordinal handed out so far
func (r *Registry) NumOrdinals() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slots)
}

// Data returns the backing array of an ordinal, laid out [entity*comp+c]
func (r *Registry) Data(ord Ordinal) []float64 { return r.slots[ord].data }

// Components returns the per-entity stride of an ordinal
func (r *Registry) Components(ord Ordinal) int { return r.slots[ord].field.Components }

// RankOf returns the entity rank of an ordinal
func (r *Registry) RankOf(ord Ordinal) Rank { return r.slots[ord].field.Rank }

// Name returns the field name and state of an ordinal
func (r *Registry) Name(ord Ordinal) (string, State) {
	s := r.slots[ord]
	return s.field.Name, s.state
}

// Read returns one component of one entity
func (r *Registry) Read(ord Ordinal, entity, comp int) float64 {
	s := r.slots[ord]
	return s.data[entity*s.field.Components+comp]
}

// Write sets one component of one entity
func (r *Registry) Write(ord Ordinal, entity, comp int, v float64) {
	s := r.slots[ord]
	s.data[entity*s.field.Components+comp] = v
}

// Entity returns the components of one entity as a sub-slice
func (r *Registry) Entity(ord Ordinal, entity int) []float64 {
	s := r.slots[ord]
	nc := s.field.Components
	return s.data[entity*nc : (entity+1)*nc]
}

// Fill sets every value of an ordinal
func (r *Registry) Fill(ord Ordinal, v float64) {
	d := r.slots[ord].data
	for i := range d {
		d[i] = v
	}
}

// AdvanceStates rotates every multi-state field: N-1 <- N <- N+1, then seeds
// N+1 with a copy of the new N as the initial guess.
func (r *Registry) AdvanceStates() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.fields {
		if f.NumStates < 2 {
			continue
		}
		np1, n := f.ordinals[StateNP1], f.ordinals[StateN]
		if f.NumStates == 3 {
			nm1 := f.ordinals[StateNM1]
			r.slots[nm1].data, r.slots[n].data, r.slots[np1].data =
				r.slots[n].data, r.slots[np1].data, r.slots[nm1].data
		} else {
			r.slots[n].data, r.slots[np1].data = r.slots[np1].data, r.slots[n].data
		}
		copy(r.slots[np1].data, r.slots[n].data)
	}
}

// Names returns the declared field names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
