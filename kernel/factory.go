package kernel

import (
	"fmt"
	"sort"

	"github.com/notargets/CVFEMKernel/config"
	"github.com/notargets/CVFEMKernel/element"
	"github.com/notargets/CVFEMKernel/field"
)

// Kernel names known to NewRegistry
const (
	ScalarMass            = "scalar_mass"
	MomentumMass          = "momentum_mass"
	ScalarDiffusion       = "scalar_diff"
	ScalarUpwindAdvection = "scalar_upw_adv"
	ScalarFluxBC          = "scalar_flux_bc"
	ABLWallShearStress    = "momentum_abl_wall_shear_stress"
	MomentumSynthTurb     = "momentum_synth_turb"
	ScalarMassNode        = "scalar_mass_node"
)

// Field roles a BuildContext can rename
const (
	RoleScalar           = "scalar"
	RoleVelocity         = "velocity"
	RoleDiffFluxCoeff    = "diff_flux_coeff"
	RolePressureGradient = "pressure_gradient"
	RoleScalarFlux       = "scalar_flux"
)

// BuildContext carries what a kernel constructor needs besides its traits
type BuildContext struct {
	Fields   *field.Registry
	Options  *config.SolutionOptions
	Requests *ElemDataRequests
	// Equation names the equation; the scalar role defaults to it
	Equation string
	NDim     int
	// Roles renames fields; unset roles use the package defaults
	Roles map[string]string
}

// FieldName returns the field bound to a role
func (c *BuildContext) FieldName(role string) string {
	if name, ok := c.Roles[role]; ok {
		return name
	}
	switch role {
	case RoleScalar:
		return c.Equation
	case RoleVelocity:
		return VelocityName
	case RoleDiffFluxCoeff:
		return DiffFluxCoeffName
	case RolePressureGradient:
		return ""
	case RoleScalarFlux:
		return ScalarFluxName
	}
	return role
}

type (
	Builder     func(c *BuildContext) (Kernel, error)
	NodeBuilder func(c *BuildContext) (NodeKernel, error)
)

// Registry maps kernel names and topologies to the constructor of the
// matching specialization
type Registry struct {
	builders     map[string]map[element.Topology]Builder
	nodeBuilders map[string]NodeBuilder
}

// NewRegistry returns a registry holding every kernel of this package for
// every supported topology
func NewRegistry() *Registry {
	r := &Registry{
		builders:     make(map[string]map[element.Topology]Builder),
		nodeBuilders: make(map[string]NodeBuilder),
	}
	registerElem[element.Line2](r)
	registerElem[element.Tri3](r)
	registerElem[element.Quad4](r)
	registerElem[element.Tet4](r)
	registerElem[element.Hex8](r)
	registerFace[element.Node1Face](r)
	registerFace[element.Line2Face](r)
	registerFace[element.Tri3Face](r)
	registerFace[element.Quad4Face](r)

	r.RegisterNode(MomentumSynthTurb, func(c *BuildContext) (NodeKernel, error) {
		return asNode[*MomentumSynthTurbNodeKernel](NewMomentumSynthTurbNodeKernel(c.Fields, c.NDim))
	})
	r.RegisterNode(ScalarMassNode, func(c *BuildContext) (NodeKernel, error) {
		name := c.FieldName(RoleScalar)
		return asNode[*ScalarMassNodeKernel](NewScalarMassNodeKernel(c.Fields, name, c.Options.RelaxationFactor(name)))
	})
	return r
}

// as drops the concrete type, returning a nil interface on error
func as[K Kernel](k K, err error) (Kernel, error) {
	if err != nil {
		return nil, err
	}
	return k, nil
}

func asNode[K NodeKernel](k K, err error) (NodeKernel, error) {
	if err != nil {
		return nil, err
	}
	return k, nil
}

func registerElem[T element.AlgTraits](r *Registry) {
	var traits T
	topo := traits.Topology()
	r.Register(ScalarMass, topo, func(c *BuildContext) (Kernel, error) {
		return as[*ScalarMassElemKernel[T]](NewScalarMassElemKernel[T](c.Fields, c.Options, c.Requests,
			c.FieldName(RoleScalar), c.Options.IsLumped(c.Equation)))
	})
	r.Register(MomentumMass, topo, func(c *BuildContext) (Kernel, error) {
		return as[*MomentumMassElemKernel[T]](NewMomentumMassElemKernel[T](c.Fields, c.Options, c.Requests,
			c.FieldName(RoleVelocity), c.FieldName(RolePressureGradient), c.Options.IsLumped(c.Equation)))
	})
	r.Register(ScalarDiffusion, topo, func(c *BuildContext) (Kernel, error) {
		return as[*ScalarDiffElemKernel[T]](NewScalarDiffElemKernel[T](c.Fields, c.Options, c.Requests,
			c.FieldName(RoleScalar), c.FieldName(RoleDiffFluxCoeff), c.Options.UseShiftedGradOp(c.Equation)))
	})
	r.Register(ScalarUpwindAdvection, topo, func(c *BuildContext) (Kernel, error) {
		return as[*ScalarUpwAdvElemKernel[T]](NewScalarUpwAdvElemKernel[T](c.Fields, c.Options, c.Requests, c.FieldName(RoleScalar)))
	})
}

func registerFace[F element.FaceTraits](r *Registry) {
	var traits F
	topo := traits.Topology()
	r.Register(ScalarFluxBC, topo, func(c *BuildContext) (Kernel, error) {
		return as[*ScalarFluxBCElemKernel[F]](NewScalarFluxBCElemKernel[F](c.Fields, c.Options, c.Requests,
			c.FieldName(RoleScalarFlux), c.Options.IsLumped(c.Equation)))
	})
	r.Register(ABLWallShearStress, topo, func(c *BuildContext) (Kernel, error) {
		return as[*MomentumABLWallShearStressEdgeKernel[F]](NewMomentumABLWallShearStressEdgeKernel[F](c.Fields, c.Requests))
	})
}

// Register adds or replaces the builder of a kernel for one topology
func (r *Registry) Register(name string, topo element.Topology, b Builder) {
	if r.builders[name] == nil {
		r.builders[name] = make(map[element.Topology]Builder)
	}
	r.builders[name][topo] = b
}

func (r *Registry) RegisterNode(name string, b NodeBuilder) { r.nodeBuilders[name] = b }

// Build constructs the named kernel specialized for topo
func (r *Registry) Build(name string, topo element.Topology, c *BuildContext) (Kernel, error) {
	byTopo, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown kernel %q", name)
	}
	b, ok := byTopo[topo]
	if !ok {
		return nil, fmt.Errorf("kernel %s on %s: %w", name, topo, element.ErrUnsupportedTopology)
	}
	return b(c)
}

// BuildNode constructs the named node kernel
func (r *Registry) BuildNode(name string, c *BuildContext) (NodeKernel, error) {
	b, ok := r.nodeBuilders[name]
	if !ok {
		return nil, fmt.Errorf("unknown node kernel %q", name)
	}
	return b(c)
}

// Names returns the element and face kernel names
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NodeNames returns the node kernel names
func (r *Registry) NodeNames() []string {
	names := make([]string, 0, len(r.nodeBuilders))
	for name := range r.nodeBuilders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
