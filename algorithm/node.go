package algorithm

import (
	"fmt"

	"github.com/notargets/CVFEMKernel/config"
	"github.com/notargets/CVFEMKernel/kernel"
	"github.com/notargets/CVFEMKernel/linsys"
	"github.com/notargets/CVFEMKernel/mesh"
	"github.com/notargets/CVFEMKernel/timeint"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// NodeAlgorithm assembles node kernels over the locally owned nodes of a
// selection. Shared nodes are assembled by their owner only. Every node
// touches only its own rows, so nodes run concurrently without coloring.
type NodeAlgorithm struct {
	lifecycle
	name  string
	bulk  *mesh.Bulk
	sys   *linsys.System
	opts  Options
	parts []string
	nodes []int

	kernels     []kernel.NodeKernel
	kernelNames []string
	lhs         []*mat.Dense
	rhs         [][]float64
}

// NewNodeAlgorithm selects the owned nodes touched by the parts
func NewNodeAlgorithm(name string, bulk *mesh.Bulk, sys *linsys.System, opts Options,
	parts ...string) (*NodeAlgorithm, error) {
	if bulk.Fields() == nil {
		return nil, fmt.Errorf("%s: mesh not committed", name)
	}
	if sys == nil || sys.NumNodes != bulk.NumNodes {
		return nil, fmt.Errorf("%s: linear system does not match the %d mesh nodes", name, bulk.NumNodes)
	}
	selected, err := bulk.Select(parts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	a := &NodeAlgorithm{name: name, bulk: bulk, sys: sys, opts: opts.withDefaults(), parts: parts}
	for _, n := range bulk.SelectedNodes(selected) {
		if bulk.Owned(n) {
			a.nodes = append(a.nodes, n)
		}
	}
	return a, nil
}

func (a *NodeAlgorithm) Name() string { return a.name }

// Nodes returns the assembled nodes
func (a *NodeAlgorithm) Nodes() []int { return a.nodes }

// AddKernels builds the named node kernels
func (a *NodeAlgorithm) AddKernels(kreg *kernel.Registry, ctx kernel.BuildContext, names ...string) error {
	ctx.Fields = a.bulk.Fields()
	ctx.NDim = a.bulk.NDim
	if ctx.Options == nil {
		ctx.Options = config.Default()
	}
	for _, name := range names {
		k, err := kreg.BuildNode(name, &ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", a.name, err)
		}
		a.AddKernel(name, k)
	}
	return nil
}

func (a *NodeAlgorithm) AddKernel(name string, k kernel.NodeKernel) {
	a.kernels = append(a.kernels, k)
	a.kernelNames = append(a.kernelNames, name)
}

func (a *NodeAlgorithm) Setup(ti timeint.TimeIntegrator) error {
	if len(a.kernels) == 0 {
		return fmt.Errorf("%s: %w", a.name, ErrNoKernels)
	}
	if err := timeint.Validate(ti); err != nil {
		return fmt.Errorf("%s: %w", a.name, err)
	}
	if a.lhs == nil {
		bs := a.sys.BlockSize
		a.lhs = make([]*mat.Dense, a.opts.NumWorkers)
		a.rhs = make([][]float64, a.opts.NumWorkers)
		for w := range a.lhs {
			a.lhs[w] = mat.NewDense(bs, bs, nil)
			a.rhs[w] = make([]float64, bs)
		}
	}
	for _, k := range a.kernels {
		k.Setup(ti)
	}
	a.opts.Log.WithFields(logrus.Fields{
		"algorithm": a.name,
		"parts":     a.parts,
		"nodes":     len(a.nodes),
		"kernels":   a.kernelNames,
	}).Debug("setup")
	return a.setup(ti)
}

func (a *NodeAlgorithm) Execute() error {
	if err := a.begin(a.name); err != nil {
		return err
	}
	idx := make([]int, len(a.nodes))
	for i := range idx {
		idx[i] = i
	}
	forEach(idx, a.opts.NumWorkers, func(w, i int) {
		lhs, rhs := a.lhs[w], a.rhs[w]
		lhs.Zero()
		for c := range rhs {
			rhs[c] = 0
		}
		node := a.nodes[i]
		for _, k := range a.kernels {
			k.Execute(lhs, rhs, node)
		}
		a.sys.SumInto(a.nodes[i:i+1], lhs, rhs)
	})
	a.done()
	return nil
}
