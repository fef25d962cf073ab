package algorithm

import (
	"fmt"

	"github.com/notargets/CVFEMKernel/config"
	"github.com/notargets/CVFEMKernel/field"
	"github.com/notargets/CVFEMKernel/kernel"
	"github.com/notargets/CVFEMKernel/linsys"
	"github.com/notargets/CVFEMKernel/mesh"
	"github.com/notargets/CVFEMKernel/timeint"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// entityAlgorithm assembles the kernels of one equation over a selection of
// elements or boundary faces into a linear system. Every entity is
// gathered, run through the kernels in registration order and scattered.
type entityAlgorithm struct {
	lifecycle
	name  string
	bulk  *mesh.Bulk
	sys   *linsys.System
	opts  Options
	sweep *sweep

	kernels     []kernel.Kernel
	kernelNames []string
	groups      [][]int
	lhs         []*mat.Dense
	rhs         [][]float64
}

// ElemAlgorithm assembles element kernels
type ElemAlgorithm struct{ entityAlgorithm }

// FaceAlgorithm assembles boundary face kernels
type FaceAlgorithm struct{ entityAlgorithm }

// NewElemAlgorithm selects the element parts to assemble over
func NewElemAlgorithm(name string, bulk *mesh.Bulk, sys *linsys.System, opts Options,
	parts ...string) (*ElemAlgorithm, error) {
	a, err := newEntityAlgorithm(name, field.ElemRank, bulk, sys, opts, parts)
	if err != nil {
		return nil, err
	}
	return &ElemAlgorithm{*a}, nil
}

// NewFaceAlgorithm selects the sidesets to assemble over
func NewFaceAlgorithm(name string, bulk *mesh.Bulk, sys *linsys.System, opts Options,
	parts ...string) (*FaceAlgorithm, error) {
	a, err := newEntityAlgorithm(name, field.FaceRank, bulk, sys, opts, parts)
	if err != nil {
		return nil, err
	}
	return &FaceAlgorithm{*a}, nil
}

func newEntityAlgorithm(name string, rank field.Rank, bulk *mesh.Bulk, sys *linsys.System, opts Options,
	parts []string) (*entityAlgorithm, error) {
	reg := bulk.Fields()
	if reg == nil {
		return nil, fmt.Errorf("%s: mesh not committed", name)
	}
	if sys == nil || sys.NumNodes != bulk.NumNodes {
		return nil, fmt.Errorf("%s: linear system does not match the %d mesh nodes", name, bulk.NumNodes)
	}
	sel, err := selectEntities(bulk, rank, parts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &entityAlgorithm{
		name:  name,
		bulk:  bulk,
		sys:   sys,
		opts:  opts.withDefaults(),
		sweep: newSweep(sel, reg, bulk.NDim),
	}, nil
}

func (a *entityAlgorithm) Name() string { return a.name }

// Requests is where kernels built outside AddKernels register their data
func (a *entityAlgorithm) Requests() *kernel.ElemDataRequests { return a.sweep.req }

// NumEntities is the size of the selection
func (a *entityAlgorithm) NumEntities() int { return a.sweep.sel.size() }

// NumColors is the number of sequential groups of the last Setup
func (a *entityAlgorithm) NumColors() int { return len(a.groups) }

// AddKernels builds the named kernels for the selection's topology and
// validates the combined data requests. ctx supplies the equation, the
// options and any field renames; the fields, requests and dimension are
// filled in here.
func (a *entityAlgorithm) AddKernels(kreg *kernel.Registry, ctx kernel.BuildContext, names ...string) error {
	ctx.Fields = a.bulk.Fields()
	ctx.Requests = a.sweep.req
	ctx.NDim = a.bulk.NDim
	if ctx.Options == nil {
		ctx.Options = config.Default()
	}
	for _, name := range names {
		k, err := kreg.Build(name, a.sweep.sel.topo, &ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", a.name, err)
		}
		if err = a.AddKernel(name, k); err != nil {
			return err
		}
	}
	return nil
}

// AddKernel appends a kernel constructed against Requests and validates the
// combined requests, so a kernel built for another topology or dimension is
// rejected here rather than during Execute
func (a *entityAlgorithm) AddKernel(name string, k kernel.Kernel) error {
	if err := a.sweep.req.Validate(); err != nil {
		return fmt.Errorf("%s: kernel %s: %w", a.name, name, err)
	}
	a.kernels = append(a.kernels, k)
	a.kernelNames = append(a.kernelNames, name)
	a.sweep.reset()
	a.lhs = nil
	return nil
}

// Setup validates the step coefficients, sizes the worker buffers on first
// use and hands the coefficients to every kernel
func (a *entityAlgorithm) Setup(ti timeint.TimeIntegrator) error {
	if len(a.kernels) == 0 {
		return fmt.Errorf("%s: %w", a.name, ErrNoKernels)
	}
	if err := timeint.Validate(ti); err != nil {
		return fmt.Errorf("%s: %w", a.name, err)
	}
	if err := a.sweep.prepare(a.opts.NumWorkers); err != nil {
		return fmt.Errorf("%s: %w", a.name, err)
	}
	if a.lhs == nil {
		n := a.sweep.scratch[0].NumNodes() * a.sys.BlockSize
		a.lhs = make([]*mat.Dense, a.opts.NumWorkers)
		a.rhs = make([][]float64, a.opts.NumWorkers)
		for w := range a.lhs {
			a.lhs[w] = mat.NewDense(n, n, nil)
			a.rhs[w] = make([]float64, n)
		}
	}
	if a.groups == nil {
		if a.opts.Strategy == linsys.ScatterAtomic {
			a.groups = a.sweep.sel.all()
		} else {
			groups, err := a.sweep.sel.color(a.opts.Coloring)
			if err != nil {
				return fmt.Errorf("%s: %w", a.name, err)
			}
			a.groups = groups
		}
	}
	for _, k := range a.kernels {
		k.Setup(ti)
	}
	a.opts.Log.WithFields(logrus.Fields{
		"algorithm": a.name,
		"parts":     a.sweep.sel.parts,
		"entities":  a.NumEntities(),
		"colors":    len(a.groups),
		"kernels":   a.kernelNames,
		"scatter":   a.opts.Strategy,
	}).Debug("setup")
	return a.setup(ti)
}

// Execute adds the contribution of every selected entity to the system
func (a *entityAlgorithm) Execute() error {
	if err := a.begin(a.name); err != nil {
		return err
	}
	a.sweep.run(a.groups, func(w int, sv *kernel.ScratchViews) {
		lhs, rhs := a.lhs[w], a.rhs[w]
		lhs.Zero()
		for i := range rhs {
			rhs[i] = 0
		}
		for _, k := range a.kernels {
			k.Execute(lhs, rhs, sv)
		}
		a.sys.Scatter(a.opts.Strategy, sv.Nodes, lhs, rhs)
	})
	a.done()
	return nil
}
