// Package equation composes the drivers of one unknown and sequences them
// once per nonlinear iteration.
package equation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/notargets/CVFEMKernel/algorithm"
	"github.com/notargets/CVFEMKernel/field"
	"github.com/notargets/CVFEMKernel/kernel"
	"github.com/notargets/CVFEMKernel/linsys"
	"github.com/notargets/CVFEMKernel/timeint"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// ErrNoDrivers is returned by Setup when nothing assembles the system
var ErrNoDrivers = errors.New("equation has no assembly drivers")

// Requirement is one field a driver gathers
type Requirement struct {
	Driver     string
	Field      string
	State      field.State
	Rank       field.Rank
	Components int
}

// requester is implemented by drivers that gather through ElemDataRequests
type requester interface {
	Requests() *kernel.ElemDataRequests
}

// System owns the drivers of one unknown. Field drivers compute the nodal
// fields the kernels read (dual volume, gradients) and run first; assembly
// drivers then add into the linear system.
type System struct {
	Name   string
	LinSys *linsys.System
	Log    logrus.FieldLogger

	reg          *field.Registry
	fieldDrivers []algorithm.Driver
	assembly     []algorithm.Driver
	iteration    int
}

func NewSystem(name string, reg *field.Registry, sys *linsys.System, log logrus.FieldLogger) *System {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &System{Name: name, LinSys: sys, Log: log.WithField("equation", name), reg: reg}
}

// AddFieldDriver appends a driver that computes fields instead of
// assembling. Field drivers run in the order added.
func (e *System) AddFieldDriver(d algorithm.Driver) { e.fieldDrivers = append(e.fieldDrivers, d) }

// AddAssembly appends an assembly driver
func (e *System) AddAssembly(d algorithm.Driver) { e.assembly = append(e.assembly, d) }

// Drivers returns the field drivers followed by the assembly drivers
func (e *System) Drivers() []algorithm.Driver {
	all := make([]algorithm.Driver, 0, len(e.fieldDrivers)+len(e.assembly))
	all = append(all, e.fieldDrivers...)
	return append(all, e.assembly...)
}

// Requirements lists the fields gathered by every driver that declares
// them, in driver order
func (e *System) Requirements() []Requirement {
	var reqs []Requirement
	for _, d := range e.Drivers() {
		r, ok := d.(requester)
		if !ok {
			continue
		}
		for _, fr := range r.Requests().Fields() {
			name, state := e.reg.Name(fr.Ordinal)
			reqs = append(reqs, Requirement{
				Driver:     d.Name(),
				Field:      name,
				State:      state,
				Rank:       fr.Rank,
				Components: fr.Components,
			})
		}
	}
	return reqs
}

// Setup prepares every driver for a new step
func (e *System) Setup(ti timeint.TimeIntegrator) error {
	if len(e.assembly) == 0 {
		return fmt.Errorf("%s: %w", e.Name, ErrNoDrivers)
	}
	for _, d := range e.Drivers() {
		if err := d.Setup(ti); err != nil {
			return fmt.Errorf("%s: %w", e.Name, err)
		}
	}
	e.iteration = 0
	e.Log.WithFields(logrus.Fields{
		"dt":      ti.TimeStep(),
		"gamma":   []float64{ti.Gamma1(), ti.Gamma2(), ti.Gamma3()},
		"drivers": len(e.fieldDrivers) + len(e.assembly),
	}).Debug("setup")
	return nil
}

// SolveIteration recomputes the field drivers, zeroes the linear system and
// assembles every driver into it. It returns the 2-norm of the assembled
// residual. The context is checked between drivers.
func (e *System) SolveIteration(ctx context.Context) (float64, error) {
	start := time.Now()
	run := func(d algorithm.Driver) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.Execute(); err != nil {
			return fmt.Errorf("%s: %w", e.Name, err)
		}
		return nil
	}
	for _, d := range e.fieldDrivers {
		if err := run(d); err != nil {
			return 0, err
		}
	}
	e.LinSys.Zero()
	for _, d := range e.assembly {
		if err := run(d); err != nil {
			return 0, err
		}
	}
	e.iteration++
	norm := e.LinSys.ResidualNorm()
	e.Log.WithFields(logrus.Fields{
		"iteration": e.iteration,
		"residual":  norm,
		"max":       floats.Norm(e.LinSys.RHS(), math.Inf(1)),
		"elapsed":   time.Since(start),
	}).Debug("assembled")
	return norm, nil
}

// Update adds a solution increment to the unknown at the current state,
// scaled by alpha
func (e *System) Update(delta []float64, alpha float64) error {
	ord, err := e.reg.ResolveRank(e.Name, field.NodeRank, field.StateNP1)
	if err != nil {
		return fmt.Errorf("%s: %w", e.Name, err)
	}
	q := e.reg.Data(ord)
	if len(delta) != len(q) {
		return fmt.Errorf("%s: increment has %d values, field has %d", e.Name, len(delta), len(q))
	}
	floats.AddScaled(q, alpha, delta)
	return nil
}

// EndStep returns every driver to Idle
func (e *System) EndStep() {
	for _, d := range e.Drivers() {
		d.EndStep()
	}
}
