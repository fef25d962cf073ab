package algorithm

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/notargets/CVFEMKernel/config"
	"github.com/notargets/CVFEMKernel/field"
	"github.com/notargets/CVFEMKernel/linsys"
	"github.com/notargets/CVFEMKernel/partitions"
	"github.com/notargets/CVFEMKernel/timeint"
	"github.com/sirupsen/logrus"
)

// ErrNotSetUp is returned by Execute when Setup has not run this step
var ErrNotSetUp = errors.New("algorithm not set up")

// ErrNoKernels is returned by Setup of an assembly with nothing to run
var ErrNoKernels = errors.New("no kernels")

// State is the step state of a driver
type State int

const (
	Idle State = iota
	SetUp
	Assembling
	Scattered
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case SetUp:
		return "setup"
	case Assembling:
		return "assembling"
	case Scattered:
		return "scattered"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Driver is one assembly or field algorithm of an equation. Setup runs once
// per step, Execute once per nonlinear iteration, EndStep when the step is
// accepted.
type Driver interface {
	Name() string
	Setup(ti timeint.TimeIntegrator) error
	Execute() error
	EndStep()
	State() State
}

// Options controls how drivers run their entity loops
type Options struct {
	NumWorkers  int
	Strategy    linsys.ScatterStrategy
	Coloring    partitions.ColoringMethod
	Coordinates string
	Log         logrus.FieldLogger
}

// DefaultOptions uses every processor, colored scatter and the standard
// logger
func DefaultOptions() Options {
	return Options{
		NumWorkers:  runtime.GOMAXPROCS(0),
		Strategy:    linsys.ScatterColoring,
		Coloring:    partitions.FirstFit,
		Coordinates: field.CoordinatesName,
		Log:         logrus.StandardLogger(),
	}
}

// OptionsFrom maps solution options onto driver options
func OptionsFrom(o *config.SolutionOptions) (Options, error) {
	opts := DefaultOptions()
	strategy, err := o.Strategy()
	if err != nil {
		return opts, err
	}
	opts.Strategy = strategy
	if opts.Coloring, err = o.Coloring(); err != nil {
		return opts, err
	}
	opts.NumWorkers = o.Workers()
	opts.Coordinates = o.CoordinatesName
	return opts, nil
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.NumWorkers < 1 {
		o.NumWorkers = def.NumWorkers
	}
	if o.Coordinates == "" {
		o.Coordinates = def.Coordinates
	}
	if o.Log == nil {
		o.Log = def.Log
	}
	return o
}

// lifecycle implements the state machine shared by the drivers
type lifecycle struct {
	state State
}

func (l *lifecycle) State() State { return l.state }

// EndStep returns the driver to Idle; the next step starts with Setup
func (l *lifecycle) EndStep() { l.state = Idle }

func (l *lifecycle) setup(ti timeint.TimeIntegrator) error {
	if err := timeint.Validate(ti); err != nil {
		return err
	}
	l.state = SetUp
	return nil
}

func (l *lifecycle) begin(name string) error {
	if l.state != SetUp && l.state != Scattered {
		return fmt.Errorf("%s: execute in state %s: %w", name, l.state, ErrNotSetUp)
	}
	l.state = Assembling
	return nil
}

func (l *lifecycle) done() { l.state = Scattered }
