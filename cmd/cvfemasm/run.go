package main

import (
	"context"
	"fmt"
	"math"

	"github.com/notargets/CVFEMKernel/algorithm"
	"github.com/notargets/CVFEMKernel/config"
	"github.com/notargets/CVFEMKernel/equation"
	"github.com/notargets/CVFEMKernel/field"
	"github.com/notargets/CVFEMKernel/kernel"
	"github.com/notargets/CVFEMKernel/linsys"
	"github.com/notargets/CVFEMKernel/mesh"
	"github.com/notargets/CVFEMKernel/parallel"
	"github.com/notargets/CVFEMKernel/timeint"
	"github.com/notargets/CVFEMKernel/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gonum.org/v1/gonum/floats"
)

type runConfig struct {
	Mesh        string
	Cells       []int
	Length      float64
	Scalar      string
	Density     float64
	Diffusivity float64
	Flux        float64
	Steps       int
	Iterations  int
	Dt          float64
	Order       int
	Device      string
	Solve       bool
	Options     *config.SolutionOptions
}

// loadRunConfig reads the run from viper. Solution options start from the
// options file, if any, and are overridden by the explicit settings.
func loadRunConfig(cfg *viper.Viper) (*runConfig, error) {
	opts := config.Default()
	if path := cfg.GetString("options"); path != "" {
		var err error
		if opts, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	rc := &runConfig{
		Mesh:        cfg.GetString("mesh"),
		Length:      cfg.GetFloat64("length"),
		Scalar:      cfg.GetString("scalar"),
		Density:     cfg.GetFloat64("density"),
		Diffusivity: cfg.GetFloat64("diffusivity"),
		Flux:        cfg.GetFloat64("flux"),
		Steps:       cfg.GetInt("steps"),
		Iterations:  cfg.GetInt("iterations"),
		Dt:          cfg.GetFloat64("dt"),
		Order:       cfg.GetInt("order"),
		Device:      cfg.GetString("device"),
		Solve:       cfg.GetBool("solve"),
		Options:     opts,
	}
	cells, err := cast.ToIntSliceE(cfg.Get("cells"))
	if err != nil {
		return nil, fmt.Errorf("cells: %w", err)
	}
	rc.Cells = cells

	// a JSON object from the command line or a table from the config file,
	// whose keys viper lowercases
	relax, err := cast.ToStringMapE(cfg.Get("relaxation"))
	if err != nil {
		return nil, fmt.Errorf("relaxation: %w", err)
	}
	for name, v := range relax {
		r, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("relaxation factor for %s: %w", name, err)
		}
		opts.Relaxation[name] = r
	}
	if w := cfg.GetInt("workers"); w > 0 {
		opts.NumWorkers = w
	}
	if s := cfg.GetString("scatter"); s != "" {
		opts.ScatterStrategy = s
	}
	if c := cfg.GetString("coloring"); c != "" {
		opts.ColoringMethod = c
	}
	if cfg.GetBool("lumped") {
		opts.LumpedMass[rc.Scalar] = true
	}
	if cfg.GetBool("shifted") {
		opts.ShiftedGradOp[rc.Scalar] = true
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if rc.Steps < 1 || rc.Iterations < 1 {
		return nil, fmt.Errorf("steps=%d iterations=%d, want at least one of each", rc.Steps, rc.Iterations)
	}
	return rc, nil
}

func (rc *runConfig) cell(i int) int {
	if i < len(rc.Cells) {
		return rc.Cells[i]
	}
	return rc.Cells[len(rc.Cells)-1]
}

func (rc *runConfig) buildMesh() (*mesh.Bulk, error) {
	if len(rc.Cells) == 0 {
		return nil, fmt.Errorf("no cell counts")
	}
	l := rc.Length
	switch rc.Mesh {
	case "line":
		return mesh.NewLineMesh(rc.cell(0), l)
	case "quad":
		return mesh.NewQuadMesh(rc.cell(0), rc.cell(1), l, l)
	case "tri":
		return mesh.NewTriMesh(rc.cell(0), rc.cell(1), l, l)
	case "hex":
		return mesh.NewHexMesh(rc.cell(0), rc.cell(1), rc.cell(2), l, l, l)
	}
	return mesh.LoadGambit(rc.Mesh)
}

// Result summarizes a run
type Result struct {
	// Residuals holds the residual norm of every assembly, per step
	Residuals [][]float64
	Nodes     int
	Nonzeros  int
}

// Assemble runs the configured equation
func Assemble(ctx context.Context, rc *runConfig, logger logrus.FieldLogger) (*Result, error) {
	b, err := rc.buildMesh()
	if err != nil {
		return nil, err
	}
	var elemParts, faceParts []string
	for _, p := range b.Parts() {
		switch {
		case p.Rank == field.ElemRank:
			elemParts = append(elemParts, p.Name)
		case p.Rank == field.FaceRank && len(p.Entities) > 0:
			faceParts = append(faceParts, p.Name)
		}
	}
	if len(elemParts) != 1 {
		return nil, fmt.Errorf("%s: need exactly one element block, have %v", rc.Mesh, elemParts)
	}
	block := elemParts[0]
	if err := rc.declareFields(b); err != nil {
		return nil, err
	}

	opts, err := algorithm.OptionsFrom(rc.Options)
	if err != nil {
		return nil, err
	}
	opts.Log = logger
	var conn [][]int
	for _, e := range b.Elements {
		conn = append(conn, e.Nodes)
	}
	sys := linsys.NewSystem(b.NumNodes, 1, conn)
	eq := equation.NewSystem(rc.Scalar, b.Fields(), sys, logger)
	kreg := kernel.NewRegistry()
	bctx := kernel.BuildContext{Equation: rc.Scalar, Options: rc.Options}
	comm := parallel.Serial{}

	dv, err := algorithm.NewDualVolumeDriver(b, comm, opts, block)
	if err != nil {
		return nil, err
	}
	eq.AddFieldDriver(dv)
	grad, err := algorithm.NewNodalGradDriver(b, comm, opts, algorithm.NodalGradSpec{
		Scalar:    rc.Scalar,
		Gradient:  "d" + rc.Scalar + "dx",
		ElemParts: []string{block},
		FaceParts: faceParts,
		Shifted:   rc.Options.UseShiftedGradOp(rc.Scalar),
	})
	if err != nil {
		return nil, err
	}
	eq.AddFieldDriver(grad)

	if rc.Device == "" {
		mass, err := algorithm.NewElemAlgorithm(rc.Scalar+" mass", b, sys, opts, block)
		if err != nil {
			return nil, err
		}
		if err = mass.AddKernels(kreg, bctx, kernel.ScalarMass); err != nil {
			return nil, err
		}
		eq.AddAssembly(mass)
	} else {
		device, err := utils.NewDevice(rc.Device)
		if err != nil {
			return nil, err
		}
		defer device.Free()
		mass, err := algorithm.NewDeviceElemAlgorithm(rc.Scalar+" mass", device, b, sys, opts,
			algorithm.DeviceMassSpec{
				Scalar:     rc.Scalar,
				Lumped:     rc.Options.IsLumped(rc.Scalar),
				Relaxation: rc.Options.RelaxationFactor(rc.Scalar),
			}, block)
		if err != nil {
			return nil, err
		}
		defer mass.Free()
		eq.AddAssembly(mass)
	}

	diff, err := algorithm.NewElemAlgorithm(rc.Scalar+" diffusion", b, sys, opts, block)
	if err != nil {
		return nil, err
	}
	if err = diff.AddKernels(kreg, bctx, kernel.ScalarDiffusion); err != nil {
		return nil, err
	}
	eq.AddAssembly(diff)
	if len(faceParts) > 0 {
		flux, err := algorithm.NewFaceAlgorithm(rc.Scalar+" flux", b, sys, opts, faceParts...)
		if err != nil {
			return nil, err
		}
		if err = flux.AddKernels(kreg, bctx, kernel.ScalarFluxBC); err != nil {
			return nil, err
		}
		eq.AddAssembly(flux)
	}
	for _, r := range eq.Requirements() {
		logger.WithFields(logrus.Fields{
			"driver":     r.Driver,
			"field":      r.Field,
			"state":      r.State,
			"components": r.Components,
		}).Debug("gathers")
	}

	logger.WithFields(logrus.Fields{
		"mesh":     rc.Mesh,
		"nodes":    b.NumNodes,
		"elements": len(b.Elements),
		"faces":    len(b.Faces),
		"nonzeros": sys.Nonzeros(),
		"strategy": opts.Strategy,
		"coloring": opts.Coloring,
		"workers":  opts.NumWorkers,
	}).Info("assembling")

	bdf, err := timeint.NewBDF(rc.Order, rc.Dt)
	if err != nil {
		return nil, err
	}
	gradOrd, err := b.Fields().Resolve("d"+rc.Scalar+"dx", field.StateNP1)
	if err != nil {
		return nil, err
	}
	res := &Result{Nodes: b.NumNodes, Nonzeros: sys.Nonzeros()}
	for step := 0; step < rc.Steps; step++ {
		if step > 0 {
			b.Fields().AdvanceStates()
			if err = bdf.Advance(rc.Dt); err != nil {
				return nil, err
			}
		}
		if err = eq.Setup(bdf); err != nil {
			return nil, err
		}
		var norms []float64
		for it := 0; it < rc.Iterations; it++ {
			norm, err := eq.SolveIteration(ctx)
			if err != nil {
				return nil, err
			}
			norms = append(norms, norm)
			logger.WithFields(logrus.Fields{
				"step":      step,
				"iteration": it,
				"residual":  norm,
				"gradient":  floats.Norm(b.Fields().Data(gradOrd), math.Inf(1)),
			}).Info("assembled")
			if !rc.Solve {
				continue
			}
			delta, err := sys.Solve()
			if err != nil {
				return nil, err
			}
			if err = eq.Update(delta.RawVector().Data, 1); err != nil {
				return nil, err
			}
		}
		res.Residuals = append(res.Residuals, norms)
		eq.EndStep()
	}
	return res, nil
}

// declareFields creates the scalar, initialized to the sum of the
// coordinates, and the uniform properties the kernels read
func (rc *runConfig) declareFields(b *mesh.Bulk) error {
	reg := b.Fields()
	uniform := []struct {
		name   string
		states int
		value  float64
	}{
		{kernel.DensityName, 1, rc.Density},
		{kernel.DiffFluxCoeffName, 1, rc.Diffusivity},
		{kernel.ScalarFluxName, 1, rc.Flux},
	}
	for _, u := range uniform {
		f, err := reg.Declare(u.name, field.NodeRank, 1, u.states)
		if err != nil {
			return err
		}
		reg.Fill(f.Ordinal(field.StateNP1), u.value)
	}
	f, err := reg.Declare(rc.Scalar, field.NodeRank, 1, 3)
	if err != nil {
		return err
	}
	for s := field.StateNP1; s <= field.StateNM1; s++ {
		data := reg.Data(f.Ordinal(s))
		for n := range data {
			data[n] = floats.Sum(b.Coordinates(n))
		}
	}
	return nil
}
