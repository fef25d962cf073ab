package config

import (
	"fmt"
	"io"
	"math"
	"os"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/notargets/CVFEMKernel/field"
	"github.com/notargets/CVFEMKernel/linsys"
	"github.com/notargets/CVFEMKernel/partitions"
)

// SolutionOptions holds the per-equation numerical choices read by kernels
// and drivers at construction. Maps are keyed by field or equation name.
type SolutionOptions struct {
	CoordinatesName string             `toml:"coordinates_name"`
	Relaxation      map[string]float64 `toml:"relaxation_factor"`
	LumpedMass      map[string]bool    `toml:"lumped_mass"`
	ShiftedGradOp   map[string]bool    `toml:"shifted_grad_op"`
	ScatterStrategy string             `toml:"scatter_strategy"`
	ColoringMethod  string             `toml:"coloring_method"`
	NumWorkers      int                `toml:"num_workers"`
}

// Default returns options with unit relaxation, consistent mass, first fit
// coloring scatter and one worker per CPU
func Default() *SolutionOptions {
	return &SolutionOptions{
		CoordinatesName: field.CoordinatesName,
		Relaxation:      map[string]float64{},
		LumpedMass:      map[string]bool{},
		ShiftedGradOp:   map[string]bool{},
		ScatterStrategy: linsys.ScatterColoring.String(),
		ColoringMethod:  partitions.FirstFit.String(),
		NumWorkers:      runtime.GOMAXPROCS(0),
	}
}

// Decode reads TOML options on top of the defaults
func Decode(r io.Reader) (*SolutionOptions, error) {
	o := Default()
	if _, err := toml.NewDecoder(r).Decode(o); err != nil {
		return nil, fmt.Errorf("solution options: %w", err)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Load reads a TOML options file
func Load(path string) (*SolutionOptions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("solution options: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Validate checks relaxation factors, worker count, scatter strategy and
// coloring method
func (o *SolutionOptions) Validate() error {
	for name, r := range o.Relaxation {
		if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
			return fmt.Errorf("relaxation factor for %s is %g, want a positive finite value", name, r)
		}
	}
	if o.NumWorkers < 0 {
		return fmt.Errorf("num_workers=%d", o.NumWorkers)
	}
	if o.CoordinatesName == "" {
		return fmt.Errorf("coordinates_name is empty")
	}
	if _, err := o.Strategy(); err != nil {
		return err
	}
	_, err := o.Coloring()
	return err
}

// RelaxationFactor returns the factor applied to LHS contributions of a
// field, 1 when not configured
func (o *SolutionOptions) RelaxationFactor(name string) float64 {
	if r, ok := o.Relaxation[name]; ok {
		return r
	}
	return 1
}

// IsLumped reports whether the mass term of an equation uses the shifted
// (lumped) shape functions
func (o *SolutionOptions) IsLumped(equation string) bool { return o.LumpedMass[equation] }

// UseShiftedGradOp reports whether diffusion of an equation evaluates
// gradients at the edge midpoints
func (o *SolutionOptions) UseShiftedGradOp(equation string) bool {
	return o.ShiftedGradOp[equation]
}

// Strategy parses ScatterStrategy
func (o *SolutionOptions) Strategy() (linsys.ScatterStrategy, error) {
	return linsys.ParseScatterStrategy(o.ScatterStrategy)
}

// Coloring parses ColoringMethod
func (o *SolutionOptions) Coloring() (partitions.ColoringMethod, error) {
	return partitions.ParseColoringMethod(o.ColoringMethod)
}

// Workers returns the worker pool size, at least 1
func (o *SolutionOptions) Workers() int {
	if o.NumWorkers < 1 {
		return 1
	}
	return o.NumWorkers
}
